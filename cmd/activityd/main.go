package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"activityledger/config"
	"activityledger/core"
	"activityledger/core/state"
	"activityledger/crypto"
	"activityledger/observability/logging"
	"activityledger/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("activityd", "")
		errExit("load config", err)
	}
	logger := logging.Setup("activityd", cfg.Env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		errExit("open database", err)
	}
	defer db.Close()

	processor := core.NewProcessor(db)
	processor.SetLogger(logger)
	processor.SetMaxBatchRecipients(cfg.MaxBatchRecipients)
	processor.SetClaimSignatureTTL(time.Duration(cfg.ClaimSignatureTTLSeconds) * time.Second)
	if trimmed := strings.TrimSpace(cfg.FeeCollectorAddress); trimmed != "" {
		collector, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			errExit("decode fee collector address", err)
		}
		processor.SetFeeCollector(collector.Raw())
	}

	if err := ensureInitialized(processor, db, cfg); err != nil {
		errExit("initialize platform", err)
	}

	logger.Info("serving metrics", "addr", cfg.MetricsAddress)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(cfg.MetricsAddress, nil); err != nil {
		errExit("serve metrics", err)
	}
}

// ensureInitialized creates the platform config on first boot using the
// configured authority and applies the configured fee ratio.
func ensureInitialized(processor *core.Processor, db storage.Database, cfg *config.Config) error {
	mgr := state.NewManager(db)
	if _, ok, err := mgr.PlatformConfigGet(); err != nil || ok {
		return err
	}
	trimmed := strings.TrimSpace(cfg.AuthorityAddress)
	if trimmed == "" {
		return errors.New("AuthorityAddress required to initialize a fresh ledger")
	}
	authority, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return err
	}
	caller := authority.Raw()
	if _, err := processor.Apply(&core.Operation{
		Name:    core.OpInitialize,
		Signers: [][20]byte{caller},
		Caller:  caller,
	}); err != nil {
		return err
	}
	if cfg.FeeRatioBps == 0 {
		return nil
	}
	_, err = processor.Apply(&core.Operation{
		Name:        core.OpUpdatePlatformFee,
		Signers:     [][20]byte{caller},
		Caller:      caller,
		FeeRatioBps: cfg.FeeRatioBps,
	})
	return err
}

func errExit(msg string, err error) {
	os.Stderr.WriteString("activityd: " + msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
