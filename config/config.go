package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"activityledger/crypto"
	"activityledger/native/activity"
)

type Config struct {
	DataDir                  string `toml:"DataDir"`
	Env                      string `toml:"Env"`
	MetricsAddress           string `toml:"MetricsAddress"`
	AuthorityAddress         string `toml:"AuthorityAddress"`
	FeeCollectorAddress      string `toml:"FeeCollectorAddress"`
	FeeRatioBps              uint16 `toml:"FeeRatioBps"`
	MaxBatchRecipients       int    `toml:"MaxBatchRecipients"`
	ClaimSignatureTTLSeconds int64  `toml:"ClaimSignatureTTLSeconds"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the decoded configuration for values the ledger would
// reject at runtime anyway.
func (c *Config) Validate() error {
	if c.FeeRatioBps > activity.MaxFeeRatioBps {
		return fmt.Errorf("config: FeeRatioBps %d exceeds %d", c.FeeRatioBps, activity.MaxFeeRatioBps)
	}
	if c.MaxBatchRecipients < 0 {
		return fmt.Errorf("config: MaxBatchRecipients must not be negative")
	}
	if c.ClaimSignatureTTLSeconds < 0 {
		return fmt.Errorf("config: ClaimSignatureTTLSeconds must not be negative")
	}
	if trimmed := strings.TrimSpace(c.AuthorityAddress); trimmed != "" {
		if _, err := crypto.DecodeAddress(trimmed); err != nil {
			return fmt.Errorf("config: invalid AuthorityAddress: %w", err)
		}
	}
	if trimmed := strings.TrimSpace(c.FeeCollectorAddress); trimmed != "" {
		if _, err := crypto.DecodeAddress(trimmed); err != nil {
			return fmt.Errorf("config: invalid FeeCollectorAddress: %w", err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if cfg.MaxBatchRecipients == 0 {
		cfg.MaxBatchRecipients = activity.DefaultMaxBatchRecipients
	}
	if cfg.ClaimSignatureTTLSeconds == 0 {
		cfg.ClaimSignatureTTLSeconds = int64(activity.DefaultClaimSignatureTTL.Seconds())
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
