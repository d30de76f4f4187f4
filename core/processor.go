package core

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"activityledger/core/events"
	"activityledger/core/state"
	"activityledger/native/activity"
	"activityledger/observability/logging"
	"activityledger/observability/metrics"
	"activityledger/storage"
)

// OpName identifies one of the ledger entry points.
type OpName string

const (
	OpInitialize        OpName = "initialize"
	OpUpdatePlatformFee OpName = "update_platform_fee"
	OpAddToWhitelist    OpName = "add_to_whitelist"
	OpDeposit           OpName = "deposit"
	OpWithdraw          OpName = "withdraw"
	OpBatchTransfer     OpName = "batch_transfer"
	OpClaimByReward     OpName = "claim_by_reward"
)

// Accounts carries the record addresses a caller names in an operation. Each
// supplied address is checked against the recomputed derivation before any
// state is touched, so a caller can never substitute an unrelated record of
// the same layout. Nil entries are derived by the processor itself.
type Accounts struct {
	PlatformConfig *[32]byte
	Whitelist      *[32]byte
	ProjectBalance *[32]byte
	ClaimRecord    *[32]byte
}

// Operation is a single requested state transition: the operation name, the
// cryptographic signers present on the enclosing transaction, the named
// record addresses and the arguments.
type Operation struct {
	Name     OpName
	Signers  [][20]byte
	Accounts Accounts

	Caller      [20]byte
	Project     [20]byte
	Token       [20]byte
	User        [20]byte
	Destination [20]byte
	Signer      [20]byte

	Amount      uint64
	Amounts     []uint64
	Recipients  [][20]byte
	RewardIDs   []string
	Signature   []byte
	Timestamp   int64
	ActivityID  string
	FeeRatioBps uint16
}

// Receipt reports the events an applied operation emitted.
type Receipt struct {
	Events []*events.Payload
}

type capturingEmitter struct {
	captured []*events.Payload
	forward  events.Emitter
}

func (c *capturingEmitter) Emit(evt events.Event) {
	if carrier, ok := evt.(interface{ Event() *events.Payload }); ok {
		if payload := carrier.Event(); payload != nil {
			c.captured = append(c.captured, payload)
		}
	}
	if c.forward != nil {
		c.forward.Emit(evt)
	}
}

// Processor is the stateless router in front of the activity engine. Every
// Apply stages all writes in an overlay and commits only when the operation
// succeeds, so a failing operation leaves no partial state behind.
type Processor struct {
	db           storage.Database
	emitter      events.Emitter
	feeCollector [20]byte
	verifier     activity.Verifier
	nowFn        func() int64
	maxBatch     int
	claimTTL     time.Duration
	logger       *slog.Logger
}

// NewProcessor creates a processor bound to the provided database.
func NewProcessor(db storage.Database) *Processor {
	return &Processor{db: db, logger: slog.Default()}
}

// SetEmitter forwards engine events to an external subscriber in addition to
// the per-operation receipt.
func (p *Processor) SetEmitter(emitter events.Emitter) { p.emitter = emitter }

// SetFeeCollector configures the address receiving the platform fee cut.
func (p *Processor) SetFeeCollector(addr [20]byte) { p.feeCollector = addr }

// SetVerifier overrides the claim signature verifier, primarily for tests.
func (p *Processor) SetVerifier(v activity.Verifier) { p.verifier = v }

// SetNowFunc overrides the time source used for claim freshness checks.
func (p *Processor) SetNowFunc(now func() int64) { p.nowFn = now }

// SetMaxBatchRecipients bounds batch distributions.
func (p *Processor) SetMaxBatchRecipients(limit int) { p.maxBatch = limit }

// SetClaimSignatureTTL configures the claim signature freshness window.
func (p *Processor) SetClaimSignatureTTL(ttl time.Duration) { p.claimTTL = ttl }

// SetLogger overrides the structured logger. Passing nil restores the default.
func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		p.logger = slog.Default()
		return
	}
	p.logger = logger
}

func checkAccount(supplied *[32]byte, want [32]byte) error {
	if supplied == nil {
		return nil
	}
	if *supplied != want {
		return activity.ErrAddressMismatch
	}
	return nil
}

func signedBy(signers [][20]byte, addr [20]byte) bool {
	for _, signer := range signers {
		if signer == addr {
			return true
		}
	}
	return false
}

func (p *Processor) newEngine(mgr *state.Manager, capture *capturingEmitter) *activity.Engine {
	engine := activity.NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(capture)
	engine.SetFeeCollector(p.feeCollector)
	if p.verifier != nil {
		engine.SetVerifier(p.verifier)
	}
	if p.nowFn != nil {
		engine.SetNowFunc(p.nowFn)
	}
	if p.maxBatch > 0 {
		engine.SetMaxBatchRecipients(p.maxBatch)
	}
	if p.claimTTL > 0 {
		engine.SetClaimSignatureTTL(p.claimTTL)
	}
	return engine
}

// Apply validates and executes a single operation atomically.
func (p *Processor) Apply(op *Operation) (*Receipt, error) {
	if p == nil || p.db == nil {
		return nil, errors.New("core: processor not configured")
	}
	if op == nil {
		return nil, errors.New("core: nil operation")
	}
	receipt, err := p.apply(op)
	if err != nil {
		metrics.Activity().OpFailed(string(op.Name))
		args := []any{"op", string(op.Name), "err", err}
		if op.Name == OpClaimByReward {
			args = append(args, logging.SignatureAttr("signature", op.Signature))
		}
		p.logger.Warn("operation rejected", args...)
		return nil, err
	}
	metrics.Activity().OpApplied(string(op.Name))
	p.logger.Info("operation applied", "op", string(op.Name), "events", len(receipt.Events))
	return receipt, nil
}

func (p *Processor) apply(op *Operation) (*Receipt, error) {
	if err := p.verifyAccounts(op); err != nil {
		return nil, err
	}
	if err := p.authorize(op); err != nil {
		return nil, err
	}

	overlay := storage.NewOverlay(p.db)
	mgr := state.NewManager(overlay)
	capture := &capturingEmitter{forward: p.emitter}
	engine := p.newEngine(mgr, capture)

	var err error
	switch op.Name {
	case OpInitialize:
		_, err = engine.Initialize(op.Caller)
	case OpUpdatePlatformFee:
		err = engine.UpdatePlatformFee(op.Caller, op.FeeRatioBps)
	case OpAddToWhitelist:
		err = engine.AddToWhitelist(op.Caller, op.Signer)
	case OpDeposit:
		err = engine.Deposit(op.Project, op.Token, op.Amount, op.ActivityID)
	case OpWithdraw:
		err = engine.Withdraw(op.Project, op.Token, op.Amount, op.Destination)
	case OpBatchTransfer:
		err = engine.BatchTransfer(op.Project, op.Token, op.Amounts, op.Recipients, op.ActivityID)
	case OpClaimByReward:
		var payload *activity.ClaimPayload
		payload, err = activity.NewClaimPayload(op.User, op.Token, op.Amounts, op.RewardIDs, op.Signature, op.Timestamp)
		if err == nil {
			err = engine.ClaimByReward(op.Project, op.Signer, payload)
		}
	default:
		err = fmt.Errorf("core: unknown operation %q", op.Name)
	}
	if err != nil {
		overlay.Discard()
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		overlay.Discard()
		return nil, err
	}
	if op.Name == OpClaimByReward {
		recordClaimMetrics(capture.captured)
	}
	p.recordCustodyGauge(op)
	return &Receipt{Events: capture.captured}, nil
}

// recordCustodyGauge refreshes the custody balance gauge after any operation
// that can move funds into or out of a (project, token) record.
func (p *Processor) recordCustodyGauge(op *Operation) {
	switch op.Name {
	case OpDeposit, OpWithdraw, OpBatchTransfer, OpClaimByReward:
	default:
		return
	}
	balance, ok, err := state.NewManager(p.db).ProjectBalanceGet(op.Project, op.Token)
	if err != nil || !ok {
		return
	}
	metrics.Activity().CustodySet(
		hex.EncodeToString(op.Project[:]),
		hex.EncodeToString(op.Token[:]),
		balance.Balance,
	)
}

// verifyAccounts recomputes the derived address for every record the
// operation names and rejects the whole operation on the first mismatch.
func (p *Processor) verifyAccounts(op *Operation) error {
	switch op.Name {
	case OpInitialize, OpUpdatePlatformFee:
		return checkAccount(op.Accounts.PlatformConfig, activity.PlatformConfigAddress())
	case OpAddToWhitelist:
		if err := checkAccount(op.Accounts.PlatformConfig, activity.PlatformConfigAddress()); err != nil {
			return err
		}
		return checkAccount(op.Accounts.Whitelist, activity.WhitelistAddress(op.Signer))
	case OpDeposit, OpWithdraw, OpBatchTransfer:
		return checkAccount(op.Accounts.ProjectBalance, activity.ProjectBalanceAddress(op.Project, op.Token))
	case OpClaimByReward:
		if err := checkAccount(op.Accounts.PlatformConfig, activity.PlatformConfigAddress()); err != nil {
			return err
		}
		if err := checkAccount(op.Accounts.Whitelist, activity.WhitelistAddress(op.Signer)); err != nil {
			return err
		}
		if err := checkAccount(op.Accounts.ProjectBalance, activity.ProjectBalanceAddress(op.Project, op.Token)); err != nil {
			return err
		}
		return checkAccount(op.Accounts.ClaimRecord, activity.ClaimRecordAddress(op.User))
	default:
		return fmt.Errorf("core: unknown operation %q", op.Name)
	}
}

// authorize confirms the required identity actually signed the transaction.
// Identity-to-record checks (authority match, whitelist flag) live in the
// engine; this layer only proves signer presence.
func (p *Processor) authorize(op *Operation) error {
	switch op.Name {
	case OpInitialize, OpUpdatePlatformFee, OpAddToWhitelist:
		if !signedBy(op.Signers, op.Caller) {
			return activity.ErrUnauthorized
		}
	case OpDeposit, OpWithdraw, OpBatchTransfer, OpClaimByReward:
		if !signedBy(op.Signers, op.Project) {
			return activity.ErrUnauthorized
		}
	default:
		return fmt.Errorf("core: unknown operation %q", op.Name)
	}
	return nil
}

func recordClaimMetrics(captured []*events.Payload) {
	for _, payload := range captured {
		if payload.Type != activity.EventTypeClaimed {
			continue
		}
		gross, _ := strconv.ParseUint(payload.Attributes["gross"], 10, 64)
		fee, _ := strconv.ParseUint(payload.Attributes["fee"], 10, 64)
		metrics.Activity().ClaimPaid(gross, fee)
	}
}
