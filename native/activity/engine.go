package activity

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"activityledger/core/events"
)

var errNilState = errors.New("activity engine: state not configured")

// DefaultMaxBatchRecipients bounds a single batch distribution. The host
// transaction model caps how many accounts one transaction can touch; the
// engine rejects oversized batches rather than truncating them.
const DefaultMaxBatchRecipients = 64

// DefaultClaimSignatureTTL is how long a claim signature stays redeemable
// after the attested timestamp.
const DefaultClaimSignatureTTL = time.Hour

type engineState interface {
	PlatformConfigGet() (*PlatformConfig, bool, error)
	PlatformConfigPut(*PlatformConfig) error
	WhitelistGet(signer [20]byte) (*Whitelist, bool, error)
	WhitelistPut(*Whitelist) error
	ProjectBalanceGet(project, token [20]byte) (*ProjectBalance, bool, error)
	ProjectBalancePut(*ProjectBalance) error
	ClaimRecordGet(user [20]byte) (*ClaimRecord, bool, error)
	ClaimRecordPut(*ClaimRecord) error
	TokenTransfer(from, to [20]byte, token [20]byte, amount uint64) error
	VaultAddress(token [20]byte) [20]byte
	ActivityAppend(project [20]byte, entry *ActivityEntry) error
}

type activityEvent struct {
	evt *events.Payload
}

func (e activityEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e activityEvent) Event() *events.Payload { return e.evt }

// Engine wires the custody ledger business logic with external state and
// event emitters. All record writes go through the configured state backend,
// so callers that stage the backend get all-or-nothing semantics for free.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	verifier     Verifier
	feeCollector [20]byte
	nowFn        func() int64
	maxBatch     int
	claimTTL     time.Duration
}

// NewEngine creates an activity engine with a no-op emitter and the default
// recovery-based signature verifier. Callers can override both via setters.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		verifier: RecoverVerifier{},
		nowFn:    func() int64 { return time.Now().Unix() },
		maxBatch: DefaultMaxBatchRecipients,
		claimTTL: DefaultClaimSignatureTTL,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeeCollector configures the address that receives the platform fee cut.
func (e *Engine) SetFeeCollector(addr [20]byte) { e.feeCollector = addr }

// SetMaxBatchRecipients overrides the batch size bound. Non-positive values
// restore the default.
func (e *Engine) SetMaxBatchRecipients(limit int) {
	if limit <= 0 {
		e.maxBatch = DefaultMaxBatchRecipients
		return
	}
	e.maxBatch = limit
}

// SetClaimSignatureTTL overrides the claim signature freshness window.
// Non-positive values restore the default.
func (e *Engine) SetClaimSignatureTTL(ttl time.Duration) {
	if ttl <= 0 {
		e.claimTTL = DefaultClaimSignatureTTL
		return
	}
	e.claimTTL = ttl
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetVerifier configures the claim signature verifier. Passing nil resets the
// engine to the recovery-based implementation.
func (e *Engine) SetVerifier(v Verifier) {
	if v == nil {
		e.verifier = RecoverVerifier{}
		return
	}
	e.verifier = v
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *events.Payload) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(activityEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrInsufficientFunds
	}
	return a - b, nil
}

func (e *Engine) loadConfig() (*PlatformConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok, err := e.state.PlatformConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) loadBalance(project, token [20]byte) (*ProjectBalance, error) {
	balance, ok, err := e.state.ProjectBalanceGet(project, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		balance = &ProjectBalance{Project: project, Token: token}
	}
	return balance, nil
}

func normalizeActivityID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return uuid.NewString()
	}
	return trimmed
}

// Initialize creates the singleton platform config with the caller as
// authority and a zero fee ratio. It fails when the config already exists.
func (e *Engine) Initialize(caller [20]byte) (*PlatformConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	_, ok, err := e.state.PlatformConfigGet()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrAlreadyInitialized
	}
	cfg := &PlatformConfig{Authority: caller}
	if err := e.state.PlatformConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(caller))
	return cfg.Clone(), nil
}

// UpdatePlatformFee changes the fee ratio. Only the platform authority may
// invoke it and the ratio is bounded at 10000 basis points.
func (e *Engine) UpdatePlatformFee(caller [20]byte, ratioBps uint16) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Authority != caller {
		return ErrUnauthorized
	}
	if ratioBps > MaxFeeRatioBps {
		return ErrInvalidFeeRatio
	}
	cfg.FeeRatioBps = ratioBps
	if err := e.state.PlatformConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(ratioBps))
	return nil
}

// AddToWhitelist approves a signer key for claim authorization. Only the
// platform authority may invoke it. The operation is idempotent.
func (e *Engine) AddToWhitelist(caller, signer [20]byte) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Authority != caller {
		return ErrUnauthorized
	}
	existing, ok, err := e.state.WhitelistGet(signer)
	if err != nil {
		return err
	}
	if ok && existing.Whitelisted {
		return nil
	}
	if err := e.state.WhitelistPut(&Whitelist{Signer: signer, Whitelisted: true}); err != nil {
		return err
	}
	e.emit(NewWhitelistedEvent(signer))
	return nil
}

// Deposit moves tokens from the project into program custody and credits the
// matching balance record, creating it on first use. The activity identifier
// is recorded for audit only; a fresh one is generated when the caller leaves
// it blank.
func (e *Engine) Deposit(project, token [20]byte, amount uint64, activityID string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if _, err := e.loadConfig(); err != nil {
		return err
	}
	balance, err := e.loadBalance(project, token)
	if err != nil {
		return err
	}
	credited, err := checkedAdd(balance.Balance, amount)
	if err != nil {
		return err
	}
	vault := e.state.VaultAddress(token)
	if err := e.state.TokenTransfer(project, vault, token, amount); err != nil {
		return err
	}
	balance.Balance = credited
	if err := e.state.ProjectBalancePut(balance); err != nil {
		return err
	}
	id := normalizeActivityID(activityID)
	entry := &ActivityEntry{ID: id, Kind: "deposit", Token: token, Amount: amount, Timestamp: e.now()}
	if err := e.state.ActivityAppend(project, entry); err != nil {
		return err
	}
	e.emit(NewDepositedEvent(project, token, amount, id))
	return nil
}

// Withdraw debits the custody balance and returns tokens to the destination.
func (e *Engine) Withdraw(project, token [20]byte, amount uint64, destination [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	balance, err := e.loadBalance(project, token)
	if err != nil {
		return err
	}
	remaining, err := checkedSub(balance.Balance, amount)
	if err != nil {
		return err
	}
	vault := e.state.VaultAddress(token)
	if err := e.state.TokenTransfer(vault, destination, token, amount); err != nil {
		return err
	}
	balance.Balance = remaining
	if err := e.state.ProjectBalancePut(balance); err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(project, token, destination, amount))
	return nil
}

// BatchTransfer debits the overflow-checked sum of all amounts once and pays
// each recipient its position-matched amount. An empty batch is a successful
// no-op; a batch larger than the configured bound is rejected outright. When
// the total exceeds the custody balance nothing is disbursed.
func (e *Engine) BatchTransfer(project, token [20]byte, amounts []uint64, recipients [][20]byte, activityID string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if len(amounts) != len(recipients) {
		return ErrMalformedBatch
	}
	if len(amounts) == 0 {
		return nil
	}
	if len(amounts) > e.maxBatch {
		return ErrBatchTooLarge
	}
	total := uint64(0)
	var err error
	for _, amount := range amounts {
		if amount == 0 {
			return ErrInvalidAmount
		}
		total, err = checkedAdd(total, amount)
		if err != nil {
			return err
		}
	}
	balance, err := e.loadBalance(project, token)
	if err != nil {
		return err
	}
	remaining, err := checkedSub(balance.Balance, total)
	if err != nil {
		return err
	}
	vault := e.state.VaultAddress(token)
	for i, recipient := range recipients {
		if err := e.state.TokenTransfer(vault, recipient, token, amounts[i]); err != nil {
			return err
		}
	}
	balance.Balance = remaining
	if err := e.state.ProjectBalancePut(balance); err != nil {
		return err
	}
	id := normalizeActivityID(activityID)
	entry := &ActivityEntry{ID: id, Kind: "batch_transfer", Token: token, Amount: total, Timestamp: e.now()}
	if err := e.state.ActivityAppend(project, entry); err != nil {
		return err
	}
	e.emit(NewBatchTransferredEvent(project, token, total, len(recipients), id))
	return nil
}

// ClaimByReward redeems a batch of off-chain attested rewards. The signature
// must come from a whitelisted signer and cover the exact payload; any reward
// identifier the user already redeemed rejects the whole claim so a
// resubmission can never double-pay. The project balance is debited by the
// gross amount, the user receives the net and the platform fee collector the
// cut.
func (e *Engine) ClaimByReward(project [20]byte, signer [20]byte, payload *ClaimPayload) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if payload == nil {
		return ErrMalformedClaim
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	entry, ok, err := e.state.WhitelistGet(signer)
	if err != nil {
		return err
	}
	if !ok || !entry.Whitelisted {
		return ErrNotWhitelisted
	}
	if e.now() > payload.Timestamp+int64(e.claimTTL/time.Second) {
		return ErrSignatureExpired
	}
	digest, err := payload.Hash()
	if err != nil {
		return err
	}
	if !e.verifier.Verify(digest, payload.Signature, signer) {
		return ErrInvalidSignature
	}
	record, ok, err := e.state.ClaimRecordGet(payload.User)
	if err != nil {
		return err
	}
	if !ok {
		record = &ClaimRecord{User: payload.User}
	}
	keys := make([][32]byte, len(payload.RewardIDs))
	for i, id := range payload.RewardIDs {
		key := RewardKey(payload.User, id)
		if record.Contains(key) {
			return ErrDuplicateReward
		}
		for _, prior := range keys[:i] {
			if prior == key {
				return ErrDuplicateReward
			}
		}
		keys[i] = key
	}
	gross := uint64(0)
	for _, amount := range payload.Amounts {
		if amount == 0 {
			return ErrInvalidAmount
		}
		gross, err = checkedAdd(gross, amount)
		if err != nil {
			return err
		}
	}
	fee := Fee(gross, cfg.FeeRatioBps)
	net := gross - fee
	if fee > 0 && e.feeCollector == ([20]byte{}) {
		return ErrFeeCollectorUnset
	}
	balance, err := e.loadBalance(project, payload.Token)
	if err != nil {
		return err
	}
	remaining, err := checkedSub(balance.Balance, gross)
	if err != nil {
		return err
	}
	vault := e.state.VaultAddress(payload.Token)
	if net > 0 {
		if err := e.state.TokenTransfer(vault, payload.User, payload.Token, net); err != nil {
			return err
		}
	}
	if fee > 0 {
		if err := e.state.TokenTransfer(vault, e.feeCollector, payload.Token, fee); err != nil {
			return err
		}
	}
	balance.Balance = remaining
	if err := e.state.ProjectBalancePut(balance); err != nil {
		return err
	}
	for _, key := range keys {
		record.Mark(key)
	}
	if err := e.state.ClaimRecordPut(record); err != nil {
		return err
	}
	e.emit(NewClaimedEvent(payload.User, payload.Token, gross, fee, payload.RewardIDs))
	return nil
}
