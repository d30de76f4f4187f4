package state

import (
	"fmt"
	"math"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"activityledger/native/activity"
)

// The storage key of every ledger record is its deterministically derived
// address, so the state layout is the directory: anyone holding the seed
// tuple can recompute where a record lives.

type storedPlatformConfig struct {
	Authority   [20]byte
	FeeRatioBps uint16
}

type storedWhitelist struct {
	Signer      [20]byte
	Whitelisted bool
}

type storedProjectBalance struct {
	Project [20]byte
	Token   [20]byte
	Balance uint64
}

type storedClaimRecord struct {
	User    [20]byte
	Claimed [][32]byte
}

type storedActivityEntry struct {
	ID        string
	Kind      string
	Token     [20]byte
	Amount    uint64
	Timestamp uint64
}

// PlatformConfigGet loads the singleton platform config.
func (m *Manager) PlatformConfigGet() (*activity.PlatformConfig, bool, error) {
	addr := activity.PlatformConfigAddress()
	var stored storedPlatformConfig
	ok, err := m.KVGet(addr[:], &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &activity.PlatformConfig{Authority: stored.Authority, FeeRatioBps: stored.FeeRatioBps}, true, nil
}

// PlatformConfigPut persists the singleton platform config.
func (m *Manager) PlatformConfigPut(cfg *activity.PlatformConfig) error {
	sanitized, err := activity.SanitizePlatformConfig(cfg)
	if err != nil {
		return err
	}
	addr := activity.PlatformConfigAddress()
	return m.KVPut(addr[:], storedPlatformConfig{Authority: sanitized.Authority, FeeRatioBps: sanitized.FeeRatioBps})
}

// WhitelistGet loads the whitelist record for a signer key.
func (m *Manager) WhitelistGet(signer [20]byte) (*activity.Whitelist, bool, error) {
	addr := activity.WhitelistAddress(signer)
	var stored storedWhitelist
	ok, err := m.KVGet(addr[:], &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &activity.Whitelist{Signer: stored.Signer, Whitelisted: stored.Whitelisted}, true, nil
}

// WhitelistPut persists a whitelist record under its derived address.
func (m *Manager) WhitelistPut(entry *activity.Whitelist) error {
	if entry == nil {
		return fmt.Errorf("state: nil whitelist entry")
	}
	addr := activity.WhitelistAddress(entry.Signer)
	return m.KVPut(addr[:], storedWhitelist{Signer: entry.Signer, Whitelisted: entry.Whitelisted})
}

// ProjectBalanceGet loads the custody balance record for a (project, token)
// pair.
func (m *Manager) ProjectBalanceGet(project, token [20]byte) (*activity.ProjectBalance, bool, error) {
	addr := activity.ProjectBalanceAddress(project, token)
	var stored storedProjectBalance
	ok, err := m.KVGet(addr[:], &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &activity.ProjectBalance{Project: stored.Project, Token: stored.Token, Balance: stored.Balance}, true, nil
}

// ProjectBalancePut persists a custody balance record under its derived
// address.
func (m *Manager) ProjectBalancePut(balance *activity.ProjectBalance) error {
	if balance == nil {
		return fmt.Errorf("state: nil project balance")
	}
	addr := activity.ProjectBalanceAddress(balance.Project, balance.Token)
	return m.KVPut(addr[:], storedProjectBalance{Project: balance.Project, Token: balance.Token, Balance: balance.Balance})
}

// ClaimRecordGet loads the claim record for a user.
func (m *Manager) ClaimRecordGet(user [20]byte) (*activity.ClaimRecord, bool, error) {
	addr := activity.ClaimRecordAddress(user)
	var stored storedClaimRecord
	ok, err := m.KVGet(addr[:], &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record := &activity.ClaimRecord{User: stored.User}
	if len(stored.Claimed) > 0 {
		record.Claimed = make([][32]byte, len(stored.Claimed))
		copy(record.Claimed, stored.Claimed)
	}
	return record, true, nil
}

// ClaimRecordPut persists a claim record under its derived address.
func (m *Manager) ClaimRecordPut(record *activity.ClaimRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil claim record")
	}
	addr := activity.ClaimRecordAddress(record.User)
	stored := storedClaimRecord{User: record.User}
	if len(record.Claimed) > 0 {
		stored.Claimed = make([][32]byte, len(record.Claimed))
		copy(stored.Claimed, record.Claimed)
	}
	return m.KVPut(addr[:], stored)
}

// --- Token primitive ---

func tokenBalanceKey(addr [20]byte, token [20]byte) []byte {
	buf := make([]byte, 0, len(tokenBalancePrefix)+40)
	buf = append(buf, tokenBalancePrefix...)
	buf = append(buf, token[:]...)
	buf = append(buf, addr[:]...)
	return buf
}

// TokenBalance returns the token units held by an address. Absent accounts
// hold zero; the first credit allocates them.
func (m *Manager) TokenBalance(addr [20]byte, token [20]byte) (uint64, error) {
	var balance uint64
	_, err := m.KVGet(tokenBalanceKey(addr, token), &balance)
	return balance, err
}

// TokenMint credits freshly issued token units to an address. Issuance policy
// lives outside the ledger; this is the hook external mints call.
func (m *Manager) TokenMint(addr [20]byte, token [20]byte, amount uint64) error {
	balance, err := m.TokenBalance(addr, token)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return activity.ErrArithmeticOverflow
	}
	return m.KVPut(tokenBalanceKey(addr, token), balance+amount)
}

// TokenTransfer moves token units between two addresses. It is the transfer
// primitive the engine invokes for every custody movement.
func (m *Manager) TokenTransfer(from, to [20]byte, token [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromBalance, err := m.TokenBalance(from, token)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return activity.ErrInsufficientFunds
	}
	toBalance, err := m.TokenBalance(to, token)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return activity.ErrArithmeticOverflow
	}
	if err := m.KVPut(tokenBalanceKey(from, token), fromBalance-amount); err != nil {
		return err
	}
	return m.KVPut(tokenBalanceKey(to, token), toBalance+amount)
}

// VaultAddress derives the custody token account for a token. The vault has
// no private key; only ledger operations move funds out of it.
func (m *Manager) VaultAddress(token [20]byte) [20]byte {
	digest := ethcrypto.Keccak256(vaultSeed, token[:])
	var out [20]byte
	copy(out[:], digest[12:])
	return out
}

// --- Audit log ---

func activityLogKey(project [20]byte) []byte {
	buf := make([]byte, 0, len(activityLogPrefix)+20)
	buf = append(buf, activityLogPrefix...)
	buf = append(buf, project[:]...)
	return buf
}

// ActivityAppend records an audit entry for a project. Entries never affect
// balance arithmetic.
func (m *Manager) ActivityAppend(project [20]byte, entry *activity.ActivityEntry) error {
	sanitized, err := activity.SanitizeActivityEntry(entry)
	if err != nil {
		return err
	}
	ts := uint64(0)
	if sanitized.Timestamp > 0 {
		ts = uint64(sanitized.Timestamp)
	}
	encoded, err := rlp.EncodeToBytes(storedActivityEntry{
		ID:        sanitized.ID,
		Kind:      sanitized.Kind,
		Token:     sanitized.Token,
		Amount:    sanitized.Amount,
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	return m.KVAppend(activityLogKey(project), encoded)
}

// ActivityList returns the audit entries recorded for a project in insertion
// order.
func (m *Manager) ActivityList(project [20]byte) ([]*activity.ActivityEntry, error) {
	var raw [][]byte
	if err := m.KVGetList(activityLogKey(project), &raw); err != nil {
		return nil, err
	}
	entries := make([]*activity.ActivityEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var stored storedActivityEntry
		if err := rlp.DecodeBytes(encoded, &stored); err != nil {
			return nil, err
		}
		if stored.Timestamp > math.MaxInt64 {
			return nil, fmt.Errorf("state: activity timestamp overflow")
		}
		entries = append(entries, &activity.ActivityEntry{
			ID:        stored.ID,
			Kind:      stored.Kind,
			Token:     stored.Token,
			Amount:    stored.Amount,
			Timestamp: int64(stored.Timestamp),
		})
	}
	return entries, nil
}
