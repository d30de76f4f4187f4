package state

import (
	"errors"
	"math"
	"testing"

	"activityledger/native/activity"
	"activityledger/storage"
)

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestKVRoundTrip(t *testing.T) {
	mgr := newTestManager()

	type payload struct {
		Label string
		Count uint64
	}
	if err := mgr.KVPut([]byte("kv-test"), payload{Label: "alpha", Count: 7}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var decoded payload
	ok, err := mgr.KVGet([]byte("kv-test"), &decoded)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if decoded.Label != "alpha" || decoded.Count != 7 {
		t.Fatalf("decoded %+v", decoded)
	}
	ok, err = mgr.KVGet([]byte("missing"), &decoded)
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if _, err := mgr.KVGet(nil, &decoded); err == nil {
		t.Fatalf("empty key accepted")
	}
}

func TestKVAppendKeepsDuplicates(t *testing.T) {
	mgr := newTestManager()
	key := []byte("kv-list")

	for _, value := range []string{"a", "b", "a"} {
		if err := mgr.KVAppend(key, []byte(value)); err != nil {
			t.Fatalf("append %q: %v", value, err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list length = %d, want 3", len(list))
	}
	for i, want := range []string{"a", "b", "a"} {
		if string(list[i]) != want {
			t.Fatalf("list[%d] = %q, want %q", i, list[i], want)
		}
	}

	var empty [][]byte
	if err := mgr.KVGetList([]byte("absent"), &empty); err != nil {
		t.Fatalf("get absent list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("absent list = %v, want empty non-nil", empty)
	}
}

func TestPlatformConfigRoundTrip(t *testing.T) {
	mgr := newTestManager()

	if _, ok, err := mgr.PlatformConfigGet(); err != nil || ok {
		t.Fatalf("unexpected config before put: ok=%v err=%v", ok, err)
	}
	cfg := &activity.PlatformConfig{Authority: testAddr(0x01), FeeRatioBps: 250}
	if err := mgr.PlatformConfigPut(cfg); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := mgr.PlatformConfigGet()
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.Authority != cfg.Authority || loaded.FeeRatioBps != 250 {
		t.Fatalf("loaded %+v", loaded)
	}
	if err := mgr.PlatformConfigPut(&activity.PlatformConfig{FeeRatioBps: 10_001}); !errors.Is(err, activity.ErrInvalidFeeRatio) {
		t.Fatalf("expected ErrInvalidFeeRatio, got %v", err)
	}
}

func TestRecordAccessors(t *testing.T) {
	mgr := newTestManager()
	project := testAddr(0x10)
	token := testAddr(0x20)
	user := testAddr(0x40)
	signer := testAddr(0x50)

	if err := mgr.WhitelistPut(&activity.Whitelist{Signer: signer, Whitelisted: true}); err != nil {
		t.Fatalf("whitelist put: %v", err)
	}
	entry, ok, err := mgr.WhitelistGet(signer)
	if err != nil || !ok || !entry.Whitelisted || entry.Signer != signer {
		t.Fatalf("whitelist get: %+v ok=%v err=%v", entry, ok, err)
	}
	if _, ok, _ := mgr.WhitelistGet(testAddr(0x51)); ok {
		t.Fatalf("unexpected whitelist record for unknown signer")
	}

	if err := mgr.ProjectBalancePut(&activity.ProjectBalance{Project: project, Token: token, Balance: 1_234}); err != nil {
		t.Fatalf("balance put: %v", err)
	}
	balance, ok, err := mgr.ProjectBalanceGet(project, token)
	if err != nil || !ok || balance.Balance != 1_234 {
		t.Fatalf("balance get: %+v ok=%v err=%v", balance, ok, err)
	}
	if _, ok, _ := mgr.ProjectBalanceGet(project, testAddr(0x21)); ok {
		t.Fatalf("balance record leaked across tokens")
	}

	record := &activity.ClaimRecord{User: user}
	record.Mark(activity.RewardKey(user, "r1"))
	record.Mark(activity.RewardKey(user, "r2"))
	if err := mgr.ClaimRecordPut(record); err != nil {
		t.Fatalf("claim record put: %v", err)
	}
	loaded, ok, err := mgr.ClaimRecordGet(user)
	if err != nil || !ok {
		t.Fatalf("claim record get: ok=%v err=%v", ok, err)
	}
	if len(loaded.Claimed) != 2 || !loaded.Contains(activity.RewardKey(user, "r1")) {
		t.Fatalf("claim record %+v", loaded)
	}
}

func TestTokenTransfer(t *testing.T) {
	mgr := newTestManager()
	token := testAddr(0x20)
	alice := testAddr(0xA1)
	bob := testAddr(0xB1)

	if err := mgr.TokenMint(alice, token, 1_000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := mgr.TokenTransfer(alice, bob, token, 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, _ := mgr.TokenBalance(alice, token)
	bobBalance, _ := mgr.TokenBalance(bob, token)
	if aliceBalance != 600 || bobBalance != 400 {
		t.Fatalf("balances alice=%d bob=%d", aliceBalance, bobBalance)
	}
	if err := mgr.TokenTransfer(alice, bob, token, 601); !errors.Is(err, activity.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := mgr.TokenTransfer(alice, bob, token, 0); err != nil {
		t.Fatalf("zero transfer should be a no-op, got %v", err)
	}
	if err := mgr.TokenMint(bob, token, math.MaxUint64); !errors.Is(err, activity.ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestVaultAddressDeterministic(t *testing.T) {
	mgr := newTestManager()
	tokenA := testAddr(0x20)
	tokenB := testAddr(0x21)

	if mgr.VaultAddress(tokenA) != mgr.VaultAddress(tokenA) {
		t.Fatalf("vault address not deterministic")
	}
	if mgr.VaultAddress(tokenA) == mgr.VaultAddress(tokenB) {
		t.Fatalf("distinct tokens share a vault")
	}
	if mgr.VaultAddress(tokenA) == ([20]byte{}) {
		t.Fatalf("vault address is zero")
	}
}

func TestActivityLog(t *testing.T) {
	mgr := newTestManager()
	project := testAddr(0x10)
	token := testAddr(0x20)

	entries, err := mgr.ActivityList(project)
	if err != nil || len(entries) != 0 {
		t.Fatalf("fresh log: %v entries, err %v", entries, err)
	}
	first := &activity.ActivityEntry{ID: "a1", Kind: "deposit", Token: token, Amount: 400, Timestamp: 1_700_000_000}
	second := &activity.ActivityEntry{ID: "a2", Kind: "batch_transfer", Token: token, Amount: 600, Timestamp: 1_700_000_100}
	if err := mgr.ActivityAppend(project, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.ActivityAppend(project, second); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err = mgr.ActivityList(project)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != "a1" || entries[0].Amount != 400 || entries[0].Timestamp != 1_700_000_000 {
		t.Fatalf("first entry %+v", entries[0])
	}
	if entries[1].Kind != "batch_transfer" {
		t.Fatalf("second entry %+v", entries[1])
	}
	if err := mgr.ActivityAppend(project, &activity.ActivityEntry{ID: "a3", Token: token}); err == nil {
		t.Fatalf("entry without kind accepted")
	}
}

func TestActivityLogKeepsIdenticalEntries(t *testing.T) {
	mgr := newTestManager()
	project := testAddr(0x10)
	token := testAddr(0x20)

	entry := &activity.ActivityEntry{ID: "a1", Kind: "deposit", Token: token, Amount: 400, Timestamp: 1_700_000_000}
	if err := mgr.ActivityAppend(project, entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.ActivityAppend(project, entry); err != nil {
		t.Fatalf("repeat append: %v", err)
	}
	entries, err := mgr.ActivityList(project)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if *entries[0] != *entries[1] {
		t.Fatalf("entries differ: %+v vs %+v", entries[0], entries[1])
	}
}
