package activity

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Derivation tags. Each record type owns a fixed tag so addresses for
// different kinds can never collide even when the seeds coincide.
const (
	TagPlatformConfig = "platform_config"
	TagWhitelist      = "whitelist"
	TagProjectBalance = "project_balance"
	TagClaimRecord    = "claim_record"
)

// Derive computes the deterministic address for a record as
// keccak256(tag || seeds...). Any caller can recompute the address from the
// seed tuple; there is no directory beyond this function.
func Derive(tag string, seeds ...[]byte) [32]byte {
	parts := make([][]byte, 0, len(seeds)+1)
	parts = append(parts, []byte(tag))
	parts = append(parts, seeds...)
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(parts...))
	return out
}

// PlatformConfigAddress returns the address of the singleton config record.
func PlatformConfigAddress() [32]byte {
	return Derive(TagPlatformConfig)
}

// WhitelistAddress returns the address of the whitelist record for a signer.
func WhitelistAddress(signer [20]byte) [32]byte {
	return Derive(TagWhitelist, signer[:])
}

// ProjectBalanceAddress returns the address of the custody balance record for
// a (project, token) pair. The derivation guarantees at most one record per
// pair.
func ProjectBalanceAddress(project, token [20]byte) [32]byte {
	return Derive(TagProjectBalance, project[:], token[:])
}

// ClaimRecordAddress returns the address of a user's claim record.
func ClaimRecordAddress(user [20]byte) [32]byte {
	return Derive(TagClaimRecord, user[:])
}

// RewardKey computes the dedup digest recorded once a reward is redeemed.
func RewardKey(user [20]byte, rewardID string) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(user[:], []byte(rewardID)))
	return out
}
