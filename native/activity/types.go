package activity

import (
	"fmt"
	"strings"
)

// MaxFeeRatioBps is the upper bound for the platform fee ratio (100%).
const MaxFeeRatioBps uint16 = 10_000

// PlatformConfig is the singleton deployment configuration. It is created once
// and only the fee ratio may change afterwards.
type PlatformConfig struct {
	Authority   [20]byte
	FeeRatioBps uint16
}

// Clone returns a copy of the config so callers can mutate it freely.
func (c *PlatformConfig) Clone() *PlatformConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Whitelist marks a signer key as approved to authorize reward claims. The
// record address is derived from the signer key, so existence alone proves
// the platform authority created it.
type Whitelist struct {
	Signer      [20]byte
	Whitelisted bool
}

func (w *Whitelist) Clone() *Whitelist {
	if w == nil {
		return nil
	}
	clone := *w
	return &clone
}

// ProjectBalance tracks the custody amount held for one (project, token)
// pair. The record is created lazily on first deposit and its balance never
// goes negative.
type ProjectBalance struct {
	Project [20]byte
	Token   [20]byte
	Balance uint64
}

func (b *ProjectBalance) Clone() *ProjectBalance {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// ClaimRecord stores the reward identifiers a user has already redeemed, as
// keccak digests of (user, reward id). The record only ever grows.
type ClaimRecord struct {
	User    [20]byte
	Claimed [][32]byte
}

func (r *ClaimRecord) Clone() *ClaimRecord {
	if r == nil {
		return nil
	}
	clone := &ClaimRecord{User: r.User}
	if len(r.Claimed) > 0 {
		clone.Claimed = make([][32]byte, len(r.Claimed))
		copy(clone.Claimed, r.Claimed)
	}
	return clone
}

// Contains reports whether the reward digest has been recorded.
func (r *ClaimRecord) Contains(key [32]byte) bool {
	if r == nil {
		return false
	}
	for _, claimed := range r.Claimed {
		if claimed == key {
			return true
		}
	}
	return false
}

// Mark appends the reward digest when it is not present yet.
func (r *ClaimRecord) Mark(key [32]byte) {
	if r == nil || r.Contains(key) {
		return
	}
	r.Claimed = append(r.Claimed, key)
}

// ActivityEntry is the audit record written alongside deposits and batch
// distributions. The identifier is opaque to the ledger and never influences
// balance arithmetic.
type ActivityEntry struct {
	ID        string
	Kind      string
	Token     [20]byte
	Amount    uint64
	Timestamp int64
}

// SanitizePlatformConfig validates a config before it is persisted.
func SanitizePlatformConfig(c *PlatformConfig) (*PlatformConfig, error) {
	if c == nil {
		return nil, fmt.Errorf("activity: nil platform config")
	}
	if c.FeeRatioBps > MaxFeeRatioBps {
		return nil, ErrInvalidFeeRatio
	}
	return c.Clone(), nil
}

// SanitizeActivityEntry normalises an audit entry, trimming the identifier.
func SanitizeActivityEntry(e *ActivityEntry) (*ActivityEntry, error) {
	if e == nil {
		return nil, fmt.Errorf("activity: nil activity entry")
	}
	clone := *e
	clone.ID = strings.TrimSpace(clone.ID)
	clone.Kind = strings.ToLower(strings.TrimSpace(clone.Kind))
	if clone.Kind == "" {
		return nil, fmt.Errorf("activity: activity entry kind required")
	}
	return &clone, nil
}
