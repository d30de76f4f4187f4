package activity

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ClaimDomainV1 is the domain separator mixed into every signed claim payload.
const ClaimDomainV1 = "ACTIVITY_CLAIM_V1"

// ClaimPayload is the off-chain attested batch of rewards a user presents to
// the ledger. The whitelisted signer signs the keccak digest of the canonical
// message; the ledger only verifies, it never produces signatures.
type ClaimPayload struct {
	User      [20]byte
	Token     [20]byte
	Amounts   []uint64
	RewardIDs []string
	Timestamp int64
	Signature []byte
}

// NewClaimPayload validates the raw submission and returns a normalised
// payload with trimmed reward identifiers.
func NewClaimPayload(user, token [20]byte, amounts []uint64, rewardIDs []string, signature []byte, timestamp int64) (*ClaimPayload, error) {
	if len(amounts) != len(rewardIDs) {
		return nil, ErrMalformedClaim
	}
	if len(rewardIDs) == 0 {
		return nil, ErrMalformedClaim
	}
	if timestamp <= 0 {
		return nil, ErrMalformedClaim
	}
	ids := make([]string, len(rewardIDs))
	for i, id := range rewardIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return nil, ErrMalformedClaim
		}
		ids[i] = trimmed
	}
	payload := &ClaimPayload{
		User:      user,
		Token:     token,
		Amounts:   append([]uint64(nil), amounts...),
		RewardIDs: ids,
		Timestamp: timestamp,
	}
	if len(signature) > 0 {
		payload.Signature = append([]byte(nil), signature...)
	}
	return payload, nil
}

// CanonicalMessage renders the pipe-delimited message covered by the claim
// signature. The encoding is stable: identical payloads always produce the
// same bytes.
func (p *ClaimPayload) CanonicalMessage() (string, error) {
	if p == nil {
		return "", fmt.Errorf("activity: claim payload not initialised")
	}
	if len(p.Amounts) != len(p.RewardIDs) || len(p.RewardIDs) == 0 {
		return "", ErrMalformedClaim
	}
	builder := strings.Builder{}
	builder.WriteString(ClaimDomainV1)
	builder.WriteString("|user=")
	builder.WriteString(hex.EncodeToString(p.User[:]))
	builder.WriteString("|token=")
	builder.WriteString(hex.EncodeToString(p.Token[:]))
	builder.WriteString("|amounts=")
	for i, amount := range p.Amounts {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString(strconv.FormatUint(amount, 10))
	}
	builder.WriteString("|rewards=")
	for i, id := range p.RewardIDs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString(id)
	}
	builder.WriteString("|ts=")
	builder.WriteString(strconv.FormatInt(p.Timestamp, 10))
	return builder.String(), nil
}

// Hash computes the keccak256 digest of the canonical message.
func (p *ClaimPayload) Hash() ([]byte, error) {
	message, err := p.CanonicalMessage()
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256([]byte(message)), nil
}

// Verifier checks a signature over a digest against an expected signer
// identity. It is an interface so engine tests can substitute a fake without
// holding real keys.
type Verifier interface {
	Verify(digest []byte, signature []byte, signer [20]byte) bool
}

// RecoverVerifier verifies 65-byte recoverable secp256k1 signatures by
// recovering the public key and comparing its address to the expected signer.
type RecoverVerifier struct{}

// Verify implements the Verifier interface.
func (RecoverVerifier) Verify(digest []byte, signature []byte, signer [20]byte) bool {
	if len(digest) != 32 || len(signature) != 65 {
		return false
	}
	pubKey, err := ethcrypto.SigToPub(digest, signature)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	return recovered == ethcommon.BytesToAddress(signer[:])
}
