package logging

import (
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
)

// RedactedValue is the canonical placeholder for material that must never
// reach the logs, such as private key bytes.
const RedactedValue = "[REDACTED]"

// A claim signature authorizes a payout; a leaked log line must not be enough
// to resubmit one. Only this many leading bytes survive, enough to correlate
// a submission across log lines.
const signaturePrefixBytes = 4

// SignatureAttr renders a claim signature as a short hex prefix plus the byte
// length instead of the full bytes.
func SignatureAttr(key string, signature []byte) slog.Attr {
	if len(signature) == 0 {
		return slog.String(key, "")
	}
	prefix := signature
	if len(prefix) > signaturePrefixBytes {
		prefix = prefix[:signaturePrefixBytes]
	}
	return slog.String(key, "0x"+hex.EncodeToString(prefix)+".."+strconv.Itoa(len(signature))+"B")
}

// MaskValue returns the redaction placeholder for non-empty values. Empty
// values pass through so absent fields stay recognizable.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}
