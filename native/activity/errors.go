package activity

import "errors"

var (
	ErrNotInitialized     = errors.New("activity: platform not initialized")
	ErrAlreadyInitialized = errors.New("activity: platform already initialized")
	ErrUnauthorized       = errors.New("activity: unauthorized signer")
	ErrAddressMismatch    = errors.New("activity: derived address mismatch")
	ErrInvalidAmount      = errors.New("activity: amount must be positive")
	ErrInsufficientFunds  = errors.New("activity: insufficient funds")
	ErrArithmeticOverflow = errors.New("activity: arithmetic overflow")
	ErrInvalidFeeRatio    = errors.New("activity: fee ratio out of range")
	ErrInvalidSignature   = errors.New("activity: invalid claim signature")
	ErrSignatureExpired   = errors.New("activity: claim signature expired")
	ErrNotWhitelisted     = errors.New("activity: signer not in whitelist")
	ErrMalformedClaim     = errors.New("activity: malformed claim payload")
	ErrDuplicateReward    = errors.New("activity: reward already claimed")
	ErrMalformedBatch     = errors.New("activity: amounts and recipients length mismatch")
	ErrBatchTooLarge      = errors.New("activity: batch exceeds recipient limit")
	ErrFeeCollectorUnset  = errors.New("activity: fee collector not configured")
)
