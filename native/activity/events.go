package activity

import (
	"encoding/hex"
	"strconv"
	"strings"

	"activityledger/core/events"
)

const (
	EventTypeInitialized      = "activity.initialized"
	EventTypeFeeUpdated       = "activity.fee_updated"
	EventTypeWhitelisted      = "activity.whitelisted"
	EventTypeDeposited        = "activity.deposited"
	EventTypeWithdrawn        = "activity.withdrawn"
	EventTypeBatchTransferred = "activity.batch_transferred"
	EventTypeClaimed          = "activity.claimed"
)

// NewInitializedEvent returns the payload emitted once the platform config is
// created.
func NewInitializedEvent(authority [20]byte) *events.Payload {
	return &events.Payload{Type: EventTypeInitialized, Attributes: map[string]string{
		"authority": hex.EncodeToString(authority[:]),
	}}
}

// NewFeeUpdatedEvent returns the payload emitted when the fee ratio changes.
func NewFeeUpdatedEvent(ratioBps uint16) *events.Payload {
	return &events.Payload{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"feeRatioBps": strconv.FormatUint(uint64(ratioBps), 10),
	}}
}

// NewWhitelistedEvent returns the payload emitted when a signer is approved.
func NewWhitelistedEvent(signer [20]byte) *events.Payload {
	return &events.Payload{Type: EventTypeWhitelisted, Attributes: map[string]string{
		"signer": hex.EncodeToString(signer[:]),
	}}
}

// NewDepositedEvent returns the payload emitted after custody is credited.
func NewDepositedEvent(project, token [20]byte, amount uint64, activityID string) *events.Payload {
	attrs := map[string]string{
		"project": hex.EncodeToString(project[:]),
		"token":   hex.EncodeToString(token[:]),
		"amount":  strconv.FormatUint(amount, 10),
	}
	if trimmed := strings.TrimSpace(activityID); trimmed != "" {
		attrs["activityId"] = trimmed
	}
	return &events.Payload{Type: EventTypeDeposited, Attributes: attrs}
}

// NewWithdrawnEvent returns the payload emitted after custody is debited back
// to the project.
func NewWithdrawnEvent(project, token, destination [20]byte, amount uint64) *events.Payload {
	return &events.Payload{Type: EventTypeWithdrawn, Attributes: map[string]string{
		"project":     hex.EncodeToString(project[:]),
		"token":       hex.EncodeToString(token[:]),
		"destination": hex.EncodeToString(destination[:]),
		"amount":      strconv.FormatUint(amount, 10),
	}}
}

// NewBatchTransferredEvent returns the payload emitted after a batch
// distribution settles.
func NewBatchTransferredEvent(project, token [20]byte, total uint64, recipients int, activityID string) *events.Payload {
	attrs := map[string]string{
		"project":    hex.EncodeToString(project[:]),
		"token":      hex.EncodeToString(token[:]),
		"total":      strconv.FormatUint(total, 10),
		"recipients": strconv.Itoa(recipients),
	}
	if trimmed := strings.TrimSpace(activityID); trimmed != "" {
		attrs["activityId"] = trimmed
	}
	return &events.Payload{Type: EventTypeBatchTransferred, Attributes: attrs}
}

// NewClaimedEvent returns the payload emitted after a reward claim settles.
func NewClaimedEvent(user, token [20]byte, gross, fee uint64, rewardIDs []string) *events.Payload {
	return &events.Payload{Type: EventTypeClaimed, Attributes: map[string]string{
		"user":      hex.EncodeToString(user[:]),
		"token":     hex.EncodeToString(token[:]),
		"gross":     strconv.FormatUint(gross, 10),
		"fee":       strconv.FormatUint(fee, 10),
		"rewardIds": strings.Join(rewardIDs, ","),
	}}
}
