/*

This file contains the observable event types emitted by the farm engine.
Events are append-only, ordered, and carry post-mutation values.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// EventKind enumerates every state-changing operation the engine reports.
type EventKind string

const (
	EventDeposit              EventKind = "DEPOSIT"
	EventWithdraw             EventKind = "WITHDRAW"
	EventEmergencyWithdraw    EventKind = "EMERGENCY_WITHDRAW"
	EventHarvest              EventKind = "HARVEST"
	EventPoolCreated          EventKind = "POOL_CREATED"
	EventAllocationSet        EventKind = "ALLOCATION_SET"
	EventPoolUpdated          EventKind = "POOL_UPDATED"
	EventRewardsFunded        EventKind = "REWARDS_FUNDED"
	EventAuthorityTransferred EventKind = "AUTHORITY_TRANSFERRED"
)

// Event is the single record shape shared by all kinds; fields that do not
// apply to a kind stay at their zero value.
type Event struct {
	ID        string      `json:"id"` // uuid assigned at emission
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Actor     Address     `json:"actor"`
	PoolID    PoolID      `json:"pool_id"`
	Amount    sdkmath.Int `json:"amount,omitempty"`
	Recipient Address     `json:"recipient,omitempty"` // beneficiary or recipient, where applicable

	// Post-mutation pool accounting, populated on POOL_UPDATED and on
	// settlement events for observability.
	BlockHeight       uint64      `json:"block_height"`
	TotalStaked       sdkmath.Int `json:"total_staked,omitempty"`
	AccRewardPerShare sdkmath.Int `json:"acc_reward_per_share,omitempty"`
}
