/*

This file contains the per-user position type which carries the debt accounting state.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// UserPosition tracks one depositor's principal and settled reward debt inside a
// single pool. RewardDebt is the accumulator-weighted value already credited to
// the user, not an amount owed: pending reward is
// floor(StakedAmount * AccRewardPerShare / RewardPrecision) - RewardDebt.
type UserPosition struct {
	PoolID       PoolID      `json:"pool_id"`
	Owner        Address     `json:"owner"`
	StakedAmount sdkmath.Int `json:"staked_amount"`
	RewardDebt   sdkmath.Int `json:"reward_debt"`
}

// NewUserPosition returns the implicit zero-valued position created the first
// time an identity appears in a pool's ledger.
func NewUserPosition(poolID PoolID, owner Address) UserPosition {
	return UserPosition{
		PoolID:       poolID,
		Owner:        owner,
		StakedAmount: sdkmath.ZeroInt(),
		RewardDebt:   sdkmath.ZeroInt(),
	}
}

// Clone returns a deep copy of the position.
func (u UserPosition) Clone() UserPosition {
	out := u
	out.StakedAmount = cloneInt(u.StakedAmount)
	out.RewardDebt = cloneInt(u.RewardDebt)
	return out
}
