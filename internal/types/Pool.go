/*

This is a custom type for staking pools which contains all the state needed for reward accrual.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type PoolID uint64

// RewardPrecision is the fixed-point scale of AccRewardPerShare (1e18).
var RewardPrecision = sdkmath.NewIntWithDecimal(1, 18)

type Pool struct {
	ID                PoolID      `json:"id"`
	StakedAsset       string      `json:"staked_asset"`         // denom of the asset this pool accepts, unique across pools
	RewardPerBlock    sdkmath.Int `json:"reward_per_block"`     // reward-asset units accrued per block while active
	TotalStaked       sdkmath.Int `json:"total_staked"`         // sum of all depositors' principal
	AccRewardPerShare sdkmath.Int `json:"acc_reward_per_share"` // cumulative reward per staked unit, scaled by RewardPrecision
	LastAccrualBlock  uint64      `json:"last_accrual_block"`   // block height through which AccRewardPerShare is current
	EpochEndBlock     uint64      `json:"epoch_end_block"`      // height after which accrual stops and deposits are rejected
	AllocPoints       uint32      `json:"alloc_points"`         // administrative weight, inert in the accrual formula
}

// Clone returns a deep copy so callers can never alias stored pool state.
func (p Pool) Clone() Pool {
	out := p
	out.RewardPerBlock = cloneInt(p.RewardPerBlock)
	out.TotalStaked = cloneInt(p.TotalStaked)
	out.AccRewardPerShare = cloneInt(p.AccRewardPerShare)
	return out
}

func cloneInt(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return sdkmath.NewIntFromBigInt(v.BigInt())
}
