package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/0xVov5/farming/internal/types"
	"github.com/0xVov5/farming/internal/utils"
)

// UpdatePool brings a pool's accumulator and accrual marker current. Every
// settlement operation runs it first; it is also called directly by the
// checkpoint sweep.
func (e *Engine) UpdatePool(poolID types.PoolID) (types.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, accrued, err := e.updatePool(poolID)
	if err != nil {
		return types.Pool{}, err
	}
	if accrued {
		e.emitPoolUpdated(pool)
	}
	return pool, nil
}

// updatePool is the sole mutator of AccRewardPerShare and LastAccrualBlock.
// Callers hold the engine mutex. The returned flag reports whether state
// changed, so callers can emit the update event only after their own
// operation commits.
func (e *Engine) updatePool(poolID types.PoolID) (types.Pool, bool, error) {
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return types.Pool{}, false, err
	}

	current := e.blocks.CurrentHeight()
	if current <= pool.LastAccrualBlock || pool.LastAccrualBlock >= pool.EpochEndBlock {
		// Already current, or permanently past the epoch.
		return pool, false, nil
	}

	elapsed := current - pool.LastAccrualBlock
	if current >= pool.EpochEndBlock {
		elapsed = pool.EpochEndBlock - pool.LastAccrualBlock
	}

	if pool.TotalStaked.IsPositive() {
		span, err := utils.BlockSpanToInt(elapsed)
		if err != nil {
			return types.Pool{}, false, fmt.Errorf("%w: elapsed blocks: %v", ErrArithmeticOverflow, err)
		}
		reward := pool.RewardPerBlock.Mul(span)
		delta := reward.Mul(types.RewardPrecision).Quo(pool.TotalStaked)
		pool.AccRewardPerShare = pool.AccRewardPerShare.Add(delta)
	}

	// The marker advances to the real current height even when the accrual
	// amount was clamped to the epoch boundary. The first call at or past the
	// boundary therefore records a height beyond EpochEndBlock, and the guard
	// above halts all later accrual for this pool.
	pool.LastAccrualBlock = current

	if err := e.store.PutPool(pool); err != nil {
		return types.Pool{}, false, err
	}

	e.logger.Debug().
		Uint64("poolId", uint64(poolID)).
		Uint64("lastAccrualBlock", pool.LastAccrualBlock).
		Str("totalStaked", pool.TotalStaked.String()).
		Str("accRewardPerShare", pool.AccRewardPerShare.String()).
		Msg("Pool accrual updated")

	return pool, true, nil
}

func (e *Engine) emitPoolUpdated(pool types.Pool) {
	e.emit(types.Event{
		Kind:              types.EventPoolUpdated,
		PoolID:            pool.ID,
		BlockHeight:       pool.LastAccrualBlock,
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
}

// PendingReward recomputes the accumulator the way updatePool would and
// reports the owner's unrealized reward without committing anything.
func (e *Engine) PendingReward(poolID types.PoolID, owner types.Address) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.store.Pool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	pos := e.store.Position(poolID, owner)

	current := e.blocks.CurrentHeight()
	acc := pool.AccRewardPerShare
	if current > pool.LastAccrualBlock && pool.TotalStaked.IsPositive() {
		var elapsed uint64
		switch {
		case current < pool.EpochEndBlock && pool.LastAccrualBlock < pool.EpochEndBlock:
			elapsed = current - pool.LastAccrualBlock
		case pool.LastAccrualBlock < pool.EpochEndBlock:
			elapsed = pool.EpochEndBlock - pool.LastAccrualBlock
		default:
			// The marker already passed the epoch boundary; the boundary span
			// is empty and the stored accumulator is final.
		}
		if elapsed > 0 {
			span, err := utils.BlockSpanToInt(elapsed)
			if err != nil {
				return sdkmath.ZeroInt(), fmt.Errorf("%w: elapsed blocks: %v", ErrArithmeticOverflow, err)
			}
			reward := pool.RewardPerBlock.Mul(span)
			acc = acc.Add(reward.Mul(types.RewardPrecision).Quo(pool.TotalStaked))
		}
	}

	accumulated := pos.StakedAmount.Mul(acc).Quo(types.RewardPrecision)
	return accumulated.Sub(pos.RewardDebt), nil
}
