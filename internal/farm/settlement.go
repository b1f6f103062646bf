package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/0xVov5/farming/internal/types"
	"github.com/0xVov5/farming/internal/utils"
)

// Each settlement operation follows the same shape: force the pool current,
// mutate the ledger, commit, and only then invoke the transfer collaborator.
// Committing effects before the collaborator call keeps the ledger consistent
// even if the collaborator re-enters; the checkpoint closure restores the
// pre-images when the collaborator fails, so a failed operation leaves stored
// state byte-identical to its pre-call value.

// Deposit stakes amount of the pool's asset for beneficiary, pulling the
// principal from caller. Rejected once the pool's epoch has ended.
func (e *Engine) Deposit(caller types.Address, poolID types.PoolID, amount sdkmath.Int, beneficiary types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := utils.RequirePositive(amount); err != nil {
		return ErrInvalidAmount
	}
	if _, err := e.store.Pool(poolID); err != nil {
		return err
	}

	restore := e.store.checkpoint(poolID, beneficiary)
	pool, accrued, err := e.updatePool(poolID)
	if err != nil {
		return err
	}
	if pool.EpochEndBlock <= e.blocks.CurrentHeight() {
		restore()
		return ErrEpochEnded
	}

	pos := e.store.Position(poolID, beneficiary)
	pos.StakedAmount = pos.StakedAmount.Add(amount)
	// Top up the debt so the new principal cannot claim reward accrued before
	// it existed.
	pos.RewardDebt = pos.RewardDebt.Add(amount.Mul(pool.AccRewardPerShare).Quo(types.RewardPrecision))
	pool.TotalStaked = pool.TotalStaked.Add(amount)

	e.store.PutPosition(pos)
	if err := e.store.PutPool(pool); err != nil {
		restore()
		return err
	}

	if err := e.bank.TransferIn(pool.StakedAsset, caller, amount); err != nil {
		restore()
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.logger.Info().
		Uint64("poolId", uint64(poolID)).
		Str("caller", caller.String()).
		Str("beneficiary", beneficiary.String()).
		Str("amount", amount.String()).
		Msg("Deposit settled")

	if accrued {
		e.emitPoolUpdated(pool)
	}
	e.emit(types.Event{
		Kind:              types.EventDeposit,
		Actor:             caller,
		PoolID:            poolID,
		Amount:            amount,
		Recipient:         beneficiary,
		BlockHeight:       e.blocks.CurrentHeight(),
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	return nil
}

// Withdraw returns amount of staked principal to recipient and settles the
// proportional share of the caller's reward debt.
func (e *Engine) Withdraw(caller types.Address, poolID types.PoolID, amount sdkmath.Int, recipient types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if recipient.IsZero() {
		return ErrZeroAddress
	}
	if err := utils.RequirePositive(amount); err != nil {
		return ErrInvalidAmount
	}
	if _, err := e.store.Pool(poolID); err != nil {
		return err
	}

	restore := e.store.checkpoint(poolID, caller)
	pool, accrued, err := e.updatePool(poolID)
	if err != nil {
		return err
	}

	pos := e.store.Position(poolID, caller)
	// Debt tied to the withdrawn principal is settled before the principal
	// itself is reduced.
	pos.RewardDebt = pos.RewardDebt.Sub(amount.Mul(pool.AccRewardPerShare).Quo(types.RewardPrecision))
	if pos.StakedAmount.LT(amount) {
		restore()
		return ErrInsufficientBalance
	}
	pos.StakedAmount = pos.StakedAmount.Sub(amount)
	pool.TotalStaked = pool.TotalStaked.Sub(amount)

	e.store.PutPosition(pos)
	if err := e.store.PutPool(pool); err != nil {
		restore()
		return err
	}

	if err := e.bank.TransferOut(pool.StakedAsset, recipient, amount); err != nil {
		restore()
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.logger.Info().
		Uint64("poolId", uint64(poolID)).
		Str("caller", caller.String()).
		Str("recipient", recipient.String()).
		Str("amount", amount.String()).
		Msg("Withdraw settled")

	if accrued {
		e.emitPoolUpdated(pool)
	}
	e.emit(types.Event{
		Kind:              types.EventWithdraw,
		Actor:             caller,
		PoolID:            poolID,
		Amount:            amount,
		Recipient:         recipient,
		BlockHeight:       e.blocks.CurrentHeight(),
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	return nil
}

// Harvest settles the caller's pending reward in full and sends it to
// recipient. The transferred amount is returned.
func (e *Engine) Harvest(caller types.Address, poolID types.PoolID, recipient types.Address) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if recipient.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if _, err := e.store.Pool(poolID); err != nil {
		return sdkmath.ZeroInt(), err
	}

	restore := e.store.checkpoint(poolID, caller)
	pool, accrued, err := e.updatePool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	pos := e.store.Position(poolID, caller)
	accumulated := pos.StakedAmount.Mul(pool.AccRewardPerShare).Quo(types.RewardPrecision)
	pending := accumulated.Sub(pos.RewardDebt)
	if pending.IsNegative() {
		restore()
		return sdkmath.ZeroInt(), errNegativePending
	}
	pos.RewardDebt = accumulated
	e.store.PutPosition(pos)

	if pending.IsPositive() {
		if err := e.bank.TransferOut(e.rewardDenom, recipient, pending); err != nil {
			restore()
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	e.logger.Info().
		Uint64("poolId", uint64(poolID)).
		Str("caller", caller.String()).
		Str("recipient", recipient.String()).
		Str("pending", pending.String()).
		Msg("Harvest settled")

	if accrued {
		e.emitPoolUpdated(pool)
	}
	e.emit(types.Event{
		Kind:              types.EventHarvest,
		Actor:             caller,
		PoolID:            poolID,
		Amount:            pending,
		Recipient:         recipient,
		BlockHeight:       e.blocks.CurrentHeight(),
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	return pending, nil
}

// WithdrawAndHarvest settles the reward against the pre-withdrawal stake,
// then withdraws the principal. The harvested amount is returned.
func (e *Engine) WithdrawAndHarvest(caller types.Address, poolID types.PoolID, amount sdkmath.Int, recipient types.Address) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if recipient.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if err := utils.RequirePositive(amount); err != nil {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	if _, err := e.store.Pool(poolID); err != nil {
		return sdkmath.ZeroInt(), err
	}

	restore := e.store.checkpoint(poolID, caller)
	pool, accrued, err := e.updatePool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	pos := e.store.Position(poolID, caller)
	// Reward settlement uses the stake balance before the principal reduction.
	accumulated := pos.StakedAmount.Mul(pool.AccRewardPerShare).Quo(types.RewardPrecision)
	pending := accumulated.Sub(pos.RewardDebt)
	if pending.IsNegative() {
		restore()
		return sdkmath.ZeroInt(), errNegativePending
	}
	if pos.StakedAmount.LT(amount) {
		restore()
		return sdkmath.ZeroInt(), ErrInsufficientBalance
	}

	pos.RewardDebt = accumulated.Sub(amount.Mul(pool.AccRewardPerShare).Quo(types.RewardPrecision))
	pos.StakedAmount = pos.StakedAmount.Sub(amount)
	pool.TotalStaked = pool.TotalStaked.Sub(amount)

	e.store.PutPosition(pos)
	if err := e.store.PutPool(pool); err != nil {
		restore()
		return sdkmath.ZeroInt(), err
	}

	if pending.IsPositive() {
		if err := e.bank.TransferOut(e.rewardDenom, recipient, pending); err != nil {
			restore()
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if err := e.bank.TransferOut(pool.StakedAsset, recipient, amount); err != nil {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.logger.Info().
		Uint64("poolId", uint64(poolID)).
		Str("caller", caller.String()).
		Str("recipient", recipient.String()).
		Str("amount", amount.String()).
		Str("pending", pending.String()).
		Msg("Withdraw and harvest settled")

	if accrued {
		e.emitPoolUpdated(pool)
	}
	e.emit(types.Event{
		Kind:              types.EventHarvest,
		Actor:             caller,
		PoolID:            poolID,
		Amount:            pending,
		Recipient:         recipient,
		BlockHeight:       e.blocks.CurrentHeight(),
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	e.emit(types.Event{
		Kind:              types.EventWithdraw,
		Actor:             caller,
		PoolID:            poolID,
		Amount:            amount,
		Recipient:         recipient,
		BlockHeight:       e.blocks.CurrentHeight(),
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	return pending, nil
}

// EmergencyWithdraw returns the caller's entire stake without any reward
// settlement. Unharvested reward is forfeited unconditionally.
func (e *Engine) EmergencyWithdraw(caller types.Address, poolID types.PoolID, recipient types.Address) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if recipient.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroAddress
	}
	if _, err := e.store.Pool(poolID); err != nil {
		return sdkmath.ZeroInt(), err
	}

	restore := e.store.checkpoint(poolID, caller)

	pos := e.store.Position(poolID, caller)
	amount := pos.StakedAmount
	pos.StakedAmount = sdkmath.ZeroInt()
	pos.RewardDebt = sdkmath.ZeroInt()
	e.store.PutPosition(pos)

	pool, accrued, err := e.updatePool(poolID)
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), err
	}
	// The reduced total lives only on this local copy and is deliberately not
	// written back, so the stored pool keeps its prior TotalStaked. See
	// DESIGN.md. Events report the stored value.
	storedTotal := pool.TotalStaked
	pool.TotalStaked = pool.TotalStaked.Sub(amount)

	if amount.IsPositive() {
		if err := e.bank.TransferOut(pool.StakedAsset, recipient, amount); err != nil {
			restore()
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	e.logger.Warn().
		Uint64("poolId", uint64(poolID)).
		Str("caller", caller.String()).
		Str("recipient", recipient.String()).
		Str("amount", amount.String()).
		Msg("Emergency withdraw settled, pending reward forfeited")

	if accrued {
		updated := pool
		updated.TotalStaked = storedTotal
		e.emitPoolUpdated(updated)
	}
	e.emit(types.Event{
		Kind:              types.EventEmergencyWithdraw,
		Actor:             caller,
		PoolID:            poolID,
		Amount:            amount,
		Recipient:         recipient,
		BlockHeight:       e.blocks.CurrentHeight(),
		TotalStaked:       storedTotal,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	return amount, nil
}
