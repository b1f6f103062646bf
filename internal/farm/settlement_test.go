package farm

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/0xVov5/farming/internal/bank"
	"github.com/0xVov5/farming/internal/types"
)

func TestDepositMovesPrincipalAndSetsDebt(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 500)

	f.blocks.SetHeight(1010)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(50), testUserA))

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), pos.StakedAmount)
	// accRewardPerShare accrued to 1e18 over the 10 elapsed blocks, so the
	// deposit owes floor(50 * 1e18 / 1e18) of debt.
	require.Equal(t, sdkmath.NewInt(50), pos.RewardDebt)

	stored, err := f.engine.PoolByID(pool.ID)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(150), stored.TotalStaked)

	custody, err := f.bank.BalanceOf(testStakedAsset, bank.Custody)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), custody)

	remaining, err := f.bank.BalanceOf(testStakedAsset, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(450), remaining)
}

func TestDepositForBeneficiary(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)

	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserB))

	posA, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, posA.StakedAmount.IsZero())

	posB, err := f.engine.Position(pool.ID, testUserB)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), posB.StakedAmount)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)

	require.ErrorIs(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.ZeroInt(), testUserA), ErrInvalidAmount)
	require.ErrorIs(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(-5), testUserA), ErrInvalidAmount)
}

func TestDepositRejectsUnknownPool(t *testing.T) {
	f := newFixture(t, 1000)

	err := f.engine.Deposit(testUserA, 3, sdkmath.NewInt(10), testUserA)
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestDepositRejectedAfterEpochEnd(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)

	// Exactly at the boundary counts as ended.
	f.blocks.SetHeight(1100)
	err := f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(10), testUserA)
	require.ErrorIs(t, err, ErrEpochEnded)

	// The rejected deposit left no trace on the position or the bank.
	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pos.StakedAmount.IsZero())

	balance, err := f.bank.BalanceOf(testStakedAsset, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), balance)
}

func TestDepositRollsBackOnTransferFailure(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)

	f.blocks.SetHeight(1010)
	f.bank.FailNext(errors.New("node unreachable"))

	err := f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(50), testUserA)
	require.ErrorIs(t, err, ErrTransferFailed)

	// Ledger state is byte-identical to the pre-call value, including the
	// accrual marker the failed operation had advanced.
	stored, err := f.engine.PoolByID(pool.ID)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), stored.TotalStaked)
	require.Equal(t, uint64(1000), stored.LastAccrualBlock)
	require.True(t, stored.AccRewardPerShare.IsZero())

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pos.StakedAmount.IsZero())
	require.True(t, pos.RewardDebt.IsZero())
}

func TestWithdrawReturnsPrincipalAndSettlesDebt(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	// bootstrap 100 + deposit 100: delta = floor(100 * 1e18 / 200) = 5e17
	f.blocks.SetHeight(1010)
	require.NoError(t, f.engine.Withdraw(testUserA, pool.ID, sdkmath.NewInt(40), testUserA))

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(60), pos.StakedAmount)
	// debt = 0 - floor(40 * 5e17 / 1e18) = -20
	require.Equal(t, sdkmath.NewInt(-20), pos.RewardDebt)

	stored, err := f.engine.PoolByID(pool.ID)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(160), stored.TotalStaked)

	balance, err := f.bank.BalanceOf(testStakedAsset, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(40), balance)
}

func TestWithdrawThenHarvestPaysEarnedReward(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	f.blocks.SetHeight(1010)
	require.NoError(t, f.engine.Withdraw(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	// The negative debt preserves the reward earned by the withdrawn stake:
	// harvest pays floor(0 * acc) - (-50) = 50.
	harvested, err := f.engine.Harvest(testUserA, pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), harvested)

	reward, err := f.bank.BalanceOf(testRewardDenom, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), reward)
}

func TestSameBlockDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 70)

	// Accrue first so the round trip happens against a non-zero accumulator.
	f.blocks.SetHeight(1010)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(70), testUserA))
	require.NoError(t, f.engine.Withdraw(testUserA, pool.ID, sdkmath.NewInt(70), testUserA))

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pos.StakedAmount.IsZero())
	require.True(t, pos.RewardDebt.IsZero())

	pending, err := f.engine.PendingReward(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pending.IsZero())

	balance, err := f.bank.BalanceOf(testStakedAsset, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(70), balance)
}

func TestWithdrawRejectsOverdraw(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 50)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(50), testUserA))

	f.blocks.SetHeight(1010)
	err := f.engine.Withdraw(testUserA, pool.ID, sdkmath.NewInt(51), testUserA)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// The balance check fires after the debt adjustment, so the rollback must
	// also restore the debt.
	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), pos.StakedAmount)
	require.True(t, pos.RewardDebt.IsZero())
}

func TestWithdrawRejectsZeroRecipient(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)

	err := f.engine.Withdraw(testUserA, pool.ID, sdkmath.NewInt(10), types.ZeroAddress)
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestHarvestPaysPendingAndResetsSameBlock(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 50)

	f.blocks.SetHeight(1010)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(50), testUserA))

	f.blocks.SetHeight(1020)
	harvested, err := f.engine.Harvest(testUserA, pool.ID, testUserA)
	require.NoError(t, err)
	// accRewardPerShare = 1666666666666666666 after two accrual spans;
	// pending = floor(50 * acc / 1e18) - 50 = 33.
	require.Equal(t, sdkmath.NewInt(33), harvested)

	reward, err := f.bank.BalanceOf(testRewardDenom, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(33), reward)

	// A second harvest in the same block finds nothing.
	again, err := f.engine.Harvest(testUserA, pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, again.IsZero())

	pending, err := f.engine.PendingReward(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pending.IsZero())
}

func TestHarvestWithNothingStakedIsNoOp(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)

	f.blocks.SetHeight(1050)
	harvested, err := f.engine.Harvest(testUserB, pool.ID, testUserB)
	require.NoError(t, err)
	require.True(t, harvested.IsZero())
}

func TestHarvestRollsBackOnTransferFailure(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	f.blocks.SetHeight(1010)
	f.bank.FailNext(errors.New("node unreachable"))

	_, err := f.engine.Harvest(testUserA, pool.ID, testUserA)
	require.ErrorIs(t, err, ErrTransferFailed)

	// Debt was not consumed, so the reward is still claimable.
	harvested, err := f.engine.Harvest(testUserA, pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), harvested)
}

func TestWithdrawAndHarvestSettlesAgainstPreWithdrawalStake(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	f.blocks.SetHeight(1010)
	harvested, err := f.engine.WithdrawAndHarvest(testUserA, pool.ID, sdkmath.NewInt(40), testUserA)
	require.NoError(t, err)
	// Reward settles on the full 100 stake: floor(100 * 5e17 / 1e18) = 50.
	require.Equal(t, sdkmath.NewInt(50), harvested)

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(60), pos.StakedAmount)
	// debt = accumulated - floor(40 * 5e17 / 1e18) = 50 - 20 = 30
	require.Equal(t, sdkmath.NewInt(30), pos.RewardDebt)

	stored, err := f.engine.PoolByID(pool.ID)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(160), stored.TotalStaked)

	staked, err := f.bank.BalanceOf(testStakedAsset, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(40), staked)
	reward, err := f.bank.BalanceOf(testRewardDenom, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), reward)

	// Nothing further is pending for the remaining stake at this height.
	pending, err := f.engine.PendingReward(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pending.IsZero())
}

func TestWithdrawAndHarvestRejectsOverdraw(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 30)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(30), testUserA))

	f.blocks.SetHeight(1010)
	_, err := f.engine.WithdrawAndHarvest(testUserA, pool.ID, sdkmath.NewInt(31), testUserA)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(30), pos.StakedAmount)
	require.True(t, pos.RewardDebt.IsZero())
}

func TestWithdrawAndHarvestRollsBackOnSecondTransferFailure(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	f.blocks.SetHeight(1010)
	// Drain custody of the staked asset so the principal leg fails after the
	// reward leg succeeded.
	require.NoError(t, f.bank.TransferOut(testStakedAsset, testUserB, sdkmath.NewInt(100)))

	_, err := f.engine.WithdrawAndHarvest(testUserA, pool.ID, sdkmath.NewInt(100), testUserA)
	require.ErrorIs(t, err, ErrTransferFailed)

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), pos.StakedAmount)
	require.True(t, pos.RewardDebt.IsZero())
}

func TestEmergencyWithdrawForfeitsReward(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	f.blocks.SetHeight(1010)
	returned, err := f.engine.EmergencyWithdraw(testUserA, pool.ID, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), returned)

	pos, err := f.engine.Position(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pos.StakedAmount.IsZero())
	require.True(t, pos.RewardDebt.IsZero())

	// The forfeited reward is gone even though the accumulator kept growing.
	pending, err := f.engine.PendingReward(pool.ID, testUserA)
	require.NoError(t, err)
	require.True(t, pending.IsZero())

	reward, err := f.bank.BalanceOf(testRewardDenom, testUserA)
	require.NoError(t, err)
	require.True(t, reward.IsZero())

	staked, err := f.bank.BalanceOf(testStakedAsset, testUserA)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), staked)
}

func TestEmergencyWithdrawDoesNotShrinkStoredTotal(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	f.blocks.SetHeight(1010)
	_, err := f.engine.EmergencyWithdraw(testUserA, pool.ID, testUserA)
	require.NoError(t, err)

	// The decrement lands on a transient copy only: the stored pool keeps the
	// bootstrap seed plus the exited stake in its denominator.
	stored, err := f.engine.PoolByID(pool.ID)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(200), stored.TotalStaked)
}

func TestEmergencyWithdrawWithNothingStaked(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)

	returned, err := f.engine.EmergencyWithdraw(testUserB, pool.ID, testUserB)
	require.NoError(t, err)
	require.True(t, returned.IsZero())
}

func TestSettlementEventOrdering(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)

	f.blocks.SetHeight(1010)
	require.NoError(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(100), testUserA))

	// The accrual event precedes the settlement event, and both appear only
	// after the operation committed.
	require.Equal(t, []types.EventKind{
		types.EventPoolCreated,
		types.EventPoolUpdated,
		types.EventDeposit,
	}, f.eventKinds())

	events := f.sink.Events()
	deposit := events[len(events)-1]
	require.Equal(t, testUserA, deposit.Actor)
	require.Equal(t, sdkmath.NewInt(100), deposit.Amount)
	require.Equal(t, sdkmath.NewInt(200), deposit.TotalStaked)
	require.NotEmpty(t, deposit.ID)
}

func TestFailedOperationEmitsNoEvents(t *testing.T) {
	f := newFixture(t, 1000)
	pool := f.createPool(t, 10, 1100)
	f.fundUser(testUserA, 100)

	f.blocks.SetHeight(1010)
	f.bank.FailNext(errors.New("node unreachable"))
	require.Error(t, f.engine.Deposit(testUserA, pool.ID, sdkmath.NewInt(50), testUserA))

	require.Equal(t, []types.EventKind{types.EventPoolCreated}, f.eventKinds())
}
