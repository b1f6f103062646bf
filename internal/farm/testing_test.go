package farm

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/0xVov5/farming/internal/bank"
	"github.com/0xVov5/farming/internal/oracle"
	"github.com/0xVov5/farming/internal/types"
)

const (
	testAdmin       types.Address = "admin-1"
	testUserA       types.Address = "user-a"
	testUserB       types.Address = "user-b"
	testStakedAsset               = "ulp-atom-usdc"
	testRewardDenom               = "ufarm"
)

type fixture struct {
	engine *Engine
	store  *Store
	bank   *bank.MemoryBank
	blocks *oracle.Manual
	sink   *MemorySink
}

func newFixture(t *testing.T, height uint64) *fixture {
	t.Helper()

	f := &fixture{
		store:  NewStore(),
		bank:   bank.NewMemoryBank(),
		blocks: oracle.NewManual(height),
		sink:   NewMemorySink(),
	}

	engine, err := NewEngine(Config{
		Store:       f.store,
		Bank:        f.bank,
		Blocks:      f.blocks,
		Events:      f.sink,
		Auth:        NewStaticAuthority(testAdmin),
		RewardDenom: testRewardDenom,
	})
	require.NoError(t, err)
	f.engine = engine

	// Custody holds a large reward budget so harvests never fail on funds.
	f.bank.Mint(testRewardDenom, bank.Custody, sdkmath.NewIntWithDecimal(1, 24))
	return f
}

// createPool registers a pool as the admin with the fixture's default asset.
func (f *fixture) createPool(t *testing.T, rewardPerBlock int64, epochEndBlock uint64) types.Pool {
	t.Helper()
	pool, err := f.engine.CreatePool(testAdmin, testStakedAsset, sdkmath.NewInt(rewardPerBlock), epochEndBlock, 100)
	require.NoError(t, err)
	return pool
}

// fundUser mints the pool's staked asset so the user can deposit.
func (f *fixture) fundUser(user types.Address, amount int64) {
	f.bank.Mint(testStakedAsset, user, sdkmath.NewInt(amount))
}

// eventKinds projects the sink contents to their kinds, in emission order.
func (f *fixture) eventKinds() []types.EventKind {
	events := f.sink.Events()
	kinds := make([]types.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}
