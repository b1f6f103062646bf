package service

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/0xVov5/farming/internal/bank"
	"github.com/0xVov5/farming/internal/farm"
	"github.com/0xVov5/farming/internal/oracle"
	"github.com/0xVov5/farming/internal/types"
)

const admin types.Address = "admin-1"

func newTestService(t *testing.T) (*Service, *farm.Engine, *oracle.Manual) {
	t.Helper()

	blocks := oracle.NewManual(1000)
	engine, err := farm.NewEngine(farm.Config{
		Store:       farm.NewStore(),
		Bank:        bank.NewMemoryBank(),
		Blocks:      blocks,
		Events:      farm.NewMemorySink(),
		Auth:        farm.NewStaticAuthority(admin),
		RewardDenom: "ufarm",
	})
	require.NoError(t, err)

	svc, err := NewService(Config{Engine: engine, Blocks: blocks})
	require.NoError(t, err)
	return svc, engine, blocks
}

func TestNewServiceValidatesConfig(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)

	_, engine, blocks := newTestService(t)
	_, err = NewService(Config{Engine: engine})
	require.Error(t, err)
	_, err = NewService(Config{Blocks: blocks})
	require.Error(t, err)
}

func TestRunCheckpointSweepsAllPools(t *testing.T) {
	svc, engine, blocks := newTestService(t)

	first, err := engine.CreatePool(admin, "ulp-a", sdkmath.NewInt(10), 2000, 100)
	require.NoError(t, err)
	second, err := engine.CreatePool(admin, "ulp-b", sdkmath.NewInt(5), 2000, 50)
	require.NoError(t, err)

	blocks.SetHeight(1010)
	svc.RunCheckpoint(context.Background())

	poolA, err := engine.PoolByID(first.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1010), poolA.LastAccrualBlock)
	require.Equal(t, sdkmath.NewIntWithDecimal(1, 18), poolA.AccRewardPerShare)

	poolB, err := engine.PoolByID(second.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1010), poolB.LastAccrualBlock)
}

func TestRunCheckpointWithNoPools(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Must complete without panicking or persisting anything.
	svc.RunCheckpoint(context.Background())
}

func TestRunCheckpointHonorsCancellation(t *testing.T) {
	svc, engine, blocks := newTestService(t)
	_, err := engine.CreatePool(admin, "ulp-a", sdkmath.NewInt(10), 2000, 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocks.SetHeight(1010)
	svc.RunCheckpoint(ctx)

	// The cancelled sweep never reached the pool.
	pool, err := engine.PoolByID(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pool.LastAccrualBlock)
}
