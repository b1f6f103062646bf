package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0xVov5/farming/internal/farm"
	"github.com/0xVov5/farming/internal/logger"
	"github.com/0xVov5/farming/internal/oracle"
	"github.com/0xVov5/farming/internal/state"
)

// Service drives the background checkpoint loop: it periodically sweeps
// accrual across all pools and persists a ledger snapshot so a restarted
// daemon resumes from recent state.
type Service struct {
	logger zerolog.Logger
	engine *farm.Engine
	blocks oracle.BlockSource

	snapshotKeep int
	persist      bool

	// Runtime state
	cycleCount int
}

// Config holds the configuration for creating a new Service instance
type Config struct {
	Engine       *farm.Engine
	Blocks       oracle.BlockSource
	SnapshotKeep int
	Persist      bool // false when running without a database
}

// NewService creates a new Service instance with dependency injection
func NewService(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Blocks == nil {
		return nil, fmt.Errorf("block source cannot be nil")
	}
	if cfg.SnapshotKeep <= 0 {
		cfg.SnapshotKeep = 24
	}
	return &Service{
		logger:       logger.GetForComponent("farm_service"),
		engine:       cfg.Engine,
		blocks:       cfg.Blocks,
		snapshotKeep: cfg.SnapshotKeep,
		persist:      cfg.Persist,
	}, nil
}

// RunLoop starts the checkpoint loop with the specified interval
func (s *Service) RunLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info().
		Dur("interval", interval).
		Msg("Starting checkpoint loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	s.cycleCount++
	s.RunCheckpoint(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Checkpoint loop stopped due to context cancellation")
			return
		case <-ticker.C:
			s.cycleCount++
			s.RunCheckpoint(ctx)
		}
	}
}

// RunCheckpoint sweeps accrual across every pool and persists a ledger
// snapshot.
func (s *Service) RunCheckpoint(ctx context.Context) {
	start := time.Now()

	// Unique cycle ID for tracing logs across the entire checkpoint
	cycleID := uuid.New().String()
	cycleLogger := s.logger.With().Str("cycle_id", cycleID).Int("cycle", s.cycleCount).Logger()

	height := s.blocks.CurrentHeight()
	cycleLogger.Info().Uint64("blockHeight", height).Msg("--- Starting checkpoint cycle ---")

	updated := 0
	for _, pool := range s.engine.Pools() {
		if ctx.Err() != nil {
			cycleLogger.Warn().Msg("Checkpoint cycle interrupted")
			return
		}
		before := pool.LastAccrualBlock
		current, err := s.engine.UpdatePool(pool.ID)
		if err != nil {
			cycleLogger.Error().Err(err).Uint64("poolId", uint64(pool.ID)).Msg("Failed to update pool accrual")
			continue
		}
		if current.LastAccrualBlock != before {
			updated++
		}
	}

	if s.persist {
		pools, positions, totalAlloc, totalFunding := s.engine.Snapshot()
		snap := state.LedgerSnapshot{
			BlockHeight:      height,
			TotalAllocPoints: totalAlloc,
			TotalFunding:     totalFunding,
			Pools:            pools,
			Positions:        positions,
		}
		if _, err := state.SaveLedgerSnapshot(snap); err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to persist ledger snapshot")
		} else if err := state.PruneSnapshots(s.snapshotKeep); err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to prune ledger snapshots")
		}
	}

	cycleLogger.Info().
		Int("poolsUpdated", updated).
		Dur("elapsed", time.Since(start)).
		Msg("Checkpoint cycle completed")
}
