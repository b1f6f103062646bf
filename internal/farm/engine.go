package farm

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0xVov5/farming/internal/bank"
	"github.com/0xVov5/farming/internal/logger"
	"github.com/0xVov5/farming/internal/oracle"
	"github.com/0xVov5/farming/internal/types"
	"github.com/0xVov5/farming/internal/utils"
)

// bootstrapStake seeds every new pool's TotalStaked. Every per-share delta
// divides by a total that includes this seed, so changing it rewrites all
// accrual arithmetic. See DESIGN.md.
const bootstrapStake = 100

// Engine orchestrates all state transitions of the reward-accrual ledger. The
// surrounding host serializes operations; the mutex enforces the same
// run-to-completion contract when the engine is embedded in a concurrent
// process such as the HTTP daemon.
type Engine struct {
	mu     sync.Mutex
	logger zerolog.Logger
	store  *Store
	bank   bank.TransferClient
	blocks oracle.BlockSource
	events EventSink
	auth   AuthClient

	rewardDenom string
}

// Config holds the collaborators injected into a new engine.
type Config struct {
	Store       *Store
	Bank        bank.TransferClient
	Blocks      oracle.BlockSource
	Events      EventSink
	Auth        AuthClient
	RewardDenom string
}

// NewEngine creates an engine instance with dependency injection.
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}
	return &Engine{
		logger:      logger.GetForComponent("farm_engine"),
		store:       cfg.Store,
		bank:        cfg.Bank,
		blocks:      cfg.Blocks,
		events:      cfg.Events,
		auth:        cfg.Auth,
		rewardDenom: cfg.RewardDenom,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("transfer client cannot be nil")
	}
	if cfg.Blocks == nil {
		return fmt.Errorf("block source cannot be nil")
	}
	if cfg.Events == nil {
		return fmt.Errorf("event sink cannot be nil")
	}
	if cfg.Auth == nil {
		return fmt.Errorf("authorization client cannot be nil")
	}
	if cfg.RewardDenom == "" {
		return fmt.Errorf("reward denom cannot be empty")
	}
	return nil
}

// RewardDenom returns the denom of the distributed reward asset.
func (e *Engine) RewardDenom() string {
	return e.rewardDenom
}

// CreatePool registers a pool for a staked asset that does not have one yet.
func (e *Engine) CreatePool(caller types.Address, stakedAsset string, rewardPerBlock sdkmath.Int, epochEndBlock uint64, allocPoints uint64) (types.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.IsAuthorizedAdmin(caller) {
		return types.Pool{}, ErrUnauthorized
	}
	if stakedAsset == "" {
		return types.Pool{}, ErrInvalidAsset
	}
	if e.store.HasAsset(stakedAsset) {
		return types.Pool{}, ErrDuplicatePool
	}
	if rewardPerBlock.IsNil() || rewardPerBlock.IsNegative() {
		return types.Pool{}, ErrInvalidAmount
	}
	points, err := utils.Uint64ToUint32(allocPoints)
	if err != nil {
		return types.Pool{}, fmt.Errorf("%w: alloc points: %v", ErrArithmeticOverflow, err)
	}

	current := e.blocks.CurrentHeight()
	pool := types.Pool{
		StakedAsset:       stakedAsset,
		RewardPerBlock:    rewardPerBlock,
		TotalStaked:       sdkmath.NewInt(bootstrapStake),
		AccRewardPerShare: sdkmath.ZeroInt(),
		LastAccrualBlock:  current,
		EpochEndBlock:     epochEndBlock,
		AllocPoints:       points,
	}
	id, err := e.store.AppendPool(pool)
	if err != nil {
		return types.Pool{}, err
	}
	e.store.addAllocPoints(uint64(points))
	pool.ID = id

	e.logger.Info().
		Uint64("poolId", uint64(id)).
		Str("stakedAsset", stakedAsset).
		Str("rewardPerBlock", rewardPerBlock.String()).
		Uint64("epochEndBlock", epochEndBlock).
		Uint32("allocPoints", points).
		Msg("Pool created")

	e.emit(types.Event{
		Kind:              types.EventPoolCreated,
		Actor:             caller,
		PoolID:            id,
		Amount:            rewardPerBlock,
		BlockHeight:       current,
		TotalStaked:       pool.TotalStaked,
		AccRewardPerShare: pool.AccRewardPerShare,
	})
	return pool, nil
}

// SetAllocation adjusts a pool's administrative allocation weight and the
// global total. It has no effect on the accrual formula.
func (e *Engine) SetAllocation(caller types.Address, poolID types.PoolID, allocPoints uint64, overwrite bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.IsAuthorizedAdmin(caller) {
		return ErrUnauthorized
	}
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return err
	}
	points, err := utils.Uint64ToUint32(allocPoints)
	if err != nil {
		return fmt.Errorf("%w: alloc points: %v", ErrArithmeticOverflow, err)
	}

	e.store.subAllocPoints(uint64(pool.AllocPoints))
	e.store.addAllocPoints(uint64(points))
	pool.AllocPoints = points
	if err := e.store.PutPool(pool); err != nil {
		return err
	}

	// The overwrite flag is accepted and recorded but has no further effect.
	e.logger.Info().
		Uint64("poolId", uint64(poolID)).
		Uint32("allocPoints", points).
		Bool("overwrite", overwrite).
		Msg("Pool allocation updated")

	e.emit(types.Event{
		Kind:        types.EventAllocationSet,
		Actor:       caller,
		PoolID:      poolID,
		Amount:      sdkmath.NewInt(int64(points)),
		BlockHeight: e.blocks.CurrentHeight(),
	})
	return nil
}

// FundRewards records a reward funding receipt and pulls the reward asset
// from the caller into custody.
func (e *Engine) FundRewards(caller types.Address, amount sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.IsAuthorizedAdmin(caller) {
		return ErrUnauthorized
	}
	if err := utils.RequirePositive(amount); err != nil {
		return ErrInvalidAmount
	}

	before := e.store.TotalFunding()
	e.store.addFunding(amount)
	if err := e.bank.TransferIn(e.rewardDenom, caller, amount); err != nil {
		e.store.setFunding(before)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.logger.Info().
		Str("amount", amount.String()).
		Str("totalFunding", e.store.TotalFunding().String()).
		Msg("Reward funding received")

	e.emit(types.Event{
		Kind:        types.EventRewardsFunded,
		Actor:       caller,
		Amount:      amount,
		BlockHeight: e.blocks.CurrentHeight(),
	})
	return nil
}

// TransferAuthority hands the admin role to a new delegate when the
// configured gate supports delegation.
func (e *Engine) TransferAuthority(caller, next types.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.IsAuthorizedAdmin(caller) {
		return ErrUnauthorized
	}
	delegator, ok := e.auth.(AuthorityDelegator)
	if !ok {
		return ErrAuthorityFixed
	}
	if err := delegator.TransferAuthority(caller, next); err != nil {
		return err
	}

	e.logger.Info().
		Str("from", caller.String()).
		Str("to", next.String()).
		Msg("Admin authority transferred")

	e.emit(types.Event{
		Kind:        types.EventAuthorityTransferred,
		Actor:       caller,
		Recipient:   next,
		BlockHeight: e.blocks.CurrentHeight(),
	})
	return nil
}

// PoolCount returns the number of pools ever created.
func (e *Engine) PoolCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.PoolCount()
}

// PoolByID returns a copy of the pool record.
func (e *Engine) PoolByID(id types.PoolID) (types.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Pool(id)
}

// Pools returns copies of every pool record in id order.
func (e *Engine) Pools() []types.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Pools()
}

// Position returns a copy of the owner's record in the pool.
func (e *Engine) Position(id types.PoolID, owner types.Address) (types.UserPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.store.Pool(id); err != nil {
		return types.UserPosition{}, err
	}
	return e.store.Position(id, owner), nil
}

// TotalAllocPoints returns the global allocation total.
func (e *Engine) TotalAllocPoints() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.TotalAllocPoints()
}

// TotalFunding returns the cumulative reward funding received.
func (e *Engine) TotalFunding() sdkmath.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.TotalFunding()
}

// Snapshot exports the full ledger for persistence. The service loop uses it
// to checkpoint state between restarts.
func (e *Engine) Snapshot() ([]types.Pool, []types.UserPosition, uint64, sdkmath.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pools := e.store.Pools()
	var positions []types.UserPosition
	for _, p := range pools {
		positions = append(positions, e.store.PositionsInPool(p.ID)...)
	}
	return pools, positions, e.store.TotalAllocPoints(), e.store.TotalFunding()
}

// Restore rehydrates the ledger from a persisted snapshot.
func (e *Engine) Restore(pools []types.Pool, positions []types.UserPosition, totalAlloc uint64, totalFunding sdkmath.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Restore(pools, positions, totalAlloc, totalFunding)
}

// emit stamps and forwards an event. A failing sink is logged, not fatal: the
// ledger mutation already committed and event delivery is an observability
// concern for the surrounding host.
func (e *Engine) emit(event types.Event) {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if event.Amount.IsNil() {
		event.Amount = sdkmath.ZeroInt()
	}
	if event.TotalStaked.IsNil() {
		event.TotalStaked = sdkmath.ZeroInt()
	}
	if event.AccRewardPerShare.IsNil() {
		event.AccRewardPerShare = sdkmath.ZeroInt()
	}
	if err := e.events.Append(event); err != nil {
		e.logger.Error().Err(err).Str("kind", string(event.Kind)).Msg("Failed to append event")
	}
}
