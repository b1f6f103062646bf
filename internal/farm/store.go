package farm

import (
	sdkmath "cosmossdk.io/math"

	"github.com/0xVov5/farming/internal/types"
)

// Store is the single owner of all pool and position state. Pools live in an
// append-only arena indexed by their sequential id; positions in a two-level
// map keyed by pool id then owner. Accessors hand out deep copies so no
// caller can alias stored state.
type Store struct {
	pools        []types.Pool
	byAsset      map[string]types.PoolID
	positions    map[types.PoolID]map[types.Address]types.UserPosition
	totalAlloc   uint64
	totalFunding sdkmath.Int
}

func NewStore() *Store {
	return &Store{
		byAsset:      make(map[string]types.PoolID),
		positions:    make(map[types.PoolID]map[types.Address]types.UserPosition),
		totalFunding: sdkmath.ZeroInt(),
	}
}

// PoolCount returns the number of pools ever created.
func (s *Store) PoolCount() int {
	return len(s.pools)
}

// Pool returns a copy of the pool record for the given id.
func (s *Store) Pool(id types.PoolID) (types.Pool, error) {
	if int(id) >= len(s.pools) {
		return types.Pool{}, ErrPoolNotFound
	}
	return s.pools[id].Clone(), nil
}

// Pools returns copies of every pool record in id order.
func (s *Store) Pools() []types.Pool {
	out := make([]types.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p.Clone())
	}
	return out
}

// HasAsset reports whether a pool already exists for the given staked asset.
func (s *Store) HasAsset(denom string) bool {
	_, ok := s.byAsset[denom]
	return ok
}

// AppendPool assigns the next sequential id and adds the pool to the arena.
func (s *Store) AppendPool(pool types.Pool) (types.PoolID, error) {
	if s.HasAsset(pool.StakedAsset) {
		return 0, ErrDuplicatePool
	}
	id := types.PoolID(len(s.pools))
	pool.ID = id
	s.pools = append(s.pools, pool.Clone())
	s.byAsset[pool.StakedAsset] = id
	return id, nil
}

// PutPool overwrites an existing pool record in place.
func (s *Store) PutPool(pool types.Pool) error {
	if int(pool.ID) >= len(s.pools) {
		return ErrPoolNotFound
	}
	s.pools[pool.ID] = pool.Clone()
	return nil
}

// Position returns the owner's record in the pool, implicitly zero-valued the
// first time an identity is looked up. Positions are never deleted.
func (s *Store) Position(id types.PoolID, owner types.Address) types.UserPosition {
	if ledger, ok := s.positions[id]; ok {
		if pos, ok := ledger[owner]; ok {
			return pos.Clone()
		}
	}
	return types.NewUserPosition(id, owner)
}

// PutPosition stores the owner's record in the pool ledger.
func (s *Store) PutPosition(pos types.UserPosition) {
	ledger, ok := s.positions[pos.PoolID]
	if !ok {
		ledger = make(map[types.Address]types.UserPosition)
		s.positions[pos.PoolID] = ledger
	}
	ledger[pos.Owner] = pos.Clone()
}

// PositionsInPool returns copies of every recorded position in a pool, in no
// particular order.
func (s *Store) PositionsInPool(id types.PoolID) []types.UserPosition {
	ledger := s.positions[id]
	out := make([]types.UserPosition, 0, len(ledger))
	for _, pos := range ledger {
		out = append(out, pos.Clone())
	}
	return out
}

// TotalAllocPoints returns the administrative allocation total across pools.
func (s *Store) TotalAllocPoints() uint64 {
	return s.totalAlloc
}

func (s *Store) addAllocPoints(delta uint64) {
	s.totalAlloc += delta
}

func (s *Store) subAllocPoints(delta uint64) {
	if delta > s.totalAlloc {
		s.totalAlloc = 0
		return
	}
	s.totalAlloc -= delta
}

// TotalFunding returns the cumulative reward funding received.
func (s *Store) TotalFunding() sdkmath.Int {
	if s.totalFunding.IsNil() {
		return sdkmath.ZeroInt()
	}
	return sdkmath.NewIntFromBigInt(s.totalFunding.BigInt())
}

func (s *Store) addFunding(amount sdkmath.Int) {
	s.totalFunding = s.TotalFunding().Add(amount)
}

func (s *Store) setFunding(amount sdkmath.Int) {
	s.totalFunding = amount
}

// Restore replaces the store contents wholesale, used when rehydrating the
// ledger from a persisted snapshot at boot.
func (s *Store) Restore(pools []types.Pool, positions []types.UserPosition, totalAlloc uint64, totalFunding sdkmath.Int) {
	s.pools = nil
	s.byAsset = make(map[string]types.PoolID)
	s.positions = make(map[types.PoolID]map[types.Address]types.UserPosition)
	for _, p := range pools {
		s.pools = append(s.pools, p.Clone())
		s.byAsset[p.StakedAsset] = p.ID
	}
	for _, pos := range positions {
		s.PutPosition(pos)
	}
	s.totalAlloc = totalAlloc
	if totalFunding.IsNil() {
		totalFunding = sdkmath.ZeroInt()
	}
	s.totalFunding = totalFunding
}

// checkpoint captures the pre-images touched by one settlement operation and
// returns a closure that restores them, keeping failed operations atomic.
func (s *Store) checkpoint(id types.PoolID, owner types.Address) func() {
	var poolBefore *types.Pool
	if int(id) < len(s.pools) {
		p := s.pools[id].Clone()
		poolBefore = &p
	}
	posBefore := s.Position(id, owner)
	fundingBefore := s.TotalFunding()
	return func() {
		if poolBefore != nil {
			s.pools[id] = poolBefore.Clone()
		}
		s.PutPosition(posBefore)
		s.setFunding(fundingBefore)
	}
}
