/*

This package provides the external time source for the farm ledger: a
monotonically non-decreasing block-height counter. Time advances only because
a source advances between calls; the ledger never schedules anything itself.

*/

package oracle

import (
	"sync"
	"sync/atomic"
	"time"
)

// BlockSource reports the current block height. Implementations must be
// monotonically non-decreasing.
type BlockSource interface {
	CurrentHeight() uint64
}

// Manual is a hand-driven source for deterministic tests.
type Manual struct {
	mu     sync.Mutex
	height uint64
}

func NewManual(height uint64) *Manual {
	return &Manual{height: height}
}

func (m *Manual) CurrentHeight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

// Advance moves the counter forward by n blocks.
func (m *Manual) Advance(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += n
}

// SetHeight jumps to an absolute height. Moving backwards is refused since
// the counter must never decrease.
func (m *Manual) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height > m.height {
		m.height = height
	}
}

// Ticker derives the height from wall-clock time at a fixed block interval,
// starting from a genesis height. Used by the standalone daemon.
type Ticker struct {
	genesisHeight uint64
	genesisTime   time.Time
	interval      time.Duration

	// last published height, so observed heights never go backwards even if
	// the wall clock is adjusted.
	last atomic.Uint64
}

func NewTicker(genesisHeight uint64, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	t := &Ticker{
		genesisHeight: genesisHeight,
		genesisTime:   time.Now().UTC(),
		interval:      interval,
	}
	t.last.Store(genesisHeight)
	return t
}

func (t *Ticker) CurrentHeight() uint64 {
	elapsed := time.Since(t.genesisTime)
	if elapsed < 0 {
		elapsed = 0
	}
	height := t.genesisHeight + uint64(elapsed/t.interval)
	for {
		prev := t.last.Load()
		if height <= prev {
			return prev
		}
		if t.last.CompareAndSwap(prev, height) {
			return height
		}
	}
}
