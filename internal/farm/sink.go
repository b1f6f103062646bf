package farm

import (
	"sync"

	"github.com/0xVov5/farming/internal/types"
)

// EventSink receives the engine's observable events in emission order.
type EventSink interface {
	Append(event types.Event) error
}

// MemorySink buffers events in memory. Used by tests and as the fallback sink
// when no database is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []types.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Append(event types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything appended so far, in order.
func (m *MemorySink) Events() []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, len(m.events))
	copy(out, m.events)
	return out
}
