package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Recorder stores events of one type in memory.
type Recorder[E any] struct {
	mu     sync.Mutex
	events []E
}

// Record subscribes a new Recorder for E under a fresh handler id.
func Record[E any](h *Hub) *Recorder[E] {
	r := &Recorder[E]{}
	Subscribe(h, uuid.New(), "record event", LogNone, func(_ context.Context, e E) error {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
		return nil
	})
	return r
}

func (r *Recorder[E]) Events() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]E, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder[E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
