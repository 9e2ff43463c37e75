package entityset

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository backed by a map. It stores clones, counts
// writes and can be told to fail, which makes it the default for tests and
// for deployments without durable storage.
type MemoryRepository[T Entity[T]] struct {
	mu    sync.Mutex
	items map[uuid.UUID]T
	order []uuid.UUID

	Adds, Updates, Removes, Loads int
	// Err, when non-nil, is returned by every subsequent call.
	Err error
}

func NewMemoryRepository[T Entity[T]](seed ...T) *MemoryRepository[T] {
	r := &MemoryRepository[T]{items: make(map[uuid.UUID]T)}
	for _, e := range seed {
		r.put(e.Clone())
	}
	return r
}

func (r *MemoryRepository[T]) put(e T) {
	id := e.EntityID()
	if _, ok := r.items[id]; !ok {
		r.order = append(r.order, id)
	}
	r.items[id] = e
}

func (r *MemoryRepository[T]) GetAll(context.Context) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Loads++
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out, nil
}

func (r *MemoryRepository[T]) Add(_ context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Adds++
	r.put(e.Clone())
	return nil
}

func (r *MemoryRepository[T]) Update(_ context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Updates++
	r.put(e.Clone())
	return nil
}

func (r *MemoryRepository[T]) Remove(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Removes++
	if _, ok := r.items[id]; !ok {
		return nil
	}
	delete(r.items, id)
	for i, cur := range r.order {
		if cur == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the stored copy of id.
func (r *MemoryRepository[T]) Get(id uuid.UUID) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	return e, ok
}

// Counts returns the write counters under the lock.
func (r *MemoryRepository[T]) Counts() (adds, updates, removes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Adds, r.Updates, r.Removes
}

// SetErr installs or clears the injected failure.
func (r *MemoryRepository[T]) SetErr(err error) {
	r.mu.Lock()
	r.Err = err
	r.mu.Unlock()
}
