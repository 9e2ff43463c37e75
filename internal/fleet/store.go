package fleet

import (
	"context"
	"sort"
	"sync"

	"fleetd/pkg/types"
)

// Store persists node records. Errors propagate to the caller unchanged; the
// registry never retries.
type Store interface {
	Save(ctx context.Context, n types.Node) error
	SaveBatch(ctx context.Context, nodes []types.Node) error
	Remove(ctx context.Context, n types.Node) error
}

// Loader starts the bulk load and calls onComplete exactly once with the
// loaded records. It may return before onComplete runs.
type Loader func(onComplete func([]types.Node))

// StaticLoader completes synchronously with nodes.
func StaticLoader(nodes ...types.Node) Loader {
	return func(onComplete func([]types.Node)) { onComplete(nodes) }
}

// MemoryStore is a Store kept in a map, used by tests and by deployments
// without a database.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string]types.Node

	saves, batches, removes int
	err                     error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]types.Node)}
}

func (s *MemoryStore) Save(_ context.Context, n types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.nodes[n.ID] = n
	return nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, nodes []types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches++
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, n types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.removes++
	delete(s.nodes, n.ID)
	return nil
}

// Loader returns a Loader completing with the current contents.
func (s *MemoryStore) Loader() Loader {
	return func(onComplete func([]types.Node)) { onComplete(s.All()) }
}

// All returns stored nodes ordered by id.
func (s *MemoryStore) All() []types.Node {
	s.mu.Lock()
	out := make([]types.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Get(id string) (types.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Writes returns the Save, SaveBatch and Remove call counts.
func (s *MemoryStore) Writes() (saves, batches, removes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.batches, s.removes
}

// SetErr makes every following call fail with err; nil clears it.
func (s *MemoryStore) SetErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
