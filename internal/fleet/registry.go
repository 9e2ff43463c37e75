package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/hub"
	"fleetd/pkg/types"
)

// Config wires a Registry.
type Config struct {
	Hub    *hub.Hub
	Store  Store
	Loader Loader
	// Policy defaults to PushPolicy with the default heartbeat timeout.
	Policy OnlinePolicy
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Registry struct {
	hub    *hub.Hub
	store  Store
	policy OnlinePolicy
	log    zerolog.Logger
	now    func() time.Time

	loaded   sync.Once
	ready    atomic.Bool
	initedOn atomic.Int64

	// wmu serializes writers across persistence; mu guards the two indices.
	wmu      sync.Mutex
	mu       sync.RWMutex
	byID     map[string]*types.Node
	byClient map[uuid.UUID]string
}

// New registers the fleet command handlers on cfg.Hub and starts the bulk
// load. The registry answers queries only once the loader completes.
func New(cfg Config) *Registry {
	r := &Registry{
		hub:      cfg.Hub,
		store:    cfg.Store,
		policy:   cfg.Policy,
		log:      cfg.Logger.With().Str("component", "fleet").Logger(),
		now:      cfg.Now,
		byID:     make(map[string]*types.Node),
		byClient: make(map[uuid.UUID]string),
	}
	if r.policy == nil {
		r.policy = PushPolicy{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.store == nil {
		r.store = NewMemoryStore()
	}
	r.register()
	if cfg.Loader != nil {
		cfg.Loader(r.complete)
	} else {
		r.complete(nil)
	}
	return r
}

// complete builds both indices from the loaded batch. Only the first call
// has any effect.
func (r *Registry) complete(nodes []types.Node) {
	r.loaded.Do(func() {
		byID := make(map[string]*types.Node, len(nodes))
		byClient := make(map[uuid.UUID]string, len(nodes))
		for i := range nodes {
			n := nodes[i]
			switch {
			case n.ID == "" || n.ClientID == uuid.Nil:
				r.log.Warn().Str("id", n.ID).Msg("skipping node without identity")
				continue
			case byID[n.ID] != nil:
				r.log.Warn().Str("id", n.ID).Msg("skipping duplicate node id")
				continue
			case byClient[n.ClientID] != "":
				r.log.Warn().Str("id", n.ID).Str("client_id", n.ClientID.String()).
					Str("existing", byClient[n.ClientID]).Msg("skipping duplicate client id")
				continue
			}
			byID[n.ID] = &n
			byClient[n.ClientID] = n.ID
		}
		r.mu.Lock()
		r.byID = byID
		r.byClient = byClient
		r.mu.Unlock()

		r.initedOn.Store(r.now().UnixNano())
		r.ready.Store(true)
		r.ObserveMetrics()
		r.log.Info().Int("count", len(byID)).Msg("fleet loaded")
		r.hub.Publish(context.Background(), NodeSetInitializedEvent{EventMeta: hub.NewEventMeta(), Count: len(byID)})
	})
}

// IsReady reports whether the bulk load has completed.
func (r *Registry) IsReady() bool { return r.ready.Load() }

// InitedOn returns when the bulk load completed, or the zero time.
func (r *Registry) InitedOn() time.Time {
	if !r.IsReady() {
		return time.Time{}
	}
	return time.Unix(0, r.initedOn.Load())
}

// GetByID returns a copy of the node with storage id id, credential
// included.
func (r *Registry) GetByID(id string) (types.Node, bool) {
	if !r.IsReady() {
		return types.Node{}, false
	}
	n := r.byStorageID(id)
	if n == nil {
		return types.Node{}, false
	}
	return *n, true
}

// GetByClientID returns a copy of the node reported by client id, credential
// included.
func (r *Registry) GetByClientID(clientID uuid.UUID) (types.Node, bool) {
	if !r.IsReady() {
		return types.Node{}, false
	}
	n := r.byClientID(clientID)
	if n == nil {
		return types.Node{}, false
	}
	return *n, true
}

func (r *Registry) IsAnyNodeInGroup(groupID uuid.UUID) bool {
	return r.any(func(n *types.Node) bool { return n.GroupID == groupID })
}

func (r *Registry) IsAnyNodeInWork(workID uuid.UUID) bool {
	return r.any(func(n *types.Node) bool { return n.WorkID == workID })
}

func (r *Registry) any(pred func(*types.Node) bool) bool {
	if !r.IsReady() {
		return false
	}
	for _, n := range r.snapshot() {
		if pred(n) {
			return true
		}
	}
	return false
}

// Count summarizes the whole fleet.
func (r *Registry) Count() types.NodeCount {
	if !r.IsReady() {
		return types.NodeCount{}
	}
	return count(r.snapshot(), r.policy, r.now())
}

// Validate checks that both indices hold exactly the same records.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.byID) != len(r.byClient) {
		return fmt.Errorf("%w: %d by id, %d by client id", ErrIndexDiverged, len(r.byID), len(r.byClient))
	}
	for cid, id := range r.byClient {
		n := r.byID[id]
		if n == nil {
			return fmt.Errorf("%w: client %s points at missing node %s", ErrIndexDiverged, cid, id)
		}
		if n.ClientID != cid {
			return fmt.Errorf("%w: client %s points at node %s owned by %s", ErrIndexDiverged, cid, id, n.ClientID)
		}
	}
	for id, n := range r.byID {
		if n.ID != id {
			return fmt.Errorf("%w: node %s stored under %s", ErrIndexDiverged, n.ID, id)
		}
		if r.byClient[n.ClientID] != id {
			return fmt.Errorf("%w: node %s not reachable by client %s", ErrIndexDiverged, id, n.ClientID)
		}
	}
	return nil
}

// ObserveMetrics refreshes the fleet gauges.
func (r *Registry) ObserveMetrics() {
	c := r.Count()
	nodesGauge.WithLabelValues("total").Set(float64(c.Total))
	nodesGauge.WithLabelValues("online").Set(float64(c.OnlineCount))
	nodesGauge.WithLabelValues("mining").Set(float64(c.MiningCount))
}

func (r *Registry) byStorageID(id string) *types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *Registry) byClientID(cid uuid.UUID) *types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byClient[cid]
	if !ok {
		return nil
	}
	return r.byID[id]
}

// snapshot returns the stored records ordered by creation time then id. The
// records are shared and must not be modified.
func (r *Registry) snapshot() []*types.Node {
	r.mu.RLock()
	out := make([]*types.Node, 0, len(r.byID))
	for _, n := range r.byID {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.Before(out[j].CreatedOn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// install stores n, replacing any record with the same storage id. Callers
// hold wmu.
func (r *Registry) install(nodes ...*types.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range nodes {
		if old := r.byID[n.ID]; old != nil && old.ClientID != n.ClientID {
			delete(r.byClient, old.ClientID)
		}
		r.byID[n.ID] = n
		r.byClient[n.ClientID] = n.ID
	}
}

// evict drops the record with storage id id. Callers hold wmu.
func (r *Registry) evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.byID[id]
	if old == nil {
		return
	}
	delete(r.byID, id)
	if r.byClient[old.ClientID] == id {
		delete(r.byClient, old.ClientID)
	}
}

func scrub(n types.Node) types.Node {
	n.AESPassword = ""
	return n
}
