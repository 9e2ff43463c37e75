package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"fleetd/internal/hub"
	"fleetd/pkg/types"
)

// Report upserts the state pushed by an agent, matching on client id. A new
// client gets a fresh storage id. The storage id, creation time and group of
// a known node are kept, as is its credential when the report carries none.
func (r *Registry) Report(ctx context.Context, report types.Node) error {
	if !r.IsReady() {
		return nil
	}
	if report.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client id is empty", ErrInvalidReport)
	}
	next, joined, err := r.upsertReport(ctx, report, r.now())
	if err != nil {
		return err
	}
	if joined {
		r.log.Info().Str("id", next.ID).Str("client_id", next.ClientID.String()).Str("miner", next.MinerName).Msg("node joined")
		r.hub.Publish(ctx, NodeAddedEvent{EventMeta: hub.NewEventMeta(), Node: scrub(next)})
		return nil
	}
	r.hub.Publish(ctx, NodeUpdatedEvent{EventMeta: hub.NewEventMeta(), Node: scrub(next)})
	return nil
}

func (r *Registry) upsertReport(ctx context.Context, report types.Node, now time.Time) (types.Node, bool, error) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	next := report
	cur := r.byClientID(report.ClientID)
	if cur != nil {
		next.ID = cur.ID
		next.CreatedOn = cur.CreatedOn
		next.GroupID = cur.GroupID
		if next.AESPassword == "" {
			next.AESPassword = cur.AESPassword
		}
		if next.LoginName == "" {
			next.LoginName = cur.LoginName
		}
	} else {
		next.ID = uuid.NewString()
		next.CreatedOn = now
	}
	next.ReportedOn = now
	next.IsOnline = true
	if err := r.store.Save(ctx, next); err != nil {
		return types.Node{}, false, fmt.Errorf("persist node %s: %w", next.ID, err)
	}
	r.install(&next)
	return next, cur == nil, nil
}

// UpdateField sets one field of node id by name. Unknown ids and field names
// are ignored, and an unchanged value writes nothing.
func (r *Registry) UpdateField(ctx context.Context, id, name string, value any) error {
	if !r.IsReady() {
		return nil
	}
	f, ok := nodeFields[name]
	if !ok {
		r.log.Debug().Str("field", name).Msg("ignoring unknown node field")
		return nil
	}
	v, err := f.coerce(value)
	if err != nil {
		return fmt.Errorf("node field %s: %w", name, err)
	}

	next, ok, err := r.setField(ctx, id, f, v)
	if err != nil || !ok {
		return err
	}
	r.hub.Publish(ctx, NodeUpdatedEvent{EventMeta: hub.NewEventMeta(), Node: scrub(next), Field: name})
	return nil
}

func (r *Registry) setField(ctx context.Context, id string, f field, v any) (types.Node, bool, error) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	cur := r.byStorageID(id)
	if cur == nil || f.equal(cur, v) {
		return types.Node{}, false, nil
	}
	next := *cur
	f.set(&next, v)
	if err := r.store.Save(ctx, next); err != nil {
		return types.Node{}, false, fmt.Errorf("persist node %s: %w", id, err)
	}
	r.install(&next)
	return next, true, nil
}

// UpdateFieldBatch sets field name on every node in values and persists the
// changed records in one batch. A value that cannot be converted fails the
// whole batch before anything is written.
func (r *Registry) UpdateFieldBatch(ctx context.Context, name string, values map[string]any) error {
	if !r.IsReady() || len(values) == 0 {
		return nil
	}
	f, ok := nodeFields[name]
	if !ok {
		r.log.Debug().Str("field", name).Msg("ignoring unknown node field")
		return nil
	}
	ids := make([]string, 0, len(values))
	coerced := make(map[string]any, len(values))
	for id, raw := range values {
		v, err := f.coerce(raw)
		if err != nil {
			return fmt.Errorf("node %s field %s: %w", id, name, err)
		}
		ids = append(ids, id)
		coerced[id] = v
	}
	sort.Strings(ids)

	changedIDs, err := r.setFieldBatch(ctx, f, ids, coerced)
	if err != nil || len(changedIDs) == 0 {
		return err
	}
	r.hub.Publish(ctx, NodesUpdatedEvent{EventMeta: hub.NewEventMeta(), Field: name, IDs: changedIDs})
	return nil
}

func (r *Registry) setFieldBatch(ctx context.Context, f field, ids []string, values map[string]any) ([]string, error) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	var changed []types.Node
	for _, id := range ids {
		cur := r.byStorageID(id)
		if cur == nil || f.equal(cur, values[id]) {
			continue
		}
		next := *cur
		f.set(&next, values[id])
		changed = append(changed, next)
	}
	if len(changed) == 0 {
		return nil, nil
	}
	if err := r.store.SaveBatch(ctx, changed); err != nil {
		return nil, fmt.Errorf("persist %d nodes: %w", len(changed), err)
	}
	installed := make([]*types.Node, len(changed))
	changedIDs := make([]string, len(changed))
	for i := range changed {
		installed[i] = &changed[i]
		changedIDs[i] = changed[i].ID
	}
	r.install(installed...)
	return changedIDs, nil
}

// RemoveByID evicts node id from both indices and from the store.
func (r *Registry) RemoveByID(ctx context.Context, id string) error {
	if !r.IsReady() {
		return nil
	}
	cur, err := r.evictStored(ctx, id)
	if err != nil || cur == nil {
		return err
	}
	r.log.Info().Str("id", id).Str("miner", cur.MinerName).Msg("node removed")
	r.hub.Publish(ctx, NodeRemovedEvent{EventMeta: hub.NewEventMeta(), Node: scrub(*cur)})
	return nil
}

func (r *Registry) evictStored(ctx context.Context, id string) (*types.Node, error) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	cur := r.byStorageID(id)
	if cur == nil {
		return nil, nil
	}
	if err := r.store.Remove(ctx, *cur); err != nil {
		return nil, fmt.Errorf("remove node %s: %w", id, err)
	}
	r.evict(id)
	return cur, nil
}
