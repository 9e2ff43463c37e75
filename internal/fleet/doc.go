// Package fleet keeps the coordinator's live view of every mining node.
//
//   - registry.go: Registry, construction, bulk-load completion, lookups.
//   - mutate.go: Report, UpdateField, UpdateFieldBatch, RemoveByID.
//   - query.go: QueryNodes filter/sort/paginate engine.
//   - snapshot.go: coin snapshots and fleet counts.
//   - fields.go: the closed table of fields updatable by name.
//   - online.go: push (heartbeat age) and pull (active probe) online policies.
//   - messages.go, handlers.go: hub commands, events and their handlers.
//   - store.go: the persistence boundary and an in-memory implementation.
//
// Records are stored by storage id; a second index maps client id to storage
// id. Stored records are never mutated in place: each change installs a
// fresh copy, so a query works on a consistent snapshot of pointers.
package fleet
