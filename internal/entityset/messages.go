package entityset

import (
	"github.com/google/uuid"

	"fleetd/internal/hub"
)

// AddCommand asks the set for T to add Entity.
type AddCommand[T any] struct{ Entity T }

// UpdateCommand asks the set for T to overwrite the cached entity with the
// same id.
type UpdateCommand[T any] struct{ Entity T }

// RemoveCommand asks the set for T to drop the entity with ID.
type RemoveCommand[T any] struct{ ID uuid.UUID }

// RefreshCommand re-reads the repository and routes every record through
// Add or Update.
type RefreshCommand[T any] struct{}

type AddedEvent[T any] struct {
	hub.EventMeta
	Target T
}

type UpdatedEvent[T any] struct {
	hub.EventMeta
	Target T
}

type RemovedEvent[T any] struct {
	hub.EventMeta
	Target T
}

// RefreshedEvent follows a completed RefreshCommand.
type RefreshedEvent[T any] struct {
	hub.EventMeta
}
