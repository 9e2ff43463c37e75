// Package entityset implements the lazily loaded, hub-driven cache of one
// configuration entity type, written through to a Repository.
package entityset

import (
	"context"

	"github.com/google/uuid"
)

// Entity is the constraint satisfied by cached entity types, usually a
// pointer to a struct. Apply copies every domain field of src into the
// receiver; Clone returns an independent copy.
type Entity[T any] interface {
	comparable
	EntityID() uuid.UUID
	Apply(src T)
	Clone() T
}

// Named is implemented by entity types that require a non-empty name.
type Named interface {
	EntityName() string
}

// Repository is the durable CRUD boundary for one entity type.
type Repository[T any] interface {
	GetAll(ctx context.Context) ([]T, error)
	Add(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// State is the lifecycle of a Set.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}
