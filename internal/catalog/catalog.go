// Package catalog holds the configuration entity sets of the coordinator:
// kernel inputs, groups, works and coins.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/entityset"
	"fleetd/internal/hub"
)

// References answers whether live nodes still point at a group or work.
// The fleet registry implements it. Both lookups answer false until IsReady
// reports true.
type References interface {
	IsReady() bool
	IsAnyNodeInGroup(groupID uuid.UUID) bool
	IsAnyNodeInWork(workID uuid.UUID) bool
}

// Repositories supplies the durable storage of every catalog.
type Repositories struct {
	KernelInputs entityset.Repository[*KernelInput]
	Groups       entityset.Repository[*Group]
	Works        entityset.Repository[*Work]
	Coins        entityset.Repository[*Coin]
}

// MemoryRepositories returns in-memory repositories for every catalog.
func MemoryRepositories() Repositories {
	return Repositories{
		KernelInputs: entityset.NewMemoryRepository[*KernelInput](),
		Groups:       entityset.NewMemoryRepository[*Group](),
		Works:        entityset.NewMemoryRepository[*Work](),
		Coins:        entityset.NewMemoryRepository[*Coin](),
	}
}

type Config struct {
	Hub          *hub.Hub
	Repositories Repositories
	// References guards removal of groups and works. Nil disables the guard.
	References References
	Logger       zerolog.Logger
}

type Catalog struct {
	KernelInputs *entityset.Set[*KernelInput]
	Groups       *entityset.Set[*Group]
	Works        *entityset.Set[*Work]
	Coins        *entityset.Set[*Coin]
}

// New builds every set and registers its handlers on cfg.Hub.
func New(cfg Config) *Catalog {
	log := cfg.Logger.With().Str("component", "catalog").Logger()
	c := &Catalog{
		KernelInputs: entityset.New(entityset.Config[*KernelInput]{
			Name: "kernel-input", Hub: cfg.Hub, Repository: cfg.Repositories.KernelInputs, Logger: log,
		}),
		Groups: entityset.New(entityset.Config[*Group]{
			Name: "group", Hub: cfg.Hub, Repository: cfg.Repositories.Groups, Logger: log,
			RemoveGuard: groupGuard(cfg.References),
		}),
		Works: entityset.New(entityset.Config[*Work]{
			Name: "work", Hub: cfg.Hub, Repository: cfg.Repositories.Works, Logger: log,
			RemoveGuard: workGuard(cfg.References),
		}),
		Coins: entityset.New(entityset.Config[*Coin]{
			Name: "coin", Hub: cfg.Hub, Repository: cfg.Repositories.Coins, Logger: log,
		}),
	}
	return c
}

func groupGuard(refs References) func(context.Context, uuid.UUID) error {
	if refs == nil {
		return nil
	}
	return func(_ context.Context, id uuid.UUID) error {
		if !refs.IsReady() {
			return fmt.Errorf("%w: group %s: fleet not loaded yet", entityset.ErrInUse, id)
		}
		if refs.IsAnyNodeInGroup(id) {
			return fmt.Errorf("%w: group %s has nodes", entityset.ErrInUse, id)
		}
		return nil
	}
}

func workGuard(refs References) func(context.Context, uuid.UUID) error {
	if refs == nil {
		return nil
	}
	return func(_ context.Context, id uuid.UUID) error {
		if !refs.IsReady() {
			return fmt.Errorf("%w: work %s: fleet not loaded yet", entityset.ErrInUse, id)
		}
		if refs.IsAnyNodeInWork(id) {
			return fmt.Errorf("%w: work %s is assigned to nodes", entityset.ErrInUse, id)
		}
		return nil
	}
}

// Commands lists one instance of every catalog command type, for wiring
// verification.
func Commands() []any {
	return []any{
		entityset.AddCommand[*KernelInput]{}, entityset.UpdateCommand[*KernelInput]{}, entityset.RemoveCommand[*KernelInput]{},
		entityset.AddCommand[*Group]{}, entityset.UpdateCommand[*Group]{}, entityset.RemoveCommand[*Group]{},
		entityset.AddCommand[*Work]{}, entityset.UpdateCommand[*Work]{}, entityset.RemoveCommand[*Work]{},
		entityset.AddCommand[*Coin]{}, entityset.UpdateCommand[*Coin]{}, entityset.RemoveCommand[*Coin]{},
	}
}
