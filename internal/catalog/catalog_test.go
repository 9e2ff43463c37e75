package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/entityset"
	"fleetd/internal/hub"
)

type fakeRefs struct {
	loading       bool
	groups, works map[uuid.UUID]bool
}

func (f fakeRefs) IsReady() bool                      { return !f.loading }
func (f fakeRefs) IsAnyNodeInGroup(id uuid.UUID) bool { return f.groups[id] }
func (f fakeRefs) IsAnyNodeInWork(id uuid.UUID) bool  { return f.works[id] }

func TestCatalog_WiresEveryCommand(t *testing.T) {
	h := hub.New(zerolog.Nop())
	New(Config{Hub: h, Repositories: MemoryRepositories(), Logger: zerolog.Nop()})
	if err := h.Verify(Commands()...); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestCatalog_GuardedRemoval(t *testing.T) {
	ctx := context.Background()
	h := hub.New(zerolog.Nop())
	busyGroup, freeGroup, busyWork := uuid.New(), uuid.New(), uuid.New()
	refs := fakeRefs{
		groups: map[uuid.UUID]bool{busyGroup: true},
		works:  map[uuid.UUID]bool{busyWork: true},
	}
	c := New(Config{Hub: h, Repositories: MemoryRepositories(), References: refs, Logger: zerolog.Nop()})

	for _, id := range []uuid.UUID{busyGroup, freeGroup} {
		if err := h.Execute(ctx, entityset.AddCommand[*Group]{Entity: &Group{ID: id, Name: "g-" + id.String()[:4]}}); err != nil {
			t.Fatalf("add group: %v", err)
		}
	}
	if err := h.Execute(ctx, entityset.AddCommand[*Work]{Entity: &Work{ID: busyWork, Name: "eth-template"}}); err != nil {
		t.Fatalf("add work: %v", err)
	}

	if err := h.Execute(ctx, entityset.RemoveCommand[*Group]{ID: busyGroup}); !entityset.IsInUse(err) {
		t.Fatalf("expected in-use for busy group, got %v", err)
	}
	if err := h.Execute(ctx, entityset.RemoveCommand[*Group]{ID: freeGroup}); err != nil {
		t.Fatalf("remove free group: %v", err)
	}
	if err := h.Execute(ctx, entityset.RemoveCommand[*Work]{ID: busyWork}); !entityset.IsInUse(err) {
		t.Fatalf("expected in-use for busy work, got %v", err)
	}
	if n := c.Groups.Len(ctx); n != 1 {
		t.Fatalf("groups=%d", n)
	}
	if !c.Works.Contains(ctx, busyWork) {
		t.Fatalf("busy work removed")
	}
}

func TestCatalog_RemovalRefusedUntilFleetLoaded(t *testing.T) {
	ctx := context.Background()
	h := hub.New(zerolog.Nop())
	c := New(Config{Hub: h, Repositories: MemoryRepositories(), References: fakeRefs{loading: true}, Logger: zerolog.Nop()})
	g, w := &Group{ID: uuid.New(), Name: "farm-a"}, &Work{ID: uuid.New(), Name: "etc"}
	if err := h.Execute(ctx, entityset.AddCommand[*Group]{Entity: g}); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if err := h.Execute(ctx, entityset.AddCommand[*Work]{Entity: w}); err != nil {
		t.Fatalf("add work: %v", err)
	}
	if err := h.Execute(ctx, entityset.RemoveCommand[*Group]{ID: g.ID}); !entityset.IsInUse(err) {
		t.Fatalf("group removal while loading: %v", err)
	}
	if err := h.Execute(ctx, entityset.RemoveCommand[*Work]{ID: w.ID}); !entityset.IsInUse(err) {
		t.Fatalf("work removal while loading: %v", err)
	}
	if !c.Groups.Contains(ctx, g.ID) || !c.Works.Contains(ctx, w.ID) {
		t.Fatalf("entity removed before fleet loaded")
	}
}

func TestCatalog_CoinRequiresCode(t *testing.T) {
	h := hub.New(zerolog.Nop())
	New(Config{Hub: h, Repositories: MemoryRepositories(), Logger: zerolog.Nop()})
	err := h.Execute(context.Background(), entityset.AddCommand[*Coin]{Entity: &Coin{ID: uuid.New(), Algo: "ethash"}})
	if !entityset.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestKernelInputApplyKeepsID(t *testing.T) {
	k := &KernelInput{ID: uuid.New(), Name: "a"}
	src := &KernelInput{ID: uuid.New(), Name: "b", Args: "-pool {pool}"}
	k.Apply(src)
	if k.ID == src.ID || k.Name != "b" || k.Args != "-pool {pool}" {
		t.Fatalf("apply: %+v", k)
	}
}
