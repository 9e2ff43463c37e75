package entityset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/hub"
)

// handlerNamespace seeds the deterministic handler ids of every set so that
// constructing a set twice under one name registers nothing new.
var handlerNamespace = uuid.MustParse("6f1f0a52-3d4b-4c1e-9a57-3f0e6c2d8b11")

// Config wires a Set.
type Config[T Entity[T]] struct {
	// Name identifies the set in logs and handler ids, e.g. "kernel-input".
	Name       string
	Hub        *hub.Hub
	Repository Repository[T]
	Logger     zerolog.Logger
	// RemoveGuard, when set, may veto a removal by returning an error.
	RemoveGuard func(ctx context.Context, id uuid.UUID) error
}

type Set[T Entity[T]] struct {
	name  string
	hub   *hub.Hub
	repo  Repository[T]
	log   zerolog.Logger
	guard func(ctx context.Context, id uuid.UUID) error

	initMu sync.Mutex
	state  atomic.Int32

	// wmu serializes writers across persistence; mu guards byID.
	wmu  sync.Mutex
	mu   sync.RWMutex
	byID map[uuid.UUID]T
}

// New builds a Set and registers its command handlers on cfg.Hub. Nothing is
// loaded until first access.
func New[T Entity[T]](cfg Config[T]) *Set[T] {
	s := &Set[T]{
		name:  cfg.Name,
		hub:   cfg.Hub,
		repo:  cfg.Repository,
		log:   cfg.Logger.With().Str("set", cfg.Name).Logger(),
		guard: cfg.RemoveGuard,
		byID:  make(map[uuid.UUID]T),
	}
	hub.Handle(s.hub, s.handlerID("add"), "add "+s.name, hub.LogDebug, func(ctx context.Context, c AddCommand[T]) error {
		return s.add(ctx, c.Entity)
	})
	hub.Handle(s.hub, s.handlerID("update"), "update "+s.name, hub.LogDebug, func(ctx context.Context, c UpdateCommand[T]) error {
		return s.update(ctx, c.Entity)
	})
	hub.Handle(s.hub, s.handlerID("remove"), "remove "+s.name, hub.LogDebug, func(ctx context.Context, c RemoveCommand[T]) error {
		return s.remove(ctx, c.ID)
	})
	hub.Handle(s.hub, s.handlerID("refresh"), "refresh "+s.name, hub.LogInfo, func(ctx context.Context, _ RefreshCommand[T]) error {
		return s.refresh(ctx)
	})
	return s
}

func (s *Set[T]) handlerID(op string) uuid.UUID {
	return uuid.NewSHA1(handlerNamespace, []byte(s.name+":"+op))
}

func (s *Set[T]) Name() string { return s.name }

// State reports the load lifecycle.
func (s *Set[T]) State() State { return State(s.state.Load()) }

// Load forces the initial load. Reads and writes call it implicitly.
func (s *Set[T]) Load(ctx context.Context) error { return s.ensureLoaded(ctx) }

func (s *Set[T]) ensureLoaded(ctx context.Context) error {
	if s.State() == StateReady {
		return nil
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.State() == StateReady {
		return nil
	}
	s.state.Store(int32(StateLoading))
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		s.state.Store(int32(StateUninitialized))
		return fmt.Errorf("load %s: %w", s.name, err)
	}
	byID := make(map[uuid.UUID]T, len(items))
	for _, item := range items {
		id := item.EntityID()
		if _, ok := byID[id]; !ok {
			byID[id] = item
		}
	}
	s.mu.Lock()
	s.byID = byID
	s.mu.Unlock()
	s.state.Store(int32(StateReady))
	s.log.Debug().Int("count", len(byID)).Msg("entity set loaded")
	return nil
}

// Contains reports whether id is cached. A failed load reports false.
func (s *Set[T]) Contains(ctx context.Context, id uuid.UUID) bool {
	_, ok := s.TryGet(ctx, id)
	return ok
}

// TryGet returns a copy of the entity with id.
func (s *Set[T]) TryGet(ctx context.Context, id uuid.UUID) (T, bool) {
	var zero T
	if err := s.ensureLoaded(ctx); err != nil {
		s.log.Error().Err(err).Msg("entity set unavailable")
		return zero, false
	}
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	return e.Clone(), true
}

// All returns copies of every cached entity ordered by id.
func (s *Set[T]) All(ctx context.Context) []T {
	if err := s.ensureLoaded(ctx); err != nil {
		s.log.Error().Err(err).Msg("entity set unavailable")
		return nil
	}
	s.mu.RLock()
	out := make([]T, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].EntityID(), out[j].EntityID()
		return a.String() < b.String()
	})
	return out
}

// Len returns the number of cached entities.
func (s *Set[T]) Len(ctx context.Context) int {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Set[T]) validate(e T) error {
	var zero T
	if e == zero {
		return fmt.Errorf("%w: %s is nil", ErrValidation, s.name)
	}
	if e.EntityID() == uuid.Nil {
		return fmt.Errorf("%w: %s id is empty", ErrValidation, s.name)
	}
	if n, ok := any(e).(Named); ok && strings.TrimSpace(n.EntityName()) == "" {
		return fmt.Errorf("%w: %s name can't be empty", ErrValidation, s.name)
	}
	return nil
}

func (s *Set[T]) lookup(id uuid.UUID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

func (s *Set[T]) add(ctx context.Context, e T) error {
	if err := s.validate(e); err != nil {
		return err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	entity, ok, err := s.insert(ctx, e)
	if err != nil || !ok {
		return err
	}
	s.hub.Publish(ctx, AddedEvent[T]{EventMeta: hub.NewEventMeta(), Target: entity.Clone()})
	return nil
}

func (s *Set[T]) insert(ctx context.Context, e T) (T, bool, error) {
	var zero T
	id := e.EntityID()
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, ok := s.lookup(id); ok {
		return zero, false, nil
	}
	entity := e.Clone()
	if err := s.repo.Add(ctx, entity); err != nil {
		return zero, false, fmt.Errorf("persist %s %s: %w", s.name, id, err)
	}
	s.put(id, entity)
	return entity, true, nil
}

func (s *Set[T]) update(ctx context.Context, e T) error {
	if err := s.validate(e); err != nil {
		return err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	next, ok, err := s.replace(ctx, e)
	if err != nil || !ok {
		return err
	}
	s.hub.Publish(ctx, UpdatedEvent[T]{EventMeta: hub.NewEventMeta(), Target: next.Clone()})
	return nil
}

func (s *Set[T]) replace(ctx context.Context, e T) (T, bool, error) {
	var zero T
	id := e.EntityID()
	s.wmu.Lock()
	defer s.wmu.Unlock()
	cur, ok := s.lookup(id)
	if !ok || cur == e {
		return zero, false, nil
	}
	next := cur.Clone()
	next.Apply(e)
	if err := s.repo.Update(ctx, next); err != nil {
		return zero, false, fmt.Errorf("persist %s %s: %w", s.name, id, err)
	}
	s.put(id, next)
	return next, true, nil
}

func (s *Set[T]) remove(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: %s id is empty", ErrValidation, s.name)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	cur, ok, err := s.evict(ctx, id)
	if err != nil || !ok {
		return err
	}
	s.hub.Publish(ctx, RemovedEvent[T]{EventMeta: hub.NewEventMeta(), Target: cur.Clone()})
	return nil
}

func (s *Set[T]) evict(ctx context.Context, id uuid.UUID) (T, bool, error) {
	var zero T
	s.wmu.Lock()
	defer s.wmu.Unlock()
	cur, ok := s.lookup(id)
	if !ok {
		return zero, false, nil
	}
	if s.guard != nil {
		if err := s.guard(ctx, id); err != nil {
			return zero, false, err
		}
	}
	if err := s.repo.Remove(ctx, id); err != nil {
		return zero, false, fmt.Errorf("remove %s %s: %w", s.name, id, err)
	}
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
	return cur, true, nil
}

func (s *Set[T]) put(id uuid.UUID, e T) {
	s.mu.Lock()
	s.byID[id] = e
	s.mu.Unlock()
}

func (s *Set[T]) refresh(ctx context.Context) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", s.name, err)
	}
	var errs []error
	for _, item := range items {
		var cmd any = AddCommand[T]{Entity: item}
		if _, ok := s.lookup(item.EntityID()); ok {
			cmd = UpdateCommand[T]{Entity: item}
		}
		if err := s.hub.Execute(ctx, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	s.hub.Publish(ctx, RefreshedEvent[T]{EventMeta: hub.NewEventMeta()})
	return errors.Join(errs...)
}
