package hub

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind distinguishes the two message shapes routed by the Hub.
type Kind string

const (
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
)

// LogCategory selects how a handler invocation is logged.
type LogCategory int

const (
	LogNone LogCategory = iota
	LogDebug
	LogInfo
)

// Critical is implemented by commands whose absence of a handler is a wiring
// defect rather than an optional feature.
type Critical interface {
	Critical() bool
}

// HandlerFunc is the untyped handler shape stored by the Hub.
type HandlerFunc func(ctx context.Context, msg any) error

// Registration describes one handler bound to one message type.
type Registration struct {
	ID          uuid.UUID
	Kind        Kind
	MessageType reflect.Type
	Description string
	Category    LogCategory
	fn          HandlerFunc
}

// EventMeta is embedded by events to carry an identity and birth time.
type EventMeta struct {
	EventID uuid.UUID
	BornOn  time.Time
}

// NewEventMeta stamps a fresh event envelope.
func NewEventMeta() EventMeta {
	return EventMeta{EventID: uuid.New(), BornOn: time.Now()}
}

type Hub struct {
	mu       sync.RWMutex
	commands map[reflect.Type]*Registration
	events   map[reflect.Type][]*Registration
	ui       UIRunner
	log      zerolog.Logger
}

// New returns an empty Hub logging through log.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		commands: make(map[reflect.Type]*Registration),
		events:   make(map[reflect.Type][]*Registration),
		log:      log.With().Str("component", "hub").Logger(),
	}
}

// SetUIRunner installs the marshaller used for UI-affine commands. A nil
// runner (headless deployments) makes UI-affine commands run inline.
func (h *Hub) SetUIRunner(r UIRunner) {
	h.mu.Lock()
	h.ui = r
	h.mu.Unlock()
}

// Register binds fn to msgType under id. It reports whether the registration
// was stored. Re-registering an id already bound to msgType is a no-op so a
// module may initialize more than once; the first callback stays in place.
// A command type accepts a single handler.
func (h *Hub) Register(kind Kind, msgType reflect.Type, id uuid.UUID, description string, category LogCategory, fn HandlerFunc) bool {
	if msgType == nil || fn == nil {
		return false
	}
	reg := &Registration{ID: id, Kind: kind, MessageType: msgType, Description: description, Category: category, fn: fn}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch kind {
	case KindCommand:
		if cur, ok := h.commands[msgType]; ok {
			if cur.ID != id {
				h.log.Warn().Str("message", msgType.String()).Str("handler", id.String()).
					Str("existing", cur.ID.String()).Msg("command already has a handler")
			}
			return false
		}
		h.commands[msgType] = reg
	case KindEvent:
		for _, cur := range h.events[msgType] {
			if cur.ID == id {
				return false
			}
		}
		h.events[msgType] = append(h.events[msgType], reg)
	default:
		return false
	}
	return true
}

// Unregister removes every registration carrying id.
func (h *Hub) Unregister(id uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := false
	for t, reg := range h.commands {
		if reg.ID == id {
			delete(h.commands, t)
			removed = true
		}
	}
	for t, regs := range h.events {
		kept := regs[:0:0]
		for _, reg := range regs {
			if reg.ID == id {
				removed = true
				continue
			}
			kept = append(kept, reg)
		}
		if len(kept) == 0 {
			delete(h.events, t)
		} else {
			h.events[t] = kept
		}
	}
	return removed
}

// Handle registers the single handler for command type C.
func Handle[C any](h *Hub, id uuid.UUID, description string, category LogCategory, fn func(context.Context, C) error) bool {
	return h.Register(KindCommand, reflect.TypeOf((*C)(nil)).Elem(), id, description, category, func(ctx context.Context, msg any) error {
		return fn(ctx, msg.(C))
	})
}

// Subscribe adds a subscriber for event type E.
func Subscribe[E any](h *Hub, id uuid.UUID, description string, category LogCategory, fn func(context.Context, E) error) bool {
	return h.Register(KindEvent, reflect.TypeOf((*E)(nil)).Elem(), id, description, category, func(ctx context.Context, msg any) error {
		return fn(ctx, msg.(E))
	})
}

// HasHandler reports whether a command of cmd's type would be handled.
func (h *Hub) HasHandler(cmd any) bool {
	if cmd == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.commands[reflect.TypeOf(cmd)]
	return ok
}

// Verify reports every command in cmds that has no handler. Deployments call
// it once after wiring so a missing handler fails at startup instead of per
// request.
func (h *Hub) Verify(cmds ...any) error {
	var errs []error
	for _, c := range cmds {
		if !h.HasHandler(c) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnhandledCommand, messageName(c)))
		}
	}
	return errors.Join(errs...)
}

// Registrations returns a copy of all registrations, commands first, ordered
// by message type name and then registration order.
func (h *Hub) Registrations() []Registration {
	h.mu.RLock()
	out := make([]Registration, 0, len(h.commands)+len(h.events))
	for _, reg := range h.commands {
		out = append(out, *reg)
	}
	for _, regs := range h.events {
		for _, reg := range regs {
			out = append(out, *reg)
		}
	}
	h.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindCommand
		}
		return out[i].MessageType.String() < out[j].MessageType.String()
	})
	return out
}

func (h *Hub) commandFor(t reflect.Type) (*Registration, UIRunner) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.commands[t], h.ui
}

func (h *Hub) subscribersFor(t reflect.Type) []*Registration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	regs := h.events[t]
	out := make([]*Registration, len(regs))
	copy(out, regs)
	return out
}

func messageName(msg any) string {
	if msg == nil {
		return "<nil>"
	}
	return reflect.TypeOf(msg).String()
}
