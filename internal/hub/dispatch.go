package hub

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
)

// Execute routes cmd to its handler. With no handler it returns nil, unless
// cmd is Critical, in which case ErrUnhandledCommand is returned. UI-affine
// commands are posted to the UI runner and Execute returns without waiting;
// everything else runs synchronously on the caller's goroutine.
func (h *Hub) Execute(ctx context.Context, cmd any) error {
	return h.execute(ctx, cmd, false)
}

// ExecuteWait is Execute that also waits for UI-affine commands to complete.
// Called from the UI context itself, the handler runs inline.
func (h *Hub) ExecuteWait(ctx context.Context, cmd any) error {
	return h.execute(ctx, cmd, true)
}

func (h *Hub) execute(ctx context.Context, cmd any, wait bool) error {
	if cmd == nil {
		return ErrNilMessage
	}
	if ctx == nil {
		ctx = context.Background()
	}
	name := messageName(cmd)
	reg, ui := h.commandFor(reflect.TypeOf(cmd))
	if reg == nil {
		countMessage(KindCommand, name, outcomeUnhandled)
		if isCritical(cmd) {
			h.log.Error().Str("message", name).Msg("no handler for critical command")
			return fmt.Errorf("%w: %s", ErrUnhandledCommand, name)
		}
		h.log.Debug().Str("message", name).Msg("no handler for command")
		return nil
	}
	if ui == nil || !isUIAffine(cmd) || InUIContext(ctx) {
		return h.invoke(ctx, reg, cmd)
	}
	if !wait {
		ui.Post(func(uctx context.Context) {
			if err := h.invoke(uctx, reg, cmd); err != nil {
				h.log.Error().Err(err).Str("message", name).Msg("ui command failed")
			}
		})
		countMessage(KindCommand, name, outcomePosted)
		return nil
	}
	done := make(chan error, 1)
	ui.Post(func(uctx context.Context) {
		done <- h.invoke(uctx, reg, cmd)
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish delivers ev to every subscriber in registration order. A failing
// subscriber is logged and skipped; Publish never returns an error.
func (h *Hub) Publish(ctx context.Context, ev any) {
	if ev == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, reg := range h.subscribersFor(reflect.TypeOf(ev)) {
		if err := h.invoke(ctx, reg, ev); err != nil {
			h.log.Error().Err(err).Str("message", messageName(ev)).
				Str("handler", reg.ID.String()).Str("description", reg.Description).
				Msg("event handler failed")
		}
	}
}

func (h *Hub) invoke(ctx context.Context, reg *Registration, msg any) (err error) {
	name := reg.MessageType.String()
	defer func() {
		if v := recover(); v != nil {
			err = handlerPanicError{message: name, value: v}
			countMessage(reg.Kind, name, outcomePanic)
		}
	}()
	if ev := h.logEvent(reg.Category); ev != nil {
		ev.Str("kind", string(reg.Kind)).Str("message", name).
			Str("handler", reg.ID.String()).Msg(reg.Description)
	}
	if err = reg.fn(ctx, msg); err != nil {
		countMessage(reg.Kind, name, outcomeError)
		return err
	}
	countMessage(reg.Kind, name, outcomeOK)
	return nil
}

func (h *Hub) logEvent(c LogCategory) *zerolog.Event {
	switch c {
	case LogDebug:
		return h.log.Debug()
	case LogInfo:
		return h.log.Info()
	default:
		return nil
	}
}
