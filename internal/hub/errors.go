package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrUnhandledCommand is returned when a critical command has no handler.
	ErrUnhandledCommand = errors.New("unhandled command")
	// ErrNilMessage is returned when Execute receives a nil command.
	ErrNilMessage = errors.New("nil message")
)

// handlerPanicError wraps a recovered handler panic.
type handlerPanicError struct {
	message string
	value   any
}

func (e handlerPanicError) Error() string {
	return fmt.Sprintf("handler for %s panicked: %v", e.message, e.value)
}

// IsUnhandled reports whether err signals a critical command with no handler.
func IsUnhandled(err error) bool { return errors.Is(err, ErrUnhandledCommand) }

// IsHandlerPanic reports whether err came from a recovered handler panic.
func IsHandlerPanic(err error) bool {
	var pe handlerPanicError
	return errors.As(err, &pe)
}
