package entityset

import "errors"

var (
	// ErrValidation marks an entity rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrInUse is returned by remove guards when other records still
	// reference the entity.
	ErrInUse = errors.New("entity in use")
)

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsInUse(err error) bool { return errors.Is(err, ErrInUse) }
