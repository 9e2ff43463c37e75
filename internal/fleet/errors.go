package fleet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReport marks an agent report without a client id.
	ErrInvalidReport = errors.New("invalid node report")
	// ErrCoerce marks a field value that cannot be converted to the field's type.
	ErrCoerce = errors.New("cannot convert value")
	// ErrIndexDiverged is returned by Validate when the two indices disagree.
	ErrIndexDiverged = errors.New("node indices diverged")
)

func IsInvalidReport(err error) bool { return errors.Is(err, ErrInvalidReport) }

func IsCoerce(err error) bool { return errors.Is(err, ErrCoerce) }

// ErrUnknownField is reported by CheckField for names outside the field
// table. The registry itself ignores unknown fields.
var ErrUnknownField = errors.New("unknown node field")

// CheckField returns ErrUnknownField unless name can be updated by name.
func CheckField(name string) error {
	if !IsField(name) {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}
