package mod

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by providers for mods they do not know.
	ErrNotFound = errors.New("mod not found")

	// ErrUnknownMod matches every UnknownModError.
	ErrUnknownMod = errors.New("unknown mod")
)

// UnknownModError reports a mod that no provider could supply.
type UnknownModError struct {
	ID    ID
	Cause error
}

func (e *UnknownModError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unknown mod %q: %v", e.ID, e.Cause)
	}
	return fmt.Sprintf("unknown mod %q", e.ID)
}

func (e *UnknownModError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrUnknownMod) hold for every UnknownModError.
func (e *UnknownModError) Is(target error) bool { return target == ErrUnknownMod }
