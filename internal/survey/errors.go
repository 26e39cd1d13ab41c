package survey

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLegData is matched by every *LegError.
	ErrInvalidLegData = errors.New("invalid leg data")

	// ErrNonPositiveScale is returned before any computation when the scale
	// is zero, negative or not finite.
	ErrNonPositiveScale = errors.New("scale must be a finite number greater than zero")

	// ErrInvalidOrigin is returned when the origin has a non-finite coordinate.
	ErrInvalidOrigin = errors.New("origin must have finite coordinates")
)

// Causes carried in LegError.Err.
var (
	ErrMissingValue = errors.New("value is missing")
	ErrNotNumeric   = errors.New("value is not numeric")
	ErrNotFinite    = errors.New("value is not finite")
	ErrNegative     = errors.New("value must not be negative")
)

// LegError identifies a single rejected leg and the offending field.
type LegError struct {
	// Index is the position of the leg in the input sequence.
	Index int
	// Field is the record key of the bad value (dist, azi, clino, left, ...).
	Field string
	// Value is the raw text of the bad value, when there was one.
	Value string
	Err   error
}

func (e *LegError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("leg %d: field %s: %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("leg %d: field %s %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *LegError) Unwrap() error { return e.Err }

// Is reports true for ErrInvalidLegData so callers can match on the category
// without unpacking the cause.
func (e *LegError) Is(target error) bool {
	return target == ErrInvalidLegData
}
