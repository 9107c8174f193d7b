package boardio

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrNotConnected is returned by every operation on a session whose
	// connection attempt failed or that has been closed.
	ErrNotConnected = errors.New("not connected to board")

	// ErrNoValue indicates no sample was available, even after retrying.
	ErrNoValue = errors.New("no value available")

	// ErrInvalidPin indicates a pin index outside the board's range.
	ErrInvalidPin = errors.New("invalid pin number")

	// ErrInvalidValue indicates an input value rejected before any
	// hardware command was issued.
	ErrInvalidValue = errors.New("invalid value")
)

// PinError represents a failure operating on a specific pin.
type PinError struct {
	Pin int    // Pin number
	Op  string // Operation that failed (e.g., "digital write")
	Err error  // Underlying error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("pin %d %s: %v", e.Pin, e.Op, e.Err)
}

func (e *PinError) Unwrap() error {
	return e.Err
}

// IsNoValue returns true if the error indicates a sample never arrived.
func IsNoValue(err error) bool {
	return errors.Is(err, ErrNoValue)
}

// IsNotConnected returns true if the error indicates a missing connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
