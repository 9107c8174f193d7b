package firmata

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrClientClosed = errors.New("client is closed")
	ErrInvalidPin   = errors.New("invalid pin number")
)

// CommError represents a transport-level failure.
type CommError struct {
	Op  string // Operation that failed (e.g., "set pin mode", "digital write")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// IsInvalidPin returns true if the error indicates an out-of-range pin.
func IsInvalidPin(err error) bool {
	return errors.Is(err, ErrInvalidPin)
}
