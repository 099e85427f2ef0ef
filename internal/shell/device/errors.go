// Package device delivers reordered command batches to appliances over SSH.
//
// The device's response is returned as raw text; this package does not
// interpret it.
package device

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Configuration errors
	ErrAuthConfig    = errors.New("no usable SSH credentials")
	ErrInvalidTarget = errors.New("invalid device target")

	// Execution errors
	ErrDialFailed     = errors.New("device connection failed")
	ErrSessionFailed  = errors.New("device session failed")
	ErrCommandTimeout = errors.New("device command timed out")
	ErrEmptyBatch     = errors.New("batch is empty")
)

// DeviceError wraps errors with the operation and host involved.
type DeviceError struct {
	Op      string // Operation that failed (e.g., "Execute")
	Host    string // Device address if applicable
	Message string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Host, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError creates a new DeviceError.
func NewDeviceError(op, host, message string, err error) *DeviceError {
	return &DeviceError{
		Op:      op,
		Host:    host,
		Message: message,
		Err:     err,
	}
}
