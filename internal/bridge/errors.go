package bridge

import "errors"

// Domain-specific errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidArgument is returned when a command carries an invalid value,
	// such as a non-positive portion size.
	ErrInvalidArgument = errors.New("bridge: invalid argument")

	// ErrConnectFailed is returned when a broker connection attempt fails.
	// All callers waiting on the shared attempt receive this error.
	ErrConnectFailed = errors.New("bridge: broker connect failed")

	// ErrNotConnected is returned when an operation requires a live
	// connection and none exists.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrPublishFailed is returned when publishing a command to the
	// broker fails after a connection was established.
	ErrPublishFailed = errors.New("bridge: publish failed")
)
