package rtpsocket

import "errors"

// Sentinel errors for manager operations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrSetupFailed indicates the root sockets could not be bound. The
	// manager is left without bindings.
	ErrSetupFailed = errors.New("rtp socket setup failed")

	// ErrAlreadyActive indicates Setup was called on a manager that already
	// owns its root sockets.
	ErrAlreadyActive = errors.New("rtp socket already set up")

	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("rtp socket closed")

	// ErrNilEndpoint indicates a nil local endpoint was passed to Setup.
	ErrNilEndpoint = errors.New("local endpoint cannot be nil")
)
