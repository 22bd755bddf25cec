package transport

import "errors"

// Sentinel errors for socket operations.
var (
	// ErrNotBound indicates the socket has not been bound to a local endpoint.
	ErrNotBound = errors.New("socket not bound")

	// ErrAlreadyBound indicates Bind was called on a socket that is already open.
	ErrAlreadyBound = errors.New("socket already bound")

	// ErrSocketClosed indicates the socket has been closed.
	ErrSocketClosed = errors.New("socket closed")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("socket already started")

	// ErrNotConnected indicates a send on a listening stream socket.
	ErrNotConnected = errors.New("socket not connected")

	// ErrNoDestination indicates a datagram send without a destination.
	ErrNoDestination = errors.New("destination address is nil")

	// ErrInvalidAddress indicates an endpoint that cannot be used for the operation.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrPendingOverflow indicates a stream peer sent more unconsumed data
	// than the socket is willing to buffer.
	ErrPendingOverflow = errors.New("pending stream data exceeds limit")
)
