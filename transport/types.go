package transport

import (
	"net"
)

// Kind identifies the underlying protocol family of a Socket.
type Kind uint8

const (
	// KindDatagram is a connectionless UDP socket.
	KindDatagram Kind = iota
	// KindStream is a TCP socket, either listening or connected.
	KindStream
)

// String returns a human-readable name for the socket kind.
func (k Kind) String() string {
	switch k {
	case KindDatagram:
		return "datagram"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ReceiveHandler is called for inbound data on a socket. It returns the
// number of bytes it consumed. Datagram sockets treat the value as
// informational; stream sockets keep unconsumed bytes and deliver them again,
// followed by newly read data, on the next call.
type ReceiveHandler func(s Socket, data []byte, remote net.Addr) int

// AcceptHandler is called when a listening socket accepts a connection. The
// handler returns true when it takes over the new socket. On false the
// listener closes the connection.
type AcceptHandler func(listener, conn Socket) bool

// ClosedHandler is called exactly once when a socket is closed, either by its
// owner or because the peer went away.
type ClosedHandler func(s Socket)

// Socket defines the transport primitive used by the RTP socket manager.
//
// Notifications for one socket are delivered from a single goroutine, one at
// a time. Different sockets deliver concurrently. Handlers must be installed
// before Start; the closed notification fires after the socket's loop exits,
// or synchronously from Close when the socket was never started.
type Socket interface {
	// Name returns the diagnostic label of the socket.
	Name() string

	// SetName sets the diagnostic label used in log output.
	SetName(name string)

	// Kind reports whether this is a datagram or stream socket.
	Kind() Kind

	// Bind opens the socket on the given local endpoint. Stream sockets
	// start listening.
	Bind(local net.Addr) error

	// SendTo writes data to dst. Connected stream sockets ignore dst and
	// write to their peer.
	SendTo(data []byte, dst net.Addr) (int, error)

	// LocalAddr returns the bound local endpoint, or nil before Bind.
	LocalAddr() net.Addr

	// RemoteAddr returns the peer of a connected stream socket, nil otherwise.
	RemoteAddr() net.Addr

	// SetReceiveHandler installs the inbound data handler.
	SetReceiveHandler(h ReceiveHandler)

	// SetAcceptHandler installs the accept handler of a listening socket.
	SetAcceptHandler(h AcceptHandler)

	// SetClosedHandler installs the closed notification handler.
	SetClosedHandler(h ClosedHandler)

	// Start launches the socket's read or accept loop.
	Start() error

	// Close shuts the socket down. It is safe to call more than once.
	Close() error
}

// Factory creates unbound sockets of a given kind.
type Factory interface {
	NewSocket(kind Kind) Socket
}
