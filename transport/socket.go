package transport

import (
	"sync"
	"sync/atomic"
)

const (
	// DefaultReadBufferSize is large enough for any UDP datagram.
	DefaultReadBufferSize = 64 * 1024

	// DefaultMaxPendingStreamBytes bounds the unconsumed data a stream
	// socket keeps between reads.
	DefaultMaxPendingStreamBytes = 1024 * 1024
)

// Options tunes the buffers of sockets created by NetFactory.
type Options struct {
	ReadBufferSize        int
	MaxPendingStreamBytes int
}

// NewOptions returns Options populated with the package defaults.
func NewOptions() *Options {
	return &Options{
		ReadBufferSize:        DefaultReadBufferSize,
		MaxPendingStreamBytes: DefaultMaxPendingStreamBytes,
	}
}

func (o *Options) normalized() Options {
	out := *NewOptions()
	if o == nil {
		return out
	}
	if o.ReadBufferSize > 0 {
		out.ReadBufferSize = o.ReadBufferSize
	}
	if o.MaxPendingStreamBytes > 0 {
		out.MaxPendingStreamBytes = o.MaxPendingStreamBytes
	}
	return out
}

// NetFactory creates sockets backed by the operating system's network stack.
type NetFactory struct {
	Options *Options
}

// NewSocket returns an unbound UDPSocket or TCPSocket.
func (f *NetFactory) NewSocket(kind Kind) Socket {
	var opts *Options
	if f != nil {
		opts = f.Options
	}
	if kind == KindStream {
		return NewTCPSocket(opts)
	}
	return NewUDPSocket(opts)
}

// socketState holds the handler registrations and close bookkeeping shared by
// the UDP and TCP sockets.
type socketState struct {
	mu       sync.RWMutex
	name     string
	started  bool
	onRecv   ReceiveHandler
	onAccept AcceptHandler
	onClosed ClosedHandler

	closed     atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
	notifyOnce sync.Once
}

func newSocketState() socketState {
	return socketState{done: make(chan struct{})}
}

// Name returns the diagnostic label of the socket.
func (st *socketState) Name() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.name
}

// SetName sets the diagnostic label of the socket.
func (st *socketState) SetName(name string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.name = name
}

// SetReceiveHandler installs the inbound data handler.
func (st *socketState) SetReceiveHandler(h ReceiveHandler) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onRecv = h
}

// SetAcceptHandler installs the accept handler.
func (st *socketState) SetAcceptHandler(h AcceptHandler) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onAccept = h
}

// SetClosedHandler installs the closed notification handler.
func (st *socketState) SetClosedHandler(h ClosedHandler) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onClosed = h
}

func (st *socketState) receiveHandler() ReceiveHandler {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.onRecv
}

func (st *socketState) acceptHandler() AcceptHandler {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.onAccept
}

// markClosed flips the socket into the closed state. It reports whether this
// call performed the transition and whether the loop had been started.
func (st *socketState) markClosed() (first, started bool) {
	st.closeOnce.Do(func() {
		st.closed.Store(true)
		close(st.done)
		first = true
	})
	st.mu.RLock()
	started = st.started
	st.mu.RUnlock()
	return first, started
}

func (st *socketState) isClosed() bool {
	return st.closed.Load()
}

// notifyClosed runs the closed handler at most once.
func (st *socketState) notifyClosed(s Socket) {
	st.notifyOnce.Do(func() {
		st.mu.RLock()
		h := st.onClosed
		st.mu.RUnlock()
		if h != nil {
			h(s)
		}
	})
}
