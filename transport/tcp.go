package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// TCPSocket implements the stream Socket. A TCPSocket is either a listener,
// after Bind, or a connection handed out by a listener's accept loop.
type TCPSocket struct {
	socketState
	listener   net.Listener
	conn       net.Conn
	bufferSize int
	maxPending int
	opts       *Options
}

// NewTCPSocket creates an unbound stream socket.
func NewTCPSocket(opts *Options) *TCPSocket {
	o := opts.normalized()
	return &TCPSocket{
		socketState: newSocketState(),
		bufferSize:  o.ReadBufferSize,
		maxPending:  o.MaxPendingStreamBytes,
		opts:        opts,
	}
}

// newAcceptedSocket wraps a connection produced by Accept.
func newAcceptedSocket(conn net.Conn, opts *Options) *TCPSocket {
	s := NewTCPSocket(opts)
	s.conn = conn
	return s
}

// Kind returns KindStream.
func (s *TCPSocket) Kind() Kind {
	return KindStream
}

// Bind starts listening on the given local endpoint.
func (s *TCPSocket) Bind(local net.Addr) error {
	addr, err := toTCPAddr(local)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrSocketClosed
	}
	if s.listener != nil || s.conn != nil {
		return ErrAlreadyBound
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	listener, err := lc.Listen(context.Background(), "tcp", addr.String())
	if err != nil {
		return err
	}
	s.listener = listener

	logrus.WithFields(logrus.Fields{
		"function":   "TCPSocket.Bind",
		"socket":     s.name,
		"local_addr": listener.Addr().String(),
	}).Debug("Stream socket listening")

	return nil
}

// SendTo writes data to the connected peer. dst is ignored because a stream
// has exactly one peer. Listening sockets return ErrNotConnected.
func (s *TCPSocket) SendTo(data []byte, dst net.Addr) (int, error) {
	listener, conn := s.endpoints()
	if conn == nil {
		if listener != nil {
			return 0, ErrNotConnected
		}
		return 0, ErrNotBound
	}
	if s.isClosed() {
		return 0, ErrSocketClosed
	}
	return conn.Write(data)
}

// LocalAddr returns the listening or connected local endpoint.
func (s *TCPSocket) LocalAddr() net.Addr {
	listener, conn := s.endpoints()
	switch {
	case conn != nil:
		return conn.LocalAddr()
	case listener != nil:
		return listener.Addr()
	default:
		return nil
	}
}

// RemoteAddr returns the peer of an accepted connection.
func (s *TCPSocket) RemoteAddr() net.Addr {
	_, conn := s.endpoints()
	if conn == nil {
		return nil
	}
	return conn.RemoteAddr()
}

// Start launches the accept loop of a listener or the read loop of a
// connection.
func (s *TCPSocket) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrSocketClosed
	}
	if s.listener == nil && s.conn == nil {
		return ErrNotBound
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	if s.listener != nil {
		go s.acceptLoop()
	} else {
		go s.readLoop()
	}
	return nil
}

// Close shuts the listener or connection down. The closed handler runs
// synchronously if the loop was never started.
func (s *TCPSocket) Close() error {
	first, started := s.markClosed()
	if !first {
		return nil
	}

	var err error
	listener, conn := s.endpoints()
	if listener != nil {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	if conn != nil {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}

	if !started {
		s.notifyClosed(s)
	}
	return err
}

func (s *TCPSocket) endpoints() (net.Listener, net.Conn) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener, s.conn
}

// newAcceptBackoff returns the retry policy for temporary accept failures.
// It never gives up; the loop ends only when the listener is closed.
func newAcceptBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// acceptLoop hands every accepted connection to the accept handler.
func (s *TCPSocket) acceptLoop() {
	defer s.notifyClosed(s)

	listener, _ := s.endpoints()
	retry := newAcceptBackoff()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			delay := retry.NextBackOff()
			logrus.WithFields(logrus.Fields{
				"function": "TCPSocket.acceptLoop",
				"socket":   s.Name(),
				"error":    err.Error(),
				"retry_in": delay.String(),
			}).Warn("Accept failed")

			select {
			case <-time.After(delay):
				continue
			case <-s.done:
				return
			}
		}
		retry.Reset()

		child := newAcceptedSocket(conn, s.opts)
		handler := s.acceptHandler()
		if handler == nil || !handler(s, child) {
			_ = child.Close()
		}
	}
}

// readLoop delivers stream data. Bytes the handler does not consume are kept
// and delivered again ahead of the next read.
func (s *TCPSocket) readLoop() {
	defer s.notifyClosed(s)

	_, conn := s.endpoints()
	remote := conn.RemoteAddr()
	buffer := make([]byte, s.bufferSize)
	var pending []byte

	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)
			used := len(pending)
			if handler := s.receiveHandler(); handler != nil {
				used = handler(s, pending, remote)
			}
			if used < 0 {
				used = 0
			}
			if used > len(pending) {
				used = len(pending)
			}
			pending = append(pending[:0], pending[used:]...)

			if len(pending) > s.maxPending {
				logrus.WithFields(logrus.Fields{
					"function":    "TCPSocket.readLoop",
					"socket":      s.Name(),
					"remote_addr": remote.String(),
					"pending":     len(pending),
					"error":       ErrPendingOverflow.Error(),
				}).Warn("Closing stream with too much unconsumed data")
				_ = s.Close()
				return
			}
		}
		if err != nil {
			if !s.isClosed() {
				logrus.WithFields(logrus.Fields{
					"function":    "TCPSocket.readLoop",
					"socket":      s.Name(),
					"remote_addr": remote.String(),
					"error":       err.Error(),
				}).Debug("Stream ended")
			}
			_ = s.Close()
			return
		}
	}
}
