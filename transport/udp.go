package transport

import (
	"errors"
	"net"

	"github.com/sirupsen/logrus"
)

// UDPSocket implements the datagram Socket. Each inbound datagram is handed
// to the receive handler together with its sender.
type UDPSocket struct {
	socketState
	conn       net.PacketConn
	bufferSize int
}

// NewUDPSocket creates an unbound datagram socket.
func NewUDPSocket(opts *Options) *UDPSocket {
	o := opts.normalized()
	return &UDPSocket{
		socketState: newSocketState(),
		bufferSize:  o.ReadBufferSize,
	}
}

// Kind returns KindDatagram.
func (s *UDPSocket) Kind() Kind {
	return KindDatagram
}

// Bind opens the socket on the given local endpoint.
func (s *UDPSocket) Bind(local net.Addr) error {
	addr, err := toUDPAddr(local)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrSocketClosed
	}
	if s.conn != nil {
		return ErrAlreadyBound
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn

	logrus.WithFields(logrus.Fields{
		"function":   "UDPSocket.Bind",
		"socket":     s.name,
		"local_addr": conn.LocalAddr().String(),
	}).Debug("Datagram socket bound")

	return nil
}

// SendTo writes one datagram to dst.
func (s *UDPSocket) SendTo(data []byte, dst net.Addr) (int, error) {
	if dst == nil {
		return 0, ErrNoDestination
	}
	conn := s.packetConn()
	if conn == nil {
		return 0, ErrNotBound
	}
	if s.isClosed() {
		return 0, ErrSocketClosed
	}

	addr, err := toUDPAddr(dst)
	if err != nil {
		return 0, err
	}
	return conn.WriteTo(data, addr)
}

// LocalAddr returns the bound local endpoint, or nil before Bind.
func (s *UDPSocket) LocalAddr() net.Addr {
	conn := s.packetConn()
	if conn == nil {
		return nil
	}
	return conn.LocalAddr()
}

// RemoteAddr returns nil; datagram sockets are not peer-specific.
func (s *UDPSocket) RemoteAddr() net.Addr {
	return nil
}

// Start launches the read loop.
func (s *UDPSocket) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrSocketClosed
	}
	if s.conn == nil {
		return ErrNotBound
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	go s.readLoop()
	return nil
}

// Close shuts the socket down. The closed handler runs synchronously if the
// read loop was never started.
func (s *UDPSocket) Close() error {
	first, started := s.markClosed()
	if !first {
		return nil
	}

	var err error
	if conn := s.packetConn(); conn != nil {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}

	if !started {
		s.notifyClosed(s)
	}
	return err
}

func (s *UDPSocket) packetConn() net.PacketConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// readLoop delivers datagrams until the socket is closed or the connection
// fails. The buffer passed to the handler is reused between datagrams.
func (s *UDPSocket) readLoop() {
	defer s.notifyClosed(s)

	conn := s.packetConn()
	buffer := make([]byte, s.bufferSize)

	for {
		n, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"function": "UDPSocket.readLoop",
				"socket":   s.Name(),
				"error":    err.Error(),
			}).Warn("Datagram read failed, closing socket")
			_ = s.Close()
			return
		}

		if handler := s.receiveHandler(); handler != nil {
			handler(s, buffer[:n], addr)
		}
	}
}
