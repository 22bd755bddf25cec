package rtpsocket

import (
	"net"
	"sync"

	"github.com/opd-ai/rtpsocket/transport"
)

// sentData records one SendTo call on a mock socket.
type sentData struct {
	Data []byte
	Addr net.Addr
}

// mockSocket is an in-memory transport.Socket. Tests fire notifications
// directly through receive, accept and peerClose. Close delivers the closed
// notification synchronously, the way a socket primitive may do it.
type mockSocket struct {
	mu         sync.Mutex
	name       string
	kind       transport.Kind
	local      net.Addr
	remote     net.Addr
	bindErr    error
	closeErr   error
	startErr   error
	started    bool
	closeCount int
	sent       []sentData

	onRecv   transport.ReceiveHandler
	onAccept transport.AcceptHandler
	onClosed transport.ClosedHandler
	notified bool
}

func newMockSocket(kind transport.Kind) *mockSocket {
	return &mockSocket{kind: kind}
}

// newMockConn returns a connected stream socket from the given peer.
func newMockConn(remote string) *mockSocket {
	addr, err := net.ResolveTCPAddr("tcp", remote)
	if err != nil {
		panic(err)
	}
	s := newMockSocket(transport.KindStream)
	s.remote = addr
	s.local = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}
	return s
}

func (s *mockSocket) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *mockSocket) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *mockSocket) Kind() transport.Kind {
	return s.kind
}

func (s *mockSocket) Bind(local net.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindErr != nil {
		return s.bindErr
	}
	ip := transport.Host(local)
	port := int(transport.Port(local))
	if port == 0 {
		port = 40000
	}
	if s.kind == transport.KindStream {
		s.local = &net.TCPAddr{IP: ip, Port: port}
	} else {
		s.local = &net.UDPAddr{IP: ip, Port: port}
	}
	return nil
}

func (s *mockSocket) SendTo(data []byte, dst net.Addr) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.sent = append(s.sent, sentData{Data: buf, Addr: dst})
	return len(data), nil
}

func (s *mockSocket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

func (s *mockSocket) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

func (s *mockSocket) SetReceiveHandler(h transport.ReceiveHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecv = h
}

func (s *mockSocket) SetAcceptHandler(h transport.AcceptHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAccept = h
}

func (s *mockSocket) SetClosedHandler(h transport.ClosedHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = h
}

func (s *mockSocket) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *mockSocket) Close() error {
	s.mu.Lock()
	s.closeCount++
	first := s.closeCount == 1
	err := s.closeErr
	s.mu.Unlock()

	if first {
		s.notifyClosed()
	}
	return err
}

func (s *mockSocket) notifyClosed() {
	s.mu.Lock()
	if s.notified {
		s.mu.Unlock()
		return
	}
	s.notified = true
	h := s.onClosed
	s.mu.Unlock()

	if h != nil {
		h(s)
	}
}

// receive simulates inbound data and returns the consumed count.
func (s *mockSocket) receive(data []byte, from net.Addr) int {
	s.mu.Lock()
	h := s.onRecv
	s.mu.Unlock()
	if h == nil {
		return -1
	}
	return h(s, data, from)
}

// accept simulates an inbound connection on a listening socket.
func (s *mockSocket) accept(conn *mockSocket) bool {
	s.mu.Lock()
	h := s.onAccept
	s.mu.Unlock()
	if h == nil {
		_ = conn.Close()
		return false
	}
	if !h(s, conn) {
		_ = conn.Close()
		return false
	}
	return true
}

// peerClose simulates the peer going away.
func (s *mockSocket) peerClose() {
	_ = s.Close()
}

func (s *mockSocket) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

func (s *mockSocket) sends() []sentData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentData, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *mockSocket) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *mockSocket) hasReceiveHandler() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onRecv != nil
}

func (s *mockSocket) hasAcceptHandler() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onAccept != nil
}

// mockFactory hands out mockSockets and remembers them.
type mockFactory struct {
	mu            sync.Mutex
	datagramErr   error
	streamErr     error
	datagramClose error
	created       []*mockSocket
}

func newMockFactory() *mockFactory {
	return &mockFactory{}
}

func (f *mockFactory) NewSocket(kind transport.Kind) transport.Socket {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := newMockSocket(kind)
	if kind == transport.KindDatagram {
		s.bindErr = f.datagramErr
		s.closeErr = f.datagramClose
	} else {
		s.bindErr = f.streamErr
	}
	f.created = append(f.created, s)
	return s
}

func (f *mockFactory) sockets() []*mockSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*mockSocket, len(f.created))
	copy(out, f.created)
	return out
}

// datagram returns the most recent datagram socket.
func (f *mockFactory) datagram() *mockSocket {
	return f.last(transport.KindDatagram)
}

// listener returns the most recent stream socket.
func (f *mockFactory) listener() *mockSocket {
	return f.last(transport.KindStream)
}

func (f *mockFactory) last(kind transport.Kind) *mockSocket {
	sockets := f.sockets()
	for i := len(sockets) - 1; i >= 0; i-- {
		if sockets[i].kind == kind {
			return sockets[i]
		}
	}
	return nil
}

// recordingObserver counts observer notifications.
type recordingObserver struct {
	mu        sync.Mutex
	delivered int
	dropped   int
	accepted  int
	rejected  int
	added     map[Role]int
	removed   map[Role]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		added:   make(map[Role]int),
		removed: make(map[Role]int),
	}
}

func (o *recordingObserver) DataDelivered(_ *Manager, bytes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered += bytes
}

func (o *recordingObserver) DataDropped(_ *Manager, bytes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped += bytes
}

func (o *recordingObserver) ConnectionAccepted(*Manager, net.Addr) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted++
}

func (o *recordingObserver) ConnectionRejected(*Manager, net.Addr) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func (o *recordingObserver) BindingAdded(_ *Manager, role Role) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added[role]++
}

func (o *recordingObserver) BindingRemoved(_ *Manager, role Role) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed[role]++
}

// newTestManager builds a manager on a mock factory.
func newTestManager(allowed net.Addr) (*Manager, *mockFactory, *recordingObserver) {
	factory := newMockFactory()
	observer := newRecordingObserver()
	m := NewWithOptions(&Options{
		Name:              "test",
		AllowedRemoteHost: allowed,
		Factory:           factory,
		Observer:          observer,
	})
	return m, factory, observer
}

func udpAddr(s string) *net.UDPAddr {
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		panic(err)
	}
	return addr
}
