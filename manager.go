package rtpsocket

import (
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/opd-ai/rtpsocket/transport"
	"github.com/sirupsen/logrus"
)

const (
	datagramSocketName = "RTP UDP Socket"
	listenSocketName   = "RTP TCP Listen Socket"
	streamSocketName   = "RTP TCP Socket"
)

// Role tells how the manager uses a registered socket.
type Role uint8

const (
	// RoleData sockets deliver payload to the data handler and are send targets.
	RoleData Role = iota
	// RoleControl sockets only listen for connections and report the local port.
	RoleControl
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleData:
		return "data"
	case RoleControl:
		return "control"
	default:
		return "unknown"
	}
}

// Binding is one socket registered with a Manager.
type Binding struct {
	Socket transport.Socket
	Role   Role
}

// DataReceivedHandler receives data from an admitted peer on any data socket.
// It returns the number of bytes consumed; stream sockets present the
// remainder again on the next delivery. data is only valid for the duration
// of the call.
type DataReceivedHandler func(m *Manager, s transport.Socket, data []byte, remote net.Addr) int

// Manager owns the sockets of one RTP endpoint: a datagram socket, a
// listening stream socket, and every stream connection it accepts. Data
// arriving on any of them is routed to a single handler, and only one remote
// host is admitted when an allowed host is configured.
//
// Socket notifications arrive from independent goroutines. The binding set is
// guarded by a RWMutex that is never held while sockets are closed or handlers
// run.
type Manager struct {
	name              string
	id                string
	allowedRemoteHost net.Addr
	factory           transport.Factory
	observer          Observer

	mu       sync.RWMutex
	bindings []Binding
	closed   bool

	onData atomic.Pointer[DataReceivedHandler]
}

// New creates a manager with default options.
//
// Parameters:
//   - name: Diagnostic label, may be empty
//   - allowedRemoteHost: Only peers on this host are admitted; nil admits all
//
// Returns:
//   - *Manager: A manager with no sockets; call Setup to bind them
func New(name string, allowedRemoteHost net.Addr) *Manager {
	opts := NewOptions()
	opts.Name = name
	opts.AllowedRemoteHost = allowedRemoteHost
	return NewWithOptions(opts)
}

// NewWithOptions creates a manager from explicit options. Nil fields fall
// back to the defaults of NewOptions. The allowed host is copied, so later
// changes to the caller's address do not affect the manager.
func NewWithOptions(opts *Options) *Manager {
	defaults := NewOptions()
	if opts == nil {
		opts = defaults
	}

	m := &Manager{
		name:              opts.Name,
		id:                uuid.NewString(),
		allowedRemoteHost: transport.CopyAddr(opts.AllowedRemoteHost),
		factory:           opts.Factory,
		observer:          opts.Observer,
	}
	if m.factory == nil {
		m.factory = defaults.Factory
	}
	if m.observer == nil {
		m.observer = defaults.Observer
	}

	fields := m.logFields("NewWithOptions")
	if m.allowedRemoteHost != nil {
		fields["allowed_host"] = m.allowedRemoteHost.String()
	}
	logrus.WithFields(fields).Debug("Created RTP socket manager")

	return m
}

// Name returns the diagnostic label of the manager.
func (m *Manager) Name() string {
	return m.name
}

// ID returns the unique identifier used to correlate log entries.
func (m *Manager) ID() string {
	return m.id
}

// AllowedRemoteHost returns a copy of the configured allowed host, or nil.
func (m *Manager) AllowedRemoteHost() net.Addr {
	return transport.CopyAddr(m.allowedRemoteHost)
}

// Setup creates the datagram socket and the listening stream socket, binds
// both to local and registers them. When local has port 0 the listener is
// bound to the port the datagram socket received, so both share one port.
//
// If either bind fails both sockets are released, nothing is registered and
// the returned error wraps ErrSetupFailed.
func (m *Manager) Setup(local net.Addr) error {
	if local == nil {
		return fmt.Errorf("%w: %w", ErrSetupFailed, ErrNilEndpoint)
	}

	m.mu.RLock()
	closed, active := m.closed, m.hasControlLocked()
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if active {
		return ErrAlreadyActive
	}

	udp := m.factory.NewSocket(transport.KindDatagram)
	tcp := m.factory.NewSocket(transport.KindStream)
	udp.SetName(datagramSocketName)
	tcp.SetName(listenSocketName)

	if err := udp.Bind(local); err != nil {
		m.discard(udp, tcp)
		return m.setupFailure(local, "datagram", err)
	}

	streamLocal := local
	if transport.Port(local) == 0 {
		if port := transport.Port(udp.LocalAddr()); port != 0 {
			streamLocal = &net.TCPAddr{IP: transport.Host(local), Port: int(port)}
		}
	}
	if err := tcp.Bind(streamLocal); err != nil {
		m.discard(udp, tcp)
		return m.setupFailure(streamLocal, "stream", err)
	}

	m.mu.Lock()
	if m.closed || m.hasControlLocked() {
		closed := m.closed
		m.mu.Unlock()
		m.discard(udp, tcp)
		if closed {
			return ErrClosed
		}
		return ErrAlreadyActive
	}
	m.attachLocked(udp, transport.KindDatagram, RoleData)
	m.attachLocked(tcp, transport.KindStream, RoleControl)
	m.mu.Unlock()

	m.observer.BindingAdded(m, RoleData)
	m.observer.BindingAdded(m, RoleControl)
	m.start(udp)
	m.start(tcp)

	logrus.WithFields(m.logFields("Setup")).WithFields(logrus.Fields{
		"local_addr": local.String(),
		"port":       m.LocalPort(),
	}).Info("RTP sockets set up")

	return nil
}

// SetDataReceivedHandler installs the handler for data from admitted peers.
// A nil handler makes the manager consume and discard all data. It is safe to
// call while data is being delivered.
func (m *Manager) SetDataReceivedHandler(h DataReceivedHandler) {
	if h == nil {
		m.onData.Store(nil)
		return
	}
	m.onData.Store(&h)
}

// SendTo sends data to dst through every data socket. Control sockets are
// never used. Failures of individual sockets are logged and otherwise
// ignored.
func (m *Manager) SendTo(dst net.Addr, data []byte) {
	for _, s := range m.socketsWithRole(RoleData) {
		if _, err := s.SendTo(data, dst); err != nil {
			fields := m.logFields("SendTo")
			fields["socket"] = s.Name()
			fields["error"] = err.Error()
			if dst != nil {
				fields["remote_addr"] = dst.String()
			}
			logrus.WithFields(fields).Debug("Send failed on socket")
		}
	}
}

// LocalPort returns the local port of the first control socket, or 0 when the
// manager has not been set up.
func (m *Manager) LocalPort() uint16 {
	controls := m.socketsWithRole(RoleControl)
	if len(controls) == 0 {
		return 0
	}
	return transport.Port(controls[0].LocalAddr())
}

// Active reports whether the manager owns a listening socket.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasControlLocked()
}

// BindingCount returns the number of registered sockets.
func (m *Manager) BindingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bindings)
}

// Bindings returns a snapshot of the registered sockets in insertion order.
func (m *Manager) Bindings() []Binding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.bindings)
}

// Close closes every registered socket in insertion order and releases the
// manager. It always releases everything; the returned error aggregates
// individual close failures for diagnostics. Calling Close again is a no-op.
//
// The binding set is detached before any socket is closed, so closed
// notifications triggered by Close find nothing left to remove.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	bindings := m.bindings
	m.bindings = nil
	m.mu.Unlock()

	var result *multierror.Error
	for _, b := range bindings {
		if err := b.Socket.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s socket %q: %w", b.Role, b.Socket.Name(), err))
		}
		m.observer.BindingRemoved(m, b.Role)
	}
	m.onData.Store(nil)

	fields := m.logFields("Close")
	fields["sockets"] = len(bindings)
	logrus.WithFields(fields).Info("RTP socket manager closed")

	return result.ErrorOrNil()
}

// addBinding registers a socket, wires its notifications to the manager and
// starts it. A socket offered after Close is closed instead. Registering a
// socket twice is a no-op.
func (m *Manager) addBinding(s transport.Socket, role Role) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = s.Close()
		return ErrClosed
	}
	if m.indexLocked(s) >= 0 {
		m.mu.Unlock()
		return nil
	}
	m.attachLocked(s, s.Kind(), role)
	m.mu.Unlock()

	m.observer.BindingAdded(m, role)
	m.start(s)
	return nil
}

// attachLocked installs the notification handlers and appends the binding.
// Datagram data sockets and stream data sockets both route receive
// notifications here; only listening stream sockets get the accept handler.
func (m *Manager) attachLocked(s transport.Socket, kind transport.Kind, role Role) {
	if role == RoleData {
		s.SetReceiveHandler(m.handleReceive)
	} else if kind == transport.KindStream {
		s.SetAcceptHandler(m.handleAccept)
	}
	s.SetClosedHandler(m.handleClosed)
	m.bindings = append(m.bindings, Binding{Socket: s, Role: role})
}

// removeBinding drops the binding for s, preserving the order of the rest.
// Unknown sockets are ignored.
func (m *Manager) removeBinding(s transport.Socket) (Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(s)
	if i < 0 {
		return 0, false
	}
	role := m.bindings[i].Role
	m.bindings = slices.Delete(m.bindings, i, i+1)
	return role, true
}

func (m *Manager) indexLocked(s transport.Socket) int {
	for i, b := range m.bindings {
		if b.Socket == s {
			return i
		}
	}
	return -1
}

func (m *Manager) hasControlLocked() bool {
	for _, b := range m.bindings {
		if b.Role == RoleControl {
			return true
		}
	}
	return false
}

func (m *Manager) socketsWithRole(role Role) []transport.Socket {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []transport.Socket
	for _, b := range m.bindings {
		if b.Role == role {
			out = append(out, b.Socket)
		}
	}
	return out
}

// admitted reports whether remote passes the allowed-host filter.
func (m *Manager) admitted(remote net.Addr) bool {
	return m.allowedRemoteHost == nil || transport.EqualHost(remote, m.allowedRemoteHost)
}

// handleAccept is the accept notification of the listening socket.
func (m *Manager) handleAccept(listener, conn transport.Socket) bool {
	remote := conn.RemoteAddr()
	fields := m.logFields("handleAccept")
	if remote != nil {
		fields["remote_addr"] = remote.String()
	}

	if !m.admitted(remote) {
		_ = conn.Close()
		m.observer.ConnectionRejected(m, remote)
		logrus.WithFields(fields).Debug("Rejected connection from foreign host")
		return false
	}

	conn.SetName(streamSocketName)
	if err := m.addBinding(conn, RoleData); err != nil {
		return false
	}
	m.observer.ConnectionAccepted(m, remote)
	logrus.WithFields(fields).Debug("Accepted connection")
	return true
}

// handleReceive is the receive notification of every data socket.
func (m *Manager) handleReceive(s transport.Socket, data []byte, remote net.Addr) int {
	if !m.admitted(remote) {
		m.observer.DataDropped(m, len(data))
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			fields := m.logFields("handleReceive")
			fields["socket"] = s.Name()
			fields["size"] = len(data)
			if remote != nil {
				fields["remote_addr"] = remote.String()
			}
			logrus.WithFields(fields).Debug("Dropped data from foreign host")
		}
		return len(data)
	}

	h := m.onData.Load()
	if h == nil {
		return len(data)
	}
	used := (*h)(m, s, data, remote)
	m.observer.DataDelivered(m, len(data))
	return used
}

// handleClosed is the closed notification of every socket.
func (m *Manager) handleClosed(s transport.Socket) {
	role, ok := m.removeBinding(s)
	if !ok {
		return
	}
	m.observer.BindingRemoved(m, role)

	fields := m.logFields("handleClosed")
	fields["socket"] = s.Name()
	fields["role"] = role.String()
	logrus.WithFields(fields).Debug("Socket closed")
}

func (m *Manager) start(s transport.Socket) {
	if err := s.Start(); err != nil {
		fields := m.logFields("start")
		fields["socket"] = s.Name()
		fields["error"] = err.Error()
		logrus.WithFields(fields).Warn("Failed to start socket")
	}
}

// discard releases sockets that were never registered.
func (m *Manager) discard(sockets ...transport.Socket) {
	for _, s := range sockets {
		_ = s.Close()
	}
}

func (m *Manager) setupFailure(local net.Addr, kind string, err error) error {
	fields := m.logFields("Setup")
	fields["local_addr"] = local.String()
	fields["socket_kind"] = kind
	fields["error"] = err.Error()
	logrus.WithFields(fields).Warn("Failed to bind RTP socket")

	return fmt.Errorf("%w: bind %s socket to %s: %w", ErrSetupFailed, kind, local, err)
}

func (m *Manager) logFields(function string) logrus.Fields {
	return logrus.Fields{
		"function":   function,
		"manager":    m.name,
		"manager_id": m.id,
	}
}
