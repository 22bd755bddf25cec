package rtpsocket

import "net"

// Observer receives notifications about traffic and binding changes of a
// Manager. Implementations must be safe for concurrent use; calls arrive from
// socket goroutines and are never made while the manager's lock is held.
type Observer interface {
	// DataDelivered is called after the data handler ran for bytes received
	// from an admitted peer.
	DataDelivered(m *Manager, bytes int)

	// DataDropped is called when bytes from a non-matching host are discarded.
	DataDropped(m *Manager, bytes int)

	// ConnectionAccepted is called when an inbound connection is registered.
	ConnectionAccepted(m *Manager, remote net.Addr)

	// ConnectionRejected is called when an inbound connection fails admission.
	ConnectionRejected(m *Manager, remote net.Addr)

	// BindingAdded is called when a socket joins the manager's set.
	BindingAdded(m *Manager, role Role)

	// BindingRemoved is called when a socket leaves the manager's set.
	BindingRemoved(m *Manager, role Role)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) DataDelivered(*Manager, int) {}
func (NopObserver) DataDropped(*Manager, int) {}
func (NopObserver) ConnectionAccepted(*Manager, net.Addr) {}
func (NopObserver) ConnectionRejected(*Manager, net.Addr) {}
func (NopObserver) BindingAdded(*Manager, Role) {}
func (NopObserver) BindingRemoved(*Manager, Role) {}
