// Package metrics exports RTP socket manager activity to Prometheus.
package metrics

import (
	"net"

	"github.com/opd-ai/rtpsocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements rtpsocket.Observer. All series are labelled with the
// manager name so several managers can share one registry.
type Metrics struct {
	bytesDelivered      *prometheus.CounterVec
	deliveries          *prometheus.CounterVec
	bytesDropped        *prometheus.CounterVec
	drops               *prometheus.CounterVec
	connectionsAccepted *prometheus.CounterVec
	connectionsRejected *prometheus.CounterVec
	bindings            *prometheus.GaugeVec
}

var _ rtpsocket.Observer = (*Metrics)(nil)

// New registers the RTP socket metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	promFactory := promauto.With(reg)
	return &Metrics{
		bytesDelivered: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpsocket_bytes_delivered_total",
			Help: "Bytes from admitted peers handed to the data handler",
		}, []string{"manager"}),
		deliveries: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpsocket_deliveries_total",
			Help: "Receive notifications handed to the data handler",
		}, []string{"manager"}),
		bytesDropped: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpsocket_bytes_dropped_total",
			Help: "Bytes discarded because the sender host was not admitted",
		}, []string{"manager"}),
		drops: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpsocket_drops_total",
			Help: "Receive notifications discarded because the sender host was not admitted",
		}, []string{"manager"}),
		connectionsAccepted: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpsocket_connections_accepted_total",
			Help: "Inbound stream connections registered as data sockets",
		}, []string{"manager"}),
		connectionsRejected: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpsocket_connections_rejected_total",
			Help: "Inbound stream connections closed by the admission filter",
		}, []string{"manager"}),
		bindings: promFactory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtpsocket_bindings",
			Help: "Sockets currently registered with the manager",
		}, []string{"manager", "role"}),
	}
}

func (m *Metrics) DataDelivered(mgr *rtpsocket.Manager, bytes int) {
	m.deliveries.WithLabelValues(mgr.Name()).Inc()
	m.bytesDelivered.WithLabelValues(mgr.Name()).Add(float64(bytes))
}

func (m *Metrics) DataDropped(mgr *rtpsocket.Manager, bytes int) {
	m.drops.WithLabelValues(mgr.Name()).Inc()
	m.bytesDropped.WithLabelValues(mgr.Name()).Add(float64(bytes))
}

func (m *Metrics) ConnectionAccepted(mgr *rtpsocket.Manager, _ net.Addr) {
	m.connectionsAccepted.WithLabelValues(mgr.Name()).Inc()
}

func (m *Metrics) ConnectionRejected(mgr *rtpsocket.Manager, _ net.Addr) {
	m.connectionsRejected.WithLabelValues(mgr.Name()).Inc()
}

func (m *Metrics) BindingAdded(mgr *rtpsocket.Manager, role rtpsocket.Role) {
	m.bindings.WithLabelValues(mgr.Name(), role.String()).Inc()
}

func (m *Metrics) BindingRemoved(mgr *rtpsocket.Manager, role rtpsocket.Role) {
	m.bindings.WithLabelValues(mgr.Name(), role.String()).Dec()
}
