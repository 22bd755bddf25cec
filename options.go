package rtpsocket

import (
	"net"

	"github.com/opd-ai/rtpsocket/transport"
)

// Options contains the configuration of a Manager.
type Options struct {
	// Name is a diagnostic label used in log output and metrics.
	Name string

	// AllowedRemoteHost restricts accepted connections and delivered data
	// to peers on this host. Only the IP is compared; the port is ignored.
	// Nil admits every peer.
	AllowedRemoteHost net.Addr

	// Factory creates the underlying sockets.
	Factory transport.Factory

	// Observer is notified about traffic and binding changes.
	Observer Observer
}

// NewOptions returns the default options: real network sockets and no
// observer.
func NewOptions() *Options {
	return &Options{
		Factory:  &transport.NetFactory{},
		Observer: NopObserver{},
	}
}
