// Package transport provides the socket primitive underneath the RTP socket
// manager: a datagram socket, a stream socket that can listen or carry an
// accepted connection, and helpers for comparing and copying endpoints.
//
// # Sockets
//
// Every socket implements the Socket interface. Sockets are created unbound by
// a Factory, bound to a local endpoint, given their notification handlers, and
// then started:
//
//	factory := &transport.NetFactory{}
//	udp := factory.NewSocket(transport.KindDatagram)
//	if err := udp.Bind(&net.UDPAddr{Port: 5000}); err != nil {
//	    return err
//	}
//	udp.SetReceiveHandler(func(s transport.Socket, data []byte, from net.Addr) int {
//	    return len(data)
//	})
//	udp.SetClosedHandler(func(s transport.Socket) { /* forget s */ })
//	_ = udp.Start()
//
// # Notification Model
//
// Each started socket runs one goroutine that delivers its notifications in
// order: receive notifications for datagram and connected stream sockets,
// accept notifications for listening stream sockets, and finally a single
// closed notification once the loop has exited. Different sockets deliver
// concurrently, so consumers must synchronize shared state themselves.
//
// A socket that is closed before Start delivers its closed notification
// synchronously from Close.
//
// Receive buffers are reused between notifications; handlers that retain data
// must copy it.
//
// # Stream Buffering
//
// Connected stream sockets honor the consumed count returned by the receive
// handler. Unconsumed bytes are kept and presented again, followed by newly
// read data, on the next notification. The retained data is bounded by
// Options.MaxPendingStreamBytes; a peer that exceeds it is disconnected.
//
// # Addresses
//
// EqualHost compares endpoints by IP only, which is the matching rule used for
// peer admission. Port and Host extract the components of an endpoint, and
// CopyAddr produces an independent copy.
package transport
