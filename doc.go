// Package rtpsocket implements the transport layer of one RTP streaming
// endpoint.
//
// A Manager owns a set of sockets: a UDP socket for media datagrams, a TCP
// listening socket, and every TCP connection accepted from it. Data arriving
// on any data socket is routed to one registered handler, and an optional
// allowed remote host restricts the endpoint to a single peer.
//
// # Getting Started
//
//	peer := &net.UDPAddr{IP: net.ParseIP("192.168.1.20")}
//	m := rtpsocket.New("audio", peer)
//	defer m.Close()
//
//	m.SetDataReceivedHandler(func(m *rtpsocket.Manager, s transport.Socket, data []byte, from net.Addr) int {
//	    process(data)
//	    return len(data)
//	})
//
//	if err := m.Setup(&net.UDPAddr{Port: 6000}); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("listening on port", m.LocalPort())
//
//	m.SendTo(peerEndpoint, packet)
//
// # Admission
//
// When an allowed host is configured, connections from any other host are
// closed as soon as they are accepted, and datagrams from other hosts are
// consumed without reaching the handler. Only the IP is compared; a peer may
// use any number of ports and connections.
//
// # Roles
//
// Each registered socket is either a data socket (UDP socket and accepted TCP
// connections) or a control socket (the TCP listener). Data sockets deliver
// payload and are targets of SendTo. The control socket only accepts
// connections and reports the endpoint's local port.
//
// # Concurrency
//
// All methods are safe for concurrent use. Socket notifications arrive from
// one goroutine per socket; the handler may therefore run concurrently for
// different sockets. Close detaches the socket set before closing any socket,
// so notifications racing with Close never observe a released manager.
//
// # Observability
//
// The manager logs through logrus with a "manager" and "manager_id" field on
// every entry. An Observer receives traffic and binding events; the metrics
// package provides a Prometheus implementation.
package rtpsocket
