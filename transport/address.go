package transport

import (
	"net"
	"strconv"
)

// Host extracts the IP of an endpoint. It returns nil for addresses that do
// not carry an IP.
func Host(addr net.Addr) net.IP {
	ip, _, ok := extractIPAndPort(addr)
	if !ok {
		return nil
	}
	return ip
}

// Port extracts the port of an endpoint, or 0 if it has none.
func Port(addr net.Addr) uint16 {
	_, port, ok := extractIPAndPort(addr)
	if !ok || port < 0 || port > 0xffff {
		return 0
	}
	return uint16(port)
}

// EqualHost reports whether two endpoints refer to the same host, ignoring
// ports. IPv4-mapped IPv6 addresses compare equal to their IPv4 form. A nil
// or non-IP endpoint on either side never matches.
func EqualHost(a, b net.Addr) bool {
	ipA := Host(a)
	ipB := Host(b)
	if ipA == nil || ipB == nil {
		return false
	}
	return ipA.Equal(ipB)
}

// CopyAddr returns a deep copy of an IP endpoint so later mutation of the
// original cannot be observed through the copy. Unknown address types are
// returned as-is.
func CopyAddr(addr net.Addr) net.Addr {
	switch a := addr.(type) {
	case nil:
		return nil
	case *net.UDPAddr:
		if a == nil {
			return nil
		}
		return &net.UDPAddr{IP: cloneIP(a.IP), Port: a.Port, Zone: a.Zone}
	case *net.TCPAddr:
		if a == nil {
			return nil
		}
		return &net.TCPAddr{IP: cloneIP(a.IP), Port: a.Port, Zone: a.Zone}
	case *net.IPAddr:
		if a == nil {
			return nil
		}
		return &net.IPAddr{IP: cloneIP(a.IP), Zone: a.Zone}
	default:
		return addr
	}
}

// toUDPAddr converts an endpoint to a *net.UDPAddr for binding or sending.
func toUDPAddr(addr net.Addr) (*net.UDPAddr, error) {
	ip, port, ok := extractIPAndPort(addr)
	if !ok {
		return nil, ErrInvalidAddress
	}
	zone := ""
	switch a := addr.(type) {
	case *net.UDPAddr:
		zone = a.Zone
	case *net.TCPAddr:
		zone = a.Zone
	}
	return &net.UDPAddr{IP: cloneIP(ip), Port: port, Zone: zone}, nil
}

// toTCPAddr converts an endpoint to a *net.TCPAddr for listening.
func toTCPAddr(addr net.Addr) (*net.TCPAddr, error) {
	udp, err := toUDPAddr(addr)
	if err != nil {
		return nil, err
	}
	return &net.TCPAddr{IP: udp.IP, Port: udp.Port, Zone: udp.Zone}, nil
}

// extractIPAndPort extracts IP address and port from a net.Addr.
func extractIPAndPort(addr net.Addr) (net.IP, int, bool) {
	switch a := addr.(type) {
	case nil:
		return nil, 0, false
	case *net.TCPAddr:
		if a == nil {
			return nil, 0, false
		}
		return a.IP, a.Port, true
	case *net.UDPAddr:
		if a == nil {
			return nil, 0, false
		}
		return a.IP, a.Port, true
	case *net.IPAddr:
		if a == nil {
			return nil, 0, false
		}
		return a.IP, 0, true
	default:
		return parseIPFromString(addr.String())
	}
}

// parseIPFromString parses IP and port from a "host:port" or bare host string.
func parseIPFromString(addrStr string) (net.IP, int, bool) {
	host, portStr, err := net.SplitHostPort(addrStr)
	if err != nil {
		host = addrStr
		portStr = "0"
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, false
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 0
	}

	return ip, port, true
}

func cloneIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}
