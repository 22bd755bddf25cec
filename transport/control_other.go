//go:build !unix

package transport

import "syscall"

// reuseAddrControl is a no-op where SO_REUSEADDR would allow port hijacking.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
