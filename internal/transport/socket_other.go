//go:build !unix

package transport

import "net"

// listenConfig on non-unix platforms uses Go's defaults. SO_REUSEPORT
// has no portable equivalent outside unix, so only whatever address
// reuse the OS grants by default applies — rtbus targets unix-like
// single-board devices, so this path exists for compilation on a
// development workstation rather than for parity.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
