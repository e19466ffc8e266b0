//go:build unix

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfig returns a net.ListenConfig whose Control callback sets
// SO_REUSEADDR, SO_REUSEPORT, and SO_BROADCAST on the bus socket
// before it's bound. Go's net package has no portable way to request
// SO_REUSEPORT, so this reaches down to golang.org/x/sys/unix, the
// same package the teacher uses for low-level socket and interface
// control.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				opts := []int{unix.SO_REUSEADDR, unix.SO_REUSEPORT, unix.SO_BROADCAST}
				for _, opt := range opts {
					if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1); err != nil {
						sockErr = err
						return
					}
				}
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
}
