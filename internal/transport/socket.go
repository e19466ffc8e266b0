package transport

import (
	"context"
	"fmt"
	"net"
)

// listen binds the shared UDP socket on 0.0.0.0:port with the socket
// options applied via the platform-specific listenConfig.
func listen(port int) (net.PacketConn, error) {
	lc := listenConfig()
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding udp socket on port %d: %w", port, err)
	}
	return conn, nil
}
