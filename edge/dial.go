package edge

import (
	"context"
	"net"
	"strconv"
)

// dialTCP dials destHost:destPort and enables TCP_NODELAY, matching the
// socket options applied to every accepted connection.
func dialTCP(ctx context.Context, destHost string, destPort int) (net.Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(destHost, strconv.Itoa(destPort)))
	if err != nil {
		return nil, err
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return nc, nil
}
