package mqttproto

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultDialer is the default dialer for MQTT connections over the LAN.
// It supports tcp:// and tls:// schemes; a bare host:port is treated as tcp.
func DefaultDialer(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	if !strings.Contains(addr, "://") {
		if !strings.Contains(addr, ":") {
			addr += ":1883"
		}
		return dialTCP(ctx, addr)
	}

	u, err := url.Parse(addr)
	if err != nil {
		return dialTCP(ctx, addr)
	}

	scheme := strings.ToLower(u.Scheme)
	host := u.Host

	switch scheme {
	case "", "tcp", "mqtt":
		if host == "" {
			host = addr
		}
		if !strings.Contains(host, ":") {
			host += ":1883"
		}
		return dialTCP(ctx, host)

	case "tls", "mqtts", "ssl":
		if !strings.Contains(host, ":") {
			host += ":8883"
		}
		return dialTLS(ctx, host, tlsConfig)

	default:
		return nil, fmt.Errorf("mqttproto: unsupported scheme: %s", scheme)
	}
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func dialTLS(ctx context.Context, addr string, config *tls.Config) (net.Conn, error) {
	if config == nil {
		host, _, _ := net.SplitHostPort(addr)
		config = &tls.Config{ServerName: host}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return tlsConn, nil
}
