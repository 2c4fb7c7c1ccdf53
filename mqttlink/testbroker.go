package mqttlink

import (
	"net"

	mochimqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// NewTestBroker starts an in-process mochi-mqtt broker on an ephemeral
// port, for exercising Paho against a real MQTT broker in tests without an
// external process. Callers must Close it.
func NewTestBroker() (*TestBroker, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	addr := l.Addr().String()
	l.Close()

	srv := mochimqtt.New(nil)
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "test", Address: addr})
	if err := srv.AddListener(tcp); err != nil {
		return nil, err
	}

	go srv.Serve()

	return &TestBroker{srv: srv, addr: addr}, nil
}

// TestBroker is a running in-process broker plus its bound address.
type TestBroker struct {
	srv  *mochimqtt.Server
	addr string
}

// Addr returns the broker's listening address as "host:port".
func (b *TestBroker) Addr() string {
	return b.addr
}

// Close shuts the broker down.
func (b *TestBroker) Close() error {
	return b.srv.Close()
}
