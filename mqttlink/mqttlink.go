// Package mqttlink adapts two interchangeable MQTT client implementations
// to a single narrow interface used by edge's MQTT and hybrid transports:
// connect, close, publish (retained, QoS 1), subscribe, and a blocking
// message receive. Both backends are linked in by default, not chosen by
// a build tag; edge.New always gives a Node the Proto backend, and Paho is
// used only by code that calls this package directly.
package mqttlink

import "context"

// Backend dials a broker and returns a Broker handle bound to one client
// session.
type Backend interface {
	Connect(ctx context.Context, clientID, host string, port int) (Broker, error)
}

// Broker is the stable internal MQTT contract. Publish always retains and
// sends at QoS 1, matching the single publish mode the hybrid discovery
// protocol needs; callers that need other QoS/retain combinations use the
// backend's native client directly.
type Broker interface {
	Close() error
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) error
	// Message blocks until a message arrives or ctx is done, returning its
	// payload and topic.
	Message(ctx context.Context) ([]byte, string, error)
	IsConnected() bool
}
