package edge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/mqttlink"
)

// discoveryTopicPrefix is the retained-message namespace hybrid nodes use
// to publish and discover each other's listener address.
const discoveryTopicPrefix = "edge/inference/"

// hybridTransport uses MQTT only for peer discovery (a retained message
// per device, keyed by id, holding that device's host:port) and falls
// back to a direct tcpTransport connection for the actual payload path
// once a peer address has been resolved.
type hybridTransport struct {
	node *Node
	tcp  *tcpTransport

	mu     sync.Mutex
	broker mqttlink.Broker
	cancel context.CancelFunc
}

func discoveryTopic(deviceID, topic string) string {
	return discoveryTopicPrefix + "device-" + deviceID + "/" + topic + "/"
}

func discoveryWildcard(topic string) string {
	return discoveryTopicPrefix + "+/" + topic + "/#"
}

// startServer publishes this node's own listener address as a retained
// discovery message, so hybrid clients can resolve it without being told
// a destination host/port up front. Only meaningful for server-role nodes.
func (t *hybridTransport) startServer(ctx context.Context) error {
	broker, err := t.node.mqttBackend.Connect(ctx, t.node.id, t.node.destHost, t.node.destPort)
	if err != nil {
		return newError("Start", KindConnectionFailure, err)
	}

	t.mu.Lock()
	t.broker = broker
	t.mu.Unlock()

	topic := discoveryTopic(t.node.id, t.node.topic)
	addr := t.node.addrLocked()
	return broker.Publish(ctx, topic, []byte(addr))
}

func (t *hybridTransport) connect(ctx context.Context, destHost string, destPort int) error {
	broker, err := t.node.mqttBackend.Connect(ctx, t.node.id, destHost, destPort)
	if err != nil {
		return newError("Connect", KindConnectionFailure, err)
	}

	t.mu.Lock()
	t.broker = broker
	t.mu.Unlock()

	wildcard := discoveryWildcard(t.node.topic)
	if err := broker.Subscribe(ctx, wildcard); err != nil {
		return newError("Connect", KindConnectionFailure, err)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.resolveLoop(recvCtx, broker)

	return nil
}

// resolveLoop polls the retained discovery messages for any peer address
// and, once one shows up, opens the real payload connection over TCP.
func (t *hybridTransport) resolveLoop(ctx context.Context, broker mqttlink.Broker) {
	for {
		payload, _, err := broker.Message(ctx)
		if err != nil {
			return
		}

		host, port, ok := parseHostPort(string(payload))
		if !ok {
			continue
		}

		if err := t.tcp.connect(ctx, host, port); err != nil {
			t.node.invokeCallback(EventConnectionFailure, nil, nil)
			continue
		}
		return
	}
}

func parseHostPort(addr string) (string, int, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, false
	}
	host, portStr := addr[:idx], addr[idx+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}

func (t *hybridTransport) disconnect() error {
	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	broker := t.broker
	t.broker = nil
	t.mu.Unlock()

	if broker != nil {
		broker.Close()
	}
	return t.tcp.disconnect()
}

func (t *hybridTransport) send(data *edgedata.Data) error {
	return t.tcp.send(data)
}

func (t *hybridTransport) subscribe(ctx context.Context) error {
	t.mu.Lock()
	broker := t.broker
	t.mu.Unlock()
	if broker == nil {
		return newError("Subscribe", KindConnectionFailure, fmt.Errorf("hybrid transport not connected"))
	}
	return broker.Subscribe(ctx, discoveryWildcard(t.node.topic))
}

func (t *hybridTransport) isConnected() bool {
	return t.tcp.isConnected()
}

func (t *hybridTransport) release() error {
	return t.disconnect()
}
