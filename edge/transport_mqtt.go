package edge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/mqttlink"
)

// mqttTransport implements pure broker-mode messaging: connect dials the
// broker and subscribes to the node's topic, send publishes a serialized
// edge-data blob, and a background goroutine delivers inbound messages to
// the user event callback.
type mqttTransport struct {
	node *Node

	mu       sync.Mutex
	broker   mqttlink.Broker
	running  atomic.Bool
	cancel   context.CancelFunc
	recvDone sync.WaitGroup
}

func (t *mqttTransport) connect(ctx context.Context, destHost string, destPort int) error {
	broker, err := t.node.mqttBackend.Connect(ctx, t.node.id, destHost, destPort)
	if err != nil {
		return newError("Connect", KindConnectionFailure, err)
	}

	t.mu.Lock()
	t.broker = broker
	t.mu.Unlock()
	t.running.Store(true)

	if err := broker.Subscribe(ctx, t.node.topic); err != nil {
		return newError("Connect", KindConnectionFailure, err)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.recvDone.Add(1)
	go t.recvLoop(recvCtx)

	t.node.invokeCallback(EventConnectionCompleted, nil, nil)
	return nil
}

func (t *mqttTransport) recvLoop(ctx context.Context) {
	defer t.recvDone.Done()

	for {
		t.mu.Lock()
		broker := t.broker
		t.mu.Unlock()
		if broker == nil {
			return
		}

		payload, _, err := broker.Message(ctx)
		if err != nil {
			return
		}

		data, err := edgedata.Deserialize(payload)
		if err != nil {
			continue
		}
		t.node.invokeCallback(EventNewDataReceived, data, nil)
	}
}

func (t *mqttTransport) disconnect() error {
	t.mu.Lock()
	broker := t.broker
	t.broker = nil
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.running.Store(false)
	t.recvDone.Wait()

	if broker != nil {
		if err := broker.Close(); err != nil {
			return newError("Disconnect", KindIO, err)
		}
	}
	t.node.invokeCallback(EventConnectionClosed, nil, nil)
	return nil
}

func (t *mqttTransport) send(data *edgedata.Data) error {
	t.mu.Lock()
	broker := t.broker
	t.mu.Unlock()
	if broker == nil {
		return newError("Send", KindConnectionFailure, fmt.Errorf("mqtt transport not connected"))
	}

	blob, err := data.Serialize()
	if err != nil {
		return newError("Send", KindInvalidParameter, err)
	}

	if err := broker.Publish(context.Background(), t.node.topic, blob); err != nil {
		return newError("Send", KindIO, err)
	}
	return nil
}

func (t *mqttTransport) subscribe(ctx context.Context) error {
	t.mu.Lock()
	broker := t.broker
	t.mu.Unlock()
	if broker == nil {
		return newError("Subscribe", KindConnectionFailure, fmt.Errorf("mqtt transport not connected"))
	}
	return broker.Subscribe(ctx, t.node.topic)
}

func (t *mqttTransport) isConnected() bool {
	t.mu.Lock()
	broker := t.broker
	t.mu.Unlock()
	return broker != nil && broker.IsConnected()
}

func (t *mqttTransport) release() error {
	return t.disconnect()
}
