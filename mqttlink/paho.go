package mqttlink

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Paho is a Backend implemented on github.com/eclipse/paho.golang,
// grounded on the auto-reconnecting ConnectionManager pattern.
type Paho struct {
	// KeepAlive in seconds; defaults to 20 like the teacher's dialer.
	KeepAlive uint16
}

func (p Paho) Connect(ctx context.Context, clientID, host string, port int) (Broker, error) {
	keepAlive := p.KeepAlive
	if keepAlive == 0 {
		keepAlive = 20
	}

	addr, err := url.Parse(fmt.Sprintf("mqtt://%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("mqttlink: parse broker address: %w", err)
	}

	b := &pahoBroker{incoming: make(chan pahoMessage, 32)}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{addr},
		CleanStartOnInitialConnection: true,
		KeepAlive:                     keepAlive,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			b.connected.Store(true)
		},
		OnConnectError: func(error) {
			b.connected.Store(false)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					select {
					case b.incoming <- pahoMessage{topic: pr.Packet.Topic, payload: pr.Packet.Payload}:
					default:
					}
					return true, nil
				},
			},
		},
	}

	cm, err := autopaho.NewConnection(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("mqttlink: paho connect: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return nil, fmt.Errorf("mqttlink: paho await connection: %w", err)
	}
	b.connected.Store(true)
	b.cm = cm

	return b, nil
}

type pahoMessage struct {
	topic   string
	payload []byte
}

type pahoBroker struct {
	cm        *autopaho.ConnectionManager
	incoming  chan pahoMessage
	connected atomic.Bool
}

func (b *pahoBroker) Close() error {
	b.connected.Store(false)
	return b.cm.Disconnect(context.Background())
}

func (b *pahoBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	})
	return err
}

func (b *pahoBroker) Subscribe(ctx context.Context, topic string) error {
	_, err := b.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic}},
	})
	return err
}

func (b *pahoBroker) Message(ctx context.Context) ([]byte, string, error) {
	select {
	case m := <-b.incoming:
		return m.payload, m.topic, nil
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (b *pahoBroker) IsConnected() bool {
	return b.connected.Load()
}
