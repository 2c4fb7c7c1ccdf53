package mqttlink

import (
	"context"
	"fmt"

	"github.com/edgelink/edgenode/internal/mqttproto"
)

// Proto is a Backend implemented directly on top of internal/mqttproto, a
// from-scratch MQTT 3.1.1 client. It needs no external broker process to
// exercise in tests: internal/mqttproto also ships a Broker.
type Proto struct{}

func (Proto) Connect(ctx context.Context, clientID, host string, port int) (Broker, error) {
	client, err := mqttproto.Connect(ctx, mqttproto.ClientConfig{
		Addr:     fmt.Sprintf("tcp://%s:%d", host, port),
		ClientID: clientID,
	})
	if err != nil {
		return nil, fmt.Errorf("mqttlink: proto connect: %w", err)
	}
	return &protoBroker{client: client}, nil
}

type protoBroker struct {
	client *mqttproto.Client
}

func (b *protoBroker) Close() error {
	return b.client.Close()
}

func (b *protoBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.PublishQoS1(ctx, topic, payload, true)
}

func (b *protoBroker) Subscribe(ctx context.Context, topic string) error {
	return b.client.Subscribe(ctx, topic)
}

func (b *protoBroker) Message(ctx context.Context) ([]byte, string, error) {
	msg, err := b.client.Recv(ctx)
	if err != nil {
		return nil, "", err
	}
	return msg.Payload, msg.Topic, nil
}

func (b *protoBroker) IsConnected() bool {
	return b.client.IsRunning()
}
