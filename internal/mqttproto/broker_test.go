package mqttproto

import (
	"context"
	"net"
	"testing"
	"time"
)

func startTestBroker(t *testing.T, b *Broker) net.Addr {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go b.Serve(ln)

	return ln.Addr()
}

func dialTestClient(t *testing.T, addr net.Addr, clientID string) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, ClientConfig{Addr: "tcp://" + addr.String(), ClientID: clientID})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func TestPublishSubscribeQoS0(t *testing.T) {
	broker := &Broker{}
	addr := startTestBroker(t, broker)

	sub := dialTestClient(t, addr, "subscriber")
	if err := sub.Subscribe(context.Background(), "edge/+/discovery"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub := dialTestClient(t, addr, "publisher")
	if err := pub.Publish(context.Background(), "edge/device-1/discovery", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if msg.Topic != "edge/device-1/discovery" || string(msg.Payload) != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestPublishQoS1Acked(t *testing.T) {
	broker := &Broker{}
	addr := startTestBroker(t, broker)

	pub := dialTestClient(t, addr, "publisher")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pub.PublishQoS1(ctx, "edge/device-1/data", []byte("payload"), false); err != nil {
		t.Fatalf("publish qos1: %v", err)
	}
}

func TestRetainedMessageDeliveredOnSubscribe(t *testing.T) {
	broker := &Broker{}
	addr := startTestBroker(t, broker)

	pub := dialTestClient(t, addr, "publisher")
	if err := pub.PublishRetain(context.Background(), "edge/device-1/discovery", []byte("announce"), true); err != nil {
		t.Fatalf("publish retain: %v", err)
	}

	// Give the broker a moment to record the retained message before a late subscriber joins.
	time.Sleep(50 * time.Millisecond)

	sub := dialTestClient(t, addr, "late-subscriber")
	if err := sub.Subscribe(context.Background(), "edge/+/discovery"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !msg.Retain || string(msg.Payload) != "announce" {
		t.Errorf("expected retained announce message, got %+v", msg)
	}
}

func TestAuthenticatorRejectsBadCredentials(t *testing.T) {
	broker := &Broker{Authenticator: denyAuthenticator{}}
	addr := startTestBroker(t, broker)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Connect(ctx, ClientConfig{Addr: "tcp://" + addr.String(), ClientID: "intruder"})
	if err == nil {
		t.Fatal("expected connect to fail")
	}
}

type denyAuthenticator struct{}

func (denyAuthenticator) Authenticate(clientID, username string, password []byte) bool { return false }
func (denyAuthenticator) ACL(clientID, topic string, write bool) bool                  { return true }
