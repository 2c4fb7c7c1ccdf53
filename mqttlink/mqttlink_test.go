package mqttlink

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/edgelink/edgenode/internal/mqttproto"
)

// contractTest runs the same publish/subscribe contract against any Backend.
func contractTest(t *testing.T, backend Backend, host string, port int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, err := backend.Connect(ctx, "pub-1", host, port)
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer pub.Close()

	sub, err := backend.Connect(ctx, "sub-1", host, port)
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer sub.Close()

	if err := sub.Subscribe(ctx, "edge/inference/device-x/topic/#"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := pub.Publish(ctx, "edge/inference/device-x/topic/", []byte("127.0.0.1:9000")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	payload, topic, err := sub.Message(ctx)
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if string(payload) != "127.0.0.1:9000" {
		t.Errorf("expected payload 127.0.0.1:9000, got %q", payload)
	}
	if topic != "edge/inference/device-x/topic/" {
		t.Errorf("unexpected topic %q", topic)
	}
}

func TestProtoBackendContract(t *testing.T) {
	broker := &mqttproto.Broker{}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go broker.Serve(ln)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	contractTest(t, Proto{}, host, port)
}

func TestPahoBackendContract(t *testing.T) {
	if os.Getenv("MQTTLINK_TEST_BROKER_ADDR") == "" {
		t.Skip("set MQTTLINK_TEST_BROKER_ADDR to run the Paho backend contract test against an external broker")
	}
	host, portStr, err := net.SplitHostPort(os.Getenv("MQTTLINK_TEST_BROKER_ADDR"))
	if err != nil {
		t.Fatalf("parse MQTTLINK_TEST_BROKER_ADDR: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	contractTest(t, Paho{}, host, port)
}
