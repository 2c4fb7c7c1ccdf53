package mqttproto

import (
	"bufio"
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, p V4Packet) V4Packet {
	t.Helper()

	data, err := p.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ReadV4Packet(bufio.NewReader(bytes.NewReader(data)), MaxPacketSize)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestV4ConnectRoundTrip(t *testing.T) {
	want := &V4Connect{
		ClientID:     "edge-node-1",
		Username:     "user",
		Password:     []byte("pass"),
		CleanSession: true,
		KeepAlive:    60,
	}

	got, ok := roundTrip(t, want).(*V4Connect)
	if !ok {
		t.Fatalf("expected *V4Connect, got %T", got)
	}
	if got.ClientID != want.ClientID || got.Username != want.Username || string(got.Password) != string(want.Password) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if got.CleanSession != want.CleanSession || got.KeepAlive != want.KeepAlive {
		t.Errorf("round trip flags mismatch: got %+v, want %+v", got, want)
	}
}

func TestV4PublishRoundTripQoS0(t *testing.T) {
	want := &V4Publish{Topic: "edge/device-1/discovery", Payload: []byte("hello"), Retain: true}

	got, ok := roundTrip(t, want).(*V4Publish)
	if !ok {
		t.Fatalf("expected *V4Publish, got %T", got)
	}
	if got.Topic != want.Topic || string(got.Payload) != string(want.Payload) || got.Retain != want.Retain {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestV4PublishRoundTripQoS1(t *testing.T) {
	want := &V4Publish{Topic: "edge/device-1/data", Payload: []byte("payload"), QoS: AtLeastOnce, PacketID: 42}

	got, ok := roundTrip(t, want).(*V4Publish)
	if !ok {
		t.Fatalf("expected *V4Publish, got %T", got)
	}
	if got.QoS != AtLeastOnce || got.PacketID != 42 {
		t.Errorf("expected QoS 1 packet id 42, got qos=%d id=%d", got.QoS, got.PacketID)
	}
}

func TestV4PubAckRoundTrip(t *testing.T) {
	want := &V4PubAck{PacketID: 7}

	got, ok := roundTrip(t, want).(*V4PubAck)
	if !ok {
		t.Fatalf("expected *V4PubAck, got %T", got)
	}
	if got.PacketID != 7 {
		t.Errorf("expected packet id 7, got %d", got.PacketID)
	}
}

func TestV4SubscribeRoundTrip(t *testing.T) {
	want := &V4Subscribe{
		PacketID: 5,
		Topics: []SubscribeTopic{
			{Filter: "edge/+/discovery", QoS: AtMostOnce},
			{Filter: "edge/+/data", QoS: AtLeastOnce},
		},
	}

	got, ok := roundTrip(t, want).(*V4Subscribe)
	if !ok {
		t.Fatalf("expected *V4Subscribe, got %T", got)
	}
	if len(got.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(got.Topics))
	}
	if got.Topics[1].QoS != AtLeastOnce {
		t.Errorf("expected second filter QoS 1, got %d", got.Topics[1].QoS)
	}
}

func TestReadV4PacketTooLarge(t *testing.T) {
	p := &V4Publish{Topic: "t", Payload: bytes.Repeat([]byte{0}, 100)}
	data, _ := p.encode()

	_, err := ReadV4Packet(bufio.NewReader(bytes.NewReader(data)), 10)
	if err != ErrPacketTooLarge {
		t.Errorf("expected ErrPacketTooLarge, got %v", err)
	}
}
