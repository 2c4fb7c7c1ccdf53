package mqttproto

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ClientConfig is the configuration for an MQTT client.
type ClientConfig struct {
	// Addr is the broker address in URL format:
	//   - tcp://host:port (default port 1883)
	//   - tls://host:port or mqtts://host:port (default port 8883)
	Addr string

	// ClientID is the client identifier.
	ClientID string

	// Username for authentication (optional).
	Username string

	// Password for authentication (optional).
	Password []byte

	// KeepAlive is the keep-alive interval in seconds.
	// Zero selects the default of 60 seconds.
	KeepAlive uint16

	// CleanSession flag. The caller must set this explicitly; the zero
	// value is false, which is a valid clean-session=false request.
	CleanSession bool

	// AutoKeepalive enables automatic keep-alive ping.
	// When enabled, the client sends PINGREQ at KeepAlive/2 intervals.
	AutoKeepalive bool

	// TLSConfig is used for tls:// connections. If nil, a default
	// configuration is derived from the host in Addr.
	TLSConfig *tls.Config

	// MaxPacketSize is the maximum packet size. Default MaxPacketSize (1MB).
	MaxPacketSize int

	// ConnectTimeout is the timeout for establishing a connection.
	// Default is 30 seconds.
	ConnectTimeout time.Duration

	// Dialer overrides the transport dial. If nil, DefaultDialer is used.
	Dialer func(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error)
}

func (c *ClientConfig) setDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = 60
	}
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = MaxPacketSize
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
}

// Client is an MQTT 3.1.1 client supporting QoS 0 and QoS 1 publish.
type Client struct {
	config ClientConfig
	conn   net.Conn
	reader *bufio.Reader
	writer io.Writer

	mu      sync.Mutex // protects writes
	readMu  sync.Mutex // protects reads
	running atomic.Bool
	nextPID atomic.Uint32

	stopKeepalive chan struct{}
}

// Connect establishes a connection to an MQTT broker and completes the
// MQTT handshake.
func Connect(ctx context.Context, config ClientConfig) (*Client, error) {
	config.setDefaults()

	dialer := config.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	conn, err := dialer(dialCtx, config.Addr, config.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("mqttproto: dial: %w", err)
	}

	client := &Client{
		config:        config,
		conn:          conn,
		reader:        bufio.NewReader(conn),
		writer:        conn,
		stopKeepalive: make(chan struct{}),
	}
	client.running.Store(true)
	client.nextPID.Store(1)

	if err := client.connect(); err != nil {
		conn.Close()
		return nil, err
	}

	if config.AutoKeepalive && config.KeepAlive > 0 {
		go client.keepaliveLoop()
	}

	return client, nil
}

func (c *Client) connect() error {
	connect := &V4Connect{
		ClientID:     c.config.ClientID,
		Username:     c.config.Username,
		Password:     c.config.Password,
		CleanSession: c.config.CleanSession,
		KeepAlive:    c.config.KeepAlive,
	}

	c.mu.Lock()
	err := WriteV4Packet(c.writer, connect)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("mqttproto: send connect: %w", err)
	}

	c.readMu.Lock()
	packet, err := ReadV4Packet(c.reader, c.config.MaxPacketSize)
	c.readMu.Unlock()
	if err != nil {
		return fmt.Errorf("mqttproto: read connack: %w", err)
	}

	connack, ok := packet.(*V4ConnAck)
	if !ok {
		return &UnexpectedPacketError{Expected: "CONNACK", Got: PacketTypeName(packet.packetType())}
	}

	if connack.ReturnCode != ConnectAccepted {
		return &ConnectError{Code: connack.ReturnCode}
	}

	return nil
}

// Publish sends a message to the broker at QoS 0 (fire and forget).
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.publish(topic, payload, false, AtMostOnce)
}

// PublishRetain sends a message with the retain flag at QoS 0.
func (c *Client) PublishRetain(ctx context.Context, topic string, payload []byte, retain bool) error {
	return c.publish(topic, payload, retain, AtMostOnce)
}

// PublishQoS1 sends a message at QoS 1 and waits for the broker's PUBACK.
// The broker does not retransmit lost PUBACK frames; callers that need
// redelivery on failure should retry at a higher level.
func (c *Client) PublishQoS1(ctx context.Context, topic string, payload []byte, retain bool) error {
	if !c.running.Load() {
		return ErrClosed
	}

	packetID := uint16(c.nextPID.Add(1))

	c.mu.Lock()
	err := WriteV4Packet(c.writer, &V4Publish{
		Topic:    topic,
		Payload:  payload,
		Retain:   retain,
		QoS:      AtLeastOnce,
		PacketID: packetID,
	})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.readMu.Lock()
	packet, err := ReadV4Packet(c.reader, c.config.MaxPacketSize)
	c.readMu.Unlock()
	if err != nil {
		return err
	}

	ack, ok := packet.(*V4PubAck)
	if !ok {
		return &UnexpectedPacketError{Expected: "PUBACK", Got: PacketTypeName(packet.packetType())}
	}
	if ack.PacketID != packetID {
		return &ProtocolError{Message: "puback packet id mismatch"}
	}

	return nil
}

func (c *Client) publish(topic string, payload []byte, retain bool, qos QoS) error {
	if !c.running.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return WriteV4Packet(c.writer, &V4Publish{
		Topic:   topic,
		Payload: payload,
		Retain:  retain,
		QoS:     qos,
	})
}

// Subscribe subscribes to topics at QoS 0.
func (c *Client) Subscribe(ctx context.Context, topics ...string) error {
	if !c.running.Load() {
		return ErrClosed
	}
	if len(topics) == 0 {
		return nil
	}

	filters := make([]SubscribeTopic, len(topics))
	for i, t := range topics {
		filters[i] = SubscribeTopic{Filter: t, QoS: AtMostOnce}
	}

	packetID := uint16(c.nextPID.Add(1))

	c.mu.Lock()
	err := WriteV4Packet(c.writer, &V4Subscribe{PacketID: packetID, Topics: filters})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.readMu.Lock()
	packet, err := ReadV4Packet(c.reader, c.config.MaxPacketSize)
	c.readMu.Unlock()
	if err != nil {
		return err
	}

	suback, ok := packet.(*V4SubAck)
	if !ok {
		return &UnexpectedPacketError{Expected: "SUBACK", Got: PacketTypeName(packet.packetType())}
	}

	for _, code := range suback.ReturnCodes {
		if code == 0x80 {
			return ErrACLDenied
		}
	}

	return nil
}

// Unsubscribe unsubscribes from topics.
func (c *Client) Unsubscribe(ctx context.Context, topics ...string) error {
	if !c.running.Load() {
		return ErrClosed
	}
	if len(topics) == 0 {
		return nil
	}

	packetID := uint16(c.nextPID.Add(1))

	c.mu.Lock()
	err := WriteV4Packet(c.writer, &V4Unsubscribe{PacketID: packetID, Topics: topics})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.readMu.Lock()
	packet, err := ReadV4Packet(c.reader, c.config.MaxPacketSize)
	c.readMu.Unlock()
	if err != nil {
		return err
	}

	_, ok := packet.(*V4UnsubAck)
	if !ok {
		return &UnexpectedPacketError{Expected: "UNSUBACK", Got: PacketTypeName(packet.packetType())}
	}

	return nil
}

// Recv receives the next message from the broker, acknowledging QoS 1
// publishes as they arrive. It blocks until a message is received or the
// context is canceled.
func (c *Client) Recv(ctx context.Context) (*Message, error) {
	if !c.running.Load() {
		return nil, ErrClosed
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if deadline, ok := ctx.Deadline(); ok {
			c.conn.SetReadDeadline(deadline)
		}

		c.readMu.Lock()
		packet, err := ReadV4Packet(c.reader, c.config.MaxPacketSize)
		c.readMu.Unlock()
		if err != nil {
			c.conn.SetReadDeadline(time.Time{})
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return nil, err
		}
		c.conn.SetReadDeadline(time.Time{})

		switch p := packet.(type) {
		case *V4Publish:
			if p.QoS == AtLeastOnce {
				c.mu.Lock()
				WriteV4Packet(c.writer, &V4PubAck{PacketID: p.PacketID})
				c.mu.Unlock()
			}
			return &Message{Topic: p.Topic, Payload: p.Payload, Retain: p.Retain, QoS: p.QoS}, nil
		case *V4PingResp:
			continue
		case *V4Disconnect:
			c.running.Store(false)
			return nil, ErrClosed
		default:
			continue
		}
	}
}

// RecvTimeout receives a message with a timeout.
// Returns nil, nil if the timeout expires without receiving a message.
func (c *Client) RecvTimeout(timeout time.Duration) (*Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	msg, err := c.Recv(ctx)
	if err == context.DeadlineExceeded {
		return nil, nil
	}
	return msg, err
}

// Ping sends a PINGREQ. It does not wait for PINGRESP.
func (c *Client) Ping(ctx context.Context) error {
	if !c.running.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	err := WriteV4Packet(c.writer, &V4PingReq{})
	c.mu.Unlock()

	return err
}

// Close closes the connection to the broker.
func (c *Client) Close() error {
	if !c.running.Swap(false) {
		return nil
	}

	close(c.stopKeepalive)

	c.mu.Lock()
	WriteV4Packet(c.writer, &V4Disconnect{})
	c.mu.Unlock()

	return c.conn.Close()
}

// IsRunning returns true if the client is connected.
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// ClientID returns the client ID.
func (c *Client) ClientID() string {
	return c.config.ClientID
}

func (c *Client) keepaliveLoop() {
	interval := time.Duration(c.config.KeepAlive/2) * time.Second
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopKeepalive:
			return
		case <-ticker.C:
			if !c.running.Load() {
				return
			}
			if err := c.Ping(context.Background()); err != nil {
				c.running.Store(false)
				return
			}
		}
	}
}
