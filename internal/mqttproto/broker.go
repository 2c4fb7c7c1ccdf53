package mqttproto

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Broker is an in-process MQTT 3.1.1 broker supporting QoS 0/1 publish,
// wildcard subscriptions, and retained messages. It exists so edge nodes
// running in hybrid transport mode can discover peers over MQTT without an
// external broker, and so tests can exercise the MQTT backend without
// network dependencies.
type Broker struct {
	// Authenticator provides authentication and ACL. If nil, all
	// connections and operations are allowed (AllowAll).
	Authenticator Authenticator

	// Handler is called for every message the broker receives, before routing.
	Handler Handler

	// OnConnect is called when a client completes its handshake.
	OnConnect func(clientID string)

	// OnDisconnect is called when a client's connection ends.
	OnDisconnect func(clientID string)

	// MaxPacketSize is the maximum packet size. Default MaxPacketSize (1MB).
	MaxPacketSize int

	// MaxTopicLength is the maximum topic string length in bytes. Default 256.
	MaxTopicLength int

	// MaxSubscriptionsPerClient caps subscriptions per client. Default 100.
	MaxSubscriptionsPerClient int

	mu                  sync.Mutex
	running             atomic.Bool
	subscriptions       *subscriptionTrie
	clients             map[string]*clientHandle
	clientSubscriptions map[string][]string
	retained            map[string]*Message
}

// clientHandle represents a connected client.
type clientHandle struct {
	clientID string
	msgCh    chan *Message
}

// Serve starts the broker and accepts connections from the listener.
// It blocks until the listener is closed or an error occurs.
func (b *Broker) Serve(ln net.Listener) error {
	if b.running.Swap(true) {
		return ErrAlreadyRunning
	}

	b.init()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if b.running.Load() {
				return err
			}
			return nil
		}

		go b.handleConnection(conn)
	}
}

// ServeConn handles a single connection. Useful for in-process brokers
// wired directly to a net.Pipe or custom listener.
func (b *Broker) ServeConn(conn net.Conn) {
	b.init()
	b.handleConnection(conn)
}

func (b *Broker) init() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions == nil {
		b.subscriptions = newSubscriptionTrie()
	}
	if b.clients == nil {
		b.clients = make(map[string]*clientHandle)
	}
	if b.clientSubscriptions == nil {
		b.clientSubscriptions = make(map[string][]string)
	}
	if b.retained == nil {
		b.retained = make(map[string]*Message)
	}
	if b.MaxPacketSize == 0 {
		b.MaxPacketSize = MaxPacketSize
	}
	if b.MaxTopicLength == 0 {
		b.MaxTopicLength = 256
	}
	if b.MaxSubscriptionsPerClient == 0 {
		b.MaxSubscriptionsPerClient = 100
	}
}

func (b *Broker) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	packet, err := ReadV4Packet(reader, b.MaxPacketSize)
	if err != nil {
		slog.Debug("mqttproto: read connect failed", "error", err)
		return
	}

	connect, ok := packet.(*V4Connect)
	if !ok {
		slog.Debug("mqttproto: expected CONNECT packet", "got", PacketTypeName(packet.packetType()))
		return
	}

	auth := b.Authenticator
	if auth == nil {
		auth = AllowAll{}
	}

	if !auth.Authenticate(connect.ClientID, connect.Username, connect.Password) {
		slog.Debug("mqttproto: authentication failed", "clientID", connect.ClientID)
		if err := WriteV4Packet(conn, &V4ConnAck{ReturnCode: ConnectNotAuthorized}); err != nil {
			slog.Debug("mqttproto: write connack failed", "error", err)
		}
		return
	}

	if err := WriteV4Packet(conn, &V4ConnAck{ReturnCode: ConnectAccepted}); err != nil {
		slog.Debug("mqttproto: write connack failed", "error", err)
		return
	}

	handle := &clientHandle{
		clientID: connect.ClientID,
		msgCh:    make(chan *Message, 100),
	}

	b.mu.Lock()
	var oldHandle *clientHandle
	var oldTopics []string
	if old, exists := b.clients[connect.ClientID]; exists {
		close(old.msgCh)
		oldHandle = old
		oldTopics = b.clientSubscriptions[connect.ClientID]
		delete(b.clientSubscriptions, connect.ClientID)
	}
	b.clients[connect.ClientID] = handle
	b.mu.Unlock()

	if oldHandle != nil {
		b.removeClientSubscriptions(oldTopics, oldHandle)
	}

	if b.OnConnect != nil {
		b.OnConnect(connect.ClientID)
	}

	slog.Info("mqttproto: client connected", "clientID", connect.ClientID)

	b.clientLoop(conn, reader, connect.ClientID, connect.KeepAlive, handle, auth)

	b.cleanupClient(connect.ClientID, handle)

	if b.OnDisconnect != nil {
		b.OnDisconnect(connect.ClientID)
	}

	slog.Info("mqttproto: client disconnected", "clientID", connect.ClientID)
}

func (b *Broker) clientLoop(conn net.Conn, reader *bufio.Reader, clientID string, keepAlive uint16, handle *clientHandle, auth Authenticator) {
	var timeout time.Duration
	if keepAlive > 0 {
		timeout = time.Duration(keepAlive*3/2) * time.Second
	}

	readCh := make(chan V4Packet, 1)
	errCh := make(chan error, 1)
	doneCh := make(chan struct{})

	go func() {
		defer close(errCh)
		for {
			packet, err := ReadV4Packet(reader, b.MaxPacketSize)
			if err != nil {
				select {
				case errCh <- err:
				case <-doneCh:
				}
				return
			}
			select {
			case readCh <- packet:
			case <-doneCh:
				return
			}
		}
	}()

	defer close(doneCh)

	for {
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timeoutCh = time.After(timeout)
		}

		select {
		case msg := <-handle.msgCh:
			err := WriteV4Packet(conn, &V4Publish{
				Topic:   msg.Topic,
				Payload: msg.Payload,
				Retain:  msg.Retain,
				QoS:     msg.QoS,
			})
			if err != nil {
				slog.Debug("mqttproto: write publish failed", "error", err)
				return
			}

		case packet := <-readCh:
			switch p := packet.(type) {
			case *V4Publish:
				b.handlePublish(clientID, p, auth)
				if p.QoS == AtLeastOnce {
					WriteV4Packet(conn, &V4PubAck{PacketID: p.PacketID})
				}
			case *V4Subscribe:
				codes, retained := b.handleSubscribe(clientID, handle, p.Topics, auth)
				WriteV4Packet(conn, &V4SubAck{PacketID: p.PacketID, ReturnCodes: codes})
				for _, msg := range retained {
					WriteV4Packet(conn, &V4Publish{Topic: msg.Topic, Payload: msg.Payload, Retain: true, QoS: AtMostOnce})
				}
			case *V4Unsubscribe:
				b.handleUnsubscribe(clientID, p.Topics)
				WriteV4Packet(conn, &V4UnsubAck{PacketID: p.PacketID})
			case *V4PingReq:
				WriteV4Packet(conn, &V4PingResp{})
			case *V4Disconnect:
				return
			}

		case err := <-errCh:
			if err != io.EOF {
				slog.Debug("mqttproto: read error", "error", err)
			}
			return

		case <-timeoutCh:
			slog.Debug("mqttproto: keepalive timeout", "clientID", clientID)
			return
		}
	}
}

func (b *Broker) handlePublish(clientID string, p *V4Publish, auth Authenticator) {
	if len(p.Topic) > b.MaxTopicLength {
		slog.Debug("mqttproto: topic too long", "clientID", clientID, "len", len(p.Topic), "max", b.MaxTopicLength)
		return
	}

	if len(p.Topic) > 0 && p.Topic[0] == '$' {
		slog.Debug("mqttproto: client cannot publish to $ topic", "clientID", clientID, "topic", p.Topic)
		return
	}

	if !auth.ACL(clientID, p.Topic, true) {
		slog.Debug("mqttproto: acl denied publish", "clientID", clientID, "topic", p.Topic)
		return
	}

	msg := &Message{Topic: p.Topic, Payload: p.Payload, Retain: p.Retain, QoS: p.QoS}

	if msg.Retain {
		b.mu.Lock()
		if len(msg.Payload) == 0 {
			delete(b.retained, msg.Topic)
		} else {
			stored := *msg
			b.retained[msg.Topic] = &stored
		}
		b.mu.Unlock()
	}

	if b.Handler != nil {
		b.Handler.HandleMessage(clientID, msg)
	}

	b.routeMessage(msg)
}

// handleSubscribe records the subscription and returns the SUBACK codes
// together with any retained messages matching the new filters; the
// caller writes the SUBACK first and then delivers those retained
// messages, per MQTT 3.1.1 section 3.8.4.
func (b *Broker) handleSubscribe(clientID string, handle *clientHandle, topics []SubscribeTopic, auth Authenticator) ([]byte, []*Message) {
	codes := make([]byte, len(topics))
	var retained []*Message

	for i, t := range topics {
		b.mu.Lock()
		currentCount := len(b.clientSubscriptions[clientID])
		b.mu.Unlock()
		if b.MaxSubscriptionsPerClient > 0 && currentCount >= b.MaxSubscriptionsPerClient {
			slog.Debug("mqttproto: subscription limit exceeded", "clientID", clientID, "current", currentCount, "max", b.MaxSubscriptionsPerClient)
			codes[i] = 0x80
			continue
		}

		if !auth.ACL(clientID, t.Filter, false) {
			slog.Debug("mqttproto: acl denied subscribe", "clientID", clientID, "topic", t.Filter)
			codes[i] = 0x80
			continue
		}

		if err := b.subscriptions.Insert(t.Filter, handle); err != nil {
			slog.Debug("mqttproto: subscribe failed", "error", err)
			codes[i] = 0x80
			continue
		}

		b.mu.Lock()
		b.clientSubscriptions[clientID] = append(b.clientSubscriptions[clientID], t.Filter)
		for topic, msg := range b.retained {
			if TopicMatches(t.Filter, topic) {
				retained = append(retained, msg)
			}
		}
		b.mu.Unlock()

		codes[i] = 0x00
	}

	return codes, retained
}

func (b *Broker) handleUnsubscribe(clientID string, topics []string) {
	for _, topic := range topics {
		b.subscriptions.Remove(topic, func(h *clientHandle) bool {
			return h.clientID == clientID
		})
	}

	b.mu.Lock()
	if subs, ok := b.clientSubscriptions[clientID]; ok {
		drop := make(map[string]struct{}, len(topics))
		for _, t := range topics {
			drop[t] = struct{}{}
		}
		kept := make([]string, 0, len(subs))
		for _, s := range subs {
			if _, found := drop[s]; !found {
				kept = append(kept, s)
			}
		}
		b.clientSubscriptions[clientID] = kept
	}
	b.mu.Unlock()
}

func (b *Broker) routeMessage(msg *Message) {
	handles := b.subscriptions.Get(msg.Topic)
	for _, handle := range handles {
		select {
		case handle.msgCh <- msg:
		default:
			slog.Debug("mqttproto: message dropped (channel full)", "clientID", handle.clientID)
		}
	}
}

func (b *Broker) removeClientSubscriptions(topics []string, handle *clientHandle) {
	for _, topic := range topics {
		b.subscriptions.Remove(topic, func(h *clientHandle) bool {
			return h == handle
		})
	}
}

func (b *Broker) cleanupClient(clientID string, handle *clientHandle) {
	b.mu.Lock()
	var topics []string
	if current, exists := b.clients[clientID]; exists && current == handle {
		delete(b.clients, clientID)
		topics = b.clientSubscriptions[clientID]
		delete(b.clientSubscriptions, clientID)
	}
	b.mu.Unlock()

	if topics == nil {
		return
	}

	b.removeClientSubscriptions(topics, handle)
}

// Publish sends a message from the broker itself to all matching
// subscribers, bypassing the wire protocol, so an embedding process can
// seed messages (such as retained announcements) without a loopback
// client connection.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	b.init()

	msg := &Message{Topic: topic, Payload: payload, Retain: retain}

	if retain {
		b.mu.Lock()
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			stored := *msg
			b.retained[topic] = &stored
		}
		b.mu.Unlock()
	}

	b.routeMessage(msg)
	return nil
}

// Close marks the broker stopped, so that Serve returns nil instead of the
// Accept error once its listener is closed. It does not close the
// listener itself, so Serve keeps accepting until the caller does; nor
// does it close in-flight connections.
func (b *Broker) Close() error {
	b.running.Store(false)
	return nil
}

// TopicMatches reports whether a subscription filter matches a topic,
// honoring the MQTT wildcards + (single level) and # (multi level).
func TopicMatches(filter, topic string) bool {
	filterParts := splitTopic(filter)
	topicParts := splitTopic(topic)

	if len(topicParts) > 0 && len(topicParts[0]) > 0 && topicParts[0][0] == '$' {
		if len(filterParts) == 0 {
			return false
		}
		if filterParts[0] == "#" || filterParts[0] == "+" {
			return false
		}
	}

	fIdx, tIdx := 0, 0
	for fIdx < len(filterParts) {
		part := filterParts[fIdx]

		if part == "#" {
			return true
		}

		if tIdx >= len(topicParts) {
			return false
		}

		if part == "+" || part == topicParts[tIdx] {
			fIdx++
			tIdx++
			continue
		}

		return false
	}

	return fIdx == len(filterParts) && tIdx == len(topicParts)
}

func splitTopic(topic string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(topic); i++ {
		if topic[i] == '/' {
			parts = append(parts, topic[start:i])
			start = i + 1
		}
	}
	parts = append(parts, topic[start:])
	return parts
}
