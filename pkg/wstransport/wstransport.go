// Package wstransport is a sample edge.CustomTransport built on
// gorilla/websocket, demonstrating the pluggable-backend extension point
// for ConnectType Custom against something other than raw TCP or MQTT.
package wstransport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/edgelink/edgenode/edge"
	"github.com/edgelink/edgenode/edgedata"
)

// Transport connects to a peer's websocket endpoint and exchanges
// serialized edgedata.Data frames as binary messages.
type Transport struct {
	node *edge.Node
	path string

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    sync.WaitGroup
	running atomic.Bool
}

// New returns a Transport factory suitable for edge.CustomTransportFactory.
// path is the websocket endpoint path appended to the node's dest
// host:port, e.g. "/edge".
func New(path string) edge.CustomTransportFactory {
	return func(node *edge.Node) (edge.CustomTransport, error) {
		return &Transport{node: node, path: path}, nil
	}
}

func (t *Transport) Start(ctx context.Context, node *edge.Node) error {
	t.node = node
	return nil
}

func (t *Transport) Stop() error {
	return t.Disconnect()
}

func (t *Transport) Connect(ctx context.Context, destHost string, destPort int) error {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", destHost, destPort), Path: t.path}

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return fmt.Errorf("wstransport: dial %s: %w", u.String(), err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.running.Store(true)

	recvCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done.Add(1)
	go t.readLoop(recvCtx, conn)

	t.node.Deliver(edge.EventConnectionCompleted, nil, nil)
	return nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.done.Done()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		data, err := edgedata.Deserialize(payload)
		if err != nil {
			continue
		}
		t.node.Deliver(edge.EventNewDataReceived, data, nil)
	}

	t.running.Store(false)
	t.node.Deliver(edge.EventConnectionClosed, nil, nil)
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	if conn != nil {
		conn.Close()
	}
	t.done.Wait()
	return nil
}

func (t *Transport) Subscribe(ctx context.Context) error {
	return nil
}

func (t *Transport) IsConnected() bool {
	return t.running.Load()
}

func (t *Transport) Send(data *edgedata.Data) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("wstransport: not connected")
	}

	blob, err := data.Serialize()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, blob)
}

func (t *Transport) SetInfo(key, value string) error {
	if key == "PATH" {
		t.path = value
	}
	return nil
}

func (t *Transport) GetInfo(key string) (string, error) {
	switch key {
	case "PATH":
		return t.path, nil
	case "CONNECTED":
		return strconv.FormatBool(t.running.Load()), nil
	default:
		return "", fmt.Errorf("wstransport: unknown key %q", key)
	}
}
