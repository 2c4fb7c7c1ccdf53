package edge

import (
	"context"
	"errors"

	"github.com/edgelink/edgenode/edgedata"
)

// transport is the dispatch surface routed by connect_type: tcp, mqtt,
// hybrid (mqtt discovery + tcp payload), or a statically linked custom
// backend.
type transport interface {
	connect(ctx context.Context, destHost string, destPort int) error
	disconnect() error
	send(data *edgedata.Data) error
	subscribe(ctx context.Context) error
	isConnected() bool
	release() error
}

// tcpTransport dials direct peer-to-peer TCP connections and fans sends
// out over the connection table's sink halves.
type tcpTransport struct {
	node *Node
}

func (t *tcpTransport) connect(ctx context.Context, destHost string, destPort int) error {
	nc, err := dialTCP(ctx, destHost, destPort)
	if err != nil {
		return newError("Connect", KindConnectionFailure, err)
	}

	clientID, err := t.node.clientHandshake(ctx, nc)
	if err != nil {
		nc.Close()
		var pv *protocolViolation
		if errors.As(err, &pv) {
			return newError("Connect", KindIO, err)
		}
		return newError("Connect", KindConnectionFailure, err)
	}

	t.node.mu.Lock()
	t.node.clientID = clientID
	pair := t.node.table.getOrInsert(clientID)
	pair.sink = newConn(nc)
	t.node.mu.Unlock()

	go t.node.messageLoop(pair.sink, clientID)
	t.node.invokeCallback(EventConnectionCompleted, nil, nil)
	return nil
}

func (t *tcpTransport) disconnect() error {
	t.node.mu.Lock()
	t.node.table.clear()
	t.node.mu.Unlock()
	t.node.invokeCallback(EventConnectionClosed, nil, nil)
	return nil
}

func (t *tcpTransport) send(data *edgedata.Data) error {
	return t.node.sendOverTable(data)
}

func (t *tcpTransport) subscribe(ctx context.Context) error {
	return nil
}

func (t *tcpTransport) isConnected() bool {
	t.node.mu.Lock()
	defer t.node.mu.Unlock()
	for _, p := range t.node.table.all() {
		if p.isConnected() {
			return true
		}
	}
	return false
}

func (t *tcpTransport) release() error {
	return t.disconnect()
}
