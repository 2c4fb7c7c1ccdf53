package edge

import (
	"context"
	"fmt"

	"github.com/edgelink/edgenode/edgedata"
)

// Start builds this node's transport for its configured ConnectType and
// opens the listener every node type runs (server-role nodes accept fresh
// peers on it, client-role nodes accept the reverse leg of connections
// they dial themselves). Hybrid server-role nodes additionally publish a
// retained discovery message advertising their listener address.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkAlive("Start"); err != nil {
		return err
	}
	if n.transport != nil {
		return newError("Start", KindInvalidParameter, fmt.Errorf("node already started"))
	}

	switch n.connectType {
	case TCP:
		n.transport = &tcpTransport{node: n}
	case MQTT:
		n.transport = &mqttTransport{node: n}
	case Hybrid:
		n.transport = &hybridTransport{node: n, tcp: &tcpTransport{node: n}}
	case Custom:
		impl, err := n.customFactory(n)
		if err != nil {
			return newError("Start", KindConnectionFailure, err)
		}
		ct := &customTransport{node: n, impl: impl}
		n.transport = ct
		if impl != nil {
			if err := impl.Start(ctx, n); err != nil {
				return newError("Start", KindConnectionFailure, err)
			}
		}
	default:
		return newError("Start", KindInvalidParameter, fmt.Errorf("unknown connect type %s", n.connectType))
	}

	listenerCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	if err := n.startListener(listenerCtx); err != nil {
		n.transport = nil
		cancel()
		return err
	}

	if n.connectType == Hybrid && n.nodeType.server() {
		h := n.transport.(*hybridTransport)
		if err := h.startServer(ctx); err != nil {
			return err
		}
	}

	n.senderWG.Add(1)
	go n.senderLoop(listenerCtx)

	n.log.Info("node started", "id", n.id, "connect_type", n.connectType, "node_type", n.nodeType, "addr", n.addrLocked())
	return nil
}

// Stop closes the listener and tears down the active transport without
// releasing the node's handle; a stopped node can still be reconfigured
// via SetInfo and started again.
func (n *Node) Stop() error {
	n.mu.Lock()
	listener := n.listener
	cancel := n.cancel
	transport := n.transport
	n.listener = nil
	n.cancel = nil
	n.transport = nil
	n.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	if cancel != nil {
		cancel()
	}
	n.listenerWG.Wait()
	n.senderWG.Wait()

	if transport != nil {
		return transport.disconnect()
	}
	return nil
}

// Connect dials destHost:destPort over the node's active transport.
func (n *Node) Connect(ctx context.Context, destHost string, destPort int) error {
	n.mu.Lock()
	t := n.transport
	n.mu.Unlock()

	if err := n.checkAlive("Connect"); err != nil {
		return err
	}
	if t == nil {
		return newError("Connect", KindInvalidParameter, fmt.Errorf("node not started"))
	}
	return t.connect(ctx, destHost, destPort)
}

// Disconnect tears down the node's active connections without closing its
// listener or releasing its handle.
func (n *Node) Disconnect() error {
	n.mu.Lock()
	t := n.transport
	n.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.disconnect()
}

// Send enqueues data for delivery to the peer named by its CLIENT_ID
// metadata, or for fan-out to every connected peer if none is set. It
// returns as soon as the item is queued; senderLoop is what actually
// calls into the transport, so a slow peer backs up the queue rather
// than blocking the caller. If the queue is full under a LeakNew policy,
// Send returns a KindQueueFull error instead of blocking or silently
// dropping the item.
func (n *Node) Send(data *edgedata.Data) error {
	n.mu.Lock()
	t := n.transport
	n.mu.Unlock()

	if err := n.checkAlive("Send"); err != nil {
		return err
	}
	if t == nil {
		return newError("Send", KindInvalidParameter, fmt.Errorf("node not started"))
	}
	if !n.sendQueue.Push(data) {
		return newError("Send", KindQueueFull, errQueueFull)
	}
	return nil
}

// IsConnected reports whether the node's active transport has at least
// one live peer.
func (n *Node) IsConnected() bool {
	n.mu.Lock()
	t := n.transport
	n.mu.Unlock()

	if t == nil {
		return false
	}
	return t.isConnected()
}

// Release permanently tears down the node: it stops the listener, closes
// every table entry, releases the transport, and marks the node dead so
// every other method starts failing with ErrClosed. Calling Release from
// within the node's own event callback returns ErrReentrant instead of
// deadlocking on mu.
func (n *Node) Release() error {
	if n.inOwnCallback() {
		return newError("Release", KindInvalidParameter, ErrReentrant)
	}

	n.mu.Lock()
	if !n.alive() {
		n.mu.Unlock()
		return nil
	}
	listener := n.listener
	cancel := n.cancel
	transport := n.transport
	n.listener = nil
	n.cancel = nil
	n.transport = nil
	n.table.clear()
	n.sendQueue.Clear()
	n.generation.Add(1)
	n.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	if cancel != nil {
		cancel()
	}
	n.listenerWG.Wait()
	n.senderWG.Wait()

	var err error
	if transport != nil {
		err = transport.release()
	}
	n.log.Info("node released", "id", n.id)

	n.invokeCallback(EventCallbackReleased, nil, nil)
	return err
}
