package edge

import (
	"context"
	"net"
	"strconv"
)

// startListener binds the node's configured host:port (resolving an
// ephemeral port-0 request to the OS-assigned port) and spawns the
// accept loop. Every node type runs a listener: server-role nodes use it
// to accept fresh peers; client-role nodes use it only to accept the
// reverse leg of connections they themselves dialed.
func (n *Node) startListener(ctx context.Context) error {
	host := n.host
	if host == "" {
		host = "127.0.0.1"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(n.port)))
	if err != nil {
		return newError("Start", KindIO, err)
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		n.port = tcpAddr.Port
	}
	n.listener = ln

	n.listenerWG.Add(1)
	go n.acceptLoop(ctx, ln)

	return nil
}

func (n *Node) acceptLoop(ctx context.Context, ln net.Listener) {
	defer n.listenerWG.Done()

	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		go n.handleAccept(ctx, nc)
	}
}

func (n *Node) handleAccept(ctx context.Context, nc net.Conn) {
	if n.nodeType.server() {
		clientID, err := n.serverHandshake(ctx, nc)
		if err != nil {
			nc.Close()
			n.invokeCallback(EventConnectionFailure, nil, nil)
			return
		}

		n.mu.Lock()
		pair, _ := n.table.get(clientID)
		n.mu.Unlock()
		if pair == nil {
			return
		}

		n.invokeCallback(EventConnectionCompleted, nil, nil)
		go n.messageLoop(pair.src, clientID)
		go n.messageLoop(pair.sink, clientID)
		return
	}

	// Non-server node: this accept is the reverse leg of a connection we
	// dialed ourselves via Connect, carrying no handshake of its own.
	n.mu.Lock()
	clientID := n.clientID
	pair := n.table.getOrInsert(clientID)
	pair.src = newConn(nc)
	n.mu.Unlock()

	go n.messageLoop(pair.src, clientID)
}
