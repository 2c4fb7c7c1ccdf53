package wstransport

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/edgelink/edgenode/edge"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Listen starts an HTTP server on addr accepting websocket upgrades on
// path, for server-role nodes pairing with Transport.Connect peers. The
// first accepted connection becomes this Transport's active peer; further
// upgrades are closed until Disconnect clears it.
func (t *Transport) Listen(addr, path string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, t.handleUpgrade)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	return srv, nil
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()
	t.running.Store(true)

	recvCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done.Add(1)

	t.node.Deliver(edge.EventConnectionCompleted, nil, nil)
	go t.readLoop(recvCtx, conn)
}
