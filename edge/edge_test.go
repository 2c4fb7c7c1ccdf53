package edge

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/internal/mqttproto"
)

func mustStart(t *testing.T, n *Node) {
	t.Helper()
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func newTestPair(t *testing.T, connectType ConnectType) (*Node, *Node) {
	t.Helper()
	server, err := New("server", connectType, QueryServer, nil)
	if err != nil {
		t.Fatalf("New server: %v", err)
	}
	client, err := New("client", connectType, QueryClient, nil)
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	server.SetInfo("HOST", "127.0.0.1")
	server.SetInfo("PORT", "0")
	client.SetInfo("HOST", "127.0.0.1")
	client.SetInfo("PORT", "0")
	return server, client
}

func TestLocalTCPRoundTrip(t *testing.T) {
	server, client := newTestPair(t, TCP)

	var mu sync.Mutex
	var received *edgedata.Data
	got := make(chan struct{}, 1)

	server.SetEventCallback(func(n *Node, ev Event, data *edgedata.Data, caps []byte, userData any) error {
		if ev == EventNewDataReceived {
			mu.Lock()
			received = data.Copy()
			mu.Unlock()
			select {
			case got <- struct{}{}:
			default:
			}
		}
		return nil
	}, nil)

	mustStart(t, server)
	defer server.Release()
	mustStart(t, client)
	defer client.Release()

	port, err := portOf(server)
	if err != nil {
		t.Fatalf("portOf: %v", err)
	}

	if err := client.Connect(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	payload := edgedata.New()
	if err := payload.Add([]byte("hello edge")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := client.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server to receive data")
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil {
		t.Fatal("no data recorded")
	}
	slot, err := received.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(slot) != "hello edge" {
		t.Fatalf("got %q, want %q", slot, "hello edge")
	}
}

func TestMultipleClientsSendToServer(t *testing.T) {
	server, err := New("server", TCP, QueryServer, nil)
	if err != nil {
		t.Fatalf("New server: %v", err)
	}
	server.SetInfo("HOST", "127.0.0.1")
	server.SetInfo("PORT", "0")

	var mu sync.Mutex
	counts := map[string]int{}
	server.SetEventCallback(func(n *Node, ev Event, data *edgedata.Data, caps []byte, userData any) error {
		if ev == EventNewDataReceived {
			slot, _ := data.Get(0)
			mu.Lock()
			counts[string(slot)]++
			mu.Unlock()
		}
		return nil
	}, nil)

	mustStart(t, server)
	defer server.Release()

	port, err := portOf(server)
	if err != nil {
		t.Fatalf("portOf: %v", err)
	}

	const numClients = 3
	clients := make([]*Node, numClients)
	for i := range clients {
		c, err := New(clientName(i), TCP, QueryClient, nil)
		if err != nil {
			t.Fatalf("New client %d: %v", i, err)
		}
		c.SetInfo("HOST", "127.0.0.1")
		c.SetInfo("PORT", "0")
		mustStart(t, c)
		defer c.Release()
		if err := c.Connect(context.Background(), "127.0.0.1", port); err != nil {
			t.Fatalf("Connect client %d: %v", i, err)
		}
		clients[i] = c
	}

	for i, c := range clients {
		data := edgedata.New()
		data.Add([]byte(clientName(i)))
		if err := c.Send(data); err != nil {
			t.Fatalf("Send client %d: %v", i, err)
		}
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		total := 0
		for _, v := range counts {
			total += v
		}
		mu.Unlock()
		if total == numClients {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, got %d/%d deliveries", total, numClients)
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range clients {
		if counts[clientName(i)] != 1 {
			t.Errorf("client %d delivered %d times, want 1", i, counts[clientName(i)])
		}
	}
}

func clientName(i int) string {
	return "client-" + string(rune('a'+i))
}

func TestReleaseWhileConnectedClosesSockets(t *testing.T) {
	server, client := newTestPair(t, TCP)
	mustStart(t, server)
	mustStart(t, client)
	defer server.Release()

	port, err := portOf(server)
	if err != nil {
		t.Fatalf("portOf: %v", err)
	}
	if err := client.Connect(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected client connected before release")
	}

	if err := client.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if client.IsConnected() {
		t.Fatal("expected client disconnected after release")
	}
	if err := client.checkAlive("test"); err == nil {
		t.Fatal("expected released node to report dead")
	}

	if err := client.Send(edgedata.New()); err == nil {
		t.Fatal("expected Send on released node to fail")
	}
}

func TestReleaseFromOwnCallbackReturnsReentrantError(t *testing.T) {
	n, err := New("solo", TCP, QueryClient, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustStart(t, n)
	defer n.Release()

	var callbackErr error
	n.SetEventCallback(func(node *Node, ev Event, data *edgedata.Data, caps []byte, userData any) error {
		callbackErr = node.Release()
		return nil
	}, nil)

	n.invokeCallback(EventNewDataReceived, edgedata.New(), nil)

	if callbackErr != ErrReentrant {
		var e *Error
		if ok := asError(callbackErr, &e); !ok || e.Err != ErrReentrant {
			t.Fatalf("expected wrapped ErrReentrant, got %v", callbackErr)
		}
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestHybridDiscoveryThenTCPHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	broker := &mqttproto.Broker{}
	go broker.Serve(ln)
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	server, err := New("server", Hybrid, QueryServer, nil)
	if err != nil {
		t.Fatalf("New server: %v", err)
	}
	server.SetInfo("HOST", "127.0.0.1")
	server.SetInfo("PORT", "0")
	server.SetInfo("TOPIC", "query")
	server.SetInfo("DEST_HOST", "127.0.0.1")
	server.SetInfo("DEST_PORT", itoaPort(addr.Port))

	got := make(chan struct{}, 1)
	server.SetEventCallback(func(n *Node, ev Event, data *edgedata.Data, caps []byte, userData any) error {
		if ev == EventNewDataReceived {
			select {
			case got <- struct{}{}:
			default:
			}
		}
		return nil
	}, nil)

	mustStart(t, server)
	defer server.Release()

	client, err := New("client", Hybrid, QueryClient, nil)
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	client.SetInfo("HOST", "127.0.0.1")
	client.SetInfo("PORT", "0")
	client.SetInfo("TOPIC", "query")
	mustStart(t, client)
	defer client.Release()

	if err := client.Connect(context.Background(), "127.0.0.1", addr.Port); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for !client.IsConnected() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for hybrid discovery to resolve a TCP peer")
		case <-time.After(20 * time.Millisecond):
		}
	}

	payload := edgedata.New()
	payload.Add([]byte("discovered"))
	if err := client.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server to receive data over discovered TCP link")
	}
}

func portOf(n *Node) (int, error) {
	portStr, err := n.GetInfo("PORT")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

func itoaPort(p int) string {
	return strconv.Itoa(p)
}
