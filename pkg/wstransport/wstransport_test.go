package wstransport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgelink/edgenode/edge"
	"github.com/edgelink/edgenode/edgedata"
)

func TestRoundTrip(t *testing.T) {
	serverTransport := &Transport{path: "/edge"}
	serverFactory := func(n *edge.Node) (edge.CustomTransport, error) { return serverTransport, nil }

	serverNode, err := edge.New("ws-server", edge.Custom, edge.QueryServer, serverFactory)
	require.NoError(t, err)

	var mu sync.Mutex
	var received *edgedata.Data
	got := make(chan struct{}, 1)
	serverNode.SetEventCallback(func(n *edge.Node, ev edge.Event, data *edgedata.Data, caps []byte, userData any) error {
		if ev == edge.EventNewDataReceived {
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

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	require.NoError(t, serverNode.Start(context.Background()))
	defer serverNode.Release()

	srv, err := serverTransport.Listen(addr.String(), "/edge")
	require.NoError(t, err)
	defer srv.Close()

	clientNode, err := edge.New("ws-client", edge.Custom, edge.QueryClient, New("/edge"))
	require.NoError(t, err)
	require.NoError(t, clientNode.Start(context.Background()))
	defer clientNode.Release()

	require.NoError(t, clientNode.Connect(context.Background(), addr.IP.String(), addr.Port))

	payload := edgedata.New()
	require.NoError(t, payload.Add([]byte("over websocket")))
	require.NoError(t, clientNode.Send(payload))

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server to receive data")
	}

	mu.Lock()
	defer mu.Unlock()
	slot, err := received.Get(0)
	require.NoError(t, err)
	require.Equal(t, "over websocket", string(slot))
}
