package edge

import (
	"context"
	"fmt"

	"github.com/edgelink/edgenode/edgedata"
)

// customTransport adapts a user-supplied CustomTransport, built by the
// node's CustomTransportFactory, to the internal transport interface. If
// the factory returns a nil CustomTransport, connect, disconnect, send and
// subscribe surface KindNotSupported rather than a panic.
type customTransport struct {
	node *Node
	impl CustomTransport
}

func (t *customTransport) connect(ctx context.Context, destHost string, destPort int) error {
	if t.impl == nil {
		return newError("Connect", KindNotSupported, fmt.Errorf("no custom transport configured"))
	}
	if err := t.impl.Connect(ctx, destHost, destPort); err != nil {
		return newError("Connect", KindConnectionFailure, err)
	}
	t.node.invokeCallback(EventConnectionCompleted, nil, nil)
	return nil
}

func (t *customTransport) disconnect() error {
	if t.impl == nil {
		return newError("Disconnect", KindNotSupported, fmt.Errorf("no custom transport configured"))
	}
	err := t.impl.Disconnect()
	t.node.invokeCallback(EventConnectionClosed, nil, nil)
	if err != nil {
		return newError("Disconnect", KindIO, err)
	}
	return nil
}

func (t *customTransport) send(data *edgedata.Data) error {
	if t.impl == nil {
		return newError("Send", KindNotSupported, fmt.Errorf("no custom transport configured"))
	}
	if err := t.impl.Send(data); err != nil {
		return newError("Send", KindIO, err)
	}
	return nil
}

func (t *customTransport) subscribe(ctx context.Context) error {
	if t.impl == nil {
		return newError("Subscribe", KindNotSupported, fmt.Errorf("no custom transport configured"))
	}
	return t.impl.Subscribe(ctx)
}

func (t *customTransport) isConnected() bool {
	if t.impl == nil {
		return false
	}
	return t.impl.IsConnected()
}

func (t *customTransport) release() error {
	if t.impl == nil {
		return nil
	}
	return t.impl.Stop()
}
