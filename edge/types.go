// Package edge implements the edge node messaging library: a handle
// manager wired to one of four transports (direct TCP, MQTT, hybrid
// MQTT-discovery-then-TCP, or a pluggable custom transport), a connection
// table keyed by client-id, and the handshake/message-loop machinery that
// moves edgedata.Data frames between peers.
package edge

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgelink/edgenode/edgedata"
)

// ConnectType selects which transport a Node uses.
type ConnectType int

const (
	TCP ConnectType = iota
	MQTT
	Hybrid
	Custom
)

func (c ConnectType) String() string {
	switch c {
	case TCP:
		return "tcp"
	case MQTT:
		return "mqtt"
	case Hybrid:
		return "hybrid"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("connect-type(%d)", int(c))
	}
}

// NodeType describes a node's role.
type NodeType int

const (
	QueryClient NodeType = iota
	QueryServer
	Pub
	Sub
)

func (n NodeType) String() string {
	switch n {
	case QueryClient:
		return "query-client"
	case QueryServer:
		return "query-server"
	case Pub:
		return "pub"
	case Sub:
		return "sub"
	default:
		return fmt.Sprintf("node-type(%d)", int(n))
	}
}

// server reports whether this node type runs the handshake's
// server-initiated half on the connections its listener accepts
// (query-server and pub nodes). Every node type runs a listener; for the
// other types it only accepts the reverse leg of connections they dialed.
func (n NodeType) server() bool {
	return n == QueryServer || n == Pub
}

// Kind classifies an Error for callers that need to branch on failure mode.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidParameter
	KindOutOfMemory
	KindIO
	KindConnectionFailure
	KindNotSupported
	KindQueueFull
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid-parameter"
	case KindOutOfMemory:
		return "out-of-memory"
	case KindIO:
		return "io"
	case KindConnectionFailure:
		return "connection-failure"
	case KindNotSupported:
		return "not-supported"
	case KindQueueFull:
		return "queue-full"
	default:
		return "unknown"
	}
}

// Error wraps an underlying failure with the operation that produced it
// and a Kind callers can recover with errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("edge: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("edge: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

var (
	// ErrClosed is returned by any operation on a released Node.
	ErrClosed = errors.New("edge: node released")
	// ErrReentrant is returned when the user event callback attempts to
	// release its own node from within the callback invocation.
	ErrReentrant = errors.New("edge: re-entrant release from event callback")
)

// Event identifies what kind of occurrence an EventCallback is reporting.
type Event int

const (
	EventCapability Event = iota
	EventNewDataReceived
	EventCallbackReleased
	EventConnectionClosed
	EventConnectionCompleted
	EventConnectionFailure
	EventDeviceFound
)

func (e Event) String() string {
	switch e {
	case EventCapability:
		return "capability"
	case EventNewDataReceived:
		return "new-data-received"
	case EventCallbackReleased:
		return "callback-released"
	case EventConnectionClosed:
		return "connection-closed"
	case EventConnectionCompleted:
		return "connection-completed"
	case EventConnectionFailure:
		return "connection-failure"
	case EventDeviceFound:
		return "device-found"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// EventCallback is the sole mechanism for inbound notifications: new data,
// handshake progress, and connection lifecycle events. caps is populated
// only for EventCapability; data only for EventNewDataReceived. Returning
// a non-nil error from an EventCapability callback rejects the connection.
type EventCallback func(n *Node, ev Event, data *edgedata.Data, caps []byte, userData any) error

// CustomTransport is the interface a statically linked plug-in backend
// must satisfy to be used with ConnectType Custom, replacing the
// dynamically-loaded function-pointer table of the original design.
type CustomTransport interface {
	Start(ctx context.Context, node *Node) error
	Stop() error
	Connect(ctx context.Context, destHost string, destPort int) error
	Disconnect() error
	Subscribe(ctx context.Context) error
	IsConnected() bool
	Send(data *edgedata.Data) error
	SetInfo(key, value string) error
	GetInfo(key string) (string, error)
}

// CustomTransportFactory builds a CustomTransport bound to node. It is
// passed to New for ConnectType Custom and called each time the node is
// started.
type CustomTransportFactory func(node *Node) (CustomTransport, error)

// Version returns this library's semantic version.
func Version() (major, minor, micro int) {
	return versionMajor, versionMinor, versionMicro
}

const (
	versionMajor = 0
	versionMinor = 1
	versionMicro = 0
)
