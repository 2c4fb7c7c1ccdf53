package edge

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/mqttlink"
	"github.com/edgelink/edgenode/queue"
)

// Node is the root handle of the edge messaging library. All mutation is
// serialized through mu for the duration of any public method except the
// body of a blocking Read/Write/Accept, matching the coarse-locking
// contract carried over from the original design.
type Node struct {
	id          string
	connectType ConnectType
	nodeType    NodeType

	mu         sync.Mutex
	generation atomic.Int64 // bumped to dead on Release; 0 means live

	host string
	port int

	destHost string
	destPort int

	topic string
	caps  string
	meta  edgedata.Metadata

	clientID int64 // adopted identity, set once this node completes a client-side handshake

	eventCallback EventCallback
	userData      any

	table *table

	listener   net.Listener
	listenerWG sync.WaitGroup
	cancel     context.CancelFunc

	sendQueue *queue.Queue[*edgedata.Data]
	senderWG  sync.WaitGroup

	transport transport

	customFactory CustomTransportFactory

	mqttBackend mqttlink.Backend

	log Logger

	callbackToken atomic.Value // holds the *int token minted for the currently running callback invocation, for re-entrancy detection
}

// New creates an edge node. customFactory is only consulted when
// connectType is Custom.
func New(id string, connectType ConnectType, nodeType NodeType, customFactory CustomTransportFactory) (*Node, error) {
	if id == "" {
		return nil, newError("New", KindInvalidParameter, fmt.Errorf("id must not be empty"))
	}
	if connectType == Custom && customFactory == nil {
		return nil, newError("New", KindInvalidParameter, fmt.Errorf("custom connect type requires a CustomTransportFactory"))
	}

	n := &Node{
		id:            id,
		connectType:   connectType,
		nodeType:      nodeType,
		table:         newTable(),
		sendQueue:     queue.New[*edgedata.Data](0, queue.LeakNew),
		customFactory: customFactory,
		mqttBackend:   mqttlink.Proto{},
		log:           noopLogger{},
	}
	return n, nil
}

// SetLogger installs the Logger used for this node's diagnostic output.
// The zero value logs nothing.
func (n *Node) SetLogger(log Logger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if log == nil {
		log = noopLogger{}
	}
	n.log = log
}

func (n *Node) alive() bool {
	return n.generation.Load() == 0
}

func (n *Node) checkAlive(op string) error {
	if !n.alive() {
		return newError(op, KindInvalidParameter, ErrClosed)
	}
	return nil
}

// SetInfo recognizes the canonical keys case-insensitively; unknown keys
// land in the node's own metadata. ID and CLIENT_ID are read-only.
func (n *Node) SetInfo(key, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkAlive("SetInfo"); err != nil {
		return err
	}

	switch strings.ToUpper(key) {
	case "ID", "CLIENT_ID":
		return newError("SetInfo", KindInvalidParameter, fmt.Errorf("%s is read-only", key))
	case "CAPS", "CAPABILITY":
		n.caps = value
	case "IP", "HOST":
		n.host = value
	case "PORT":
		p, err := strconv.Atoi(value)
		if err != nil {
			return newError("SetInfo", KindInvalidParameter, err)
		}
		n.port = p
	case "DEST_IP", "DEST_HOST":
		n.destHost = value
	case "DEST_PORT":
		p, err := strconv.Atoi(value)
		if err != nil {
			return newError("SetInfo", KindInvalidParameter, err)
		}
		n.destPort = p
	case "TOPIC":
		n.topic = value
	case "QUEUE_SIZE":
		limit, policy, err := parseQueueSize(value)
		if err != nil {
			return newError("SetInfo", KindInvalidParameter, err)
		}
		n.sendQueue = queue.New[*edgedata.Data](limit, policy)
	default:
		n.meta.Set(key, value)
	}
	return nil
}

func parseQueueSize(value string) (limit int, policy queue.Policy, err error) {
	parts := strings.SplitN(value, ":", 2)
	limit, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, queue.LeakNew, err
	}
	if len(parts) == 1 {
		return limit, queue.LeakNew, nil
	}
	switch strings.ToUpper(parts[1]) {
	case "OLD":
		return limit, queue.LeakOld, nil
	case "NEW":
		return limit, queue.LeakNew, nil
	default:
		return 0, queue.LeakNew, fmt.Errorf("invalid QUEUE_SIZE leak policy %q", parts[1])
	}
}

// GetInfo returns the value for a canonical or custom key.
func (n *Node) GetInfo(key string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkAlive("GetInfo"); err != nil {
		return "", err
	}

	switch strings.ToUpper(key) {
	case "ID":
		return n.id, nil
	case "CLIENT_ID":
		return strconv.FormatInt(n.clientID, 10), nil
	case "CAPS", "CAPABILITY":
		return n.caps, nil
	case "IP", "HOST":
		return n.host, nil
	case "PORT":
		return strconv.Itoa(n.port), nil
	case "DEST_IP", "DEST_HOST":
		return n.destHost, nil
	case "DEST_PORT":
		return strconv.Itoa(n.destPort), nil
	case "TOPIC":
		return n.topic, nil
	default:
		v, ok := n.meta.Get(key)
		if !ok {
			return "", newError("GetInfo", KindInvalidParameter, fmt.Errorf("unknown key %q", key))
		}
		return v, nil
	}
}

// SetEventCallback installs the callback invoked for every inbound event.
func (n *Node) SetEventCallback(cb EventCallback, userData any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkAlive("SetEventCallback"); err != nil {
		return err
	}
	n.eventCallback = cb
	n.userData = userData
	return nil
}

// listenerAddr returns this node's own listener's dialable address,
// resolving an ephemeral port-0 bind to the port the OS actually chose.
func (n *Node) listenerAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addrLocked()
}

// addrLocked is listenerAddr without taking mu; callers must already hold it.
func (n *Node) addrLocked() string {
	host := n.host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(n.port))
}

// invokeCallback calls the user event callback, if any, with a
// re-entrancy token so a callback cannot deadlock by calling Release on
// its own node.
func (n *Node) invokeCallback(ev Event, data *edgedata.Data, caps []byte) error {
	if n.eventCallback == nil {
		return nil
	}
	token := new(int)
	n.callbackToken.Store(token)
	defer n.callbackToken.Store((*int)(nil))

	return n.eventCallback(n, ev, data, caps, n.userData)
}

func (n *Node) inOwnCallback() bool {
	t, _ := n.callbackToken.Load().(*int)
	return t != nil
}

// Deliver lets an external CustomTransport implementation report an event
// to this node's callback; it is the only way a custom backend outside
// this package can reach invokeCallback.
func (n *Node) Deliver(ev Event, data *edgedata.Data, caps []byte) error {
	return n.invokeCallback(ev, data, caps)
}
