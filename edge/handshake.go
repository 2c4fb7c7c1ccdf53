package edge

import (
	"context"
	"fmt"
	"net"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/wire"
)

// protocolViolation reports an out-of-sequence command during the
// handshake, which both sides treat as a connection-level IO failure.
type protocolViolation struct {
	expected wire.Command
	got      wire.Command
}

func (e *protocolViolation) Error() string {
	return fmt.Sprintf("edge: handshake protocol violation: expected %s, got %s", e.expected, e.got)
}

// serverHandshake runs on a freshly accepted socket for a server-role node
// (NodeType.server() == true): it mints a client-id, sends the capability
// frame, reads the peer's host-info frame, and opens the reverse
// connection that becomes this node's sink half of the pair. The reverse
// leg is a bare socket: both sides already share the client-id from this
// forward exchange, so no second capability/host-info round-trip runs on
// it (a deliberate simplification over re-running the full handshake
// twice for one logical peer — see DESIGN.md).
func (n *Node) serverHandshake(ctx context.Context, nc net.Conn) (int64, error) {
	clientID := nextClientID()
	src := newConn(nc)

	caps := []byte(n.caps)
	capsData := edgedata.New()
	if err := capsData.Add(append(append([]byte{}, caps...), 0)); err != nil {
		return 0, err
	}
	if err := wire.WriteFrame(src.netConn, clientID, wire.CmdCapability, capsData, nil); err != nil {
		return 0, fmt.Errorf("edge: send capability: %w", err)
	}

	hdr, hostInfo, _, err := wire.ReadFrame(src.reader)
	if err != nil {
		return 0, fmt.Errorf("edge: read host-info: %w", err)
	}
	if hdr.Command != wire.CmdHostInfo {
		return 0, &protocolViolation{expected: wire.CmdHostInfo, got: hdr.Command}
	}
	addr, err := hostInfo.Get(0)
	if err != nil {
		return 0, fmt.Errorf("edge: empty host-info payload: %w", err)
	}

	reverse, err := (&net.Dialer{}).DialContext(ctx, "tcp", string(addr))
	if err != nil {
		return 0, fmt.Errorf("edge: reverse dial %s: %w", addr, err)
	}

	n.mu.Lock()
	pair := n.table.getOrInsert(clientID)
	pair.src = src
	pair.sink = newConn(reverse)
	n.mu.Unlock()

	return clientID, nil
}

// clientHandshake runs on a freshly dialed outbound socket: it waits for
// the peer's capability frame (adopting its client-id as this node's own
// identity), invokes the capability event, and replies with this node's
// own host-info so the peer can open the reverse connection.
func (n *Node) clientHandshake(ctx context.Context, nc net.Conn) (int64, error) {
	c := newConn(nc)

	hdr, capsData, _, err := wire.ReadFrame(c.reader)
	if err != nil {
		return 0, fmt.Errorf("edge: read capability: %w", err)
	}
	if hdr.Command != wire.CmdCapability {
		return 0, &protocolViolation{expected: wire.CmdCapability, got: hdr.Command}
	}
	var caps []byte
	if capsData.NumSlots() > 0 {
		caps, _ = capsData.Get(0)
	}

	if n.eventCallback != nil {
		if err := n.invokeCallback(EventCapability, nil, caps); err != nil {
			wire.WriteFrame(c.netConn, hdr.ClientID, wire.CmdError, nil, nil)
			return 0, fmt.Errorf("edge: capability callback rejected connection: %w", err)
		}
	}

	hostInfo := edgedata.New()
	if err := hostInfo.Add([]byte(n.listenerAddr())); err != nil {
		return 0, err
	}
	if err := wire.WriteFrame(c.netConn, hdr.ClientID, wire.CmdHostInfo, hostInfo, nil); err != nil {
		return 0, fmt.Errorf("edge: send host-info: %w", err)
	}

	return hdr.ClientID, nil
}
