package edge

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"

	"github.com/edgelink/edgenode/wire"
)

// conn wraps one TCP stream to or from a peer. src conns are accepted
// inbound; sink conns are dialed outbound. Either half of a connPair may
// be nil until its handshake completes.
type conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	running atomic.Bool
	wg      sync.WaitGroup
}

func newConn(nc net.Conn) *conn {
	if tc, ok := nc.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	c := &conn{netConn: nc, reader: bufio.NewReader(nc)}
	c.running.Store(true)
	return c
}

// close sends a CmdError frame as a graceful-close signal, then marks the
// connection stopped and closes its socket. The frame write is
// best-effort: a peer that's already gone won't be listening for it, and
// the socket still gets closed either way. It does not wait for the
// message loop goroutine to exit; callers that need that use wg.Wait
// after close.
func (c *conn) close(clientID int64) error {
	if !c.running.Swap(false) {
		return nil
	}
	wire.WriteFrame(c.netConn, clientID, wire.CmdError, nil, nil)
	return c.netConn.Close()
}

// connPair is one entry of the connection table: the inbound (src) and
// outbound (sink) halves of the bidirectional transport to one peer,
// sharing a client-id. Both directions are independent; a failure on one
// does not automatically close the other.
type connPair struct {
	clientID int64
	src      *conn // we accepted from them
	sink     *conn // we connected to them
}

// close tears down both halves, each sending a CmdError frame as a
// graceful-close signal before its socket closes, and waits for their
// message loops to exit.
func (p *connPair) close() {
	if p.src != nil {
		p.src.close(p.clientID)
	}
	if p.sink != nil {
		p.sink.close(p.clientID)
	}
	if p.src != nil {
		p.src.wg.Wait()
	}
	if p.sink != nil {
		p.sink.wg.Wait()
	}
}

// isConnected reports whether either half of the pair is still running.
func (p *connPair) isConnected() bool {
	if p.src != nil && p.src.running.Load() {
		return true
	}
	if p.sink != nil && p.sink.running.Load() {
		return true
	}
	return false
}
