package edge

import (
	"strconv"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/wire"
)

// sendOverTable implements the TCP/hybrid send contract: route to the
// Connection Pair named by the data's CLIENT_ID metadata, or fan out to
// every pair in the table if no client-id is present.
func (n *Node) sendOverTable(data *edgedata.Data) error {
	meta := edgedata.EncodeMetadataBlock(data.Metadata())

	n.mu.Lock()
	var targets []*connPair
	if idStr, ok := data.GetInfo("CLIENT_ID"); ok {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			if p, ok := n.table.get(id); ok {
				targets = []*connPair{p}
			}
		}
	} else {
		targets = n.table.all()
	}
	n.mu.Unlock()

	if len(targets) == 0 {
		return newError("Send", KindConnectionFailure, errNoPeer)
	}

	var firstErr error
	for _, p := range targets {
		if p.sink == nil || !p.sink.running.Load() {
			continue
		}
		if err := wire.WriteFrame(p.sink.netConn, p.clientID, wire.CmdTransferData, data, meta); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return newError("Send", KindIO, firstErr)
	}
	return nil
}

var (
	errNoPeer    = &sendError{"no connected peer to send to"}
	errQueueFull = &sendError{"send queue full"}
)

type sendError struct{ msg string }

func (e *sendError) Error() string { return e.msg }
