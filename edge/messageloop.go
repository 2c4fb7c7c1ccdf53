package edge

import (
	"errors"
	"io"
	"net"
	"strconv"

	"github.com/edgelink/edgenode/edgedata"
	"github.com/edgelink/edgenode/wire"
)

// messageLoop is the per-connection receive loop described in §4.5: it
// reads command frames until EOF, a socket error, or a CmdError frame,
// reconstructing edge-data for transfer-data frames and invoking the
// user event callback. It never holds Node.mu while blocked in Read.
func (n *Node) messageLoop(c *conn, clientID int64) {
	c.wg.Add(1)

	for c.running.Load() {
		hdr, data, metaBlock, err := wire.ReadFrame(c.reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				n.invokeCallback(EventConnectionFailure, nil, nil)
			}
			break
		}

		if hdr.Command == wire.CmdError {
			break
		}
		if hdr.Command == wire.CmdTransferData {
			n.deliverData(data, metaBlock, clientID)
		}
		// any other command is reserved for future use: ReadFrame already
		// consumed its declared payload, so the loop just continues.
	}

	// Done must fire before removeClientID, which can wait on this same
	// wg via connPair.close() when this loop is the one tearing the pair
	// down (a loop waiting on its own wg would deadlock).
	c.wg.Done()
	n.removeClientID(clientID)
}

func (n *Node) deliverData(data *edgedata.Data, metaBlock []byte, clientID int64) {
	if meta, err := edgedata.DecodeMetadataBlock(metaBlock); err == nil {
		*data.Metadata() = meta
	}
	data.SetInfo("CLIENT_ID", strconv.FormatInt(clientID, 10))

	n.invokeCallback(EventNewDataReceived, data, nil)
}

// removeClientID tears down and removes clientID's entry from the
// connection table under the node lock.
func (n *Node) removeClientID(clientID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.table.remove(clientID)
}
