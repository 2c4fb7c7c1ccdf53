package edge

import (
	"context"

	"github.com/edgelink/edgenode/queue"
)

// senderLoop is the sender thread spec.md describes: it drains sendQueue
// and hands each item to whatever transport is active, so Send never
// blocks its caller on the transport's own write path (a slow MQTT broker
// or a full TCP send buffer backs up the queue instead of the caller).
func (n *Node) senderLoop(ctx context.Context) {
	defer n.senderWG.Done()

	for {
		data, err := n.sendQueue.WaitPop(ctx)
		if err != nil {
			if err == queue.ErrCleared {
				continue
			}
			return
		}

		n.mu.Lock()
		t := n.transport
		n.mu.Unlock()
		if t == nil {
			continue
		}

		if err := t.send(data); err != nil {
			n.log.Warn("sender: send failed", "id", n.id, "error", err)
		}
	}
}
