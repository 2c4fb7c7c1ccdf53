// Package queue provides a bounded, thread-safe FIFO used by edge.Node as
// its send queue, handing data off between Send's caller and the sender
// goroutine that writes it to the active transport.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrCleared is returned by WaitPop when Clear wakes it instead of an item
// becoming available.
var ErrCleared = errors.New("queue: cleared")

// Policy controls what happens when Push is called on a full queue.
type Policy int

const (
	// LeakNew drops the item being pushed, keeping the queue's existing
	// contents. This is the default: a producer that outruns its consumer
	// loses its most recent samples rather than evicting history.
	LeakNew Policy = iota

	// LeakOld drops the oldest queued item to make room for the new one.
	LeakOld
)

// Queue is a bounded FIFO of T. Create one with New: the zero value has
// no notification channels, so Push does not wake WaitPop on it and Clear
// panics.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	policy  Policy
	notify  chan struct{}
	cleared chan struct{}
}

// New creates a queue with the given capacity limit (0 means unbounded)
// and overflow policy.
func New[T any](limit int, policy Policy) *Queue[T] {
	return &Queue[T]{
		limit:   limit,
		policy:  policy,
		notify:  make(chan struct{}, 1),
		cleared: make(chan struct{}),
	}
}

// SetLimit changes the queue's capacity. If the queue currently holds more
// items than the new limit, the oldest excess items are dropped.
func (q *Queue[T]) SetLimit(limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limit = limit
	if limit > 0 && len(q.items) > limit {
		q.items = q.items[len(q.items)-limit:]
	}
}

// Push adds an item to the queue. It returns false if the item was dropped
// because the queue was full and the policy is LeakNew.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.items) >= q.limit {
		switch q.policy {
		case LeakOld:
			q.items = append(q.items[1:], v)
			q.notifyLocked()
			return true
		default:
			return false
		}
	}

	q.items = append(q.items, v)
	q.notifyLocked()
	return true
}

func (q *Queue[T]) notifyLocked() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest item. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false
	}

	v = q.items[0]
	q.items = q.items[1:]
	return v, true
}

// WaitPop blocks until an item is available, ctx is canceled, or Clear
// runs. The cleared channel is sampled under the same lock as the
// emptiness check so a Clear that lands between Pop and the select below
// can't be missed.
func (q *Queue[T]) WaitPop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		cleared := q.cleared
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-cleared:
			var zero T
			return zero, ErrCleared
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all queued items and wakes every goroutine blocked in
// WaitPop; each one returns ErrCleared.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	close(q.cleared)
	q.cleared = make(chan struct{})
}
