package hub

import (
	"sync"

	"github.com/corehub/sdk/internal/types"
)

// ingressQueue is the hub's single-producer... actually multi-producer,
// single-consumer ingress queue (spec §4.1): many extensions/preprocessors
// may dispatch concurrently, one dispatcher goroutine drains in FIFO order.
// Implemented as an unbounded slice behind a condition variable rather than
// a fixed-size channel so that dispatching from *within* the dispatcher
// goroutine itself — the rules engine emitting a consequence event while
// processing another event — can never deadlock on a full buffer.
type ingressQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*types.Event
	closed bool
}

func newIngressQueue() *ingressQueue {
	q := &ingressQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *ingressQueue) push(e *types.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, e)
	q.cond.Signal()
}

// pop blocks until an event is available or the queue is closed.
func (q *ingressQueue) pop() (*types.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *ingressQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
