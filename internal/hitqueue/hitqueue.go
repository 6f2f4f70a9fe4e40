// Package hitqueue implements the persistent hit queue of spec §4.3: it
// wraps a dataqueue.Queue with a processor callback, retry policy, privacy
// gating, batching, and a single worker goroutine.
//
// The worker is grounded on the teacher's cmd/bd daemon event loop: a single
// goroutine select-ing between a wake channel and shutdown, with a
// sequence-numbered one-shot timer (cmd/bd/daemon_debouncer.go's pattern)
// standing in for the retry wait instead of a debounce window.
package hitqueue

import (
	"context"
	"sync"
	"time"

	"github.com/corehub/sdk/internal/dataqueue"
	"golang.org/x/sync/semaphore"
)

// Hit is one opaque unit of outbound work.
type Hit struct {
	UniqueID  string
	Timestamp int64
	Payload   []byte
}

// CompletionFunc is called by the processor exactly once per Process call to
// report whether the hit succeeded.
type CompletionFunc func(success bool)

// Processor is supplied by the host application/extension. It is the sole
// arbiter of success/failure and of the wait-before-retry interval.
type Processor interface {
	Process(ctx context.Context, hit Hit, complete CompletionFunc)
	// RetryInterval returns how long to wait before retrying hit after a
	// recoverable failure. Most implementations ignore the hit and return a
	// constant; the spec's default is 30s with no backoff escalation.
	RetryInterval(hit Hit) time.Duration
}

// RetryPolicy is an optional pluggable escalation strategy layered on top of
// a Processor's flat RetryInterval — e.g. github.com/cenkalti/backoff/v4's
// exponential backoff, for hosts that want escalation even though the
// spec's own default does not call for it. A nil policy means "use
// Processor.RetryInterval verbatim, no escalation."
type RetryPolicy interface {
	// NextInterval is consulted instead of Processor.RetryInterval when set.
	// attempt is 1 on the first retry.
	NextInterval(hit Hit, attempt int) time.Duration
	Reset(hit Hit)
}

// PrivacyStatus mirrors spec §6's privacy vocabulary.
type PrivacyStatus int

const (
	PrivacyUnknown PrivacyStatus = iota
	PrivacyOptedIn
	PrivacyOptedOut
)

// HitQueue is the durable outbound work queue.
type HitQueue struct {
	queue     dataqueue.Queue
	processor Processor
	policy    RetryPolicy

	mu             sync.Mutex
	suspended      bool
	closed         bool
	batchLimit     int
	draining       bool
	batchRemaining int
	wake           chan struct{}
	sem            *semaphore.Weighted
	attempts       map[uint64]int // seq -> retry attempt count, for RetryPolicy

	doneWG sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a HitQueue over an already-opened durable queue. The
// worker is not started until BeginProcessing is called.
func New(q dataqueue.Queue, processor Processor) *HitQueue {
	hq := &HitQueue{
		queue:     q,
		processor: processor,
		suspended: true,
		wake:      make(chan struct{}, 1),
		sem:       semaphore.NewWeighted(1),
		attempts:  map[uint64]int{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	hq.cancel = cancel
	hq.doneWG.Add(1)
	go hq.run(ctx)
	return hq
}

// SetRetryPolicy installs an optional escalating retry policy (spec §4.3
// describes the default flat interval; this is the documented escalation
// hook, see internal/hitqueue/backoffpolicy.go).
func (hq *HitQueue) SetRetryPolicy(p RetryPolicy) {
	hq.mu.Lock()
	defer hq.mu.Unlock()
	hq.policy = p
}

// Queue appends hit to the underlying data queue and returns immediately.
func (hq *HitQueue) Queue(hit Hit) error {
	if _, err := hq.queue.Add(hit.UniqueID, hit.Timestamp, hit.Payload); err != nil {
		return err
	}
	hq.triggerWake()
	return nil
}

// BeginProcessing un-suspends the worker.
func (hq *HitQueue) BeginProcessing() {
	hq.mu.Lock()
	hq.suspended = false
	hq.mu.Unlock()
	hq.triggerWake()
}

// Suspend gates the worker off; hits already queued accumulate untouched.
func (hq *HitQueue) Suspend() {
	hq.mu.Lock()
	hq.suspended = true
	hq.mu.Unlock()
}

// SetBatchLimit configures how many hits must be queued before the worker
// drains a batch. 0 means "process one at a time with no threshold."
func (hq *HitQueue) SetBatchLimit(n int) {
	hq.mu.Lock()
	hq.batchLimit = n
	hq.mu.Unlock()
	hq.triggerWake()
}

// Clear removes all queued hits (used on privacy opt-out).
func (hq *HitQueue) Clear() error {
	return hq.queue.Clear()
}

// Count returns the number of hits currently queued.
func (hq *HitQueue) Count() (int, error) {
	return hq.queue.Count()
}

// Close shuts the worker down. Safe to call once.
func (hq *HitQueue) Close() error {
	hq.mu.Lock()
	if hq.closed {
		hq.mu.Unlock()
		return nil
	}
	hq.closed = true
	hq.mu.Unlock()
	hq.cancel()
	hq.doneWG.Wait()
	return hq.queue.Close()
}

// HandlePrivacyChange implements the gating table in spec §4.3:
// opt_in -> begin processing; unknown -> suspend; opt_out -> suspend + clear.
func (hq *HitQueue) HandlePrivacyChange(status PrivacyStatus) error {
	switch status {
	case PrivacyOptedIn:
		hq.BeginProcessing()
		return nil
	case PrivacyUnknown:
		hq.Suspend()
		return nil
	case PrivacyOptedOut:
		hq.Suspend()
		return hq.Clear()
	default:
		return nil
	}
}

func (hq *HitQueue) triggerWake() {
	select {
	case hq.wake <- struct{}{}:
	default:
	}
}

func (hq *HitQueue) isSuspended() bool {
	hq.mu.Lock()
	defer hq.mu.Unlock()
	return hq.suspended
}

func (hq *HitQueue) currentBatchLimit() int {
	hq.mu.Lock()
	defer hq.mu.Unlock()
	return hq.batchLimit
}

// readyToProcess reports whether the worker may pull the next hit right
// now, latching a drain once the batch threshold is crossed so the rest of
// the batch isn't stranded when count dips below limit mid-drain (spec
// §4.3: "drains that batch before pausing for the next threshold").
func (hq *HitQueue) readyToProcess(count int) bool {
	hq.mu.Lock()
	defer hq.mu.Unlock()

	if hq.draining {
		return true
	}
	if hq.batchLimit <= 0 {
		return true
	}
	if count < hq.batchLimit {
		return false
	}
	hq.draining = true
	hq.batchRemaining = count
	return true
}

// batchDrained records one processed hit against the latched batch and
// clears the drain once it's exhausted.
func (hq *HitQueue) batchDrained() {
	hq.mu.Lock()
	defer hq.mu.Unlock()
	if !hq.draining {
		return
	}
	hq.batchRemaining--
	if hq.batchRemaining <= 0 {
		hq.draining = false
	}
}

// run is the single worker goroutine: while not suspended and the queue has
// >= batchLimit hits (or batchLimit == 0), it latches a drain over the
// batch and peeks the oldest hit, hands it to the processor, and waits for
// the single-flight semaphore before presenting the next one, continuing
// past the threshold until the latched batch is exhausted.
func (hq *HitQueue) run(ctx context.Context) {
	defer hq.doneWG.Done()

	retryTimer := time.NewTimer(time.Hour)
	if !retryTimer.Stop() {
		<-retryTimer.C
	}
	defer retryTimer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if hq.isSuspended() {
			select {
			case <-hq.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		count, err := hq.queue.Count()
		if err != nil {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		if !hq.readyToProcess(count) {
			select {
			case <-hq.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		rec, ok, err := hq.queue.Peek()
		if err != nil || !ok {
			select {
			case <-hq.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		if err := hq.sem.Acquire(ctx, 1); err != nil {
			return
		}

		hit := Hit{UniqueID: rec.UniqueID, Timestamp: rec.Timestamp, Payload: rec.Payload}
		done := make(chan bool, 1)
		hq.processor.Process(ctx, hit, func(success bool) {
			select {
			case done <- success:
			default:
			}
		})

		var success bool
		select {
		case success = <-done:
		case <-ctx.Done():
			hq.sem.Release(1)
			return
		}
		hq.sem.Release(1)

		if success {
			hq.mu.Lock()
			delete(hq.attempts, rec.Seq)
			hq.mu.Unlock()
			_ = hq.queue.Remove(rec.Seq)
			hq.batchDrained()
			continue
		}

		// Recoverable failure: leave the hit in place, wait the configured
		// interval, then retry the same hit.
		interval := hq.retryIntervalFor(hit, rec.Seq)
		retryTimer.Reset(interval)
		select {
		case <-retryTimer.C:
		case <-ctx.Done():
			if !retryTimer.Stop() {
				<-retryTimer.C
			}
			return
		}
	}
}

func (hq *HitQueue) retryIntervalFor(hit Hit, seq uint64) time.Duration {
	hq.mu.Lock()
	policy := hq.policy
	hq.attempts[seq]++
	attempt := hq.attempts[seq]
	hq.mu.Unlock()

	if policy != nil {
		return policy.NextInterval(hit, attempt)
	}
	return hq.processor.RetryInterval(hit)
}
