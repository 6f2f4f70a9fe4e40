package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/types"
)

// Phase is an extension's lifecycle state (spec §3).
type Phase int32

const (
	PhaseRegistered Phase = iota
	PhaseReady
	PhaseStopped
	PhaseUnregistered
)

// task is one unit of work run on an extension's serial queue: either an
// event delivery (possibly gated on ReadyForEvent) or an internal callback
// (OnRegistered/OnUnregistered).
type task struct {
	event    *types.Event
	handlers []extension.HandlerFunc
	fn       func()
}

// broadcaster is a channel-based condition variable: Wait returns a channel
// that closes on the next Broadcast, letting many goroutines re-check a
// predicate with a plain select instead of polling. Used to retry
// ReadyForEvent-gated deliveries "after the next shared-state update
// anywhere" (spec §6) without a sleep loop.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

func (b *broadcaster) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *broadcaster) broadcast() {
	b.mu.Lock()
	old := b.ch
	b.ch = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

// record is the hub's bookkeeping for one registered extension: its
// lifecycle phase and its private serial delivery queue. Grounded on the
// RWMutex-guarded in-memory table pattern of the teacher's daemon extension
// registry (internal/daemon's wisp store), generalized from a map store to
// a per-owner worker goroutine.
type record struct {
	name     string
	version  string
	metadata map[string]string
	impl     extension.Extension
	log      *slog.Logger
	ready    *broadcaster

	phase atomic.Int32

	inbox chan task
	done  chan struct{}
	wg    sync.WaitGroup
}

func newRecord(impl extension.Extension, log *slog.Logger, ready *broadcaster) *record {
	r := &record{
		name:     impl.Name(),
		version:  impl.Version(),
		metadata: impl.Metadata(),
		impl:     impl,
		log:      log,
		ready:    ready,
		inbox:    make(chan task, 256),
		done:     make(chan struct{}),
	}
	r.phase.Store(int32(PhaseRegistered))
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *record) setPhase(p Phase) { r.phase.Store(int32(p)) }
func (r *record) getPhase() Phase  { return Phase(r.phase.Load()) }

// enqueue submits a task to the extension's serial queue. Ordering across
// calls follows send order, which the dispatcher preserves as event seq
// order: there is exactly one dispatcher goroutine feeding every record.
func (r *record) enqueue(t task) {
	select {
	case r.inbox <- t:
	case <-r.done:
	}
}

// run is the extension's single serial worker. For event deliveries it
// blocks on ReadyForEvent before executing, re-checking each time the
// broadcaster fires — this holds up only this extension's queue, per spec.
func (r *record) run() {
	defer r.wg.Done()
	for {
		select {
		case t, ok := <-r.inbox:
			if !ok {
				return
			}
			r.awaitReadyAndExecute(t)
		case <-r.done:
			r.drain()
			return
		}
	}
}

func (r *record) drain() {
	for {
		select {
		case t := <-r.inbox:
			r.awaitReadyAndExecute(t)
		default:
			return
		}
	}
}

func (r *record) awaitReadyAndExecute(t task) {
	if t.event != nil {
		for !r.impl.ReadyForEvent(t.event) {
			wake := r.ready.wait()
			select {
			case <-wake:
			case <-r.done:
				return
			}
		}
	}
	r.execute(t)
}

func (r *record) execute(t task) {
	defer func() {
		// An extension handler that panics is isolated: logged, the
		// in-flight delivery marked complete, dispatch continues.
		if rec := recover(); rec != nil {
			r.log.Error("extension handler panicked", "extension", r.name, "panic", rec)
		}
	}()
	if t.fn != nil {
		t.fn()
		return
	}
	for _, h := range t.handlers {
		h(t.event)
	}
}

// stop signals the worker to drain in-flight deliveries and exit, then
// waits for it to finish.
func (r *record) stop() {
	close(r.done)
	r.wg.Wait()
}
