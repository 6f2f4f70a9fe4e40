// Package hub implements the Event Hub (spec §4.1): the dispatcher that
// assigns every event a monotonic sequence number, delivers it to matching
// listeners in seq order per extension, manages extension lifecycle, and
// exposes the shared-state API and a pre-dispatch interceptor hook used by
// the rules engine.
//
// Grounded on the teacher's channel-driven reactive daemon loop
// (cmd/bd/daemon_event_loop.go: one goroutine select-ing over a mutation
// channel, debounced triggers, graceful shutdown via context) generalized
// from a fixed set of daemon concerns into the spec's listener-matching,
// per-extension-serial-queue dispatch model.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/telemetry"
	"github.com/corehub/sdk/internal/types"
)

// PreProcessor runs over every event before listener matching. The rules
// engine registers as one (spec §4.4); it may mutate event.Data via
// event.SetData and dispatch additional events through access.
type PreProcessor interface {
	Process(event *types.Event, access Access)
}

// Access is the restricted surface a PreProcessor gets into the hub: enough
// to dispatch new events and read shared state at an arbitrary seq, nothing
// that would let it bypass extension isolation.
type Access interface {
	Dispatch(event *types.Event)
	SharedState(ns sharedstate.Namespace, owner string, atSeq uint64, barrier sharedstate.Barrier) sharedstate.Result
}

// Hub is the central dispatcher. Construct with New, call Start to begin
// delivering, Stop to gate it back off.
type Hub struct {
	log *slog.Logger
	tel *telemetry.Hub

	nextSeq atomic.Uint64
	started atomic.Bool

	mu         sync.RWMutex
	extensions map[string]*record
	listeners  []*listener
	nextListID atomic.Uint64
	responses  map[string]*responseListener

	preMu        sync.Mutex
	preProcessor []PreProcessor

	standard *sharedstate.Registry
	xdm      *sharedstate.Registry

	ready *broadcaster

	ingress *ingressQueue
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Hub at construction.
type Option func(*Hub)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option { return func(h *Hub) { h.log = l } }

// WithTelemetry attaches an OpenTelemetry-backed instrumentation hub for
// dispatch spans and metrics (see internal/telemetry).
func WithTelemetry(t *telemetry.Hub) Option { return func(h *Hub) { h.tel = t } }

// New constructs a Hub. The hub does not begin delivering until Start.
func New(opts ...Option) *Hub {
	h := &Hub{
		log:        slog.Default(),
		extensions: make(map[string]*record),
		responses:  make(map[string]*responseListener),
		standard:   sharedstate.New(),
		xdm:        sharedstate.New(),
		ready:      newBroadcaster(),
		ingress:    newIngressQueue(),
		stopCh:     make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.tel == nil {
		h.tel = telemetry.NoOp()
	}
	h.wg.Add(1)
	go h.dispatchLoop()
	return h
}

// Start gates delivery on. Events dispatched before Start are still queued
// and processed once Start is called.
func (h *Hub) Start() {
	h.started.Store(true)
	h.ready.broadcast()
	h.Dispatch(types.NewEvent("Hub Booted", types.EventTypeHub, types.EventSourceBooted, nil))
}

// Stop gates delivery off; already in-flight per-extension deliveries
// finish, but no new events reach listeners until Start is called again.
func (h *Hub) Stop() {
	h.started.Store(false)
}

// Close tears the hub down: stops the dispatcher and every extension
// worker. Not part of the original spec's operation list, but every
// long-lived Go service needs a deterministic shutdown path.
func (h *Hub) Close() {
	h.ingress.close()
	close(h.stopCh)
	h.wg.Wait()

	h.mu.Lock()
	recs := make([]*record, 0, len(h.extensions))
	for _, r := range h.extensions {
		recs = append(recs, r)
	}
	h.mu.Unlock()
	for _, r := range recs {
		r.stop()
	}
}

// Dispatch assigns the event the next sequence number and enqueues it.
// Returns immediately; delivery happens on the dispatcher goroutine.
func (h *Hub) Dispatch(event *types.Event) {
	event.Seq = h.nextSeq.Add(1)
	h.ingress.push(event)
}

// RegisterPreProcessor installs pp ahead of listener matching for every
// future event. Registration order is evaluation order.
func (h *Hub) RegisterPreProcessor(pp PreProcessor) {
	h.preMu.Lock()
	defer h.preMu.Unlock()
	h.preProcessor = append(h.preProcessor, pp)
}

// RegisterExtension instantiates ext via factory, records it, and runs
// OnRegistered on the extension's own serial queue. The returned channel
// receives the registration's outcome (nil on success) once OnRegistered
// has completed and the extension has transitioned to Ready — the Go
// analogue of the spec's future<Result>.
func (h *Hub) RegisterExtension(factory extension.Factory) (<-chan error, error) {
	ext := factory()
	name := ext.Name()

	h.mu.Lock()
	if _, exists := h.extensions[name]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", name, types.ErrAlreadyRegistered)
	}
	rec := newRecord(ext, h.log, h.ready)
	h.extensions[name] = rec
	h.mu.Unlock()

	result := make(chan error, 1)
	rt := &boundRuntime{hub: h, owner: name}
	rec.enqueue(task{fn: func() {
		ext.OnRegistered(rt)
		rec.setPhase(PhaseReady)
		result <- nil
	}})
	return result, nil
}

// UnregisterExtension flushes in-flight deliveries for name, calls
// OnUnregistered, and removes its listeners and shared-state history. The
// returned channel receives the outcome.
func (h *Hub) UnregisterExtension(name string) (<-chan error, error) {
	h.mu.Lock()
	rec, ok := h.extensions[name]
	if !ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", name, types.ErrNotRegistered)
	}
	delete(h.extensions, name)
	filtered := h.listeners[:0:0]
	for _, l := range h.listeners {
		if l.owner != name {
			filtered = append(filtered, l)
		}
	}
	h.listeners = filtered
	for id, rl := range h.responses {
		if rl.owner == name {
			if rl.timer != nil {
				rl.timer.Stop()
			}
			delete(h.responses, id)
		}
	}
	h.mu.Unlock()

	result := make(chan error, 1)
	rec.enqueue(task{fn: func() {
		rec.impl.OnUnregistered()
		rec.setPhase(PhaseUnregistered)
		result <- nil
	}})
	go func() {
		rec.stop()
		h.standard.Forget(name)
		h.xdm.Forget(name)
	}()
	return result, nil
}

// ExtensionPhase reports a registered extension's lifecycle phase.
func (h *Hub) ExtensionPhase(name string) (Phase, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.extensions[name]
	if !ok {
		return 0, false
	}
	return rec.getPhase(), true
}

func (h *Hub) registerListener(owner string, eventType types.EventType, source types.EventSource, responseFilter string, handler extension.HandlerFunc) {
	l := &listener{
		id:             h.nextListID.Add(1),
		owner:          owner,
		eventType:      eventType,
		source:         source,
		responseFilter: responseFilter,
		handler:        handler,
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

func (h *Hub) registerResponseListener(owner, triggerID string, timeout time.Duration, handler extension.ResponseHandlerFunc) {
	rl := &responseListener{owner: owner, triggerID: triggerID, handler: handler}
	h.mu.Lock()
	h.responses[triggerID] = rl
	h.mu.Unlock()

	rl.timer = time.AfterFunc(timeout, func() {
		h.mu.Lock()
		cur, ok := h.responses[triggerID]
		if !ok || cur != rl || rl.fired {
			h.mu.Unlock()
			return
		}
		rl.fired = true
		delete(h.responses, triggerID)
		h.mu.Unlock()
		h.deliverToOwner(owner, nil, []extension.HandlerFunc{func(*types.Event) { handler(nil) }})
	})
}

// dispatchLoop is the hub's single dispatcher goroutine.
func (h *Hub) dispatchLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}
		e, ok := h.ingress.pop()
		if !ok {
			return
		}
		// Hold the next event while the hub is stopped.
		for !h.started.Load() {
			wake := h.ready.wait()
			if h.started.Load() {
				break
			}
			select {
			case <-wake:
			case <-h.stopCh:
				return
			}
		}
		h.processEvent(e)
	}
}

func (h *Hub) processEvent(e *types.Event) {
	ctx, span := h.tel.StartDispatch(context.Background(), string(e.Type), string(e.Source))
	defer span.End()

	h.preMu.Lock()
	pre := append([]PreProcessor(nil), h.preProcessor...)
	h.preMu.Unlock()
	for _, pp := range pre {
		pp.Process(e, h)
	}

	h.mu.RLock()
	var matched []*listener
	for _, l := range h.listeners {
		if l.matches(e) {
			matched = append(matched, l)
		}
	}
	var rl *responseListener
	if e.ResponseID != "" {
		if cand, ok := h.responses[e.ResponseID]; ok && !cand.fired {
			rl = cand
		}
	}
	h.mu.RUnlock()

	if rl != nil {
		h.mu.Lock()
		if !rl.fired {
			rl.fired = true
			if rl.timer != nil {
				rl.timer.Stop()
			}
			delete(h.responses, rl.triggerID)
		} else {
			rl = nil
		}
		h.mu.Unlock()
	}

	// Remove fired one-shot (responseFilter-gated) listeners.
	if len(matched) > 0 {
		oneShot := map[uint64]bool{}
		for _, l := range matched {
			if l.responseFilter != "" {
				oneShot[l.id] = true
			}
		}
		if len(oneShot) > 0 {
			h.mu.Lock()
			filtered := h.listeners[:0:0]
			for _, l := range h.listeners {
				if !oneShot[l.id] {
					filtered = append(filtered, l)
				}
			}
			h.listeners = filtered
			h.mu.Unlock()
		}
	}

	byOwner := map[string][]extension.HandlerFunc{}
	var order []string
	for _, l := range matched {
		if _, seen := byOwner[l.owner]; !seen {
			order = append(order, l.owner)
		}
		byOwner[l.owner] = append(byOwner[l.owner], l.handler)
	}
	for _, owner := range order {
		h.deliverToOwner(owner, e, byOwner[owner])
	}

	if rl != nil {
		h.deliverToOwner(rl.owner, e, []extension.HandlerFunc{func(ev *types.Event) { rl.handler(ev) }})
	}

	h.tel.RecordDispatch(ctx, len(matched))
}

func (h *Hub) deliverToOwner(owner string, event *types.Event, handlers []extension.HandlerFunc) {
	h.mu.RLock()
	rec, ok := h.extensions[owner]
	h.mu.RUnlock()
	if !ok {
		return
	}
	rec.enqueue(task{event: event, handlers: handlers})
}

// broadcastStateUpdate wakes every extension's ReadyForEvent retry loop
// (spec §6: "retried after the next shared-state update anywhere") and
// emits a hub-internal hub/sharedState event extensions may listen for.
func (h *Hub) broadcastStateUpdate(owner string, seq uint64) {
	h.ready.broadcast()
	ev := types.NewEvent("Shared State Update", types.EventTypeHub, types.EventSourceSharedState, types.Map{
		"stateowner": types.String(owner),
		"seq":        types.Int(int64(seq)),
	})
	h.Dispatch(ev)
}

// SharedState implements Access for the rules engine / token finder.
func (h *Hub) SharedState(ns sharedstate.Namespace, owner string, atSeq uint64, barrier sharedstate.Barrier) sharedstate.Result {
	reg := h.registryFor(ns)
	return reg.Get(owner, atSeq, barrier)
}

func (h *Hub) registryFor(ns sharedstate.Namespace) *sharedstate.Registry {
	if ns == sharedstate.NamespaceXDM {
		return h.xdm
	}
	return h.standard
}
