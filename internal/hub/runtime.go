package hub

import (
	"time"

	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/types"
)

// boundRuntime is the extension.Runtime handed to one extension in
// OnRegistered. It closes over the extension's own name so every call is
// implicitly scoped to its owner — an extension can create shared state
// only for itself, and RegisterListener always records it as the owner.
type boundRuntime struct {
	hub   *Hub
	owner string
}

var _ extension.Runtime = (*boundRuntime)(nil)

func (b *boundRuntime) Name() string { return b.owner }

func (b *boundRuntime) Dispatch(event *types.Event) {
	b.hub.Dispatch(event)
}

func (b *boundRuntime) RegisterListener(eventType types.EventType, source types.EventSource, handler extension.HandlerFunc) {
	b.hub.registerListener(b.owner, eventType, source, "", handler)
}

func (b *boundRuntime) RegisterResponseListener(triggerID string, timeout time.Duration, handler extension.ResponseHandlerFunc) {
	b.hub.registerResponseListener(b.owner, triggerID, timeout, handler)
}

func (b *boundRuntime) CreateSharedState(ns sharedstate.Namespace, data types.Map, event *types.Event) error {
	seq := b.seqFor(event)
	reg := b.hub.registryFor(ns)
	if err := reg.Create(b.owner, seq, data); err != nil {
		return err
	}
	b.hub.broadcastStateUpdate(b.owner, seq)
	return nil
}

func (b *boundRuntime) CreatePendingSharedState(ns sharedstate.Namespace, event *types.Event) (sharedstate.Resolver, error) {
	seq := b.seqFor(event)
	reg := b.hub.registryFor(ns)
	resolve, err := reg.CreatePending(b.owner, seq)
	if err != nil {
		return nil, err
	}
	owner, hub := b.owner, b.hub
	return func(value types.Map) {
		resolve(value)
		hub.broadcastStateUpdate(owner, seq)
	}, nil
}

func (b *boundRuntime) GetSharedState(ns sharedstate.Namespace, owner string, event *types.Event, barrier sharedstate.Barrier) sharedstate.Result {
	atSeq := b.seqFor(event)
	reg := b.hub.registryFor(ns)
	return reg.Get(owner, atSeq, barrier)
}

// seqFor resolves the seq an extension call is anchored to: the triggering
// event's seq, or the hub's latest assigned seq when called outside of any
// event delivery (e.g. from OnRegistered).
func (b *boundRuntime) seqFor(event *types.Event) uint64 {
	if event != nil {
		return event.Seq
	}
	return b.hub.nextSeq.Load()
}
