// Package extension defines the narrow surface an extension sees (spec
// §4.8/§6): the Extension contract each factory returns, and the Runtime
// handle the hub hands to it in OnRegistered. Grounded on the top-level
// facade pattern of the teacher's own public package (a small re-export of
// internal/* for host code, holding no internal state itself) — here the
// boundary runs the other direction: this package defines the interface,
// internal/hub implements it, so extensions never import internal/hub and
// never hold a hub pointer directly (design note on cyclic references).
package extension

import (
	"time"

	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/types"
)

// HandlerFunc processes one delivered event.
type HandlerFunc func(event *types.Event)

// ResponseHandlerFunc processes a one-shot response event, or is invoked
// with nil after the registration's timeout elapses.
type ResponseHandlerFunc func(event *types.Event)

// Extension is the contract every registered extension implements.
type Extension interface {
	Name() string
	Version() string
	Metadata() map[string]string

	// OnRegistered runs on the extension's own serial queue once the hub has
	// recorded the registration. The extension may install listeners and
	// create its initial shared state here.
	OnRegistered(rt Runtime)
	// OnUnregistered runs on the extension's own serial queue during
	// teardown, after in-flight deliveries have been flushed.
	OnUnregistered()

	// ReadyForEvent is polled by the hub before delivering event. Returning
	// false holds only this extension's delivery; it is retried after the
	// next shared-state update anywhere in the hub.
	ReadyForEvent(event *types.Event) bool
}

// Factory instantiates an Extension. It takes no Runtime — the Runtime is
// handed to the extension later, in OnRegistered, once registration commits.
type Factory func() Extension

// Runtime is the façade an extension uses to talk back to the hub: register
// listeners, dispatch events, and read/write shared state. It is bound to
// one owning extension at construction, so an extension can never act as
// another extension.
type Runtime interface {
	Dispatch(event *types.Event)

	RegisterListener(eventType types.EventType, source types.EventSource, handler HandlerFunc)
	RegisterResponseListener(triggerID string, timeout time.Duration, handler ResponseHandlerFunc)

	CreateSharedState(ns sharedstate.Namespace, data types.Map, event *types.Event) error
	CreatePendingSharedState(ns sharedstate.Namespace, event *types.Event) (sharedstate.Resolver, error)
	GetSharedState(ns sharedstate.Namespace, owner string, event *types.Event, barrier sharedstate.Barrier) sharedstate.Result

	// Name returns the owning extension's registered name.
	Name() string
}
