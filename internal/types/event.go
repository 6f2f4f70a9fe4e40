package types

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Wildcard matches any EventType or EventSource in a listener selector.
const Wildcard = "*"

// EventType is a closed-but-extensible discriminator. New extensions are
// free to mint their own type strings; the vocabulary below is the one
// corehub's own components rely on.
type EventType string

// EventSource is the second discriminator axis on an Event.
type EventSource string

const (
	EventTypeConfiguration EventType = "configuration"
	EventTypeRulesEngine   EventType = "rulesEngine"
	EventTypeLifecycle     EventType = "lifecycle"
	EventTypeHub           EventType = "hub"

	EventSourceRequestContent  EventSource = "requestContent"
	EventSourceResponseContent EventSource = "responseContent"
	EventSourceSharedState     EventSource = "sharedState"
	EventSourceBooted          EventSource = "booted"
	EventSourceRequestReset    EventSource = "requestReset"
)

// Event is the unit of dispatch. Identity fields are fixed at construction;
// Data may be replaced wholesale by the rules engine between ingress and
// listener delivery, and is treated as immutable once delivery begins.
type Event struct {
	ID        string
	Name      string
	Type      EventType
	Source    EventSource
	Timestamp time.Time
	Seq       uint64

	ResponseID string
	ParentID   string

	mu   sync.RWMutex
	data Map
}

// NewEvent constructs an Event with a freshly minted ID and the given data.
// The data map is cloned so later mutation by the caller cannot leak into
// the event.
func NewEvent(name string, typ EventType, source EventSource, data Map) *Event {
	if data == nil {
		data = Map{}
	}
	return &Event{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      typ,
		Source:    source,
		Timestamp: time.Now(),
		data:      data.Clone(),
	}
}

// Data returns a snapshot of the event's data tree.
func (e *Event) Data() Map {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data.Clone()
}

// SetData atomically replaces the data tree. Used only by the rules engine
// between ingress and listener delivery (§3 invariant).
func (e *Event) SetData(m Map) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = m.Clone()
}

// MatchesType reports whether the event's type satisfies a listener's type
// selector, honoring Wildcard.
func (e *Event) MatchesType(selector EventType) bool {
	return string(selector) == Wildcard || selector == e.Type
}

// MatchesSource reports whether the event's source satisfies a listener's
// source selector, honoring Wildcard.
func (e *Event) MatchesSource(selector EventSource) bool {
	return string(selector) == Wildcard || selector == e.Source
}
