package rules

import (
	"encoding/json"
	"sync"

	"github.com/corehub/sdk/internal/hub"
	"github.com/corehub/sdk/internal/rules/token"
	"github.com/corehub/sdk/internal/types"
)

// ConsequenceEventName and ResetRequestEventName are the two hub-internal
// event names the engine emits (spec §4.4).
const (
	ConsequenceEventName  = "Rules Consequence Event"
	ResetRequestEventName = "Rules Reset Request"
)

// Engine evaluates every dispatched event against its active rule set
// ahead of listener delivery (spec §4.4), installed on the hub as a
// PreProcessor. It is named so its self-addressed reset-request event can
// find its way back to the right engine instance if more than one is ever
// wired into the same hub.
type Engine struct {
	name   string
	access hub.Access

	mu      sync.RWMutex
	active  []Rule
	waiting []*types.Event
	buffer  bool
}

var _ hub.PreProcessor = (*Engine)(nil)

// New constructs an Engine bound to access. Buffering begins immediately:
// every event seen before the first ReplaceRules call is held so a remote
// rules download racing app startup never loses events.
func New(name string, access hub.Access) *Engine {
	return &Engine{name: name, access: access, buffer: true}
}

// ReplaceRules atomically swaps the active rule set and dispatches a
// self-addressed reset request; on receipt the engine drains whatever was
// buffered while no rules were loaded, in arrival order, then stops
// buffering.
func (e *Engine) ReplaceRules(rules []Rule) {
	e.mu.Lock()
	e.active = rules
	e.mu.Unlock()
	e.access.Dispatch(types.NewEvent(ResetRequestEventName, types.EventTypeRulesEngine, types.EventSourceRequestReset, types.Map{
		"engine": types.String(e.name),
	}))
}

// Process implements hub.PreProcessor: every event is evaluated against the
// active rule set before any listener sees it. While buffering is in
// effect, an event is only queued here, not evaluated — it is evaluated
// exactly once, against whatever rule set is active by the time the
// self-addressed reset request drains the backlog (testable property 7).
// Evaluating here too, in addition to the drain, would double-apply
// consequences for any event the hub hands to Process between
// ReplaceRules's active-set swap and its reset request actually arriving.
func (e *Engine) Process(event *types.Event, _ hub.Access) {
	if e.isOwnResetRequest(event) {
		e.drainWaiting()
		return
	}

	e.mu.Lock()
	if e.buffer {
		e.waiting = append(e.waiting, event)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.evaluate(event)
}

func (e *Engine) isOwnResetRequest(event *types.Event) bool {
	if event.Type != types.EventTypeRulesEngine || event.Source != types.EventSourceRequestReset {
		return false
	}
	name, _ := event.Data()["engine"].AsString()
	return name == e.name
}

func (e *Engine) drainWaiting() {
	e.mu.Lock()
	batch := e.waiting
	e.waiting = nil
	e.buffer = false
	e.mu.Unlock()

	for _, ev := range batch {
		e.evaluate(ev)
	}
}

// evaluate runs the active rule set against event: matching rules apply
// their consequences in order, mutating event's data for add/mod and
// dispatching new events for everything else.
func (e *Engine) evaluate(event *types.Event) {
	e.mu.RLock()
	ruleSet := e.active
	e.mu.RUnlock()

	finder := token.New(event, e.access)

	for _, rule := range ruleSet {
		if !evaluate(rule.Condition, finder) {
			continue
		}
		for _, cons := range rule.Consequences {
			e.applyConsequence(event, cons, finder.Render)
		}
	}
}

func (e *Engine) applyConsequence(event *types.Event, cons Consequence, render func(string) string) {
	var raw any
	if len(cons.Detail) > 0 {
		if err := json.Unmarshal(cons.Detail, &raw); err != nil {
			return
		}
	}
	detail := renderValue(types.FromAny(raw), render)

	switch cons.Type {
	case "add", "mod":
		detailMap, ok := detail.AsMap()
		if !ok {
			return
		}
		eventData, ok := detailMap["eventdata"]
		if !ok {
			return
		}
		dataMap, ok := eventData.AsMap()
		if !ok {
			return
		}
		event.SetData(merge(event.Data(), dataMap, cons.Type == "mod"))
	default:
		e.access.Dispatch(types.NewEvent(ConsequenceEventName, types.EventTypeRulesEngine, types.EventSourceResponseContent, types.Map{
			"triggeredconsequence": types.FromMap(types.Map{
				"id":     types.String(cons.ID),
				"type":   types.String(cons.Type),
				"detail": detail,
			}),
		}))
	}
}
