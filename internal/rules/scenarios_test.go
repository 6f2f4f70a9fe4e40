package rules_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corehub/sdk/internal/dataqueue"
	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/hitqueue"
	"github.com/corehub/sdk/internal/hub"
	"github.com/corehub/sdk/internal/rules"
	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/types"
)

// capture is a minimal extension that records every event it is handed, in
// delivery order.
type capture struct {
	name string

	mu     sync.Mutex
	events []*types.Event
}

func newCapture(name string) *capture { return &capture{name: name} }

func (c *capture) Name() string               { return c.name }
func (c *capture) Version() string            { return "1.0.0" }
func (c *capture) Metadata() map[string]string { return nil }

func (c *capture) OnRegistered(rt extension.Runtime) {
	rt.RegisterListener(types.EventType(types.Wildcard), types.EventSource(types.Wildcard), func(e *types.Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
	})
}

func (c *capture) OnUnregistered()                 {}
func (c *capture) ReadyForEvent(*types.Event) bool { return true }

func (c *capture) snapshot() []*types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Event, len(c.events))
	copy(out, c.events)
	return out
}

// waitForMatch polls listener's received events until one satisfies pred,
// failing the test if none does before the deadline. Predicate-based
// rather than count-based: preprocessor-dispatched bookkeeping events
// (reset requests, shared-state updates) interleave with the events under
// test, so asserting an exact delivered count is brittle.
func waitForMatch(t *testing.T, listener *capture, pred func(*types.Event) bool) *types.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range listener.snapshot() {
			if pred(e) {
				return e
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for matching event")
	return nil
}

// lifecycleRuntime registers a stub extension under owner purely to obtain
// a bound Runtime it can publish shared state through.
func lifecycleRuntime(t *testing.T, h *hub.Hub, owner string) extension.Runtime {
	t.Helper()
	var rt extension.Runtime
	ready := make(chan struct{})
	result, err := h.RegisterExtension(func() extension.Extension {
		return &runtimeGrabber{name: owner, onReady: func(r extension.Runtime) {
			rt = r
			close(ready)
		}}
	})
	require.NoError(t, err)
	require.NoError(t, <-result)
	<-ready
	return rt
}

// runtimeGrabber is an Extension whose only job is to hand its bound
// Runtime back to the test via onReady.
type runtimeGrabber struct {
	name    string
	onReady func(extension.Runtime)
}

func (g *runtimeGrabber) Name() string               { return g.name }
func (g *runtimeGrabber) Version() string            { return "1.0.0" }
func (g *runtimeGrabber) Metadata() map[string]string { return nil }
func (g *runtimeGrabber) OnRegistered(rt extension.Runtime) { g.onReady(rt) }
func (g *runtimeGrabber) OnUnregistered()                   {}
func (g *runtimeGrabber) ReadyForEvent(*types.Event) bool   { return true }

// newScenarioHub wires a hub with the rules engine installed and a single
// wildcard listener, loads doc, and waits for the rule set to take effect
// (its self-addressed reset request drained) before returning.
func newScenarioHub(t *testing.T, doc string) (*hub.Hub, *capture) {
	t.Helper()
	h := hub.New()
	t.Cleanup(h.Close)

	engine := rules.New("test.rulesengine", h)
	h.RegisterPreProcessor(engine)

	listener := newCapture("test.listener")
	result, err := h.RegisterExtension(func() extension.Extension { return listener })
	require.NoError(t, err)
	require.NoError(t, <-result)

	h.Start()
	waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == "Hub Booted" })

	d, err := rules.Parse([]byte(doc))
	require.NoError(t, err)
	engine.ReplaceRules(d.Rules)
	waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == rules.ResetRequestEventName })

	return h, listener
}

func TestRulesScenarios(t *testing.T) {
	t.Run("S1 attach-data rule", func(t *testing.T) {
		const doc = `{
			"version": 1,
			"rules": [{
				"condition": {"type": "matcher", "definition": {"key": "~state.test.s1.lifecycle/lifecyclecontextdata.carriername", "matcher": "eq", "values": ["AT&T"]}},
				"consequences": [{"id": "c1", "type": "add", "detail": {"eventdata": {"attached": "yes"}}}]
			}]
		}`
		h, listener := newScenarioHub(t, doc)
		rt := lifecycleRuntime(t, h, "test.s1.lifecycle")
		require.NoError(t, rt.CreateSharedState(sharedstate.NamespaceStandard, types.Map{
			"lifecyclecontextdata": types.FromMap(types.Map{"carriername": types.String("AT&T")}),
		}, nil))

		h.Dispatch(types.NewEvent("Lifecycle Response", types.EventTypeLifecycle, types.EventSourceResponseContent, types.Map{
			"lifecyclecontextdata": types.FromMap(types.Map{"launchevent": types.String("LaunchEvent")}),
		}))

		evt := waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == "Lifecycle Response" })
		attached, _ := evt.Data()["attached"].AsString()
		require.Equal(t, "yes", attached)
		ctxData, ok := evt.Data()["lifecyclecontextdata"].AsMap()
		require.True(t, ok)
		launch, _ := ctxData["launchevent"].AsString()
		require.Equal(t, "LaunchEvent", launch)
	})

	t.Run("S2 modify-data rule", func(t *testing.T) {
		const doc = `{
			"version": 1,
			"rules": [{
				"condition": {"type": "matcher", "definition": {"key": "~state.test.s2.lifecycle/lifecyclecontextdata.carriername", "matcher": "eq", "values": ["AT&T"]}},
				"consequences": [{"id": "c1", "type": "mod", "detail": {"eventdata": {"lifecyclecontextdata": {"launchevent": "Modified"}}}}]
			}]
		}`
		h, listener := newScenarioHub(t, doc)
		rt := lifecycleRuntime(t, h, "test.s2.lifecycle")
		require.NoError(t, rt.CreateSharedState(sharedstate.NamespaceStandard, types.Map{
			"lifecyclecontextdata": types.FromMap(types.Map{"carriername": types.String("AT&T")}),
		}, nil))

		h.Dispatch(types.NewEvent("Lifecycle Response", types.EventTypeLifecycle, types.EventSourceResponseContent, types.Map{
			"lifecyclecontextdata": types.FromMap(types.Map{"launchevent": types.String("LaunchEvent")}),
		}))

		evt := waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == "Lifecycle Response" })
		ctxData, ok := evt.Data()["lifecyclecontextdata"].AsMap()
		require.True(t, ok)
		launch, _ := ctxData["launchevent"].AsString()
		require.Equal(t, "Modified", launch)
	})

	t.Run("S3 dispatch consequence", func(t *testing.T) {
		const doc = `{
			"version": 1,
			"rules": [{
				"condition": {"type": "matcher", "definition": {"key": "~type", "matcher": "eq", "values": ["lifecycle"]}},
				"consequences": [{"id": "c1", "type": "pb", "detail": {}}]
			}]
		}`
		h, listener := newScenarioHub(t, doc)

		h.Dispatch(types.NewEvent("Lifecycle Response", types.EventTypeLifecycle, types.EventSourceResponseContent, nil))

		found := waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == rules.ConsequenceEventName })
		require.Equal(t, types.EventTypeRulesEngine, found.Type)
		require.Equal(t, types.EventSourceResponseContent, found.Source)
		triggered, ok := found.Data()["triggeredconsequence"].AsMap()
		require.True(t, ok)
		typ, _ := triggered["type"].AsString()
		require.Equal(t, "pb", typ)
	})

	t.Run("S4 numeric matcher", func(t *testing.T) {
		const doc = `{
			"version": 1,
			"rules": [{
				"condition": {"type": "matcher", "definition": {"key": "~state.test.s4.lifecycle/launches", "matcher": "gt", "values": [2]}},
				"consequences": [{"id": "c1", "type": "add", "detail": {"eventdata": {"eligible": "yes"}}}]
			}]
		}`
		h, listener := newScenarioHub(t, doc)
		rt := lifecycleRuntime(t, h, "test.s4.lifecycle")
		require.NoError(t, rt.CreateSharedState(sharedstate.NamespaceStandard, types.Map{"launches": types.Int(2)}, nil))

		h.Dispatch(types.NewEvent("Check One", types.EventTypeLifecycle, types.EventSourceResponseContent, nil))
		evt := waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == "Check One" })
		_, hasEligible := evt.Data()["eligible"]
		require.False(t, hasEligible)

		require.NoError(t, rt.CreateSharedState(sharedstate.NamespaceStandard, types.Map{"launches": types.Int(3)}, nil))

		h.Dispatch(types.NewEvent("Check Two", types.EventTypeLifecycle, types.EventSourceResponseContent, nil))
		evt = waitForMatch(t, listener, func(e *types.Event) bool { return e.Name == "Check Two" })
		eligible, _ := evt.Data()["eligible"].AsString()
		require.Equal(t, "yes", eligible)
	})
}

type scenarioProcessor struct {
	mu         sync.Mutex
	calls      int
	failFirstN int
	onCall     func()
}

func (p *scenarioProcessor) Process(_ context.Context, hit hitqueue.Hit, complete hitqueue.CompletionFunc) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	if p.onCall != nil {
		p.onCall()
	}
	complete(n > p.failFirstN)
}

func (p *scenarioProcessor) RetryInterval(hitqueue.Hit) time.Duration { return 10 * time.Millisecond }

func (p *scenarioProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestHitQueueScenarios(t *testing.T) {
	t.Run("S5 hit retry until success", func(t *testing.T) {
		q := dataqueue.NewMemory()
		proc := &scenarioProcessor{failFirstN: 2}
		hq := hitqueue.New(q, proc)
		defer hq.Close()

		require.NoError(t, hq.Queue(hitqueue.Hit{UniqueID: "h1", Payload: []byte("payload")}))
		hq.BeginProcessing()

		require.Eventually(t, func() bool {
			c, _ := hq.Count()
			return c == 0
		}, 2*time.Second, 5*time.Millisecond)
		require.Equal(t, 3, proc.callCount())
	})

	t.Run("S6 privacy opt-out mid-flight", func(t *testing.T) {
		q := dataqueue.NewMemory()
		started := make(chan struct{})
		release := make(chan struct{})
		proc := &scenarioProcessor{}
		proc.onCall = func() {
			if proc.callCount() == 2 {
				close(started)
				<-release
			}
		}
		hq := hitqueue.New(q, proc)
		defer hq.Close()

		for i := 0; i < 5; i++ {
			require.NoError(t, hq.Queue(hitqueue.Hit{UniqueID: "h", Payload: []byte{byte(i)}}))
		}
		hq.BeginProcessing()
		<-started

		require.NoError(t, hq.HandlePrivacyChange(hitqueue.PrivacyOptedOut))
		close(release)

		require.Eventually(t, func() bool {
			c, _ := hq.Count()
			return c == 0
		}, time.Second, 5*time.Millisecond)
	})
}
