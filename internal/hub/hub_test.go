package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/types"
)

type fakeExtension struct {
	name  string
	ready func(*types.Event) bool

	mu       sync.Mutex
	received []*types.Event
}

func newFakeExtension(name string) *fakeExtension {
	return &fakeExtension{name: name, ready: func(*types.Event) bool { return true }}
}

func (f *fakeExtension) Name() string               { return f.name }
func (f *fakeExtension) Version() string            { return "1.0.0" }
func (f *fakeExtension) Metadata() map[string]string { return nil }
func (f *fakeExtension) OnRegistered(rt extension.Runtime) {
	rt.RegisterListener(types.EventType(types.Wildcard), types.EventSource(types.Wildcard), func(e *types.Event) {
		f.mu.Lock()
		f.received = append(f.received, e)
		f.mu.Unlock()
	})
}
func (f *fakeExtension) OnUnregistered()                 {}
func (f *fakeExtension) ReadyForEvent(e *types.Event) bool { return f.ready(e) }

func (f *fakeExtension) seqs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.received))
	for i, e := range f.received {
		out[i] = e.Seq
	}
	return out
}

func waitForLen(t *testing.T, get func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.GreaterOrEqual(t, get(), want, "timed out waiting for delivery count")
}

func TestPerExtensionOrdering(t *testing.T) {
	h := New()
	defer h.Close()

	ext := newFakeExtension("test.ordering")
	result, err := h.RegisterExtension(func() extension.Extension { return ext })
	require.NoError(t, err)
	require.NoError(t, <-result)

	h.Start()
	const n = 50
	for i := 0; i < n; i++ {
		h.Dispatch(types.NewEvent("Event", types.EventTypeLifecycle, types.EventSourceRequestContent, nil))
	}

	waitForLen(t, func() int { return len(ext.seqs()) }, n+1) // +1 for Hub Booted

	seqs := ext.seqs()
	for i := 1; i < len(seqs); i++ {
		require.Less(t, seqs[i-1], seqs[i], "delivery order must follow seq order")
	}
}

func TestReadyForEventHoldsOnlyThatExtension(t *testing.T) {
	h := New()
	defer h.Close()

	var unblock sync.Once
	blockedUntil := make(chan struct{})
	blocked := newFakeExtension("test.blocked")
	blocked.ready = func(e *types.Event) bool {
		select {
		case <-blockedUntil:
			return true
		default:
			return e.Name != "Block Me"
		}
	}
	free := newFakeExtension("test.free")

	r1, err := h.RegisterExtension(func() extension.Extension { return blocked })
	require.NoError(t, err)
	require.NoError(t, <-r1)
	r2, err := h.RegisterExtension(func() extension.Extension { return free })
	require.NoError(t, err)
	require.NoError(t, <-r2)

	h.Start()
	h.Dispatch(types.NewEvent("Block Me", types.EventTypeLifecycle, types.EventSourceRequestContent, nil))
	h.Dispatch(types.NewEvent("Fine", types.EventTypeLifecycle, types.EventSourceRequestContent, nil))

	// free's ReadyForEvent is always true, so it sees all three events
	// (Hub Booted, Block Me, Fine) without waiting on anyone else.
	waitForLen(t, func() int { return len(free.seqs()) }, 3)

	// blocked is stuck on "Block Me" and has not advanced to "Fine" yet.
	require.LessOrEqual(t, len(blocked.seqs()), 2)

	unblock.Do(func() { close(blockedUntil) })
	h.broadcastStateUpdate("test.blocked", 0)

	waitForLen(t, func() int { return len(blocked.seqs()) }, 3)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	h := New()
	defer h.Close()

	factory := func() extension.Extension { return newFakeExtension("test.dup") }
	_, err := h.RegisterExtension(factory)
	require.NoError(t, err)
	_, err = h.RegisterExtension(factory)
	require.ErrorIs(t, err, types.ErrAlreadyRegistered)
}

func TestSharedStateCreateAndGet(t *testing.T) {
	h := New()
	defer h.Close()

	require.NoError(t, h.standard.Create("test.owner", 5, types.Map{"k": types.String("v")}))
	res := h.SharedState(sharedstate.NamespaceStandard, "test.owner", 10, sharedstate.BarrierAny)
	require.Equal(t, sharedstate.StatusSet, res.Status)
	v, _ := res.Value["k"].AsString()
	require.Equal(t, "v", v)
}

func TestUnregisterRemovesListeners(t *testing.T) {
	h := New()
	defer h.Close()

	ext := newFakeExtension("test.unreg")
	r, err := h.RegisterExtension(func() extension.Extension { return ext })
	require.NoError(t, err)
	require.NoError(t, <-r)

	h.Start()
	waitForLen(t, func() int { return len(ext.seqs()) }, 1)

	ur, err := h.UnregisterExtension("test.unreg")
	require.NoError(t, err)
	require.NoError(t, <-ur)

	before := len(ext.seqs())
	h.Dispatch(types.NewEvent("After Unregister", types.EventTypeLifecycle, types.EventSourceRequestContent, nil))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, before, len(ext.seqs()))
}
