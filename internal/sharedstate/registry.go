// Package sharedstate implements the per-extension, event-ordered shared
// state registry (spec §4.2). Grounded on the RWMutex-per-owner, clone-on-read
// discipline of the teacher's in-memory extension store
// (internal/daemon/wisp_store.go in the upstream corpus): readers never wait
// on writers from other owners, and snapshots are copied out so a caller
// can never mutate committed history.
package sharedstate

import (
	"sort"
	"sync"

	"github.com/corehub/sdk/internal/types"
)

// Status describes the state of a shared-state entry or a read result.
type Status int

const (
	StatusNone Status = iota
	StatusPending
	StatusSet
)

// Barrier selects the read semantics for Get.
type Barrier int

const (
	// BarrierAny returns whatever entry is found, set or pending.
	BarrierAny Barrier = iota
	// BarrierStrict returns Pending if any earlier pending entry exists for
	// the owner at or before the requested seq, even if a later entry is set.
	BarrierStrict
)

// Namespace selects which of the two parallel registries (standard or xdm)
// a read/write targets.
type Namespace int

const (
	NamespaceStandard Namespace = iota
	NamespaceXDM
)

type entry struct {
	seq     uint64
	status  Status
	value   types.Map
}

type ownerHistory struct {
	mu      sync.RWMutex
	entries []entry // ascending by seq
}

// Resolver converts a pending entry to a set entry. It must be called
// exactly once; subsequent calls are no-ops.
type Resolver func(value types.Map)

// Registry is one of the two parallel (standard/xdm) shared-state
// registries for every extension in the hub.
type Registry struct {
	mu     sync.RWMutex
	owners map[string]*ownerHistory
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{owners: make(map[string]*ownerHistory)}
}

func (r *Registry) ownerFor(owner string, create bool) *ownerHistory {
	r.mu.RLock()
	h, ok := r.owners[owner]
	r.mu.RUnlock()
	if ok || !create {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.owners[owner]; ok {
		return h
	}
	h = &ownerHistory{}
	r.owners[owner] = h
	return h
}

// Create inserts a Set entry at the given seq. Fails with
// types.ErrDuplicateSeq if an entry already exists at that seq.
func (r *Registry) Create(owner string, seq uint64, value types.Map) error {
	h := r.ownerFor(owner, true)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.insert(seq, StatusSet, value)
}

// CreatePending inserts a Pending placeholder at seq and returns a one-shot
// resolver that converts it to Set. Fails with types.ErrDuplicateSeq if an
// entry already exists at that seq.
func (r *Registry) CreatePending(owner string, seq uint64) (Resolver, error) {
	h := r.ownerFor(owner, true)
	h.mu.Lock()
	if err := h.insert(seq, StatusPending, nil); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	h.mu.Unlock()

	var once sync.Once
	return func(value types.Map) {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i := range h.entries {
				if h.entries[i].seq == seq {
					// pending -> set is the only allowed in-place mutation.
					if h.entries[i].status == StatusPending {
						h.entries[i].status = StatusSet
						h.entries[i].value = value.Clone()
					}
					return
				}
			}
		})
	}, nil
}

// insert must be called with h.mu held.
func (h *ownerHistory) insert(seq uint64, status Status, value types.Map) error {
	idx := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].seq >= seq })
	if idx < len(h.entries) && h.entries[idx].seq == seq {
		return types.ErrDuplicateSeq
	}
	e := entry{seq: seq, status: status}
	if value != nil {
		e.value = value.Clone()
	}
	h.entries = append(h.entries, entry{})
	copy(h.entries[idx+1:], h.entries[idx:])
	h.entries[idx] = e
	return nil
}

// Result is the outcome of a Get call.
type Result struct {
	Status Status
	Value  types.Map
}

// Get returns the entry at the greatest seq <= atSeq for owner, applying the
// requested barrier policy.
func (r *Registry) Get(owner string, atSeq uint64, barrier Barrier) Result {
	h := r.ownerFor(owner, false)
	if h == nil {
		return Result{Status: StatusNone}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Find greatest seq <= atSeq.
	idx := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].seq > atSeq }) - 1
	if idx < 0 {
		return Result{Status: StatusNone}
	}

	if barrier == BarrierStrict {
		for i := 0; i <= idx; i++ {
			if h.entries[i].status == StatusPending {
				return Result{Status: StatusPending}
			}
		}
	}

	e := h.entries[idx]
	if e.status == StatusPending {
		return Result{Status: StatusPending}
	}
	return Result{Status: StatusSet, Value: e.value.Clone()}
}

// Forget removes an owner's history entirely. Called on extension
// unregister; subsequent Get calls for that owner return StatusNone.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owners, owner)
}
