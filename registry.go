package grid

import (
	"github.com/gogpu/grid/internal/bitset"
)

// Registry is the grid dependency registry: a fixed-capacity DAG
// scheduler over at most MaxGrids live grids.
//
// Clients Attach grids, declare predecessor edges with HappensAfter (or
// HappensAfterKey through the key map) while a grid is still Ready, then
// Start it. The registry drives each grid through its state machine and
// dispatches the execute callback through the configured Scheduler once
// the last predecessor completes.
//
// Registry is not safe for concurrent use. All methods, including
// Complete called from completion-pool callbacks, must run on the single
// owner goroutine; that is what makes the dependency bitset algebra safe
// without locks.
type Registry struct {
	slots [MaxGrids]gridSlot
	free  bitset.Set256 // set bit = ID free
	live  int
	keys  map[uint64]Handle
	sched Scheduler
}

// NewRegistry creates an empty registry. All IDs start free; slot
// generations start at 1 so the zero Handle never names a grid.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := defaultRegistryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sched == nil {
		o.sched = NewRunQueue()
	}
	r := &Registry{
		keys:  make(map[uint64]Handle),
		sched: o.sched,
	}
	for i := range r.slots {
		r.slots[i].state = StateDetached
		r.slots[i].gen = 1
		r.free.Set(uint(i))
	}
	return r
}

// Scheduler returns the work queue the registry dispatches through.
func (r *Registry) Scheduler() Scheduler { return r.sched }

// Live returns the number of currently attached grids.
func (r *Registry) Live() int { return r.live }

// Cap returns the registry capacity, MaxGrids.
func (r *Registry) Cap() int { return MaxGrids }

// slot resolves a handle to its live slot, or nil if the handle is stale
// (the grid detached and the slot was or can be reused).
func (r *Registry) slot(h Handle) *gridSlot {
	if h.id >= MaxGrids {
		return nil
	}
	s := &r.slots[h.id]
	if s.gen != h.gen || s.state == StateDetached {
		return nil
	}
	return s
}

// Valid reports whether h still names a live grid.
func (r *Registry) Valid(h Handle) bool { return r.slot(h) != nil }

// State returns the current state of the grid named by h. A stale handle
// reports StateDetached: from the caller's point of view that grid's
// lifecycle is over.
func (r *Registry) State(h Handle) State {
	s := r.slot(h)
	if s == nil {
		return StateDetached
	}
	return s.state
}

// Attach registers a new unit of work and returns its handle. The grid
// starts in StateReady with no dependencies.
//
// If the registry is at capacity, Attach blocks by repeatedly asking the
// scheduler for one unit of progress until some live grid detaches;
// capacity pressure reaches callers as latency, never as an error.
//
// IDs are reused lowest-first, which keeps allocation deterministic for
// collaborators that replay work in ID order.
func (r *Registry) Attach(desc *GridDesc) Handle {
	if desc == nil {
		desc = &GridDesc{}
	}
	for r.live == MaxGrids {
		r.sched.WaitOne()
	}
	id := uint8(r.free.FirstSet())
	r.free.Clear(uint(id))
	r.live++

	s := &r.slots[id]
	gen := s.gen
	*s = gridSlot{
		state:   StateReady,
		gen:     gen,
		label:   desc.Label,
		payload: desc.Payload,
		waiting: desc.OnWaiting,
		execute: desc.OnExecute,
		dispose: desc.OnDispose,
	}
	Logger().Debug("grid: attach", "id", id, "label", s.label, "live", r.live)
	return Handle{id: id, gen: gen}
}

// HappensAfter declares that dependent must not execute until dependency
// has completed. Legal only while dependent is still Ready; dependency
// declaration is a construction-time concept.
//
// If dependency already completed (or its handle is stale), the edge is
// already satisfied and the call is a no-op. This lets callers build
// edges without checking liveness first.
func (r *Registry) HappensAfter(dependent, dependency Handle) {
	dep := r.slot(dependent)
	if dep == nil {
		return
	}
	assertf(dep.state == StateReady,
		"HappensAfter on grid %d in state %v", dependent.id, dep.state)
	if dep.state != StateReady {
		return
	}
	if dependent.id == dependency.id {
		assertf(false, "grid %d cannot depend on itself", dependent.id)
		return
	}
	src := r.slot(dependency)
	if src == nil || src.state >= StateComplete {
		return
	}
	if dep.before.Set(uint(dependency.id)) {
		dep.nbefore++
	}
	if src.after.Set(uint(dependent.id)) {
		src.nafter++
	}
}

// MapKey records an external key for h so collaborators can reference
// the work by an opaque identifier instead of holding the handle.
// A later MapKey with the same key replaces the mapping.
func (r *Registry) MapKey(h Handle, key uint64) {
	if r.slot(h) == nil {
		return
	}
	r.keys[key] = h
}

// HappensAfterKey is HappensAfter with the dependency resolved through
// the key map. An unmapped key, or one whose grid already finished, is a
// no-op: the referenced work is already done or was never tracked.
func (r *Registry) HappensAfterKey(dependent Handle, key uint64) {
	h, ok := r.keys[key]
	if !ok {
		return
	}
	if r.slot(h) == nil {
		// The mapped grid detached; drop the stale entry on the way out.
		delete(r.keys, key)
		return
	}
	r.HappensAfter(dependent, h)
}

// UnmapKeys removes key mappings without touching grid state. Call once
// a key is known to never be referenced again.
func (r *Registry) UnmapKeys(keys []uint64) {
	for _, key := range keys {
		delete(r.keys, key)
	}
}

// Start moves a Ready grid toward execution: the waiting callback runs
// once, and if the grid has no outstanding dependencies it transitions
// to Executing immediately (its execute callback is dispatched through
// the scheduler, never inline).
func (r *Registry) Start(h Handle) {
	s := r.slot(h)
	if s == nil {
		return
	}
	assertf(s.state == StateReady, "Start on grid %d in state %v", h.id, s.state)
	if s.state != StateReady {
		return
	}
	r.enterWaiting(h, s)
	if s.nbefore == 0 {
		r.toExecuting(h, s)
	}
}

// Force eagerly pushes a grid toward execution. A Ready grid passes
// through its waiting step first; if dependencies remain, every
// not-yet-forced predecessor is forced too, transitively. Forcing a grid
// that is already forced, executing or complete is a no-op.
//
// The traversal is an explicit work stack, so the call stack stays
// bounded no matter how deep the dependency graph is.
func (r *Registry) Force(h Handle) {
	if r.slot(h) == nil {
		return
	}
	stack := make([]uint8, 0, 8)
	stack = append(stack, h.id)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s := &r.slots[id]
		if s.state >= StateForced {
			continue
		}
		hh := Handle{id: id, gen: s.gen}
		if s.state == StateReady {
			r.enterWaiting(hh, s)
		}
		if s.nbefore == 0 {
			r.toExecuting(hh, s)
			continue
		}
		s.state = StateForced
		s.before.Range(func(i uint) bool {
			if r.slots[i].state < StateForced {
				stack = append(stack, uint8(i))
			}
			return true
		})
	}
}

// ForceByKeys forces the grid mapped to each key and blocks until that
// grid has reached at least StateComplete, pumping the scheduler while
// it waits. Use it when previously requested asynchronous work must have
// actually finished before proceeding, e.g. before reusing a resource
// that work was reading. Keys with no live mapping are skipped.
func (r *Registry) ForceByKeys(keys []uint64) {
	for _, key := range keys {
		h, ok := r.keys[key]
		if !ok {
			continue
		}
		if r.slot(h) == nil {
			delete(r.keys, key)
			continue
		}
		r.Force(h)
		for r.State(h) < StateComplete {
			r.sched.WaitOne()
		}
	}
}

// Complete reports that h's device-side work has finished. It is
// normally called from a completion-pool callback, on the owner
// goroutine.
//
// Every dependent registered in h's after set has its matching before
// bit cleared, in ascending ID order; a dependent whose last dependency
// clears while it is Waiting or Forced transitions to Executing. The
// iteration order is deterministic but carries no priority meaning:
// dependents must not rely on completion order matching submission
// order. After propagation the dispose callback runs and the grid
// detaches, recycling its ID.
func (r *Registry) Complete(h Handle) {
	s := r.slot(h)
	if s == nil {
		return
	}
	assertf(s.state == StateExecuting,
		"Complete on grid %d in state %v", h.id, s.state)
	if s.state != StateExecuting {
		return
	}
	s.state = StateComplete

	id := uint(h.id)
	s.after.Range(func(i uint) bool {
		d := &r.slots[i]
		if d.before.Clear(id) {
			d.nbefore--
			assertf(d.nbefore >= 0, "grid %d dependency count underflow", i)
			if d.nbefore == 0 && (d.state == StateWaiting || d.state == StateForced) {
				r.toExecuting(Handle{id: uint8(i), gen: d.gen}, d)
			}
		}
		return true
	})

	if s.dispose != nil {
		s.dispose(h, s.payload)
	}
	r.detach(h.id, s)
}

// detach finalizes a completed grid: the slot forgets the incarnation,
// the generation advances so every outstanding handle goes stale, and
// the ID returns to the free set for lowest-first reuse. The free-bit
// transition guards the live count so a slot can only be released once.
func (r *Registry) detach(id uint8, s *gridSlot) {
	Logger().Debug("grid: detach", "id", id, "label", s.label)
	s.state = StateDetached
	s.gen++
	s.label = ""
	s.payload = nil
	s.waiting = nil
	s.execute = nil
	s.dispose = nil
	s.before.Reset()
	s.after.Reset()
	s.nbefore = 0
	s.nafter = 0
	if r.free.Set(uint(id)) {
		r.live--
	}
}

// enterWaiting performs the Ready to Waiting step: the state flips, the
// waiting callback runs once, and the handle generation becomes the only
// way back in (stale construction-time references are rejected by the
// state checks above).
func (r *Registry) enterWaiting(h Handle, s *gridSlot) {
	s.state = StateWaiting
	if s.waiting != nil {
		s.waiting(h, s.payload)
	}
}

// toExecuting dispatches the execute callback through the scheduler so
// execution never nests inside a dependency-graph mutation. A grid with
// no execute callback has no device work: it completes as soon as the
// scheduler reaches it.
func (r *Registry) toExecuting(h Handle, s *gridSlot) {
	s.state = StateExecuting
	Logger().Debug("grid: executing", "id", h.id, "label", s.label)
	exec := s.execute
	payload := s.payload
	if exec == nil {
		r.sched.Schedule(s.label, func() { r.Complete(h) })
		return
	}
	r.sched.Schedule(s.label, func() { exec(h, payload) })
}
