package grid

import (
	"fmt"
	"time"
)

// MaxPayload is the completion payload capacity in bytes. Payloads are
// copied by value into pool-owned storage at Acquire time, so callers
// may free or reuse their buffer immediately and callbacks never alias
// caller memory. The cap is what keeps that copy allocation-free on the
// submission path.
const MaxPayload = 48

// CompletionFunc is the callback stored with an acquired entry. It runs
// exactly once, after the device signaled the entry's fence and after
// the entry has already been returned to the available list, so the
// callback is free to call Acquire, Wait or Drain re-entrantly.
type CompletionFunc func(payload []byte)

// nilIndex terminates the pool's intrusive index lists.
const nilIndex int32 = -1

// poolEntry is one pre-allocated (fence, batch, callback, payload)
// tuple. Entries live in the pool's fixed array for the pool's whole
// life; only their assignment to a submission is dynamic. The next index
// threads the entry onto either the available or the unsignaled list.
type poolEntry struct {
	fence   Fence
	batch   CommandBatch
	fn      CompletionFunc
	payload [MaxPayload]byte
	n       uint8
	next    int32
	hit     bool // transient mark during one poll pass
}

// Pool is the completion pool: it bounds the number of concurrent
// in-flight device submissions and converts polled fence signals into
// single-delivery callback invocations.
//
// Pool is not safe for concurrent use; like the Registry it belongs to a
// single owner goroutine (see the package documentation).
type Pool struct {
	dev     Device
	entries []poolEntry
	avail   int32
	unsig   int32
	timeout time.Duration
	onLost  func(error)

	// poll scratch, reused across passes
	fences []Fence
	ids    []int32
}

// NewPool creates a pool of n entries, each with a freshly created,
// unsignaled fence from dev. All entries start on the available list.
func NewPool(dev Device, n int, opts ...PoolOption) (*Pool, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if n < 1 {
		return nil, ErrBadCapacity
	}
	o := defaultPoolOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.onDeviceLost == nil {
		o.onDeviceLost = func(err error) { panic(err) }
	}

	p := &Pool{
		dev:     dev,
		entries: make([]poolEntry, n),
		avail:   nilIndex,
		unsig:   nilIndex,
		timeout: o.timeout,
		onLost:  o.onDeviceLost,
		fences:  make([]Fence, 0, n),
		ids:     make([]int32, 0, n),
	}
	for i := range p.entries {
		f, err := dev.NewFence()
		if err != nil {
			for j := 0; j < i; j++ {
				dev.DestroyFence(p.entries[j].fence)
			}
			return nil, fmt.Errorf("grid: create fence %d: %w", i, err)
		}
		p.entries[i].fence = f
		p.entries[i].next = p.avail
		p.avail = int32(i)
	}
	Logger().Info("grid: pool created", "entries", n, "device", dev.Name())
	return p, nil
}

// Cap returns the number of pool entries.
func (p *Pool) Cap() int { return len(p.entries) }

// InFlight returns the number of unsignaled entries.
func (p *Pool) InFlight() int {
	n := 0
	for i := p.unsig; i != nilIndex; i = p.entries[i].next {
		n++
	}
	return n
}

// Acquire takes an entry for one device submission. The batch, callback
// and a bytewise copy of payload are stored on the entry, and the
// entry's fence is returned for the caller to pass to its own Submit
// call. Acquire does not submit anything itself.
//
// If no entry is available, Acquire blocks, draining signaled entries
// with the standard wait timeout until one frees. This is the pool's
// back-pressure: callers stall instead of over-submitting to the device.
func (p *Pool) Acquire(batch CommandBatch, fn CompletionFunc, payload []byte) (Fence, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	for p.avail == nilIndex {
		p.pollOnce(p.timeout)
	}

	i := p.avail
	e := &p.entries[i]
	p.avail = e.next
	e.next = p.unsig
	p.unsig = i

	e.batch = batch
	e.fn = fn
	e.n = uint8(copy(e.payload[:], payload))
	if batch != nil {
		Logger().Debug("grid: acquire", "batch", batch.DebugName(), "entry", i)
	}
	return e.fence, nil
}

// Yield performs one non-blocking poll pass if any entries are
// unsignaled, and is a no-op otherwise.
func (p *Pool) Yield() {
	if p.unsig != nilIndex {
		p.pollOnce(0)
	}
}

// Wait performs one poll pass with the standard timeout if any entries
// are unsignaled, and is a no-op otherwise. A timeout is a retry signal,
// not an error; the caller simply calls Wait again.
func (p *Pool) Wait() {
	if p.unsig != nilIndex {
		p.pollOnce(p.timeout)
	}
}

// Drain polls until no unsignaled entries remain. Used at teardown,
// before Close.
func (p *Pool) Drain() {
	for p.unsig != nilIndex {
		p.pollOnce(p.timeout)
	}
}

// Close destroys the pool's fences. The pool must be drained first; any
// still-unsignaled entries are drained here as a last resort.
func (p *Pool) Close() {
	p.Drain()
	for i := range p.entries {
		if p.entries[i].fence != nil {
			p.dev.DestroyFence(p.entries[i].fence)
			p.entries[i].fence = nil
		}
	}
	p.avail = nilIndex
	p.unsig = nilIndex
}

// pollOnce snapshots the unsignaled fences, asks the device to wait for
// any of them (or the timeout), then recycles every entry observed
// signaled: batch released, fence reset, entry back on the available
// list, and only then the stored callback. Callbacks therefore always
// see a pool that has already forgotten their entry and may re-enter
// any pool operation.
func (p *Pool) pollOnce(timeout time.Duration) {
	if p.unsig == nilIndex {
		return
	}

	p.fences = p.fences[:0]
	p.ids = p.ids[:0]
	for i := p.unsig; i != nilIndex; i = p.entries[i].next {
		p.fences = append(p.fences, p.entries[i].fence)
		p.ids = append(p.ids, i)
	}

	signaled, err := p.dev.WaitAny(p.fences, timeout)
	if err != nil {
		p.deviceLost(err)
		return
	}
	if len(signaled) == 0 {
		return
	}

	// Partition: signaled entries leave the unsignaled list, the rest go
	// back (relative order among survivors is not meaningful).
	for _, k := range signaled {
		p.entries[p.ids[k]].hit = true
	}
	p.unsig = nilIndex
	for _, i := range p.ids {
		if !p.entries[i].hit {
			p.entries[i].next = p.unsig
			p.unsig = i
		}
	}

	// sig must be local: a callback below may re-enter pollOnce, which
	// clobbers the shared scratch slices.
	sig := make([]int32, 0, len(signaled))
	for _, k := range signaled {
		sig = append(sig, p.ids[k])
	}

	for _, i := range sig {
		e := &p.entries[i]
		e.hit = false
		batch, fn, n := e.batch, e.fn, e.n
		var buf [MaxPayload]byte
		copy(buf[:], e.payload[:n])
		e.batch = nil
		e.fn = nil
		e.n = 0

		if batch != nil {
			batch.Release()
		}
		if err := p.dev.ResetFence(e.fence); err != nil {
			p.deviceLost(err)
			return
		}
		e.next = p.avail
		p.avail = i
		if fn != nil {
			fn(buf[:n])
		}
	}
}

// deviceLost wraps and reports a fatal wait/poll failure. Anything other
// than a timeout leaves a fence in an unknown state, and with it the
// pool's bookkeeping; there is no partial-recovery path.
func (p *Pool) deviceLost(err error) {
	err = fmt.Errorf("%w: %w", ErrDeviceLost, err)
	Logger().Error("grid: device lost", "err", err)
	p.onLost(err)
}
