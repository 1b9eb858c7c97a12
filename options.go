package grid

import "time"

// DefaultWaitTimeout is the pool's standard fence wait timeout. A timeout
// causes a retry, not an abort; it exists to keep the owner goroutine
// responsive while waiting on the device.
const DefaultWaitTimeout = 250 * time.Millisecond

// RegistryOption configures a Registry during creation.
//
// Example:
//
//	// Default cooperative run queue
//	reg := grid.NewRegistry()
//
//	// Shared scheduler wired to a completion pool
//	rq := grid.NewRunQueue(grid.WithIdle(pool.Wait))
//	reg := grid.NewRegistry(grid.WithScheduler(rq))
type RegistryOption func(*registryOptions)

type registryOptions struct {
	sched Scheduler
}

func defaultRegistryOptions() registryOptions {
	return registryOptions{
		sched: nil, // NewRegistry falls back to a fresh RunQueue.
	}
}

// WithScheduler sets the work-queue the registry dispatches execute
// callbacks through and blocks on at capacity. If unset, the registry
// owns a private RunQueue.
func WithScheduler(s Scheduler) RegistryOption {
	return func(o *registryOptions) {
		o.sched = s
	}
}

// PoolOption configures a Pool during creation.
type PoolOption func(*poolOptions)

type poolOptions struct {
	timeout      time.Duration
	onDeviceLost func(error)
}

func defaultPoolOptions() poolOptions {
	return poolOptions{
		timeout:      DefaultWaitTimeout,
		onDeviceLost: nil, // NewPool installs the panicking default.
	}
}

// WithWaitTimeout overrides the pool's standard wait timeout used by
// Wait, Drain and the blocking path of Acquire. Yield always polls with
// a zero timeout regardless of this setting.
func WithWaitTimeout(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDeviceLostHandler sets the hook invoked when a fence wait fails
// with anything other than a timeout. The pool's bookkeeping cannot be
// proven consistent after such a failure, so the default handler panics
// with the wrapped error; hosts that want a cleaner shutdown install
// their own handler and must not touch the pool afterwards.
func WithDeviceLostHandler(fn func(error)) PoolOption {
	return func(o *poolOptions) {
		o.onDeviceLost = fn
	}
}
