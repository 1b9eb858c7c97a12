package grid

// Scheduler is the work-queue abstraction the registry dispatches execute
// callbacks through. Deferring execution through a queue keeps callbacks
// from nesting inside a dependency-graph mutation, and gives blocking
// operations (Attach at capacity, ForceByKeys) a way to make progress
// while they wait.
type Scheduler interface {
	// Schedule enqueues fn for later execution under a debug label.
	Schedule(label string, fn func())

	// WaitOne makes some forward progress: it runs one pending scheduled
	// item if any exist, and otherwise performs whatever idle work the
	// scheduler was configured with (typically pumping a completion
	// pool). It returns once that one step is done.
	WaitOne()
}

// RunQueue is the default Scheduler: a cooperative FIFO run queue driven
// entirely on the owner goroutine. It is not safe for concurrent use,
// matching the single-owner model of the registry and pool.
type RunQueue struct {
	items []runItem
	idle  func()
}

type runItem struct {
	label string
	fn    func()
}

// RunQueueOption configures a RunQueue.
type RunQueueOption func(*RunQueue)

// WithIdle sets the function WaitOne falls back to when the queue is
// empty. Hosts typically pass pool.Wait (or pump.Wait) here so that
// blocking registry operations drive fence completion.
func WithIdle(fn func()) RunQueueOption {
	return func(q *RunQueue) {
		q.idle = fn
	}
}

// NewRunQueue creates an empty run queue.
func NewRunQueue(opts ...RunQueueOption) *RunQueue {
	q := &RunQueue{}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Schedule appends fn to the queue.
func (q *RunQueue) Schedule(label string, fn func()) {
	Logger().Debug("grid: schedule", "label", label)
	q.items = append(q.items, runItem{label: label, fn: fn})
}

// WaitOne runs the oldest pending item, or the idle function if the
// queue is empty. Items scheduled while one runs are executed on later
// calls, preserving FIFO order.
func (q *RunQueue) WaitOne() {
	if len(q.items) == 0 {
		if q.idle != nil {
			q.idle()
		}
		return
	}
	it := q.items[0]
	q.items = q.items[1:]
	it.fn()
}

// Drain runs pending items until the queue is empty. Items scheduled
// by running items are drained too.
func (q *RunQueue) Drain() {
	for len(q.items) > 0 {
		it := q.items[0]
		q.items = q.items[1:]
		it.fn()
	}
}

// Len returns the number of pending items.
func (q *RunQueue) Len() int { return len(q.items) }
