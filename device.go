package grid

import "time"

// Fence is an opaque device completion primitive. A fence is created
// unsignaled by a Device, becomes observably signaled after the command
// batch it was submitted with finishes, and can be reset for reuse.
// Fences are owned by the Device that created them; the pool only moves
// them around.
type Fence interface{}

// CommandBatch is one unit of recorded device work. The pool calls
// Release exactly once, after the batch's fence has been observed
// signaled, so the batch can return to whatever pool owns it.
type CommandBatch interface {
	// DebugName returns a label for logging. May be empty.
	DebugName() string

	// Release returns the batch to its owning pool. Called by the
	// completion pool after the device signaled the batch's fence and
	// before the completion callback runs.
	Release()
}

// Device is the submission backend boundary. Implementations live in
// backend/ (pure Go), backend/native (gogpu/wgpu HAL) and backend/gogpu
// (gpucontext hosts).
//
// Devices must guarantee that a fence passed to Submit becomes observably
// signaled, via WaitAny, after the submitted batch finishes on the device.
// Host-side calls are made from the pool's owner goroutine only; the
// device side may complete work on any thread.
type Device interface {
	// Name returns the backend identifier (e.g. "software", "native").
	Name() string

	// NewFence creates a fresh, unsignaled fence.
	NewFence() (Fence, error)

	// DestroyFence releases a fence created by NewFence.
	DestroyFence(f Fence)

	// ResetFence returns a signaled fence to the unsignaled state so it
	// can be reused for another submission.
	ResetFence(f Fence) error

	// Submit hands a batch to the device for asynchronous execution and
	// associates it with f, which signals when the batch finishes.
	// Submit itself must not block on device completion.
	Submit(batch CommandBatch, f Fence) error

	// WaitAny blocks until at least one of fences is signaled or the
	// timeout expires. It returns the indices (into fences) of every
	// fence observed signaled. A timeout is not an error: WaitAny
	// returns (nil, nil). A zero timeout performs a single poll pass.
	// Any non-nil error means the device context is unrecoverable.
	WaitAny(fences []Fence, timeout time.Duration) ([]int, error)

	// Close releases the device. Outstanding submissions must have been
	// drained first.
	Close()
}
