package backend

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/grid"
)

// init registers the software device on package import.
func init() {
	Register(BackendSoftware, func() (grid.Device, error) {
		return NewSoftwareDevice(), nil
	})
}

// Job is the software device's grid.CommandBatch: a closure executed on
// a worker goroutine. It stands in for a recorded command buffer.
type Job struct {
	// Label is a debug name for logging.
	Label string

	// Run is the batch body. May be nil for an empty batch.
	Run func()

	// OnRelease runs when the completion pool releases the batch, before
	// the completion callback. Use it to return the job to an owner pool.
	OnRelease func()
}

// DebugName implements grid.CommandBatch.
func (j *Job) DebugName() string { return j.Label }

// Release implements grid.CommandBatch.
func (j *Job) Release() {
	if j.OnRelease != nil {
		j.OnRelease()
	}
}

// softFence is a resettable completion flag. The device pokes wake after
// setting it so a blocked WaitAny re-scans promptly.
type softFence struct {
	signaled atomic.Bool
}

// SoftwareDevice is a pure-Go grid.Device. Submitted jobs run on their
// own goroutines, which is real device-style concurrency: completion
// order is whatever order the goroutines finish in, not submission
// order. It is the universal fallback and the device the test suite
// runs on.
type SoftwareDevice struct {
	wake chan struct{}
	wg   sync.WaitGroup
}

// NewSoftwareDevice creates a software device.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{
		wake: make(chan struct{}, 1),
	}
}

// Name returns the backend identifier.
func (d *SoftwareDevice) Name() string { return BackendSoftware }

// NewFence creates an unsignaled fence.
func (d *SoftwareDevice) NewFence() (grid.Fence, error) {
	return &softFence{}, nil
}

// DestroyFence releases a fence. Software fences hold no resources.
func (d *SoftwareDevice) DestroyFence(grid.Fence) {}

// ResetFence returns a fence to the unsignaled state.
func (d *SoftwareDevice) ResetFence(f grid.Fence) error {
	sf, ok := f.(*softFence)
	if !ok {
		return ErrForeignFence
	}
	sf.signaled.Store(false)
	return nil
}

// Submit runs the job asynchronously and signals f when it finishes.
func (d *SoftwareDevice) Submit(batch grid.CommandBatch, f grid.Fence) error {
	job, ok := batch.(*Job)
	if !ok {
		return ErrUnsupportedBatch
	}
	sf, ok := f.(*softFence)
	if !ok {
		return ErrForeignFence
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if job.Run != nil {
			job.Run()
		}
		sf.signaled.Store(true)
		// Best-effort poke; a lost poke is fine because WaitAny always
		// re-scans the signaled flags before sleeping.
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}()
	return nil
}

// WaitAny blocks until at least one fence is signaled or the timeout
// expires. A zero timeout performs a single scan.
func (d *SoftwareDevice) WaitAny(fences []grid.Fence, timeout time.Duration) ([]int, error) {
	deadline := time.Now().Add(timeout)
	for {
		var out []int
		for i, f := range fences {
			sf, ok := f.(*softFence)
			if !ok {
				return nil, ErrForeignFence
			}
			if sf.signaled.Load() {
				out = append(out, i)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
		if timeout <= 0 {
			return nil, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-d.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Close waits for all submitted jobs to finish.
func (d *SoftwareDevice) Close() {
	d.wg.Wait()
}
