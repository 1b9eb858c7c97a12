// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements a grid.Device over the wgpu HAL.
//
// Fences are host-side: each submission records the submission index
// the queue returns, and a fence is signaled once the queue's
// completed-submission watermark reaches that index. Resetting a fence
// only clears the pending flag; indices keep increasing for the
// lifetime of the queue.
package native

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/grid"
	"github.com/gogpu/grid/backend"
)

// Errors returned by the native backend.
var (
	ErrNilQueue = errors.New("native: nil HAL queue")
	ErrClosed   = errors.New("native: device closed")
)

// SubmitQueue is the subset of hal.Queue the backend needs. Submit
// returns the index of the submission it enqueued.
type SubmitQueue interface {
	Submit(buffers []hal.CommandBuffer) (uint64, error)
}

// completionPoller reports the highest submission index known to have
// finished on the device. Queues that cannot report progress are
// treated as immediately complete, matching a synchronous HAL.
type completionPoller interface {
	PollCompleted() uint64
}

// pollInterval paces WaitAny between watermark checks.
const pollInterval = 200 * time.Microsecond

// Batch is the command batch the native backend accepts. Buffers are
// recorded HAL command buffers; OnRelease runs when the pool recycles
// the batch.
type Batch struct {
	Label     string
	Buffers   []hal.CommandBuffer
	OnRelease func()
}

// DebugName implements grid.CommandBatch.
func (b *Batch) DebugName() string { return b.Label }

// Release implements grid.CommandBatch.
func (b *Batch) Release() {
	if b.OnRelease != nil {
		b.OnRelease()
	}
}

// fence remembers the submission index of its last submit. pending is
// set on submit and cleared on reset so idle fences are skipped during
// waits.
type fence struct {
	index   uint64
	pending bool
}

// Device adapts a HAL queue to grid.Device.
//
// Device is not safe for concurrent use; like the pool that drives it,
// it belongs to a single goroutine.
type Device struct {
	queue  SubmitQueue
	closed bool
}

var _ grid.Device = (*Device)(nil)

// New wraps a HAL queue. The caller keeps ownership of the underlying
// device and queue; Close does not destroy them.
func New(queue SubmitQueue) (*Device, error) {
	if queue == nil {
		return nil, ErrNilQueue
	}
	return &Device{queue: queue}, nil
}

// Name implements grid.Device.
func (d *Device) Name() string { return backend.BackendNative }

// NewFence implements grid.Device.
func (d *Device) NewFence() (grid.Fence, error) {
	if d.closed {
		return nil, ErrClosed
	}
	return &fence{}, nil
}

// DestroyFence implements grid.Device. Fences hold no device
// resources.
func (d *Device) DestroyFence(grid.Fence) {}

// ResetFence implements grid.Device. The submission index is retained;
// only the pending flag is cleared.
func (d *Device) ResetFence(f grid.Fence) error {
	nf, ok := f.(*fence)
	if !ok {
		return backend.ErrForeignFence
	}
	nf.pending = false
	return nil
}

// Submit implements grid.Device. The batch's command buffers go to the
// queue and the fence remembers the submission index the queue handed
// back.
func (d *Device) Submit(b grid.CommandBatch, f grid.Fence) error {
	if d.closed {
		return ErrClosed
	}
	nb, ok := b.(*Batch)
	if !ok {
		return backend.ErrUnsupportedBatch
	}
	nf, ok := f.(*fence)
	if !ok {
		return backend.ErrForeignFence
	}
	idx, err := d.queue.Submit(nb.Buffers)
	if err != nil {
		return fmt.Errorf("native: submit %q: %w", nb.Label, err)
	}
	nf.index = idx
	nf.pending = true
	return nil
}

// watermark returns the queue's completed-submission index. A queue
// without PollCompleted cannot report progress, so every submission is
// considered finished as soon as it is observed.
func (d *Device) watermark() uint64 {
	if p, ok := d.queue.(completionPoller); ok {
		return p.PollCompleted()
	}
	return ^uint64(0)
}

// WaitAny implements grid.Device. Pending fences are checked against
// the queue watermark; a zero timeout makes a single pass without
// sleeping.
func (d *Device) WaitAny(fences []grid.Fence, timeout time.Duration) ([]int, error) {
	if d.closed {
		return nil, ErrClosed
	}
	deadline := time.Now().Add(timeout)
	for {
		var signaled []int
		var mark uint64
		pending := false
		for i, f := range fences {
			nf, ok := f.(*fence)
			if !ok {
				return nil, backend.ErrForeignFence
			}
			if !nf.pending {
				continue
			}
			if !pending {
				pending = true
				mark = d.watermark()
			}
			if nf.index <= mark {
				signaled = append(signaled, i)
			}
		}
		if !pending || len(signaled) > 0 {
			return signaled, nil
		}
		if timeout == 0 || !time.Now().Before(deadline) {
			return nil, nil
		}
		time.Sleep(pollInterval)
	}
}

// Close implements grid.Device. The underlying HAL queue is owned by
// the caller and left intact.
func (d *Device) Close() {
	d.closed = true
}
