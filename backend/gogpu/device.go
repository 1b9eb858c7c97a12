// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gogpu adapts a gpucontext device provider to grid.Device.
//
// The gogpu windowing stack exposes no fence primitive, so fences here
// are host-side: a Batch carries a Submit hook that enqueues the work
// and a Done probe that reports when the device has finished it.
// WaitAny pumps the provider's device between probes when the device
// supports polling.
package gogpu

import (
	"errors"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/grid"
	"github.com/gogpu/grid/backend"
)

// Errors returned by the gogpu backend.
var (
	ErrNilProvider = errors.New("gogpu: nil device provider")
	ErrNilSubmit   = errors.New("gogpu: batch has no Submit hook")
	ErrClosed      = errors.New("gogpu: device closed")
)

// pollInterval paces the Done probes inside WaitAny.
const pollInterval = 200 * time.Microsecond

// Provider is the subset of gpucontext.DeviceProvider the backend
// needs. Any gpucontext provider satisfies it.
type Provider interface {
	Device() gpucontext.Device
}

// devicePoller matches devices that expose a poll for driving
// asynchronous completion. gpucontext.Device is opaque, so the check
// happens at runtime; devices without it are simply not pumped.
type devicePoller interface {
	Poll(wait bool) bool
}

// Batch is the command batch the gogpu backend accepts. Submit
// enqueues the batch's work on the provider's queue; Done reports
// whether the device has finished it. A nil Done treats the work as
// complete after the first poll.
type Batch struct {
	Label     string
	Submit    func() error
	Done      func() bool
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

// fence tracks the in-flight batch it was submitted with. done is the
// batch's probe, captured at submit time so the batch can be recycled
// independently.
type fence struct {
	pending bool
	done    func() bool
}

func (f *fence) signaled() bool {
	if f.done == nil {
		return true
	}
	return f.done()
}

// Device adapts a gpucontext device provider to grid.Device. It is
// not safe for concurrent use.
type Device struct {
	provider Provider
	closed   bool
}

var _ grid.Device = (*Device)(nil)

// New wraps a device provider. The provider keeps ownership of the
// underlying device; Close does not destroy it.
func New(provider Provider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	return &Device{provider: provider}, nil
}

// Provider returns the wrapped device provider.
func (d *Device) Provider() Provider { return d.provider }

// Name implements grid.Device.
func (d *Device) Name() string { return backend.BackendGoGPU }

// NewFence implements grid.Device.
func (d *Device) NewFence() (grid.Fence, error) {
	return &fence{}, nil
}

// DestroyFence implements grid.Device.
func (d *Device) DestroyFence(grid.Fence) {}

// ResetFence implements grid.Device.
func (d *Device) ResetFence(f grid.Fence) error {
	gf, ok := f.(*fence)
	if !ok {
		return backend.ErrForeignFence
	}
	gf.pending = false
	gf.done = nil
	return nil
}

// Submit implements grid.Device. The batch's Submit hook runs
// synchronously; its Done probe is bound to the fence.
func (d *Device) Submit(b grid.CommandBatch, f grid.Fence) error {
	if d.closed {
		return ErrClosed
	}
	gb, ok := b.(*Batch)
	if !ok {
		return backend.ErrUnsupportedBatch
	}
	gf, ok := f.(*fence)
	if !ok {
		return backend.ErrForeignFence
	}
	if gb.Submit == nil {
		return ErrNilSubmit
	}
	if err := gb.Submit(); err != nil {
		return err
	}
	gf.pending = true
	gf.done = gb.Done
	return nil
}

// poll pumps the provider's device once, if it supports polling.
func (d *Device) poll() {
	if p, ok := d.provider.Device().(devicePoller); ok {
		p.Poll(false)
	}
}

// WaitAny implements grid.Device. Each pass pumps the device without
// blocking, then probes the pending fences. A zero timeout makes a
// single pass.
func (d *Device) WaitAny(fences []grid.Fence, timeout time.Duration) ([]int, error) {
	if d.closed {
		return nil, ErrClosed
	}
	deadline := time.Now().Add(timeout)
	for {
		var signaled []int
		polled := false
		for i, f := range fences {
			gf, ok := f.(*fence)
			if !ok {
				return nil, backend.ErrForeignFence
			}
			if !gf.pending {
				continue
			}
			if !polled {
				d.poll()
				polled = true
			}
			if gf.signaled() {
				signaled = append(signaled, i)
			}
		}
		if len(signaled) > 0 || !polled {
			return signaled, nil
		}
		if timeout <= 0 || !time.Now().Before(deadline) {
			return nil, nil
		}
		time.Sleep(pollInterval)
	}
}

// Close implements grid.Device. The provider's device is left intact.
func (d *Device) Close() {
	d.closed = true
}
