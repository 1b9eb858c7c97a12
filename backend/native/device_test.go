// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/grid"
	"github.com/gogpu/grid/backend"
)

// mockQueue hands out incrementing submission indices and reports a
// settable completion watermark.
type mockQueue struct {
	submits   int
	err       error
	completed uint64
	polls     int
	// onPoll runs before each watermark read, letting tests advance
	// the watermark at a particular poll.
	onPoll func(polls int)
}

func (q *mockQueue) Submit(_ []hal.CommandBuffer) (uint64, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.submits++
	return uint64(q.submits), nil
}

func (q *mockQueue) PollCompleted() uint64 {
	q.polls++
	if q.onPoll != nil {
		q.onPoll(q.polls)
	}
	return q.completed
}

// syncQueue has no PollCompleted, like a HAL that retires work inside
// Submit.
type syncQueue struct {
	submits int
}

func (q *syncQueue) Submit(_ []hal.CommandBuffer) (uint64, error) {
	q.submits++
	return uint64(q.submits), nil
}

func newDevice(t *testing.T) (*Device, *mockQueue) {
	t.Helper()
	mq := &mockQueue{}
	d, err := New(mq)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, mq
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilQueue) {
		t.Fatalf("nil queue: got %v, want ErrNilQueue", err)
	}
}

func TestName(t *testing.T) {
	d, _ := newDevice(t)
	if got := d.Name(); got != backend.BackendNative {
		t.Fatalf("Name() = %q, want %q", got, backend.BackendNative)
	}
}

func TestSubmitRecordsIndex(t *testing.T) {
	d, _ := newDevice(t)
	f, _ := d.NewFence()
	b := &Batch{Label: "first"}
	if err := d.Submit(b, f); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := f.(*fence).index; got != 1 {
		t.Fatalf("submission index = %d, want 1", got)
	}
	if err := d.ResetFence(f); err != nil {
		t.Fatalf("ResetFence: %v", err)
	}
	if err := d.Submit(b, f); err != nil {
		t.Fatalf("Submit again: %v", err)
	}
	if got := f.(*fence).index; got != 2 {
		t.Fatalf("submission index after reuse = %d, want 2", got)
	}
}

func TestSubmitError(t *testing.T) {
	d, mq := newDevice(t)
	f, _ := d.NewFence()
	mq.err = errors.New("queue full")
	if err := d.Submit(&Batch{}, f); !errors.Is(err, mq.err) {
		t.Fatalf("Submit: got %v, want %v", err, mq.err)
	}
	if f.(*fence).pending {
		t.Fatal("failed submit left fence pending")
	}
}

func TestSubmitForeignTypes(t *testing.T) {
	d, _ := newDevice(t)
	f, _ := d.NewFence()
	if err := d.Submit(badBatch{}, f); !errors.Is(err, backend.ErrUnsupportedBatch) {
		t.Fatalf("foreign batch: got %v", err)
	}
	if err := d.Submit(&Batch{}, badFence{}); !errors.Is(err, backend.ErrForeignFence) {
		t.Fatalf("foreign fence: got %v", err)
	}
	if err := d.ResetFence(badFence{}); !errors.Is(err, backend.ErrForeignFence) {
		t.Fatalf("reset foreign fence: got %v", err)
	}
}

type badBatch struct{}

func (badBatch) DebugName() string { return "bad" }

func (badBatch) Release() {}

type badFence struct{}

func TestWaitAnySkipsIdleFences(t *testing.T) {
	d, mq := newDevice(t)
	f1, _ := d.NewFence()
	f2, _ := d.NewFence()
	// Neither fence has a pending submission; WaitAny must not touch
	// the HAL at all.
	got, err := d.WaitAny([]grid.Fence{f1, f2}, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if got != nil {
		t.Fatalf("signaled = %v, want nil", got)
	}
	if mq.polls != 0 {
		t.Fatalf("polls = %d, want 0", mq.polls)
	}
}

func TestWaitAnyReportsSignaled(t *testing.T) {
	d, mq := newDevice(t)
	f1, _ := d.NewFence()
	f2, _ := d.NewFence()
	if err := d.Submit(&Batch{}, f1); err != nil {
		t.Fatal(err)
	}
	if err := d.Submit(&Batch{}, f2); err != nil {
		t.Fatal(err)
	}
	// Only the first submission has retired.
	mq.completed = 1
	got, err := d.WaitAny([]grid.Fence{f1, f2}, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("signaled = %v, want [0]", got)
	}
}

func TestWaitAnyPollsUntilComplete(t *testing.T) {
	d, mq := newDevice(t)
	f, _ := d.NewFence()
	if err := d.Submit(&Batch{}, f); err != nil {
		t.Fatal(err)
	}
	mq.onPoll = func(polls int) {
		if polls >= 3 {
			mq.completed = 1
		}
	}
	got, err := d.WaitAny([]grid.Fence{f}, time.Second)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("signaled = %v, want [0]", got)
	}
	if mq.polls < 3 {
		t.Fatalf("polls = %d, want >= 3", mq.polls)
	}
}

func TestWaitAnyZeroTimeoutSinglePass(t *testing.T) {
	d, mq := newDevice(t)
	f, _ := d.NewFence()
	if err := d.Submit(&Batch{}, f); err != nil {
		t.Fatal(err)
	}
	got, err := d.WaitAny([]grid.Fence{f}, 0)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if got != nil {
		t.Fatalf("signaled = %v, want nil", got)
	}
	if mq.polls != 1 {
		t.Fatalf("polls = %d, want 1", mq.polls)
	}
}

// A queue that cannot report completion behaves synchronously: each
// submission is considered finished as soon as WaitAny looks at it.
func TestWaitAnySynchronousQueue(t *testing.T) {
	d, err := New(&syncQueue{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f, _ := d.NewFence()
	if err := d.Submit(&Batch{}, f); err != nil {
		t.Fatal(err)
	}
	got, err := d.WaitAny([]grid.Fence{f}, 0)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("signaled = %v, want [0]", got)
	}
}

func TestResetClearsPending(t *testing.T) {
	d, mq := newDevice(t)
	f, _ := d.NewFence()
	if err := d.Submit(&Batch{}, f); err != nil {
		t.Fatal(err)
	}
	mq.completed = 1
	if err := d.ResetFence(f); err != nil {
		t.Fatalf("ResetFence: %v", err)
	}
	got, err := d.WaitAny([]grid.Fence{f}, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if got != nil {
		t.Fatalf("signaled after reset = %v, want nil", got)
	}
}

func TestCloseRejectsUse(t *testing.T) {
	d, _ := newDevice(t)
	f, _ := d.NewFence()
	d.Close()
	if _, err := d.NewFence(); !errors.Is(err, ErrClosed) {
		t.Fatalf("NewFence after Close: %v", err)
	}
	if err := d.Submit(&Batch{}, f); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close: %v", err)
	}
	if _, err := d.WaitAny([]grid.Fence{f}, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("WaitAny after Close: %v", err)
	}
}

func TestBatchRelease(t *testing.T) {
	released := false
	b := &Batch{OnRelease: func() { released = true }}
	b.Release()
	if !released {
		t.Fatal("OnRelease not called")
	}
	(&Batch{}).Release() // nil hook is fine
}

// TestNoopHAL brings the device up against the no-op HAL backend and
// runs a submission through it end to end.
func TestNoopHAL(t *testing.T) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Skip("no noop adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer openDev.Device.Destroy()

	d, err := New(openDev.Queue)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	f, err := d.NewFence()
	if err != nil {
		t.Fatalf("NewFence: %v", err)
	}
	defer d.DestroyFence(f)
	if err := d.Submit(&Batch{Label: "noop"}, f); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := d.WaitAny([]grid.Fence{f}, time.Second)
	if err != nil {
		t.Fatalf("WaitAny: %v", err)
	}
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("signaled = %v, want [0]", got)
	}
	if err := d.ResetFence(f); err != nil {
		t.Fatalf("ResetFence: %v", err)
	}
}
