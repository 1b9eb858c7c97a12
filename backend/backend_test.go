package backend

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/grid"
)

func TestSoftwareDeviceName(t *testing.T) {
	d := NewSoftwareDevice()
	if d.Name() != BackendSoftware {
		t.Errorf("Name() = %q, want %q", d.Name(), BackendSoftware)
	}
}

func TestSoftwareDeviceRegistered(t *testing.T) {
	if !IsRegistered(BackendSoftware) {
		t.Fatal("software device should be registered on import")
	}
	d, err := Get(BackendSoftware)
	if err != nil {
		t.Fatalf("Get(software) error = %v", err)
	}
	if d == nil {
		t.Fatal("Get(software) returned nil device")
	}
	d.Close()
}

func TestGetUnknownBackend(t *testing.T) {
	if _, err := Get("no-such-device"); err != ErrBackendNotAvailable {
		t.Errorf("Get(unknown) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestDefaultFallsBackToSoftware(t *testing.T) {
	// Only the software factory is registered in this test binary.
	d, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	defer d.Close()
	if d.Name() != BackendSoftware {
		t.Errorf("Default().Name() = %q, want %q", d.Name(), BackendSoftware)
	}
}

func TestRegisterUnregister(t *testing.T) {
	Register("test-device", func() (grid.Device, error) {
		return NewSoftwareDevice(), nil
	})
	t.Cleanup(func() { Unregister("test-device") })

	if !IsRegistered("test-device") {
		t.Error("test-device should be registered")
	}
	Unregister("test-device")
	if IsRegistered("test-device") {
		t.Error("test-device should be unregistered")
	}
}

func TestSubmitSignalsFence(t *testing.T) {
	d := NewSoftwareDevice()
	defer d.Close()

	f, err := d.NewFence()
	if err != nil {
		t.Fatalf("NewFence() error = %v", err)
	}
	defer d.DestroyFence(f)

	var ran atomic.Bool
	job := &Job{Label: "test", Run: func() { ran.Store(true) }}
	if err := d.Submit(job, f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	signaled, err := d.WaitAny([]grid.Fence{f}, time.Second)
	if err != nil {
		t.Fatalf("WaitAny() error = %v", err)
	}
	if len(signaled) != 1 || signaled[0] != 0 {
		t.Fatalf("WaitAny() = %v, want [0]", signaled)
	}
	if !ran.Load() {
		t.Error("job body did not run before fence signaled")
	}
}

func TestWaitAnyTimeout(t *testing.T) {
	d := NewSoftwareDevice()
	defer d.Close()

	f, _ := d.NewFence()
	start := time.Now()
	signaled, err := d.WaitAny([]grid.Fence{f}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitAny() error = %v", err)
	}
	if signaled != nil {
		t.Errorf("WaitAny() on unsignaled fence = %v, want nil", signaled)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("WaitAny() returned after %v, before the timeout", elapsed)
	}
}

func TestWaitAnyZeroTimeoutSinglePass(t *testing.T) {
	d := NewSoftwareDevice()
	defer d.Close()

	f, _ := d.NewFence()
	signaled, err := d.WaitAny([]grid.Fence{f}, 0)
	if err != nil {
		t.Fatalf("WaitAny() error = %v", err)
	}
	if signaled != nil {
		t.Errorf("WaitAny(0) on unsignaled fence = %v, want nil", signaled)
	}
}

func TestResetFence(t *testing.T) {
	d := NewSoftwareDevice()
	defer d.Close()

	f, _ := d.NewFence()
	if err := d.Submit(&Job{}, f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := d.WaitAny([]grid.Fence{f}, time.Second); err != nil {
		t.Fatalf("WaitAny() error = %v", err)
	}

	if err := d.ResetFence(f); err != nil {
		t.Fatalf("ResetFence() error = %v", err)
	}
	signaled, err := d.WaitAny([]grid.Fence{f}, 0)
	if err != nil {
		t.Fatalf("WaitAny() after reset error = %v", err)
	}
	if signaled != nil {
		t.Errorf("reset fence reported signaled: %v", signaled)
	}
}

func TestSubmitRejectsForeignBatch(t *testing.T) {
	d := NewSoftwareDevice()
	defer d.Close()

	f, _ := d.NewFence()
	if err := d.Submit(foreignBatch{}, f); err != ErrUnsupportedBatch {
		t.Errorf("Submit(foreign batch) error = %v, want ErrUnsupportedBatch", err)
	}
}

func TestWaitAnyRejectsForeignFence(t *testing.T) {
	d := NewSoftwareDevice()
	defer d.Close()

	if _, err := d.WaitAny([]grid.Fence{struct{}{}}, 0); err != ErrForeignFence {
		t.Errorf("WaitAny(foreign fence) error = %v, want ErrForeignFence", err)
	}
}

func TestJobRelease(t *testing.T) {
	released := 0
	j := &Job{OnRelease: func() { released++ }}
	j.Release()
	if released != 1 {
		t.Errorf("Release() ran OnRelease %d times, want 1", released)
	}

	// Nil OnRelease must not panic.
	(&Job{}).Release()
}

func TestOutOfOrderCompletion(t *testing.T) {
	d := NewSoftwareDevice()

	slow, _ := d.NewFence()
	fast, _ := d.NewFence()

	block := make(chan struct{})
	defer func() {
		d.Close()
	}()
	if err := d.Submit(&Job{Label: "slow", Run: func() { <-block }}, slow); err != nil {
		t.Fatalf("Submit(slow) error = %v", err)
	}
	if err := d.Submit(&Job{Label: "fast"}, fast); err != nil {
		t.Fatalf("Submit(fast) error = %v", err)
	}

	// The second submission must be able to signal before the first.
	signaled, err := d.WaitAny([]grid.Fence{slow, fast}, time.Second)
	if err != nil {
		t.Fatalf("WaitAny() error = %v", err)
	}
	if len(signaled) != 1 || signaled[0] != 1 {
		t.Fatalf("WaitAny() = %v, want [1] (fast fence only)", signaled)
	}

	close(block)
	signaled, err = d.WaitAny([]grid.Fence{slow}, time.Second)
	if err != nil {
		t.Fatalf("WaitAny(slow) error = %v", err)
	}
	if len(signaled) != 1 {
		t.Fatalf("WaitAny(slow) = %v, want one signal", signaled)
	}
}

// foreignBatch is a grid.CommandBatch the software device never produced.
type foreignBatch struct{}

func (foreignBatch) DebugName() string { return "foreign" }

func (foreignBatch) Release() {}
