package backend

import (
	"errors"

	"github.com/gogpu/grid"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrUnsupportedBatch is returned by Submit when a device is handed a
	// command batch type it did not produce.
	ErrUnsupportedBatch = errors.New("backend: unsupported command batch type")

	// ErrForeignFence is returned when a fence from another device is
	// passed in. The pool treats it as a device loss, which is the right
	// severity for crossed bookkeeping.
	ErrForeignFence = errors.New("backend: fence belongs to another device")
)

// Backend name constants.
const (
	// BackendSoftware is the name of the pure-Go worker-goroutine backend.
	BackendSoftware = "software"
	// BackendNative is the name of the gogpu/wgpu HAL backend.
	BackendNative = "native"
	// BackendGoGPU is the name of the gpucontext host-device adapter.
	BackendGoGPU = "gogpu"
)

// Factory creates a new device instance.
type Factory func() (grid.Device, error)
