// Package backend provides pluggable grid.Device implementations.
//
// The backend package lets grid's completion pool run over multiple
// submission backends behind one interface: fence creation and reset,
// asynchronous batch submission, and a wait-for-any poll.
//
// # Device Registration
//
// Devices are registered as factories and selected at runtime. The
// software device registers itself on import. GPU-backed devices need
// a handle to wrap, so the host registers them after bring-up:
//
//	halDev, err := native.New(openDev.Queue)
//	if err != nil {
//		log.Fatal(err)
//	}
//	backend.Register(backend.BackendNative, func() (grid.Device, error) {
//		return halDev, nil
//	})
//
// # Device Selection
//
// Use Default() to get the best available device, or Get() to request a
// specific device by name:
//
//	// Get the default (best available) device
//	dev, err := backend.Default()
//
//	// Or request a specific device
//	dev, err := backend.Get("software")
//
// # Usage with the Pool
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	pool, err := grid.NewPool(dev, 8)
//
// # Available Devices
//
// - "software": worker-goroutine jobs with channel fences (always available)
// - "native": gogpu/wgpu HAL queues with submission-index fences
// - "gogpu": adapter for hosts that own a gpucontext device
package backend
