package backend

import (
	"sync"

	"github.com/gogpu/grid"
)

// registry holds registered device factories.
var (
	registryMu sync.RWMutex
	devices    = make(map[string]Factory)
	// Priority order for device selection (first available wins).
	// Native > GoGPU > Software (native talks to real hardware, software
	// is the universal fallback).
	devicePriority = []string{BackendNative, BackendGoGPU, BackendSoftware}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a device with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	devices[name] = factory
}

// Unregister removes a device from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(devices, name)
}

// Available returns a list of registered device names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a device with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := devices[name]
	return ok
}

// Get returns a device instance by name.
// Returns ErrBackendNotAvailable if the name is not registered.
func Get(name string) (grid.Device, error) {
	registryMu.RLock()
	factory, ok := devices[name]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrBackendNotAvailable
	}
	return factory()
}

// Default returns the best available device based on priority.
// Factories that fail (e.g. no GPU present) are skipped.
func Default() (grid.Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range devicePriority {
		if factory, ok := devices[name]; ok {
			if d, err := factory(); err == nil && d != nil {
				return d, nil
			}
		}
	}

	// Fallback: first factory that succeeds.
	for _, factory := range devices {
		if d, err := factory(); err == nil && d != nil {
			return d, nil
		}
	}

	return nil, ErrBackendNotAvailable
}

// MustDefault returns the default device or panics.
func MustDefault() grid.Device {
	d, err := Default()
	if err != nil {
		panic("backend: no device available: " + err.Error())
	}
	return d
}
