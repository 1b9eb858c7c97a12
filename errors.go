package grid

import "errors"

// Package errors for grid core.
var (
	// ErrNilDevice is returned when a pool is constructed without a device.
	ErrNilDevice = errors.New("grid: device is nil")

	// ErrBadCapacity is returned when a pool is constructed with a
	// non-positive entry count.
	ErrBadCapacity = errors.New("grid: pool capacity must be at least 1")

	// ErrPayloadTooLarge is returned by Acquire when the completion payload
	// exceeds MaxPayload bytes.
	ErrPayloadTooLarge = errors.New("grid: completion payload exceeds MaxPayload")

	// ErrDeviceLost is the error wrapped by the pool's device-lost handler
	// when a fence wait fails for any reason other than a timeout.
	ErrDeviceLost = errors.New("grid: device lost")
)
