// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

// Stage identifies one of the five frame stages. Stages execute in
// declaration order within a frame.
type Stage uint8

const (
	// StagePath flattens the frame's draw ops into device-space
	// geometry clipped to the target.
	StagePath Stage = iota
	// StageRaster produces per-op coverage.
	StageRaster
	// StageComposite blends the covered ops into the working surface.
	StageComposite
	// StageStyle applies the frame's paint adjustments.
	StageStyle
	// StageRender resolves the working surface into the target.
	StageRender

	numStages = 5
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StagePath:
		return "path"
	case StageRaster:
		return "raster"
	case StageComposite:
		return "composite"
	case StageStyle:
		return "style"
	case StageRender:
		return "render"
	default:
		return "unknown"
	}
}

// Stages returns the five stages in execution order.
func Stages() [numStages]Stage {
	return [numStages]Stage{StagePath, StageRaster, StageComposite, StageStyle, StageRender}
}
