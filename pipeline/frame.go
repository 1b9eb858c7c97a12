// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"image"

	"github.com/gogpu/grid"
)

// Frame is one pass through the five stages. A frame is created by
// Pipeline.BeginFrame and driven by Start plus the caller's pump; its
// fields are only touched from the owning goroutine and from the
// stage batches, which the stage ordering keeps serialized.
type Frame struct {
	p      *Pipeline
	id     uint64
	target *Target
	ops    []Op

	handles [numStages]grid.Handle

	// Stage outputs. clipped is written by the path stage, cover by
	// the raster stage, surface by composite and style.
	clipped []Op
	cover   []uint8
	surface *image.RGBA
}

// ID returns the frame's sequence number.
func (f *Frame) ID() uint64 { return f.id }

// Handle returns the grid handle of one stage.
func (f *Frame) Handle(stage Stage) grid.Handle { return f.handles[stage] }

// Start makes every stage of the frame eligible to run. Stage order
// is still enforced by the happens-after edges.
func (f *Frame) Start() {
	for _, stage := range Stages() {
		f.p.reg.Start(f.handles[stage])
	}
}

// Done reports whether every stage grid has completed.
func (f *Frame) Done() bool {
	for _, stage := range Stages() {
		if f.p.reg.State(f.handles[stage]) < grid.StateComplete {
			return false
		}
	}
	return true
}

// submit is the stage execute callback: it builds the stage batch,
// acquires a pool fence whose completion closes the stage's grid, and
// hands the batch to the device.
func (f *Frame) submit(h grid.Handle, stage Stage) {
	batch := f.p.batches(f, stage)
	fence, err := f.p.pool.Acquire(batch, func([]byte) {
		f.p.reg.Complete(h)
	}, nil)
	if err != nil {
		grid.Logger().Error("pipeline: acquire fence", "stage", stage.String(), "err", err)
		f.p.reg.Complete(h)
		return
	}
	if err := f.p.dev.Submit(batch, fence); err != nil {
		grid.Logger().Error("pipeline: submit", "stage", stage.String(), "err", err)
	}
}

// runStage runs the CPU implementation of one stage.
func (f *Frame) runStage(stage Stage) {
	switch stage {
	case StagePath:
		f.runPath()
	case StageRaster:
		f.runRaster()
	case StageComposite:
		f.runComposite()
	case StageStyle:
		f.runStyle()
	case StageRender:
		f.runRender()
	}
}

// workingBounds is the supersampled surface size.
func (f *Frame) workingBounds() image.Rectangle {
	b := f.target.Bounds()
	s := f.p.supersample
	return image.Rect(0, 0, b.Dx()*s, b.Dy()*s)
}

// runPath scales the ops to the working surface and clips them to its
// bounds. Degenerate ops are dropped here so later stages see only
// live geometry.
func (f *Frame) runPath() {
	wb := f.workingBounds()
	s := f.p.supersample
	f.clipped = f.clipped[:0]
	for _, op := range f.ops {
		r := image.Rect(op.Rect.Min.X*s, op.Rect.Min.Y*s, op.Rect.Max.X*s, op.Rect.Max.Y*s)
		r = r.Intersect(wb)
		if r.Empty() || op.Color.A == 0 {
			continue
		}
		f.clipped = append(f.clipped, Op{Rect: r, Color: op.Color})
	}
}

// runRaster computes per-op coverage. Axis-aligned rectangles cover
// their clipped interior fully, matching the coverage kernel.
func (f *Frame) runRaster() {
	f.cover = f.cover[:0]
	for range f.clipped {
		f.cover = append(f.cover, 0xff)
	}
}

// runComposite source-over blends the covered ops into the working
// surface.
func (f *Frame) runComposite() {
	wb := f.workingBounds()
	if f.surface == nil || f.surface.Bounds() != wb {
		f.surface = image.NewRGBA(wb)
	} else {
		clear(f.surface.Pix)
	}
	for i, op := range f.clipped {
		cov := uint32(f.cover[i])
		srcA := uint32(op.Color.A) * cov / 0xff
		srcR := uint32(op.Color.R) * srcA / 0xff
		srcG := uint32(op.Color.G) * srcA / 0xff
		srcB := uint32(op.Color.B) * srcA / 0xff
		for y := op.Rect.Min.Y; y < op.Rect.Max.Y; y++ {
			row := f.surface.PixOffset(op.Rect.Min.X, y)
			for x := op.Rect.Min.X; x < op.Rect.Max.X; x++ {
				px := f.surface.Pix[row : row+4 : row+4]
				inv := 0xff - srcA
				px[0] = uint8(srcR + uint32(px[0])*inv/0xff)
				px[1] = uint8(srcG + uint32(px[1])*inv/0xff)
				px[2] = uint8(srcB + uint32(px[2])*inv/0xff)
				px[3] = uint8(srcA + uint32(px[3])*inv/0xff)
				row += 4
			}
		}
	}
}

// runStyle applies the pipeline opacity to the working surface.
func (f *Frame) runStyle() {
	if f.p.opacity >= 1 || f.surface == nil {
		return
	}
	scale := uint32(f.p.opacity * 0xff)
	for i := range f.surface.Pix {
		f.surface.Pix[i] = uint8(uint32(f.surface.Pix[i]) * scale / 0xff)
	}
}

// runRender resolves the working surface into the target.
func (f *Frame) runRender() {
	if f.surface == nil {
		return
	}
	f.target.resolve(f.surface)
}
