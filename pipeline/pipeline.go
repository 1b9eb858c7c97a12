// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline runs frames through the five fixed stages of the
// renderer: path building, raster generation, composition, styling
// and rendering. Each frame attaches one grid per stage with
// happens-after edges between consecutive stages, so stage work can
// be scheduled out of order while device submissions retire in stage
// order.
//
// Stage execution submits a command batch through the fence pool; the
// stage's grid completes when the device signals the fence. Stages
// run on the CPU unless the device reports shader support, in which
// case the coverage and composite kernels are compiled to SPIR-V at
// pipeline construction.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/grid"
	"github.com/gogpu/grid/backend"
)

// Errors returned by the pipeline.
var (
	ErrNilRegistry = errors.New("pipeline: nil registry")
	ErrNilPool     = errors.New("pipeline: nil pool")
	ErrNilDevice   = errors.New("pipeline: nil device")
	ErrNilTarget   = errors.New("pipeline: nil target")
)

// BatchBuilder produces the command batch a stage submits. The
// default builder wraps the CPU stage work in a backend.Job.
type BatchBuilder func(f *Frame, stage Stage) grid.CommandBatch

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchBuilder replaces the default stage batch builder.
func WithBatchBuilder(b BatchBuilder) Option {
	return func(p *Pipeline) { p.batches = b }
}

// WithSupersample renders frames at factor times the target size and
// downscales during the render stage. Factors below 1 are ignored.
func WithSupersample(factor int) Option {
	return func(p *Pipeline) {
		if factor >= 1 {
			p.supersample = factor
		}
	}
}

// WithOpacity scales the alpha of every frame during the style stage.
// Values outside [0, 1] are clamped.
func WithOpacity(opacity float64) Option {
	return func(p *Pipeline) {
		if opacity < 0 {
			opacity = 0
		}
		if opacity > 1 {
			opacity = 1
		}
		p.opacity = opacity
	}
}

// Pipeline schedules frames over a registry, a fence pool and a
// device. Like the registry and pool it drives, a Pipeline belongs to
// a single goroutine.
type Pipeline struct {
	reg  *grid.Registry
	pool *grid.Pool
	dev  grid.Device

	batches     BatchBuilder
	kernels     *Kernels
	supersample int
	opacity     float64

	nextFrame uint64
	// lastRender serializes frame presentation: each frame's render
	// stage runs after the previous frame's.
	lastRender grid.Handle
}

// New creates a pipeline over the given registry, pool and device.
// When the device reports shader support the compute kernels are
// compiled up front; compilation failure falls back to the CPU path.
func New(reg *grid.Registry, pool *grid.Pool, dev grid.Device, opts ...Option) (*Pipeline, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if pool == nil {
		return nil, ErrNilPool
	}
	if dev == nil {
		return nil, ErrNilDevice
	}
	p := &Pipeline{
		reg:         reg,
		pool:        pool,
		dev:         dev,
		supersample: 1,
		opacity:     1,
	}
	p.batches = p.jobBatch
	for _, opt := range opts {
		opt(p)
	}
	if sc, ok := dev.(ShaderCapable); ok && sc.SupportsShaders() {
		k, err := CompileKernels()
		if err != nil {
			grid.Logger().Warn("pipeline: kernel compile failed, using CPU stages", "err", err)
		} else {
			p.kernels = k
		}
	}
	return p, nil
}

// Kernels returns the compiled compute kernels, or nil when the
// pipeline runs CPU stages.
func (p *Pipeline) Kernels() *Kernels { return p.kernels }

// jobBatch is the default batch builder.
func (p *Pipeline) jobBatch(f *Frame, stage Stage) grid.CommandBatch {
	return &backend.Job{
		Label: fmt.Sprintf("frame-%d/%s", f.id, stage),
		Run:   func() { f.runStage(stage) },
	}
}

// BeginFrame attaches the five stage grids for one frame over the
// given target and draw ops. The returned frame is idle until Start.
// BeginFrame blocks while the registry is full.
func (p *Pipeline) BeginFrame(target *Target, ops ...Op) (*Frame, error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	f := &Frame{
		p:      p,
		id:     p.nextFrame,
		target: target,
		ops:    ops,
	}
	p.nextFrame++

	for _, stage := range Stages() {
		h := p.reg.Attach(&grid.GridDesc{
			Label: fmt.Sprintf("frame-%d/%s", f.id, stage),
			OnExecute: func(h grid.Handle, _ any) {
				f.submit(h, stage)
			},
		})
		f.handles[stage] = h
		p.reg.MapKey(h, FrameKey(f.id, stage))
	}

	// Chain consecutive stages.
	for i := 1; i < numStages; i++ {
		p.reg.HappensAfter(f.handles[i], f.handles[i-1])
	}
	// Presentation order across frames.
	if p.reg.Valid(p.lastRender) {
		p.reg.HappensAfter(f.handles[StageRender], p.lastRender)
	}
	p.lastRender = f.handles[StageRender]

	return f, nil
}

// Flush forces every stage of the given frames and blocks until their
// grids complete, then unmaps the frame keys.
func (p *Pipeline) Flush(frames ...*Frame) {
	var keys []uint64
	for _, f := range frames {
		for _, stage := range Stages() {
			keys = append(keys, FrameKey(f.id, stage))
		}
	}
	p.reg.ForceByKeys(keys)
	p.reg.UnmapKeys(keys)
}

// FrameKey returns the registry key of one frame stage.
func FrameKey(frame uint64, stage Stage) uint64 {
	return frame<<3 | uint64(stage)
}

// Op is a single draw operation: a solid rectangle in target
// coordinates.
type Op struct {
	Rect  image.Rectangle
	Color color.RGBA
}
