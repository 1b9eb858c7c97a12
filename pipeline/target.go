// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"image"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// DefaultFormat is the texture format frames render in.
const DefaultFormat = gputypes.TextureFormatRGBA8Unorm

// Target is the destination surface of a frame. Frames render at the
// working resolution and resolve into RGBA, downscaling when the
// target is smaller than the working surface.
type Target struct {
	RGBA   *image.RGBA
	Format gputypes.TextureFormat
}

// NewTarget allocates a target of the given pixel size.
func NewTarget(width, height int) *Target {
	return &Target{
		RGBA:   image.NewRGBA(image.Rect(0, 0, width, height)),
		Format: DefaultFormat,
	}
}

// Bounds returns the target's pixel bounds.
func (t *Target) Bounds() image.Rectangle { return t.RGBA.Bounds() }

// resolve copies src into the target, scaling when the sizes differ.
// Bilinear is enough here; targets are resolved once per frame.
func (t *Target) resolve(src *image.RGBA) {
	if src.Bounds() == t.RGBA.Bounds() {
		draw.Copy(t.RGBA, image.Point{}, src, src.Bounds(), draw.Src, nil)
		return
	}
	draw.ApproxBiLinear.Scale(t.RGBA, t.RGBA.Bounds(), src, src.Bounds(), draw.Src, nil)
}
