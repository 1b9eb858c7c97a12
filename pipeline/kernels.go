// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/coverage.wgsl
var coverageWGSL string

//go:embed shaders/composite.wgsl
var compositeWGSL string

// ShaderCapable is implemented by devices that can consume SPIR-V
// compute kernels. Devices that do not implement it run the CPU
// stage implementations.
type ShaderCapable interface {
	SupportsShaders() bool
}

// Kernels holds the compiled SPIR-V for the compute stages.
type Kernels struct {
	Coverage  []uint32
	Composite []uint32
}

// CompileKernels compiles the stage WGSL sources to SPIR-V.
func CompileKernels() (*Kernels, error) {
	return compileKernels(naga.Compile)
}

func compileKernels(compile func(string) ([]byte, error)) (*Kernels, error) {
	cov, err := compile(coverageWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile coverage kernel: %w", err)
	}
	comp, err := compile(compositeWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile composite kernel: %w", err)
	}
	return &Kernels{
		Coverage:  spirvWords(cov),
		Composite: spirvWords(comp),
	}, nil
}

// spirvWords packs little-endian SPIR-V bytes into words. Trailing
// bytes that do not fill a word are dropped.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
