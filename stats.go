// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import "github.com/gogpu/fixedfunc/internal/shadercache"

// ShaderStats is a snapshot of the shader permutation cache counters.
type ShaderStats = shadercache.Stats

// Stats is a snapshot of device counters.
type Stats struct {
	Frames    uint64 // frames presented
	Draws     uint64 // draw calls issued to the backend
	UberDraws uint64 // draws served by an uber shader
	OITDraws  uint64 // draws written to the fragment list
	Passes    uint64 // render passes begun
	Retries   uint64 // compile error retries

	Shaders ShaderStats

	Pipelines      int
	PipelineHits   uint64
	PipelineMisses uint64

	BlendStates   int
	DepthStates   int
	RasterStates  int
	Samplers      int
	TextureGroups int

	OITActive bool   // OIT in effect for the frame being recorded
	OITFrames uint64 // frames that ran the composite pass

	// KnownPermutations is the number of keys in the permutation file.
	KnownPermutations int
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	s := Stats{
		Frames:        d.stats.frames,
		Draws:         d.stats.draws,
		UberDraws:     d.stats.uberDraws,
		OITDraws:      d.stats.oitDraws,
		Passes:        d.stats.passes,
		Retries:       d.stats.retries,
		Shaders:       d.shaders.Stats(),
		Pipelines:     d.pipelines.Len(),
		BlendStates:   d.blends.Len(),
		DepthStates:   d.depths.Len(),
		RasterStates:  d.rasters.Len(),
		Samplers:      d.samplers.Len(),
		TextureGroups: len(d.texGroups),
		OITActive:     d.frame.encoder != nil && d.frame.oit,
		OITFrames:     d.oit.Frames(),
	}
	s.PipelineHits, s.PipelineMisses = d.pipelines.Stats()
	if d.store != nil {
		s.KnownPermutations = d.store.Len()
	}
	return s
}
