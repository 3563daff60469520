// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fixedfunc emulates a legacy fixed-function GPU device on top of
// the gogpu/wgpu hardware abstraction layer.
//
// # Overview
//
// Applications written against a fixed-function API set render states,
// texture stage states, sampler states, transforms, lights and materials,
// then issue draw calls. Device accepts the same calls and renders them
// with WGSL shaders, uniform buffers and WebGPU render pipelines.
//
// # Quick Start
//
//	dev, err := fixedfunc.New(halDevice, halQueue, fixedfunc.WithSize(800, 600))
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	dev.SetFVF(fixedfunc.FVFXYZ | fixedfunc.FVFDiffuse)
//	dev.SetStreamSource(vertexBuffer, 0, 0)
//	dev.Clear(fixedfunc.ClearTarget|fixedfunc.ClearZBuffer, 0xFF202020, 1, 0)
//	dev.BeginScene()
//	dev.DrawPrimitive(fixedfunc.TriangleList, 0, 1)
//	dev.EndScene()
//	dev.Present()
//
// # Architecture
//
// Every state lives in a dirty cell. Before each draw an update pass walks
// the rasterizer state, shader selection, samplers, blend and depth-stencil
// state, uniform blocks and the render pipeline, touching only what
// changed since the previous draw.
//
// Shaders are specialized per permutation key, a bitfield of the states
// that change the generated code. A missing permutation is served by an
// uber shader that evaluates those states from uniforms while the
// specialized variant compiles in the background. Keys seen at run time
// can be recorded to a file (WithPermutationFile) and compiled at startup.
//
// Blend, depth-stencil and rasterizer states are cached as immutable
// objects keyed by their flags, and combined with the shaders into cached
// render pipelines. Samplers and texture bind groups are cached the same
// way.
//
// # Order-Independent Transparency
//
// With OIT enabled (WithOIT, SetOIT), blended draws append their
// translucent fragments to per-pixel linked lists instead of blending in
// submission order. Present sorts each list by depth and composites it
// over the back buffer. Toggling OIT takes effect at the next frame.
//
// # Logging
//
// The package is silent by default. SetLogger installs a log/slog logger
// for the device and its internal caches.
package fixedfunc
