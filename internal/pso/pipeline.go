// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pso

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/shadercache"
)

// ErrNilDescriptor is returned when a pipeline builder yields no descriptor.
var ErrNilDescriptor = errors.New("pso: pipeline descriptor is nil")

// PipelineKey identifies a render pipeline by the state objects and
// shaders it combines.
type PipelineKey struct {
	VS, PS *shadercache.Entry

	// IDs from the blend, depth-stencil and raster caches.
	Blend, Depth, Raster uint32

	// VertexFormat is the legacy vertex format the input layout is built
	// from, Stride the vertex buffer stride it is read with.
	VertexFormat uint32
	Stride       uint32

	// OIT selects the pipeline layout with the fragment list bindings.
	OIT bool

	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
}

// PipelineCache caches render pipelines.
//
// Thread Safety:
// PipelineCache is safe for concurrent use. It uses RWMutex with
// double-check locking for efficient reads and safe writes.
type PipelineCache struct {
	device hal.Device

	mu        sync.RWMutex
	pipelines map[PipelineKey]hal.RenderPipeline

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPipelineCache creates a pipeline cache on device.
func NewPipelineCache(device hal.Device) (*PipelineCache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &PipelineCache{device: device, pipelines: make(map[PipelineKey]hal.RenderPipeline)}, nil
}

// GetOrCreate returns the pipeline for key, calling build for a
// descriptor only on a miss.
func (c *PipelineCache) GetOrCreate(key PipelineKey, build func() (*hal.RenderPipelineDescriptor, error)) (hal.RenderPipeline, error) {
	// Fast path: read lock
	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		return p, nil
	}

	desc, err := build()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrNilDescriptor
	}
	p, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("pso: create render pipeline %q: %w", desc.Label, err)
	}
	c.pipelines[key] = p
	c.misses.Add(1)
	return p, nil
}

// Len returns the number of cached pipelines.
func (c *PipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// Stats returns cache hits and misses.
func (c *PipelineCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// DestroyAll destroys every cached pipeline. Pipelines reference shader
// modules, so this must run before the shader cache releases them.
func (c *PipelineCache) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
}
