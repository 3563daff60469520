// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package oit

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"honnef.co/go/safeish"

	"github.com/gogpu/fixedfunc/internal/cbuffer"
	"github.com/gogpu/fixedfunc/internal/permutation"
	"github.com/gogpu/fixedfunc/internal/shadercache"
	"github.com/gogpu/fixedfunc/internal/shadersrc"
)

// Errors returned by the engine.
var (
	ErrNilDevice   = errors.New("oit: device or queue is nil")
	ErrInvalidSize = errors.New("oit: width and height must be positive")
	ErrNoResources = errors.New("oit: fragment list not allocated")
	ErrBusy        = errors.New("oit: fragment list is bound")
)

// Bind group binding numbers in the write layout. They match the
// fixed-function pixel shader.
const (
	bindingHeads  = 0
	bindingCounts = 1
	bindingNodes  = 2
	bindingParams = 3
)

const paramsSize = 16

// Config configures an Engine.
type Config struct {
	// MaxFragments is the per-pixel fragment limit. Zero means
	// DefaultMaxFragments.
	MaxFragments uint32

	// ColorFormat is the format of the target the composite pass blends
	// into.
	ColorFormat gputypes.TextureFormat

	// Source provides the composite shader. Nil uses the embedded shaders.
	Source shadersrc.Provider

	// Build creates shader modules. Nil uses shadercache.CompileModule.
	Build shadercache.ModuleFunc
}

// Engine owns the GPU fragment list: the head buffer, the per-pixel
// counters with the trailing node allocator, the node pool and the
// composite pipeline.
//
// A frame runs BeginFrame, any number of write passes bracketed by
// BindWrite and Unbind, then Composite and EndFrame on the same encoder.
// The engine is driven by the render thread and is not safe for
// concurrent use.
type Engine struct {
	device hal.Device
	queue  hal.Queue
	cfg    Config

	writeLayout     hal.BindGroupLayout
	compositeLayout hal.BindGroupLayout
	pipelineLayout  hal.PipelineLayout
	module          hal.ShaderModule
	pipeline        hal.RenderPipeline

	width, height uint32
	capacity      uint32
	heads         hal.Buffer
	nullHeads     hal.Buffer
	counts        hal.Buffer
	nodes         hal.Buffer
	params        hal.Buffer
	writeGroup    hal.BindGroup
	readGroup     hal.BindGroup

	requested bool
	active    bool
	binding   Binding
	frames    uint64
}

// NewEngine creates an engine on device. Buffers are allocated by the
// first Resize.
func NewEngine(device hal.Device, queue hal.Queue, cfg Config) (*Engine, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if cfg.MaxFragments == 0 {
		cfg.MaxFragments = DefaultMaxFragments
	}
	if cfg.ColorFormat == gputypes.TextureFormatUndefined {
		cfg.ColorFormat = gputypes.TextureFormatBGRA8Unorm
	}
	if cfg.Source == nil {
		lib, err := shadersrc.NewLibrary("")
		if err != nil {
			return nil, err
		}
		cfg.Source = lib
	}
	if cfg.Build == nil {
		cfg.Build = shadercache.CompileModule
	}
	e := &Engine{device: device, queue: queue, cfg: cfg}
	if err := e.createLayouts(); err != nil {
		e.Destroy()
		return nil, err
	}
	return e, nil
}

func storageEntry(binding uint32, t gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: t},
	}
}

func (e *Engine) createLayouts() error {
	var err error
	e.writeLayout, err = e.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "oit write",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageEntry(bindingHeads, gputypes.BufferBindingTypeStorage),
			storageEntry(bindingCounts, gputypes.BufferBindingTypeStorage),
			storageEntry(bindingNodes, gputypes.BufferBindingTypeStorage),
			storageEntry(bindingParams, gputypes.BufferBindingTypeUniform),
		},
	})
	if err != nil {
		return fmt.Errorf("oit: create write layout: %w", err)
	}
	e.compositeLayout, err = e.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "oit composite",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageEntry(0, gputypes.BufferBindingTypeReadOnlyStorage),
			storageEntry(1, gputypes.BufferBindingTypeReadOnlyStorage),
			storageEntry(2, gputypes.BufferBindingTypeUniform),
		},
	})
	if err != nil {
		return fmt.Errorf("oit: create composite layout: %w", err)
	}
	e.pipelineLayout, err = e.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "oit composite",
		BindGroupLayouts: []hal.BindGroupLayout{e.compositeLayout},
	})
	if err != nil {
		return fmt.Errorf("oit: create composite pipeline layout: %w", err)
	}
	return nil
}

// WriteLayout returns the bind group layout translucent pipelines use for
// the fragment list.
func (e *Engine) WriteLayout() hal.BindGroupLayout { return e.writeLayout }

// MaxFragments returns the per-pixel fragment limit.
func (e *Engine) MaxFragments() uint32 { return e.cfg.MaxFragments }

// Size returns the current fragment list dimensions.
func (e *Engine) Size() (width, height uint32) { return e.width, e.height }

// Capacity returns the node pool size.
func (e *Engine) Capacity() uint32 { return e.capacity }

// Binding returns the current binding state.
func (e *Engine) Binding() Binding { return e.binding }

// Frames returns the number of frames composited.
func (e *Engine) Frames() uint64 { return e.frames }

// Resize reallocates the fragment list for a width x height target. It is
// a no-op when the size is unchanged.
func (e *Engine) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return ErrInvalidSize
	}
	if e.binding != Unbound {
		return ErrBusy
	}
	if e.heads != nil && width == e.width && height == e.height {
		return nil
	}
	e.releaseBuffers()

	pixels := uint64(width) * uint64(height)
	capacity := pixels * uint64(e.cfg.MaxFragments)
	if capacity >= uint64(Null) {
		return fmt.Errorf("oit: %dx%d with %d fragments per pixel exceeds the node index range",
			width, height, e.cfg.MaxFragments)
	}
	if err := e.createBuffers(width, height, uint32(capacity)); err != nil {
		e.releaseBuffers()
		return err
	}
	e.width, e.height, e.capacity = width, height, uint32(capacity)
	slogger().Debug("oit: fragment list resized",
		"width", width, "height", height, "capacity", capacity)
	return nil
}

func (e *Engine) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	b, err := e.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("oit: create %s buffer: %w", label, err)
	}
	return b, nil
}

func (e *Engine) createBuffers(width, height, capacity uint32) error {
	pixels := uint64(width) * uint64(height)
	var err error
	if e.heads, err = e.createBuffer("oit heads", pixels*4,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if e.nullHeads, err = e.createBuffer("oit null heads", pixels*4,
		gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	// One counter per pixel plus the node allocator.
	if e.counts, err = e.createBuffer("oit counts", (pixels+1)*4,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if e.nodes, err = e.createBuffer("oit nodes", uint64(capacity)*NodeSize,
		gputypes.BufferUsageStorage); err != nil {
		return err
	}
	if e.params, err = e.createBuffer("oit params", paramsSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}

	sentinel := make([]uint32, pixels)
	for i := range sentinel {
		sentinel[i] = Null
	}
	nulls := safeish.SliceCast[[]byte](sentinel)
	if err := e.queue.WriteBuffer(e.nullHeads, 0, nulls); err != nil {
		return fmt.Errorf("oit: upload null heads: %w", err)
	}
	if err := e.queue.WriteBuffer(e.heads, 0, nulls); err != nil {
		return fmt.Errorf("oit: upload heads: %w", err)
	}

	w := cbuffer.NewWriter(paramsSize)
	w.Uint(width)
	w.Uint(height)
	w.Uint(e.cfg.MaxFragments)
	w.Uint(capacity)
	if err := e.queue.WriteBuffer(e.params, 0, w.Bytes()); err != nil {
		return fmt.Errorf("oit: upload params: %w", err)
	}

	buf := func(binding uint32, b hal.Buffer, size uint64) gputypes.BindGroupEntry {
		return gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.BufferBinding{Buffer: b.NativeHandle(), Size: size},
		}
	}
	e.writeGroup, err = e.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "oit write",
		Layout: e.writeLayout,
		Entries: []gputypes.BindGroupEntry{
			buf(bindingHeads, e.heads, pixels*4),
			buf(bindingCounts, e.counts, (pixels+1)*4),
			buf(bindingNodes, e.nodes, uint64(capacity)*NodeSize),
			buf(bindingParams, e.params, paramsSize),
		},
	})
	if err != nil {
		return fmt.Errorf("oit: create write bind group: %w", err)
	}
	e.readGroup, err = e.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "oit composite",
		Layout: e.compositeLayout,
		Entries: []gputypes.BindGroupEntry{
			buf(0, e.heads, pixels*4),
			buf(1, e.nodes, uint64(capacity)*NodeSize),
			buf(2, e.params, paramsSize),
		},
	})
	if err != nil {
		return fmt.Errorf("oit: create composite bind group: %w", err)
	}
	return nil
}

func (e *Engine) releaseBuffers() {
	if e.writeGroup != nil {
		e.device.DestroyBindGroup(e.writeGroup)
		e.writeGroup = nil
	}
	if e.readGroup != nil {
		e.device.DestroyBindGroup(e.readGroup)
		e.readGroup = nil
	}
	for _, b := range []*hal.Buffer{&e.heads, &e.nullHeads, &e.counts, &e.nodes, &e.params} {
		if *b != nil {
			e.device.DestroyBuffer(*b)
			*b = nil
		}
	}
	e.width, e.height, e.capacity = 0, 0, 0
}

// SetEnabled requests OIT on or off. The request takes effect at the next
// BeginFrame so bindings never change within a frame.
func (e *Engine) SetEnabled(on bool) { e.requested = on }

// Requested reports the last value passed to SetEnabled.
func (e *Engine) Requested() bool { return e.requested }

// Active reports whether OIT is in effect for the current frame.
func (e *Engine) Active() bool { return e.active }

// BeginFrame latches the enabled request for the frame and reports whether
// OIT is active. OIT is never active without allocated buffers.
func (e *Engine) BeginFrame() bool {
	e.binding = Unbound
	active := e.requested && e.heads != nil
	if active != e.active {
		slogger().Debug("oit: toggled", "active", active)
	}
	e.active = active
	return active
}

// BindWrite sets the write bind group on pass at group index.
func (e *Engine) BindWrite(pass hal.RenderPassEncoder, index uint32) error {
	if !e.active {
		return ErrNoResources
	}
	next, err := e.binding.transition(Writable)
	if err != nil {
		return err
	}
	pass.SetBindGroup(index, e.writeGroup, nil)
	e.binding = next
	return nil
}

// Unbind records that the pass holding the fragment list has ended.
func (e *Engine) Unbind() {
	e.binding = Unbound
}

func (e *Engine) ensurePipeline() error {
	if e.pipeline != nil {
		return nil
	}
	src, err := e.cfg.Source.Source(shadersrc.OITComposite, []permutation.Define{
		{Name: "OIT_MAX_FRAGMENTS", Value: strconv.FormatUint(uint64(e.cfg.MaxFragments), 10)},
	})
	if err != nil {
		return fmt.Errorf("oit: composite shader: %w", err)
	}
	if e.module == nil {
		e.module, _, err = e.cfg.Build(e.device, shadersrc.OITComposite, src)
		if err != nil {
			return fmt.Errorf("oit: composite shader: %w", err)
		}
	}
	over := gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	}
	e.pipeline, err = e.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:       "oit composite",
		Layout:      e.pipelineLayout,
		Vertex:      hal.VertexState{Module: e.module, EntryPoint: "vs_main"},
		Primitive:   gputypes.PrimitiveState{Topology: gputypes.PrimitiveTopologyTriangleList},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     e.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    e.cfg.ColorFormat,
				Blend:     &gputypes.BlendState{Color: over, Alpha: over},
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("oit: create composite pipeline: %w", err)
	}
	return nil
}

// Composite resolves the fragment list into target in its own render
// pass. Write passes must have been unbound first.
func (e *Engine) Composite(encoder hal.CommandEncoder, target hal.TextureView) error {
	if !e.active {
		return ErrNoResources
	}
	if _, err := e.binding.transition(Readable); err != nil {
		return err
	}
	if err := e.ensurePipeline(); err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "oit composite",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	e.binding = Readable
	pass.SetPipeline(e.pipeline)
	pass.SetBindGroup(0, e.readGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	e.binding = Unbound
	e.frames++
	return nil
}

// EndFrame records the reset of the heads and counters so the next frame
// starts with empty lists.
func (e *Engine) EndFrame(encoder hal.CommandEncoder) {
	e.binding = Unbound
	if !e.active {
		return
	}
	pixels := uint64(e.width) * uint64(e.height)
	encoder.ClearBuffer(e.counts, 0, (pixels+1)*4)
	encoder.CopyBufferToBuffer(e.nullHeads, e.heads, []hal.BufferCopy{{Size: pixels * 4}})
}

// ReleaseShaders destroys the composite pipeline and module so they are
// rebuilt from fresh source on next use.
func (e *Engine) ReleaseShaders() {
	if e.pipeline != nil {
		e.device.DestroyRenderPipeline(e.pipeline)
		e.pipeline = nil
	}
	if e.module != nil {
		e.device.DestroyShaderModule(e.module)
		e.module = nil
	}
}

// Destroy releases every GPU object owned by the engine.
func (e *Engine) Destroy() {
	e.ReleaseShaders()
	e.releaseBuffers()
	if e.pipelineLayout != nil {
		e.device.DestroyPipelineLayout(e.pipelineLayout)
		e.pipelineLayout = nil
	}
	if e.compositeLayout != nil {
		e.device.DestroyBindGroupLayout(e.compositeLayout)
		e.compositeLayout = nil
	}
	if e.writeLayout != nil {
		e.device.DestroyBindGroupLayout(e.writeLayout)
		e.writeLayout = nil
	}
	e.active = false
	e.binding = Unbound
}
