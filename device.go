// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/cbuffer"
	"github.com/gogpu/fixedfunc/internal/dirty"
	"github.com/gogpu/fixedfunc/internal/oit"
	"github.com/gogpu/fixedfunc/internal/permutation"
	"github.com/gogpu/fixedfunc/internal/pso"
	"github.com/gogpu/fixedfunc/internal/shadercache"
	"github.com/gogpu/fixedfunc/internal/shadersrc"
)

// DepthFormat is the format of the device's depth-stencil buffer.
const DepthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Bind group indices.
const (
	groupUniforms = 0
	groupTextures = 1
	groupOIT      = 2
)

// MaxTextureStages is the number of texture stages and samplers.
const MaxTextureStages = 8

// Device emulates a fixed-function device on a hal device.
//
// Callers set legacy states and issue draws between BeginScene and
// EndScene; Present submits the frame. Every state lives in a typed dirty
// cell, and the update pass before each draw only touches the caches and
// GPU bindings whose inputs changed.
//
// A Device is driven by one render goroutine and is not safe for
// concurrent use. Shader compiles run on background workers.
//
// Construction order is shader source, shader cache, state caches,
// layouts, uniform ring, render targets, OIT engine. Close tears down in
// the reverse order, destroying pipelines before the shader modules they
// reference.
type Device struct {
	device hal.Device
	queue  hal.Queue
	opts   deviceOptions
	closed bool

	source   *shadersrc.Library
	watcher  *shadersrc.Watcher
	compiler *shadercache.SourceCompiler
	shaders  *shadercache.Cache
	store    *permutation.Store

	blends    *pso.StateCache[pso.BlendFlags, pso.BlendState]
	depths    *pso.StateCache[pso.DepthFlags, hal.DepthStencilState]
	rasters   *pso.StateCache[pso.RasterFlags, gputypes.PrimitiveState]
	samplers  *pso.StateCache[pso.SamplerSettings, hal.Sampler]
	pipelines *pso.PipelineCache
	oit       *oit.Engine

	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	baseLayout    hal.PipelineLayout
	oitLayout     hal.PipelineLayout
	ring          *uniformRing
	packer        *cbuffer.Writer
	texGroups     map[textureKey]hal.BindGroup

	white     hal.Texture
	whiteView hal.TextureView

	width, height uint32
	color         hal.Texture
	colorView     hal.TextureView
	depthTex      hal.Texture
	depthView     hal.TextureView

	// Legacy state as set by the caller.
	rs       [renderStateCount]uint32
	tss      [MaxTextureStages][stageStateCount]uint32
	ss       [MaxTextureStages][samplerStateCount]uint32
	world    Matrix
	view     Matrix
	proj     Matrix
	viewport Viewport
	material Material
	lights   map[uint32]Light
	active   []uint32 // enabled light indices, ascending
	fvf      FVF

	// GPU-visible state.
	blend      dirty.Cell[pso.BlendFlags]
	depth      dirty.Cell[pso.DepthFlags]
	raster     dirty.Cell[pso.RasterFlags]
	stencilRef dirty.Cell[uint32]
	blendConst dirty.Cell[uint32]
	sampler    [MaxTextureStages]dirty.Cell[pso.SamplerSettings]
	texture    [MaxTextureStages]dirty.Cell[hal.TextureView]
	transforms dirty.Cell[transformBlock]
	lighting   dirty.Cell[lightingBlock]
	pixel      dirty.Cell[pixelBlock]
	key        dirty.Cell[permutation.Key]
	vp         dirty.Cell[Viewport]
	stream     dirty.Cell[vertexStream]
	indices    dirty.Cell[indexStream]

	states   stateObjects
	cur      bound
	frame    frameState
	inflight []submission
	stats    counters
}

// vertexStream is the bound vertex buffer.
type vertexStream struct {
	buf    hal.Buffer
	offset uint64
	stride uint32
}

// indexStream is the bound index buffer.
type indexStream struct {
	buf    hal.Buffer
	format gputypes.IndexFormat
}

// New creates a device rendering with device and queue.
func New(device hal.Device, queue hal.Queue, opts ...DeviceOption) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &Device{
		device:    device,
		queue:     queue,
		opts:      o,
		lights:    make(map[uint32]Light),
		texGroups: make(map[textureKey]hal.BindGroup),
		packer:    cbuffer.NewWriter(lightingSize),
	}
	if err := d.init(); err != nil {
		d.teardown()
		return nil, err
	}
	Logger().Info("fixedfunc: device created",
		"width", d.width, "height", d.height, "oit", o.oit, "uber", o.uberFallback)
	return d, nil
}

// NewFromProvider creates a device on the GPU device of a host
// application. The provider must expose its hal objects through
// HalDevice() and HalQueue() methods.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...DeviceOption) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]DeviceOption{WithColorFormat(f)}, opts...)
	}
	return New(device, queue, opts...)
}

func (d *Device) init() error {
	o := &d.opts
	lib, err := shadersrc.NewLibrary(o.shaderDir)
	if err != nil {
		return err
	}
	d.source = lib
	if o.watchShaders && lib.Dir() != "" {
		if d.watcher, err = shadersrc.NewWatcher(lib.Dir()); err != nil {
			return err
		}
	}
	d.compiler = shadercache.NewSourceCompiler(d.device, lib, shadercache.ModuleFunc(o.build))
	d.shaders = shadercache.New(d.compiler, o.workers)

	d.blends = pso.NewBlendCache()
	d.depths = pso.NewDepthStencilCache(DepthFormat)
	d.rasters = pso.NewRasterCache()
	if d.samplers, err = pso.NewSamplerCache(d.device); err != nil {
		return err
	}
	if d.pipelines, err = pso.NewPipelineCache(d.device); err != nil {
		return err
	}

	d.oit, err = oit.NewEngine(d.device, d.queue, oit.Config{
		MaxFragments: o.maxFragments,
		ColorFormat:  o.colorFormat,
		Source:       lib,
		Build:        shadercache.ModuleFunc(o.build),
	})
	if err != nil {
		return err
	}
	d.oit.SetEnabled(o.oit)

	if err := d.createLayouts(); err != nil {
		return err
	}
	if d.ring, err = newUniformRing(d.device, d.queue, d.uniformLayout, defaultRingSize); err != nil {
		return err
	}
	if err := d.createWhite(); err != nil {
		return err
	}
	if err := d.resize(o.width, o.height); err != nil {
		return err
	}
	d.resetState()

	if o.permutationFile != "" {
		if d.store, err = permutation.OpenStore(o.permutationFile); err != nil {
			return err
		}
		d.prewarm()
	}
	return nil
}

// prewarm compiles the permutations recorded by earlier runs. Failures
// are logged; the affected keys compile on first use instead.
func (d *Device) prewarm() {
	keys := d.store.Keys()
	if len(keys) == 0 {
		return
	}
	if err := d.shaders.Prewarm(context.Background(), keys, d.opts.workers); err != nil {
		Logger().Warn("fixedfunc: prewarm failed", "keys", len(keys), "err", err)
		return
	}
	Logger().Debug("fixedfunc: prewarmed shaders", "keys", len(keys))
}

func uniformEntry(binding uint32, size uint64, stages gputypes.ShaderStages) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: stages,
		Buffer: &gputypes.BufferBindingLayout{
			Type:             gputypes.BufferBindingTypeUniform,
			HasDynamicOffset: true,
			MinBindingSize:   size,
		},
	}
}

func (d *Device) createLayouts() error {
	var err error
	d.uniformLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fixedfunc uniforms",
		Entries: []gputypes.BindGroupLayoutEntry{
			uniformEntry(bindTransforms, transformsSize, gputypes.ShaderStageVertex),
			uniformEntry(bindLighting, lightingSize, gputypes.ShaderStageVertex),
			uniformEntry(bindPixel, pixelSize, gputypes.ShaderStageFragment),
		},
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create uniform layout: %w", err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, 2*MaxTextureStages)
	for i := range uint32(MaxTextureStages) {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    i,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	for i := range uint32(MaxTextureStages) {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    MaxTextureStages + i,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		})
	}
	d.textureLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "fixedfunc textures",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create texture layout: %w", err)
	}

	d.baseLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "fixedfunc",
		BindGroupLayouts: []hal.BindGroupLayout{d.uniformLayout, d.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create pipeline layout: %w", err)
	}
	d.oitLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "fixedfunc oit",
		BindGroupLayouts: []hal.BindGroupLayout{d.uniformLayout, d.textureLayout, d.oit.WriteLayout()},
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create oit pipeline layout: %w", err)
	}
	return nil
}

// createWhite creates the 1x1 white texture bound to stages without a
// texture, so texture arguments of unbound stages read as 1.
func (d *Device) createWhite() error {
	var err error
	d.white, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "fixedfunc white",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create white texture: %w", err)
	}
	if d.whiteView, err = d.device.CreateTextureView(d.white, nil); err != nil {
		return fmt.Errorf("fixedfunc: create white view: %w", err)
	}
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: d.white, Aspect: gputypes.TextureAspectAll},
		[]byte{0xFF, 0xFF, 0xFF, 0xFF},
		&hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("fixedfunc: upload white texture: %w", err)
	}
	return nil
}

// resize recreates the back buffer, depth buffer and fragment list.
func (d *Device) resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidCall, width, height)
	}
	d.releaseTargets()

	var err error
	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	d.color, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "fixedfunc back buffer",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.opts.colorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create back buffer: %w", err)
	}
	if d.colorView, err = d.device.CreateTextureView(d.color, nil); err != nil {
		return fmt.Errorf("fixedfunc: create back buffer view: %w", err)
	}
	d.depthTex, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "fixedfunc depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        DepthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create depth buffer: %w", err)
	}
	if d.depthView, err = d.device.CreateTextureView(d.depthTex, nil); err != nil {
		return fmt.Errorf("fixedfunc: create depth view: %w", err)
	}
	if err := d.oit.Resize(width, height); err != nil {
		return err
	}
	d.width, d.height = width, height
	Logger().Debug("fixedfunc: resized", "width", width, "height", height)
	return nil
}

func (d *Device) releaseTargets() {
	if d.colorView != nil {
		d.device.DestroyTextureView(d.colorView)
		d.colorView = nil
	}
	if d.color != nil {
		d.device.DestroyTexture(d.color)
		d.color = nil
	}
	if d.depthView != nil {
		d.device.DestroyTextureView(d.depthView)
		d.depthView = nil
	}
	if d.depthTex != nil {
		d.device.DestroyTexture(d.depthTex)
		d.depthTex = nil
	}
}

// Size returns the back buffer size.
func (d *Device) Size() (width, height uint32) { return d.width, d.height }

// BackBuffer returns the texture frames are rendered into. It is replaced
// by Reset.
func (d *Device) BackBuffer() hal.Texture { return d.color }

// WaitCompiles blocks until every queued background shader compile has
// finished. Draws never need it; it settles the shader counters.
func (d *Device) WaitCompiles() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.shaders.Wait()
	return nil
}

// Close waits for background shader compiles, then releases every GPU
// object the device created. The backend device itself is not destroyed.
// Close is safe to call multiple times.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.frame.encoder != nil {
		d.endPass()
		d.frame.encoder.DiscardEncoding()
		d.frame = frameState{}
	}
	if err := d.device.WaitIdle(); err != nil {
		Logger().Warn("fixedfunc: wait idle on close", "err", err)
	}
	d.retire(true)
	err := d.teardown()
	Logger().Info("fixedfunc: device closed")
	return err
}

// teardown releases whatever init created, in reverse order.
func (d *Device) teardown() error {
	var errs []error
	if d.watcher != nil {
		errs = append(errs, d.watcher.Close())
		d.watcher = nil
	}
	if d.shaders != nil {
		d.shaders.Wait()
	}
	if d.pipelines != nil {
		d.pipelines.DestroyAll()
	}
	d.destroyTextureGroups()
	if d.samplers != nil {
		d.samplers.Clear()
	}
	if d.oit != nil {
		d.oit.Destroy()
	}
	if d.shaders != nil {
		d.shaders.Close()
	}
	if d.ring != nil {
		d.ring.destroy()
		d.ring = nil
	}
	d.releaseTargets()
	if d.whiteView != nil {
		d.device.DestroyTextureView(d.whiteView)
		d.whiteView = nil
	}
	if d.white != nil {
		d.device.DestroyTexture(d.white)
		d.white = nil
	}
	if d.oitLayout != nil {
		d.device.DestroyPipelineLayout(d.oitLayout)
		d.oitLayout = nil
	}
	if d.baseLayout != nil {
		d.device.DestroyPipelineLayout(d.baseLayout)
		d.baseLayout = nil
	}
	if d.textureLayout != nil {
		d.device.DestroyBindGroupLayout(d.textureLayout)
		d.textureLayout = nil
	}
	if d.uniformLayout != nil {
		d.device.DestroyBindGroupLayout(d.uniformLayout)
		d.uniformLayout = nil
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
		d.store = nil
	}
	return errors.Join(errs...)
}

func (d *Device) checkOpen() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}
