// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/cbuffer"
	"github.com/gogpu/fixedfunc/internal/permutation"
	"github.com/gogpu/fixedfunc/internal/pso"
	"github.com/gogpu/fixedfunc/internal/shadercache"
)

// maxTextureGroups bounds the texture bind group cache. The cache is
// flushed at the next Present once it grows past this.
const maxTextureGroups = 256

// bound is what the open render pass has bound. It is reset whenever a
// pass begins.
type bound struct {
	pipeline    pso.PipelineKey
	hasPipeline bool

	uniforms bool

	textures bool
	texKey   textureKey

	oit bool
}

// textureKey identifies a texture bind group: one view and one sampler
// state ID per stage.
type textureKey struct {
	views    [MaxTextureStages]hal.TextureView
	samplers [MaxTextureStages]uint32
}

// stateObjects are the state objects last resolved from the blend,
// depth-stencil and raster cells. They stay valid until the cell is
// dirtied again.
type stateObjects struct {
	blend  *pso.State[pso.BlendFlags, pso.BlendState]
	depth  *pso.State[pso.DepthFlags, hal.DepthStencilState]
	raster *pso.State[pso.RasterFlags, gputypes.PrimitiveState]
}

type counters struct {
	frames    uint64
	draws     uint64
	uberDraws uint64
	oitDraws  uint64
	passes    uint64
	retries   uint64
}

// drawCall describes the draw the update pass prepares for.
type drawCall struct {
	topology gputypes.PrimitiveTopology
	indexed  bool
	oit      bool // routed into the fragment list
}

// update brings the GPU state of the open pass in line with the legacy
// state. State objects, dynamic state and buffer bindings are only
// resolved again when the cells they read are dirty.
func (d *Device) update(dc drawCall) error {
	d.updateRaster(dc)

	vs, ps, err := d.selectShaders(dc.oit)
	if err != nil {
		return err
	}
	// Shader selection may have flushed the frame for a retry.
	pass := d.ensurePass()

	d.depth.Assign(d.depthFlags(dc.oit))
	if err := d.resolveStates(); err != nil {
		return err
	}
	blend, depth, raster := d.states.blend, d.states.depth, d.states.raster

	stream := d.stream.Get()
	stride := stream.stride
	if stride == 0 {
		stride = d.fvf.Stride()
	}
	key := pso.PipelineKey{
		VS:           vs,
		PS:           ps,
		Blend:        blend.ID,
		Depth:        depth.ID,
		Raster:       raster.ID,
		VertexFormat: uint32(d.fvf),
		Stride:       stride,
		OIT:          dc.oit,
		ColorFormat:  d.opts.colorFormat,
		DepthFormat:  DepthFormat,
	}
	if !d.cur.hasPipeline || d.cur.pipeline != key {
		p, err := d.pipelines.GetOrCreate(key, func() (*hal.RenderPipelineDescriptor, error) {
			Logger().Debug("fixedfunc: creating pipeline",
				"vs", vs.Key, "ps", ps.Key, "fvf", fmt.Sprintf("%#x", uint32(d.fvf)), "oit", dc.oit)
			return d.pipelineDescriptor(key, blend.Object, depth.Object, raster.Object), nil
		})
		if err != nil {
			return err
		}
		pass.SetPipeline(p)
		d.cur.pipeline, d.cur.hasPipeline = key, true
	}
	if d.stencilRef.Dirty() {
		pass.SetStencilReference(d.stencilRef.Get())
		d.stencilRef.Clear()
	}
	if d.blendConst.Dirty() {
		c := ColorFromARGB(d.blendConst.Get())
		pass.SetBlendConstant(&gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)})
		d.blendConst.Clear()
	}

	if err := d.commitUniforms(); err != nil {
		return err
	}
	if err := d.bindTextures(); err != nil {
		return err
	}

	if d.vp.Dirty() {
		vp := d.vp.Get()
		pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), vp.MinZ, vp.MaxZ)
		pass.SetScissorRect(vp.X, vp.Y, vp.Width, vp.Height)
		d.vp.Clear()
	}
	if d.stream.Dirty() {
		pass.SetVertexBuffer(0, stream.buf, stream.offset)
		d.stream.Clear()
	}
	if dc.indexed && d.indices.Dirty() {
		ib := d.indices.Get()
		pass.SetIndexBuffer(ib.buf, ib.format, 0)
		d.indices.Clear()
	}

	if dc.oit && !d.cur.oit {
		if err := d.oit.BindWrite(pass, groupOIT); err != nil {
			return err
		}
		d.cur.oit = true
	}
	return nil
}

// resolveStates looks up the state objects whose cells are dirty. A cell
// stays dirty when its lookup fails.
func (d *Device) resolveStates() error {
	if d.blend.Dirty() || d.states.blend == nil {
		s, err := d.blends.Get(d.blend.Get())
		if err != nil {
			return err
		}
		d.states.blend = s
		d.blend.Clear()
	}
	if d.depth.Dirty() || d.states.depth == nil {
		s, err := d.depths.Get(d.depth.Get())
		if err != nil {
			return err
		}
		d.states.depth = s
		d.depth.Clear()
	}
	if d.raster.Dirty() || d.states.raster == nil {
		s, err := d.rasters.Get(d.raster.Get())
		if err != nil {
			return err
		}
		d.states.raster = s
		d.raster.Clear()
	}
	return nil
}

func (d *Device) updateRaster(dc drawCall) {
	f := pso.RasterFlags{
		CullMode:  cullMode(d.rs[RSCullMode]),
		FrontFace: gputypes.FrontFaceCW,
		Topology:  dc.topology,
	}
	if dc.indexed && isStrip(dc.topology) {
		f.StripIndexFormat = d.indices.Get().format
	}
	d.raster.Assign(f)
}

// selectShaders looks up the vertex and pixel shader for the current
// states, consulting the compile error handler on failure.
func (d *Device) selectShaders(oitDraw bool) (vs, ps *shadercache.Entry, err error) {
	key := d.permutationKey(oitDraw)
	d.key.Assign(key)
	for attempt := 1; ; attempt++ {
		vs, ps, err = d.lookupShaders(key)
		if err == nil {
			break
		}
		var ce *CompileError
		if !errors.As(err, &ce) || d.opts.onCompileError == nil || attempt >= maxCompileAttempts {
			return nil, nil, err
		}
		if d.opts.onCompileError(ce, attempt) != Retry {
			return nil, nil, err
		}
		Logger().Warn("fixedfunc: retrying shader compile",
			"stage", ce.Stage, "key", ce.Key, "attempt", attempt)
		d.stats.retries++
		if err := d.reloadShaders(); err != nil {
			return nil, nil, err
		}
	}
	if d.key.Dirty() {
		if d.store != nil {
			if _, err := d.store.Record(key); err != nil {
				Logger().Warn("fixedfunc: record permutation", "key", key, "err", err)
			}
		}
		d.key.Clear()
	}
	if vs.Key.Has(permutation.Uber) || ps.Key.Has(permutation.Uber) {
		d.stats.uberDraws++
	}
	return vs, ps, nil
}

func (d *Device) lookupShaders(key permutation.Key) (vs, ps *shadercache.Entry, err error) {
	uber := d.opts.uberFallback
	if vs, err = d.shaders.Lookup(permutation.VertexStage, key, uber); err != nil {
		return nil, nil, err
	}
	if ps, err = d.shaders.Lookup(permutation.PixelStage, key, uber); err != nil {
		return nil, nil, err
	}
	return vs, ps, nil
}

func (d *Device) pipelineDescriptor(key pso.PipelineKey, blend pso.BlendState, depth hal.DepthStencilState,
	prim gputypes.PrimitiveState) *hal.RenderPipelineDescriptor {
	layout := d.baseLayout
	if key.OIT {
		layout = d.oitLayout
	}
	return &hal.RenderPipelineDescriptor{
		Label:  "fixedfunc",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     key.VS.Module,
			EntryPoint: key.VS.EntryPoint(),
			Buffers:    []gputypes.VertexBufferLayout{FVF(key.VertexFormat).Layout(key.Stride)},
		},
		Primitive:    prim,
		DepthStencil: &depth,
		Multisample:  gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     key.PS.Module,
			EntryPoint: key.PS.EntryPoint(),
			Targets: []gputypes.ColorTargetState{{
				Format:    key.ColorFormat,
				Blend:     blend.Blend,
				WriteMask: blend.WriteMask,
			}},
		},
	}
}

// commitUniforms appends the dirty uniform blocks to the ring and rebinds
// group 0 with their offsets.
func (d *Device) commitUniforms() error {
	f := &d.frame
	pending := [3]bool{d.transforms.Dirty(), d.lighting.Dirty(), d.pixel.Dirty()}
	if f.ringGen != d.ring.generation {
		pending = [3]bool{true, true, true}
	}
	if pending != [3]bool{} {
		tb, lb, pb := d.transforms.Get(), d.lighting.Get(), d.pixel.Get()
		blocks := [3]interface{ pack(*cbuffer.Writer) }{&tb, &lb, &pb}
		for i := 0; i < len(blocks); i++ {
			if !pending[i] {
				continue
			}
			d.packer.Reset()
			blocks[i].pack(d.packer)
			off, grew, err := d.ring.push(d.packer.Bytes())
			if err != nil {
				return err
			}
			f.offsets[i] = off
			pending[i] = false
			if grew {
				// Offsets handed out earlier point into the retired buffer.
				for j := range pending {
					pending[j] = j != i
				}
				i = -1
			}
		}
		d.transforms.Clear()
		d.lighting.Clear()
		d.pixel.Clear()
		f.ringGen = d.ring.generation
		d.cur.uniforms = false
	}
	if !d.cur.uniforms {
		offsets := f.offsets
		f.pass.SetBindGroup(groupUniforms, d.ring.group, offsets[:])
		d.cur.uniforms = true
	}
	return nil
}

// bindTextures binds the texture and sampler group for the current stage
// textures and sampler states.
func (d *Device) bindTextures() error {
	changed := !d.cur.textures
	for i := range MaxTextureStages {
		changed = changed || d.texture[i].Dirty() || d.sampler[i].Dirty()
	}
	if !changed {
		return nil
	}
	var key textureKey
	var samplers [MaxTextureStages]hal.Sampler
	for i := range MaxTextureStages {
		v := d.texture[i].Get()
		if v == nil {
			v = d.whiteView
		}
		key.views[i] = v
		st, err := d.samplers.Get(d.sampler[i].Get())
		if err != nil {
			return err
		}
		key.samplers[i] = st.ID
		samplers[i] = st.Object
		d.texture[i].Clear()
		d.sampler[i].Clear()
	}
	if d.cur.textures && d.cur.texKey == key {
		return nil
	}
	group, ok := d.texGroups[key]
	if !ok {
		entries := make([]gputypes.BindGroupEntry, 0, 2*MaxTextureStages)
		for i, v := range key.views {
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  uint32(i),
				Resource: gputypes.TextureViewBinding{TextureView: v.NativeHandle()},
			})
		}
		for i, s := range samplers {
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  uint32(MaxTextureStages + i),
				Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
			})
		}
		var err error
		group, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "fixedfunc textures",
			Layout:  d.textureLayout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("fixedfunc: create texture bind group: %w", err)
		}
		d.texGroups[key] = group
	}
	d.frame.pass.SetBindGroup(groupTextures, group, nil)
	d.cur.texKey, d.cur.textures = key, true
	return nil
}

func (d *Device) destroyTextureGroups() {
	for k, g := range d.texGroups {
		d.device.DestroyBindGroup(g)
		delete(d.texGroups, k)
	}
}
