// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/cbuffer"
)

// Uniform block sizes in bytes. They match the WGSL structs Transforms,
// Lighting and PixelParams.
const (
	transformsSize = 288
	lightingSize   = 1024
	pixelSize      = 336

	// uniformAlign is the dynamic offset alignment of uniform bindings.
	uniformAlign = 256

	defaultRingSize = 256 << 10
)

// Uniform bindings in group 0.
const (
	bindTransforms = iota
	bindLighting
	bindPixel
)

func f32bits(f float32) uint32     { return math32.Float32bits(f) }
func f32frombits(b uint32) float32 { return math32.Float32frombits(b) }

// transformBlock is the vertex transform state.
type transformBlock struct {
	world, view, proj Matrix
	viewport          Viewport
	pointSize         float32
}

func (b *transformBlock) pack(w *cbuffer.Writer) {
	w.Mat4(b.world)
	w.Mat4(b.view)
	w.Mat4(b.proj)
	w.Mat4(normalMatrix(b.world.Mul(b.view)))
	vp := b.viewport
	w.Vec4([4]float32{float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height)})
	w.Float(b.pointSize)
	w.Align()
}

// lightingBlock is the vertex lighting state. Lights are stored in world
// space and moved to view space when packed, so it carries the view.
type lightingBlock struct {
	material    Material
	ambient     ColorValue
	enabled     bool
	specular    bool
	colorVertex bool
	normalize   bool
	sources     [4]uint32 // diffuse, ambient, specular, emissive
	count       int
	lights      [MaxActiveLights]Light
	view        Matrix
}

func (b *lightingBlock) pack(w *cbuffer.Writer) {
	m := b.material
	w.Vec4(m.Diffuse.vec4())
	w.Vec4(m.Ambient.vec4())
	w.Vec4(m.Specular.vec4())
	w.Vec4(m.Emissive.vec4())
	w.Vec4(b.ambient.vec4())
	w.Float(m.Power)
	w.Uint(uint32(b.count))
	w.Bool(b.enabled)
	w.Bool(b.specular)
	for _, s := range b.sources {
		w.Uint(s)
	}
	w.Bool(b.colorVertex)
	w.Bool(b.normalize)
	w.Uint(0)
	w.Uint(0)
	for i := range MaxActiveLights {
		w.Align()
		var l viewLight
		if i < b.count {
			l = b.lights[i].toView(b.view)
		}
		w.Vec4(l.diffuse.vec4())
		w.Vec4(l.specular.vec4())
		w.Vec4(l.ambient.vec4())
		w.Vec3([3]float32{l.position.X, l.position.Y, l.position.Z})
		w.Float(l.lightRange)
		w.Vec3([3]float32{l.direction.X, l.direction.Y, l.direction.Z})
		w.Uint(uint32(l.kind))
		w.Vec3([3]float32{l.attenuation.X, l.attenuation.Y, l.attenuation.Z})
		w.Float(l.falloff)
		w.Float(l.cosTheta)
		w.Float(l.cosPhi)
	}
	w.Align()
}

// stageBlock is one texture stage as the pixel shader reads it.
type stageBlock struct {
	colorOp, colorArg1, colorArg2 uint32
	alphaOp, alphaArg1, alphaArg2 uint32
	texCoordIndex                 uint32
}

// pixelBlock is the pixel stage state.
type pixelBlock struct {
	fogColor      ColorValue
	textureFactor ColorValue
	fogStart      float32
	fogEnd        float32
	fogDensity    float32
	alphaRef      float32
	alphaFunc     uint32
	fogMode       uint32
	stageCount    uint32
	specular      bool
	drawID        uint32
	blendMode     uint32
	stages        [8]stageBlock
}

func (b *pixelBlock) pack(w *cbuffer.Writer) {
	w.Vec4(b.fogColor.vec4())
	w.Vec4(b.textureFactor.vec4())
	w.Float(b.fogStart)
	w.Float(b.fogEnd)
	w.Float(b.fogDensity)
	w.Float(b.alphaRef)
	w.Uint(b.alphaFunc)
	w.Uint(b.fogMode)
	w.Uint(b.stageCount)
	w.Bool(b.specular)
	w.Uint(b.drawID)
	w.Uint(b.blendMode)
	w.Uint(0)
	w.Uint(0)
	for _, s := range b.stages {
		w.Align()
		w.Uint(s.colorOp)
		w.Uint(s.colorArg1)
		w.Uint(s.colorArg2)
		w.Uint(s.alphaOp)
		w.Uint(s.alphaArg1)
		w.Uint(s.alphaArg2)
		w.Uint(s.texCoordIndex)
		w.Uint(0)
	}
}

// uniformRing is a per-frame, append-only uniform buffer. Each changed
// block is written at a fresh 256-byte aligned offset and selected with a
// dynamic offset, so draws recorded earlier in the frame keep reading the
// values they were recorded with.
//
// When the ring fills up mid-frame it is replaced by one twice the size;
// the old buffer and bind group stay alive until the frame is submitted.
type uniformRing struct {
	device hal.Device
	queue  hal.Queue
	layout hal.BindGroupLayout

	buf   hal.Buffer
	group hal.BindGroup
	size  uint64
	off   uint64

	retiredBufs   []hal.Buffer
	retiredGroups []hal.BindGroup

	// generation increases whenever buf is replaced; callers re-upload
	// every block when it changes.
	generation uint64
	written    uint64 // bytes written this frame
}

func newUniformRing(device hal.Device, queue hal.Queue, layout hal.BindGroupLayout, size uint64) (*uniformRing, error) {
	r := &uniformRing{device: device, queue: queue, layout: layout}
	if err := r.allocate(size); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *uniformRing) allocate(size uint64) error {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fixedfunc uniforms",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("fixedfunc: create uniform ring: %w", err)
	}
	entry := func(binding uint32, size uint64) gputypes.BindGroupEntry {
		return gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: size},
		}
	}
	group, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "fixedfunc uniforms",
		Layout: r.layout,
		Entries: []gputypes.BindGroupEntry{
			entry(bindTransforms, transformsSize),
			entry(bindLighting, lightingSize),
			entry(bindPixel, pixelSize),
		},
	})
	if err != nil {
		r.device.DestroyBuffer(buf)
		return fmt.Errorf("fixedfunc: create uniform bind group: %w", err)
	}
	if r.buf != nil {
		r.retiredBufs = append(r.retiredBufs, r.buf)
		r.retiredGroups = append(r.retiredGroups, r.group)
	}
	r.buf, r.group, r.size, r.off = buf, group, size, 0
	r.generation++
	return nil
}

// push writes data at the next aligned offset and returns that offset.
// grew reports that the ring was replaced, invalidating every offset
// handed out before.
func (r *uniformRing) push(data []byte) (offset uint32, grew bool, err error) {
	n := uint64(len(data))
	if r.off+n > r.size {
		if err := r.allocate(max(2*r.size, n)); err != nil {
			return 0, false, err
		}
		grew = true
		Logger().Debug("fixedfunc: uniform ring grown", "size", r.size)
	}
	off := r.off
	if err := r.queue.WriteBuffer(r.buf, off, data); err != nil {
		return 0, grew, fmt.Errorf("fixedfunc: write uniforms: %w", err)
	}
	r.off = (off + n + uniformAlign - 1) / uniformAlign * uniformAlign
	r.written += n
	return uint32(off), grew, nil
}

// reset starts a new frame. It must only be called after the previous
// frame's commands were submitted.
func (r *uniformRing) reset() {
	for _, g := range r.retiredGroups {
		r.device.DestroyBindGroup(g)
	}
	for _, b := range r.retiredBufs {
		r.device.DestroyBuffer(b)
	}
	r.retiredGroups, r.retiredBufs = nil, nil
	r.off = 0
	r.written = 0
}

func (r *uniformRing) destroy() {
	r.reset()
	if r.group != nil {
		r.device.DestroyBindGroup(r.group)
		r.group = nil
	}
	if r.buf != nil {
		r.device.DestroyBuffer(r.buf)
		r.buf = nil
	}
}
