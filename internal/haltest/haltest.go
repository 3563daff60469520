// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package haltest provides noop-backed hal devices that record what the
// code under test creates and encodes.
package haltest

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Open opens a noop device and queue that are destroyed when the test
// ends.
func Open(tb testing.TB) (hal.Device, hal.Queue) {
	tb.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		tb.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		tb.Fatal("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		tb.Fatalf("Open failed: %v", err)
	}
	tb.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// ReadUint32s returns n words of a noop buffer starting at offset.
func ReadUint32s(tb testing.TB, device hal.Device, buf hal.Buffer, offset uint64, n int) []uint32 {
	tb.Helper()
	m, err := device.MapBuffer(buf, offset, uint64(n)*4)
	if err != nil {
		tb.Fatalf("MapBuffer failed: %v", err)
	}
	out := make([]uint32, n)
	copy(out, unsafe.Slice((*uint32)(m.Ptr), n))
	return out
}

// Group is a bind group that remembers its label.
type Group struct {
	Label string
}

// Destroy implements hal.Resource.
func (*Group) Destroy() {}

// Label returns the label of a bind group created by Device, or "".
func Label(g hal.BindGroup) string {
	if tg, ok := g.(*Group); ok {
		return tg.Label
	}
	return ""
}

// Device wraps a hal device, counting object creation and handing out
// recording command encoders.
type Device struct {
	hal.Device

	mu       sync.Mutex
	created  map[string]int
	freed    map[string]int
	encoders []*Encoder
}

// NewDevice wraps d.
func NewDevice(d hal.Device) *Device {
	return &Device{Device: d, created: make(map[string]int), freed: make(map[string]int)}
}

func (d *Device) note(m map[string]int, kind string) {
	d.mu.Lock()
	m[kind]++
	d.mu.Unlock()
}

// Created returns how many objects of kind were created. Kinds are
// "buffer", "bindgroup", "sampler", "shader", "pipeline" and "encoder".
func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// Destroyed returns how many objects of kind were destroyed.
func (d *Device) Destroyed(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freed[kind]
}

// Encoders returns every encoder created so far.
func (d *Device) Encoders() []*Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Encoder(nil), d.encoders...)
}

func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.note(d.created, "buffer")
	return d.Device.CreateBuffer(desc)
}

func (d *Device) DestroyBuffer(b hal.Buffer) {
	d.note(d.freed, "buffer")
	d.Device.DestroyBuffer(b)
}

func (d *Device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.note(d.created, "bindgroup")
	return &Group{Label: desc.Label}, nil
}

func (d *Device) DestroyBindGroup(hal.BindGroup) {
	d.note(d.freed, "bindgroup")
}

func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.note(d.created, "sampler")
	return d.Device.CreateSampler(desc)
}

func (d *Device) DestroySampler(s hal.Sampler) {
	d.note(d.freed, "sampler")
	d.Device.DestroySampler(s)
}

func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.note(d.created, "shader")
	return d.Device.CreateShaderModule(desc)
}

func (d *Device) DestroyShaderModule(m hal.ShaderModule) {
	d.note(d.freed, "shader")
	d.Device.DestroyShaderModule(m)
}

func (d *Device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.note(d.created, "pipeline")
	return d.Device.CreateRenderPipeline(desc)
}

func (d *Device) DestroyRenderPipeline(p hal.RenderPipeline) {
	d.note(d.freed, "pipeline")
	d.Device.DestroyRenderPipeline(p)
}

func (d *Device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	inner, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	e := &Encoder{CommandEncoder: inner}
	d.mu.Lock()
	d.created["encoder"]++
	d.encoders = append(d.encoders, e)
	d.mu.Unlock()
	return e, nil
}

// Encoder records render passes and buffer clears.
type Encoder struct {
	hal.CommandEncoder

	Passes       []*Pass
	BufferClears int
	BufferCopies int
}

func (e *Encoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	p := &Pass{
		RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc),
		Label:             desc.Label,
		Bound:             make(map[uint32]string),
	}
	for _, c := range desc.ColorAttachments {
		p.Colors = append(p.Colors, Attachment{LoadOp: c.LoadOp, StoreOp: c.StoreOp, Clear: c.ClearValue})
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		p.Depth = &DepthAttachment{
			DepthLoadOp:   ds.DepthLoadOp,
			DepthClear:    ds.DepthClearValue,
			StencilLoadOp: ds.StencilLoadOp,
			StencilClear:  ds.StencilClearValue,
		}
	}
	e.Passes = append(e.Passes, p)
	return p
}

func (e *Encoder) ClearBuffer(b hal.Buffer, offset, size uint64) {
	e.BufferClears++
	e.CommandEncoder.ClearBuffer(b, offset, size)
}

func (e *Encoder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	e.BufferCopies++
	e.CommandEncoder.CopyBufferToBuffer(src, dst, regions)
}

// Attachment is a recorded color attachment.
type Attachment struct {
	LoadOp  gputypes.LoadOp
	StoreOp gputypes.StoreOp
	Clear   gputypes.Color
}

// DepthAttachment is a recorded depth-stencil attachment.
type DepthAttachment struct {
	DepthLoadOp   gputypes.LoadOp
	DepthClear    float32
	StencilLoadOp gputypes.LoadOp
	StencilClear  uint32
}

// Pass records the commands of one render pass.
type Pass struct {
	hal.RenderPassEncoder

	Label  string
	Colors []Attachment
	Depth  *DepthAttachment

	// Bound maps a group index to the label of the bind group last set.
	Bound map[uint32]string
	// Groups lists the labels of every bind group set, in order.
	Groups []string

	Pipelines  int
	Draws      int
	StencilRef []uint32
	Ended      bool
}

// HasGroup reports whether a bind group with label was set in the pass.
func (p *Pass) HasGroup(label string) bool {
	for _, g := range p.Groups {
		if g == label {
			return true
		}
	}
	return false
}

func (p *Pass) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	l := Label(group)
	p.Bound[index] = l
	p.Groups = append(p.Groups, l)
	p.RenderPassEncoder.SetBindGroup(index, group, offsets)
}

func (p *Pass) SetPipeline(pl hal.RenderPipeline) {
	p.Pipelines++
	p.RenderPassEncoder.SetPipeline(pl)
}

func (p *Pass) SetStencilReference(ref uint32) {
	p.StencilRef = append(p.StencilRef, ref)
	p.RenderPassEncoder.SetStencilReference(ref)
}

func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Draws++
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.Draws++
	p.RenderPassEncoder.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *Pass) End() {
	p.Ended = true
	p.RenderPassEncoder.End()
}

// FakeModule is a shadercache.ModuleFunc that skips compilation and
// creates an empty module, for tests that only exercise wiring.
func FakeModule(device hal.Device, label, src string) (hal.ShaderModule, []byte, error) {
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label})
	if err != nil {
		return nil, nil, err
	}
	return m, []byte(src), nil
}
