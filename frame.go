// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Clear flags.
const (
	ClearTarget  uint32 = 1
	ClearZBuffer uint32 = 2
	ClearStencil uint32 = 4
)

// pendingClear is a Clear not yet folded into a render pass.
type pendingClear struct {
	flags   uint32
	color   gputypes.Color
	depth   float32
	stencil uint32
}

// frameState is the command recording state between the first call that
// records commands and Present.
type frameState struct {
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	inScene bool

	// oit is latched from the engine when the frame opens.
	oit    bool
	drawID uint32

	clear pendingClear

	// Uniform ring offsets of the current transform, lighting and pixel
	// blocks. ringGen zero forces every block to be written again.
	offsets [3]uint32
	ringGen uint64
}

type submission struct {
	cb    hal.CommandBuffer
	index uint64
}

// openFrame starts recording a frame if none is open. Pending shader
// reloads are applied here, between frames.
func (d *Device) openFrame() error {
	if d.frame.encoder != nil {
		return nil
	}
	if d.watcher != nil && d.watcher.Pending() {
		Logger().Info("fixedfunc: shader sources changed, reloading")
		if err := d.reloadShaders(); err != nil {
			return err
		}
	}
	if err := d.openEncoder(); err != nil {
		return err
	}
	d.frame.oit = d.oit.BeginFrame()
	d.frame.drawID = 0
	return nil
}

func (d *Device) openEncoder() error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fixedfunc frame"})
	if err != nil {
		return fmt.Errorf("fixedfunc: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("fixedfunc frame"); err != nil {
		return fmt.Errorf("fixedfunc: begin encoding: %w", err)
	}
	d.frame.encoder = enc
	return nil
}

// ensurePass returns the open render pass, beginning one on the back
// buffer if needed. A pending Clear becomes the pass load operations.
func (d *Device) ensurePass() hal.RenderPassEncoder {
	if d.frame.pass != nil {
		return d.frame.pass
	}
	c := d.frame.clear
	d.frame.clear = pendingClear{}

	color := hal.RenderPassColorAttachment{
		View:    d.colorView,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if c.flags&ClearTarget != 0 {
		color.LoadOp = gputypes.LoadOpClear
		color.ClearValue = c.color
	}
	ds := &hal.RenderPassDepthStencilAttachment{
		View:           d.depthView,
		DepthLoadOp:    gputypes.LoadOpLoad,
		DepthStoreOp:   gputypes.StoreOpStore,
		StencilLoadOp:  gputypes.LoadOpLoad,
		StencilStoreOp: gputypes.StoreOpStore,
	}
	if c.flags&ClearZBuffer != 0 {
		ds.DepthLoadOp = gputypes.LoadOpClear
		ds.DepthClearValue = c.depth
	}
	if c.flags&ClearStencil != 0 {
		ds.StencilLoadOp = gputypes.LoadOpClear
		ds.StencilClearValue = c.stencil
	}
	d.frame.pass = d.frame.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  "fixedfunc scene",
		ColorAttachments:       []hal.RenderPassColorAttachment{color},
		DepthStencilAttachment: ds,
	})

	// Pass-scoped state starts unset.
	d.cur = bound{}
	d.stencilRef.Mark()
	d.blendConst.Mark()
	d.vp.Mark()
	d.stream.Mark()
	d.indices.Mark()
	d.stats.passes++
	return d.frame.pass
}

// endPass ends the open render pass, if any.
func (d *Device) endPass() {
	if d.frame.pass == nil {
		return
	}
	d.frame.pass.End()
	d.frame.pass = nil
	if d.cur.oit {
		d.oit.Unbind()
	}
	d.cur = bound{}
}

// submit ends recording and submits the open encoder. The frame stays
// logically open; a later openEncoder continues it.
func (d *Device) submit() error {
	d.endPass()
	enc := d.frame.encoder
	d.frame.encoder = nil
	cb, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("fixedfunc: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		d.device.FreeCommandBuffer(cb)
		return fmt.Errorf("fixedfunc: submit: %w", err)
	}
	d.inflight = append(d.inflight, submission{cb: cb, index: index})
	return nil
}

// retire frees command buffers the GPU has finished with, or all of them
// after a WaitIdle.
func (d *Device) retire(all bool) {
	done := d.queue.PollCompleted()
	keep := d.inflight[:0]
	for _, s := range d.inflight {
		if all || s.index <= done {
			d.device.FreeCommandBuffer(s.cb)
			continue
		}
		keep = append(keep, s)
	}
	clear(d.inflight[len(keep):])
	d.inflight = keep
}

// BeginScene starts a scene. Draws are only accepted inside a scene.
func (d *Device) BeginScene() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if d.frame.inScene {
		return ErrInScene
	}
	if err := d.openFrame(); err != nil {
		return err
	}
	d.frame.inScene = true
	return nil
}

// EndScene ends the current scene.
func (d *Device) EndScene() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if !d.frame.inScene {
		return ErrNotInScene
	}
	d.endPass()
	d.frame.inScene = false
	return nil
}

// Clear clears the back buffer, depth buffer and stencil buffer as
// selected by flags. color is a packed 0xAARRGGBB value, z must be in
// [0, 1]. The whole target is cleared regardless of the viewport.
//
// Clears are folded into the load operations of the next render pass.
func (d *Device) Clear(flags, color uint32, z float32, stencil uint32) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if flags == 0 || flags&^(ClearTarget|ClearZBuffer|ClearStencil) != 0 {
		return fmt.Errorf("%w: clear flags %#x", ErrInvalidCall, flags)
	}
	if z < 0 || z > 1 || math32.IsNaN(z) {
		return fmt.Errorf("%w: clear depth %v", ErrInvalidCall, z)
	}
	if err := d.openFrame(); err != nil {
		return err
	}
	d.endPass()
	c := &d.frame.clear
	c.flags |= flags
	if flags&ClearTarget != 0 {
		v := ColorFromARGB(color)
		c.color = gputypes.Color{R: float64(v.R), G: float64(v.G), B: float64(v.B), A: float64(v.A)}
	}
	if flags&ClearZBuffer != 0 {
		c.depth = z
	}
	if flags&ClearStencil != 0 {
		c.stencil = stencil & 0xFF
	}
	return nil
}

// Present finishes the frame: it resolves the fragment list when OIT is
// active and submits the recorded commands. It must be called outside a
// scene.
func (d *Device) Present() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if d.frame.inScene {
		return ErrInScene
	}
	if err := d.openFrame(); err != nil {
		return err
	}
	if d.frame.clear.flags != 0 {
		d.ensurePass()
	}
	d.endPass()
	if d.frame.oit {
		if err := d.oit.Composite(d.frame.encoder, d.colorView); err != nil {
			return err
		}
	}
	d.oit.EndFrame(d.frame.encoder)
	if err := d.submit(); err != nil {
		return err
	}

	// Grown rings and an overfull texture group cache release objects the
	// submitted frame may still read.
	if len(d.ring.retiredBufs) > 0 || len(d.texGroups) > maxTextureGroups {
		if err := d.device.WaitIdle(); err != nil {
			return fmt.Errorf("fixedfunc: wait idle: %w", err)
		}
		d.retire(true)
		if len(d.texGroups) > maxTextureGroups {
			d.destroyTextureGroups()
		}
	} else {
		d.retire(false)
	}
	d.ring.reset()
	d.frame = frameState{}
	d.stats.frames++
	return nil
}

// Reset resizes the back buffer and restores every state to its default.
// A frame in progress is submitted first. Reset cannot be called inside a
// scene.
func (d *Device) Reset(width, height uint32) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if d.frame.inScene {
		return ErrInScene
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidCall, width, height)
	}
	if d.frame.encoder != nil {
		if err := d.submit(); err != nil {
			return err
		}
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("fixedfunc: wait idle: %w", err)
	}
	d.retire(true)
	d.ring.reset()
	d.destroyTextureGroups()
	d.frame = frameState{}
	if err := d.resize(width, height); err != nil {
		return err
	}
	d.resetState()
	Logger().Info("fixedfunc: device reset", "width", width, "height", height)
	return nil
}

// ReloadShaders drops every compiled shader and pipeline so they are
// rebuilt from the current shader sources. Commands recorded so far are
// submitted first.
func (d *Device) ReloadShaders() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.reloadShaders()
}

func (d *Device) reloadShaders() error {
	reopen := d.frame.encoder != nil
	if reopen {
		if err := d.submit(); err != nil {
			return err
		}
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("fixedfunc: wait idle: %w", err)
	}
	d.retire(true)
	d.pipelines.DestroyAll()
	d.shaders.Invalidate()
	d.oit.ReleaseShaders()
	d.cur = bound{}
	d.blend.Mark()
	d.depth.Mark()
	d.raster.Mark()
	Logger().Info("fixedfunc: shaders reloaded")
	if reopen {
		return d.openEncoder()
	}
	return nil
}

// SetOIT turns order-independent transparency on or off. The change
// takes effect when the next frame starts.
func (d *Device) SetOIT(on bool) {
	d.oit.SetEnabled(on)
}

// OIT reports whether OIT was requested with SetOIT or WithOIT.
func (d *Device) OIT() bool { return d.oit.Requested() }
