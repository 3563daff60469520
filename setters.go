// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/dirty"
	"github.com/gogpu/fixedfunc/internal/oit"
	"github.com/gogpu/fixedfunc/internal/permutation"
	"github.com/gogpu/fixedfunc/internal/pso"
)

// SetRenderState sets a device-wide render state.
func (d *Device) SetRenderState(s RenderState, v uint32) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if uint32(s) >= renderStateCount {
		return fmt.Errorf("%w: render state %d", ErrInvalidCall, uint32(s))
	}
	group, err := s.classify(v)
	if err != nil {
		return err
	}
	d.rs[s] = v
	switch group {
	case groupBlend:
		d.deriveBlend()
		d.derivePixel()
	case groupDepth:
		d.depth.Assign(d.depthFlags(false))
	case groupStencilRef:
		d.stencilRef.Assign(v & 0xFF)
	case groupBlendFactor:
		d.blendConst.Assign(v)
	case groupPixel:
		d.derivePixel()
		if s == RSSpecularEnable {
			d.deriveLighting()
		}
	case groupLighting:
		d.deriveLighting()
	case groupTransform:
		d.deriveTransforms()
	}
	return nil
}

// RenderStateValue returns the current value of a render state.
func (d *Device) RenderStateValue(s RenderState) (uint32, error) {
	if uint32(s) >= renderStateCount {
		return 0, fmt.Errorf("%w: render state %d", ErrInvalidCall, uint32(s))
	}
	return d.rs[s], nil
}

func checkStage(stage uint32) error {
	if stage >= MaxTextureStages {
		return fmt.Errorf("%w: texture stage %d", ErrInvalidCall, stage)
	}
	return nil
}

// SetTextureStageState sets a texture combiner state of one stage.
func (d *Device) SetTextureStageState(stage uint32, s TextureStageState, v uint32) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := checkStage(stage); err != nil {
		return err
	}
	if err := validateStageState(s, v); err != nil {
		return err
	}
	d.tss[stage][s] = v
	d.derivePixel()
	return nil
}

// SetSamplerState sets a sampler state of one stage.
func (d *Device) SetSamplerState(stage uint32, s SamplerState, v uint32) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := checkStage(stage); err != nil {
		return err
	}
	if err := validateSamplerState(s, v); err != nil {
		return err
	}
	d.ss[stage][s] = v
	d.sampler[stage].Assign(d.samplerSettings(stage))
	return nil
}

// SetTexture binds a texture view to a stage. A nil view unbinds it; the
// stage then samples opaque white. The device does not take ownership of
// the view, which must stay alive until the frame using it is presented.
func (d *Device) SetTexture(stage uint32, view hal.TextureView) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := checkStage(stage); err != nil {
		return err
	}
	d.texture[stage].Assign(view)
	return nil
}

// SetTransform sets the world, view or projection matrix.
func (d *Device) SetTransform(kind TransformKind, m Matrix) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	switch kind {
	case TransformWorld:
		d.world = m
	case TransformView:
		d.view = m
		// Lights are packed in view space.
		d.deriveLighting()
	case TransformProjection:
		d.proj = m
	default:
		if kind >= 16 && kind <= 23 {
			return fmt.Errorf("%w: texture transform %d", ErrUnsupported, uint32(kind))
		}
		return fmt.Errorf("%w: transform %d", ErrInvalidCall, uint32(kind))
	}
	d.deriveTransforms()
	return nil
}

// Transform returns the current matrix of a transform kind.
func (d *Device) Transform(kind TransformKind) (Matrix, error) {
	switch kind {
	case TransformWorld:
		return d.world, nil
	case TransformView:
		return d.view, nil
	case TransformProjection:
		return d.proj, nil
	}
	return Matrix{}, fmt.Errorf("%w: transform %d", ErrInvalidCall, uint32(kind))
}

// SetLight sets the properties of light index. Indices are sparse; any
// number of lights may be defined, MaxActiveLights of them enabled.
func (d *Device) SetLight(index uint32, l Light) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := l.validate(); err != nil {
		return err
	}
	d.lights[index] = l
	if slices.Contains(d.active, index) {
		d.deriveLighting()
	}
	return nil
}

// defaultLight is the light enabled by LightEnable for an index that was
// never set: white, directional, pointing along +Z.
func defaultLight() Light {
	return Light{
		Type:      LightDirectional,
		Diffuse:   ColorValue{1, 1, 1, 0},
		Direction: Vector3{0, 0, 1},
	}
}

// LightEnable turns light index on or off.
func (d *Device) LightEnable(index uint32, on bool) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	i, found := slices.BinarySearch(d.active, index)
	switch {
	case on && found, !on && !found:
		return nil
	case on:
		if len(d.active) >= MaxActiveLights {
			return fmt.Errorf("%w: more than %d lights enabled", ErrInvalidCall, MaxActiveLights)
		}
		if _, ok := d.lights[index]; !ok {
			d.lights[index] = defaultLight()
		}
		d.active = slices.Insert(d.active, i, index)
	default:
		d.active = slices.Delete(d.active, i, i+1)
	}
	d.deriveLighting()
	return nil
}

// SetMaterial sets the material used by vertex lighting.
func (d *Device) SetMaterial(m Material) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if m.Power < 0 {
		return fmt.Errorf("%w: negative specular power", ErrInvalidCall)
	}
	d.material = m
	d.deriveLighting()
	return nil
}

// SetFVF sets the vertex format of the bound stream.
func (d *Device) SetFVF(f FVF) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	d.fvf = f
	return nil
}

// SetStreamSource binds the vertex buffer. A zero stride uses the stride
// of the current vertex format. A nil buffer unbinds the stream.
func (d *Device) SetStreamSource(buf hal.Buffer, offset uint64, stride uint32) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if buf == nil {
		d.stream.Assign(vertexStream{})
		return nil
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: stream offset %d is not 4-byte aligned", ErrInvalidCall, offset)
	}
	d.stream.Assign(vertexStream{buf: buf, offset: offset, stride: stride})
	return nil
}

// SetIndices binds the index buffer. A nil buffer unbinds it.
func (d *Device) SetIndices(buf hal.Buffer, format gputypes.IndexFormat) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if buf == nil {
		d.indices.Assign(indexStream{})
		return nil
	}
	if format != gputypes.IndexFormatUint16 && format != gputypes.IndexFormatUint32 {
		return fmt.Errorf("%w: index format %d", ErrInvalidCall, format)
	}
	d.indices.Assign(indexStream{buf: buf, format: format})
	return nil
}

// SetViewport sets the region of the back buffer draws map to.
func (d *Device) SetViewport(vp Viewport) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if vp.Width == 0 || vp.Height == 0 ||
		uint64(vp.X)+uint64(vp.Width) > uint64(d.width) ||
		uint64(vp.Y)+uint64(vp.Height) > uint64(d.height) {
		return fmt.Errorf("%w: viewport %dx%d+%d+%d outside %dx%d",
			ErrInvalidCall, vp.Width, vp.Height, vp.X, vp.Y, d.width, d.height)
	}
	if vp.MinZ < 0 || vp.MaxZ > 1 || vp.MinZ > vp.MaxZ {
		return fmt.Errorf("%w: viewport depth range [%v, %v]", ErrInvalidCall, vp.MinZ, vp.MaxZ)
	}
	d.viewport = vp
	d.vp.Assign(vp)
	d.deriveTransforms()
	return nil
}

// Viewport returns the current viewport.
func (d *Device) Viewport() Viewport { return d.viewport }

// resetState restores every state to its default and marks all GPU state
// dirty.
func (d *Device) resetState() {
	d.rs = defaultRenderStates()
	d.tss = defaultStageStates()
	d.ss = defaultSamplerStates()
	d.world, d.view, d.proj = Identity(), Identity(), Identity()
	d.viewport = Viewport{Width: d.width, Height: d.height, MaxZ: 1}
	d.material = DefaultMaterial()
	clear(d.lights)
	d.active = d.active[:0]
	d.fvf = 0

	mode := dirty.CompareCleared
	d.blend = dirty.New(mode, pso.BlendFlags{})
	d.depth = dirty.New(mode, pso.DepthFlags{})
	d.raster = dirty.New(mode, pso.RasterFlags{})
	d.stencilRef = dirty.New(mode, uint32(0))
	d.blendConst = dirty.New(mode, uint32(0))
	for i := range d.sampler {
		d.sampler[i] = dirty.New(mode, pso.SamplerSettings{})
		d.texture[i] = dirty.New[hal.TextureView](mode, nil)
	}
	d.transforms = dirty.New(mode, transformBlock{})
	d.lighting = dirty.New(mode, lightingBlock{})
	d.pixel = dirty.New(mode, pixelBlock{})
	d.key = dirty.New(mode, permutation.Key(0))
	d.vp = dirty.New(mode, d.viewport)
	d.stream = dirty.New(mode, vertexStream{})
	d.indices = dirty.New(mode, indexStream{})

	d.deriveBlend()
	d.depth.Assign(d.depthFlags(false))
	d.stencilRef.Assign(d.rs[RSStencilRef])
	d.blendConst.Assign(d.rs[RSBlendFactor])
	for i := range MaxTextureStages {
		d.sampler[i].Assign(d.samplerSettings(uint32(i)))
	}
	d.deriveTransforms()
	d.deriveLighting()
	d.derivePixel()
	d.cur = bound{}
}

func (d *Device) deriveBlend() {
	rs := &d.rs
	f := pso.DefaultBlendFlags()
	f.WriteMask = gputypes.ColorWriteMask(rs[RSColorWriteEnable] & 0xF)
	if rs[RSAlphaBlendEnable] != 0 {
		f.Enabled = true
		f.SrcColor, f.DstColor = blendPair(rs[RSSrcBlend], rs[RSDestBlend])
		f.ColorOp = blendOp(rs[RSBlendOp])
		f.SrcAlpha, f.DstAlpha, f.AlphaOp = f.SrcColor, f.DstColor, f.ColorOp
		if rs[RSSeparateAlphaBlendEnable] != 0 {
			f.SrcAlpha, f.DstAlpha = blendPair(rs[RSSrcBlendAlpha], rs[RSDestBlendAlpha])
			f.AlphaOp = blendOp(rs[RSBlendOpAlpha])
		}
	}
	d.blend.Assign(f)
}

// oitBlendMode classifies the blend function of a translucent draw for
// the fragment list. Unrecognized functions composite as alpha blending.
func (d *Device) oitBlendMode() oit.BlendMode {
	src, dst := d.rs[RSSrcBlend], d.rs[RSDestBlend]
	switch {
	case src == BlendOne && dst == BlendOne, src == BlendSrcAlpha && dst == BlendOne:
		return oit.BlendAdd
	case src == BlendOne && dst == BlendInvSrcAlpha:
		return oit.BlendPremultiplied
	case src == BlendDestColor && dst == BlendZero, src == BlendZero && dst == BlendSrcColor:
		return oit.BlendModulate
	}
	return oit.BlendAlpha
}

func (d *Device) stencilFace(fail, zfail, pass, fn RenderState) pso.StencilFace {
	return pso.StencilFace{
		Compare:     compareFunc(d.rs[fn]),
		FailOp:      stencilOp(d.rs[fail]),
		DepthFailOp: stencilOp(d.rs[zfail]),
		PassOp:      stencilOp(d.rs[pass]),
	}
}

// depthFlags derives the depth-stencil flags. forceDepth turns depth test
// and write on, as translucent draws need while OIT is active.
func (d *Device) depthFlags(forceDepth bool) pso.DepthFlags {
	rs := &d.rs
	f := pso.DefaultDepthFlags()
	f.DepthTest = rs[RSZEnable] != 0 || forceDepth
	f.DepthWrite = rs[RSZWriteEnable] != 0 || forceDepth
	if f.DepthTest {
		f.DepthCompare = compareFunc(rs[RSZFunc])
	} else {
		f.DepthWrite = false
		f.DepthCompare = gputypes.CompareFunctionAlways
	}
	// Depth bias is given in depth units; the depth buffer has 24 bits.
	f.DepthBias = int32(pso.CanonicalFloat(f32frombits(rs[RSDepthBias])) * (1 << 24))
	f.SlopeScale = f32frombits(rs[RSSlopeScaleDepthBias])
	if rs[RSStencilEnable] != 0 {
		f.StencilEnable = true
		f.Front = d.stencilFace(RSStencilFail, RSStencilZFail, RSStencilPass, RSStencilFunc)
		f.Back = f.Front
		if rs[RSTwoSidedStencilMode] != 0 {
			f.Back = d.stencilFace(RSCCWStencilFail, RSCCWStencilZFail, RSCCWStencilPass, RSCCWStencilFunc)
		}
		f.ReadMask = rs[RSStencilMask]
		f.WriteMask = rs[RSStencilWriteMask]
	}
	return f.Canonical()
}

func (d *Device) samplerSettings(stage uint32) pso.SamplerSettings {
	s := &d.ss[stage]
	set := pso.DefaultSamplerSettings()
	set.AddressU = addressMode(s[SampAddressU])
	set.AddressV = addressMode(s[SampAddressV])
	set.AddressW = addressMode(s[SampAddressW])
	set.MagFilter = filterMode(s[SampMagFilter])
	set.MinFilter = filterMode(s[SampMinFilter])
	set.MipFilter = filterMode(s[SampMipFilter])
	set.LodMin = float32(s[SampMaxMipLevel])
	if s[SampMipFilter] == TexFilterNone {
		set.LodMax = set.LodMin
	}
	if s[SampMagFilter] == TexFilterAnisotropic || s[SampMinFilter] == TexFilterAnisotropic {
		set.MaxAnisotropy = uint16(s[SampMaxAnisotropy])
	}
	return set.Canonical()
}

func (d *Device) deriveTransforms() {
	d.transforms.Assign(transformBlock{
		world:     d.world,
		view:      d.view,
		proj:      d.proj,
		viewport:  d.viewport,
		pointSize: f32frombits(d.rs[RSPointSize]),
	})
}

func (d *Device) deriveLighting() {
	rs := &d.rs
	b := lightingBlock{
		material:    d.material,
		ambient:     ColorFromARGB(rs[RSAmbient]),
		enabled:     rs[RSLighting] != 0,
		specular:    rs[RSSpecularEnable] != 0,
		colorVertex: rs[RSColorVertex] != 0,
		normalize:   rs[RSNormalizeNormals] != 0,
		sources: [4]uint32{
			rs[RSDiffuseMaterialSource],
			rs[RSAmbientMaterialSource],
			rs[RSSpecularMaterialSource],
			rs[RSEmissiveMaterialSource],
		},
		view: d.view,
	}
	for _, i := range d.active {
		b.lights[b.count] = d.lights[i]
		b.count++
	}
	d.lighting.Assign(b)
}

// alphaFunc returns the alpha test function, 0 when no fragment can be
// rejected.
func (d *Device) alphaFunc() uint32 {
	fn := d.rs[RSAlphaFunc]
	if d.rs[RSAlphaTestEnable] == 0 || fn == CmpAlways {
		return 0
	}
	return fn
}

// fogMode returns the active fog formula. Table fog takes precedence over
// vertex fog.
func (d *Device) fogMode() uint32 {
	if d.rs[RSFogEnable] == 0 {
		return FogNone
	}
	if m := d.rs[RSFogTableMode]; m != FogNone {
		return m
	}
	return d.rs[RSFogVertexMode]
}

// stageCount returns the number of leading enabled texture stages.
func (d *Device) stageCount() int {
	for i := range MaxTextureStages {
		if d.tss[i][TSSColorOp] == TOPDisable {
			return i
		}
	}
	return MaxTextureStages
}

func (d *Device) derivePixel() {
	rs := &d.rs
	p := pixelBlock{
		fogColor:      ColorFromARGB(rs[RSFogColor]),
		textureFactor: ColorFromARGB(rs[RSTextureFactor]),
		fogStart:      f32frombits(rs[RSFogStart]),
		fogEnd:        f32frombits(rs[RSFogEnd]),
		fogDensity:    f32frombits(rs[RSFogDensity]),
		alphaRef:      float32(rs[RSAlphaRef]&0xFF) / 255,
		alphaFunc:     d.alphaFunc(),
		fogMode:       d.fogMode(),
		stageCount:    uint32(d.stageCount()),
		specular:      rs[RSSpecularEnable] != 0,
		drawID:        d.pixel.Get().drawID,
		blendMode:     uint32(d.oitBlendMode()),
	}
	for i := range p.stages {
		t := &d.tss[i]
		p.stages[i] = stageBlock{
			colorOp:       t[TSSColorOp],
			colorArg1:     t[TSSColorArg1],
			colorArg2:     t[TSSColorArg2],
			alphaOp:       t[TSSAlphaOp],
			alphaArg1:     t[TSSAlphaArg1],
			alphaArg2:     t[TSSAlphaArg2],
			texCoordIndex: t[TSSTexCoordIndex] & 7,
		}
	}
	d.pixel.Assign(p)
}

// translucent reports whether draws blend with the target, which is what
// routes them into the fragment list while OIT is active.
func (d *Device) translucent() bool {
	return d.rs[RSAlphaBlendEnable] != 0
}

// permutationKey derives the shader permutation key from the current
// states. oitDraw selects the fragment list variant.
func (d *Device) permutationKey(oitDraw bool) permutation.Key {
	rs := &d.rs
	k := d.fvf.keyBits()
	k = k.With(permutation.Lighting, rs[RSLighting] != 0)
	k = k.With(permutation.Specular, rs[RSSpecularEnable] != 0)
	k = k.With(permutation.AlphaBlend, d.translucent())
	if fn := d.alphaFunc(); fn != 0 {
		k = k.WithAlphaTest(uint8(fn))
	}
	if m := d.fogMode(); m != FogNone {
		k = k.With(permutation.Fog, true).WithFogMode(uint8(m))
	}
	k = k.With(permutation.OIT, oitDraw)
	return permutation.Sanitize(k.WithStages(d.stageCount()))
}
