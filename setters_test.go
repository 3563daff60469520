// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fixedfunc/internal/permutation"
	"github.com/gogpu/fixedfunc/internal/pso"
)

func TestSetRenderState_Validation(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name  string
		state RenderState
		value uint32
		want  error
	}{
		{"unknown state", RenderState(1), 0, ErrInvalidCall},
		{"out of range state", RenderState(4000), 0, ErrInvalidCall},
		{"w-buffer", RSZEnable, 2, ErrUnsupported},
		{"z enable 3", RSZEnable, 3, ErrInvalidCall},
		{"wireframe", RSFillMode, 2, ErrUnsupported},
		{"flat shading", RSShadeMode, 1, ErrUnsupported},
		{"blend factor zero value", RSSrcBlend, 0, ErrInvalidCall},
		{"blend factor too large", RSDestBlend, 16, ErrInvalidCall},
		{"blend op", RSBlendOp, 6, ErrInvalidCall},
		{"compare func", RSZFunc, 9, ErrInvalidCall},
		{"stencil op", RSStencilPass, 0, ErrInvalidCall},
		{"cull mode", RSCullMode, 4, ErrInvalidCall},
		{"fog mode", RSFogTableMode, 4, ErrInvalidCall},
		{"material source", RSDiffuseMaterialSource, 3, ErrInvalidCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.SetRenderState(tt.state, tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("SetRenderState(%d, %d) = %v, want %v", tt.state, tt.value, err, tt.want)
			}
		})
	}
	// Rejected values leave the state untouched.
	if v, _ := d.RenderStateValue(RSZEnable); v != 1 {
		t.Errorf("RSZEnable = %d, want 1", v)
	}
}

func TestSetTextureStageState_Validation(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name  string
		stage uint32
		state TextureStageState
		value uint32
		want  error
	}{
		{"stage 8", 8, TSSColorOp, TOPModulate, ErrInvalidCall},
		{"premultiplied texture alpha", 0, TSSColorOp, TOPBlendTextureAlphaPM, ErrUnsupported},
		{"bump mapping", 0, TSSColorOp, 22, ErrUnsupported},
		{"op zero", 0, TSSAlphaOp, 0, ErrInvalidCall},
		{"temp register", 0, TSSColorArg1, TATemp + 1, ErrUnsupported},
		{"bad modifier", 0, TSSColorArg2, 0x40, ErrInvalidCall},
		{"texcoord generation", 0, TSSTexCoordIndex, 0x10000, ErrUnsupported},
		{"texture transform", 0, TSSTextureTransformFlags, 2, ErrUnsupported},
		{"temp result", 0, TSSResultArg, TATemp, ErrUnsupported},
		{"unknown state", 0, TextureStageState(7), 0, ErrInvalidCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.SetTextureStageState(tt.stage, tt.state, tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("SetTextureStageState = %v, want %v", err, tt.want)
			}
		})
	}
	if err := d.SetTextureStageState(1, TSSColorArg1, TATexture|TAComplement); err != nil {
		t.Errorf("complemented arg = %v", err)
	}
}

func TestSetSamplerState_Validation(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name  string
		state SamplerState
		value uint32
		want  error
	}{
		{"border addressing", SampAddressU, 4, ErrUnsupported},
		{"address zero", SampAddressV, 0, ErrInvalidCall},
		{"filter none", SampMinFilter, TexFilterNone, ErrInvalidCall},
		{"mip anisotropic", SampMipFilter, TexFilterAnisotropic, ErrInvalidCall},
		{"anisotropy 17", SampMaxAnisotropy, 17, ErrInvalidCall},
		{"unknown", SamplerState(4), 0, ErrInvalidCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.SetSamplerState(0, tt.state, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("SetSamplerState = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDefaults_MatchStateDefaults(t *testing.T) {
	d, _ := newTestDevice(t)
	if got := d.blend.Get(); got != pso.DefaultBlendFlags() {
		t.Errorf("default blend flags = %+v, want %+v", got, pso.DefaultBlendFlags())
	}
	if got := d.depthFlags(false); got != pso.DefaultDepthFlags() {
		t.Errorf("default depth flags = %+v, want %+v", got, pso.DefaultDepthFlags())
	}
	s := d.sampler[3].Get()
	if s.MinFilter != gputypes.FilterModeNearest || s.AddressU != gputypes.AddressModeRepeat || s.LodMax != 0 {
		t.Errorf("default sampler = %+v", s)
	}
}

func TestSetRenderState_DirtyTracking(t *testing.T) {
	d, _ := newTestDevice(t)
	d.blend.Clear()
	d.depth.Clear()
	d.pixel.Clear()

	// Setting a state to its current value dirties nothing.
	mustDo(t, d.SetRenderState(RSSrcBlend, BlendOne), d.SetRenderState(RSZEnable, 1))
	if d.blend.Dirty() || d.depth.Dirty() || d.pixel.Dirty() {
		t.Error("redundant sets marked state dirty")
	}

	// Blend factors are ignored while blending is off.
	mustDo(t, d.SetRenderState(RSSrcBlend, BlendSrcAlpha))
	if d.blend.Dirty() {
		t.Error("blend factor change with blending off marked blend dirty")
	}

	mustDo(t, d.SetRenderState(RSAlphaBlendEnable, 1))
	if !d.blend.Dirty() {
		t.Error("enabling blending did not mark blend dirty")
	}
	if got := d.blend.Get().SrcColor; got != gputypes.BlendFactorSrcAlpha {
		t.Errorf("src factor = %v, want src alpha", got)
	}

	// Toggling back to the cleared value cancels the change.
	mustDo(t, d.SetRenderState(RSZEnable, 0), d.SetRenderState(RSZEnable, 1))
	if d.depth.Dirty() {
		t.Error("depth dirty after returning to the cleared value")
	}
}

func TestSeparateAlphaBlend(t *testing.T) {
	d, _ := newTestDevice(t)
	mustDo(t,
		d.SetRenderState(RSAlphaBlendEnable, 1),
		d.SetRenderState(RSSrcBlend, BlendSrcAlpha),
		d.SetRenderState(RSDestBlend, BlendInvSrcAlpha),
		d.SetRenderState(RSSrcBlendAlpha, BlendOne),
		d.SetRenderState(RSDestBlendAlpha, BlendZero),
		d.SetRenderState(RSBlendOpAlpha, BlendOpMax))
	f := d.blend.Get()
	if f.SrcAlpha != gputypes.BlendFactorSrcAlpha || f.DstAlpha != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("alpha factors follow color without separate alpha: %+v", f)
	}
	mustDo(t, d.SetRenderState(RSSeparateAlphaBlendEnable, 1))
	f = d.blend.Get()
	if f.SrcAlpha != gputypes.BlendFactorOne || f.DstAlpha != gputypes.BlendFactorZero || f.AlphaOp != gputypes.BlendOperationMax {
		t.Errorf("separate alpha = %+v", f)
	}
	if f.SrcColor != gputypes.BlendFactorSrcAlpha {
		t.Errorf("separate alpha changed the color factor: %v", f.SrcColor)
	}
}

func TestDepthFlags_CanonicalFloats(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name  string
		state RenderState
		value uint32
	}{
		{"negative zero slope", RSSlopeScaleDepthBias, 0x80000000},
		{"NaN slope", RSSlopeScaleDepthBias, 0x7FC00000},
		{"negative zero bias", RSDepthBias, 0x80000000},
		{"NaN bias", RSDepthBias, 0x7FC00000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustDo(t, d.SetRenderState(tt.state, tt.value))
			if got := d.depth.Get(); got != pso.DefaultDepthFlags() {
				t.Errorf("depth flags = %+v, want defaults", got)
			}
			mustDo(t, d.SetRenderState(tt.state, 0))
		})
	}
}

func TestDepthFlags(t *testing.T) {
	d, _ := newTestDevice(t)
	mustDo(t,
		d.SetRenderState(RSZEnable, 0),
		d.SetRenderState(RSDepthBias, f32bits(1.0/(1<<20))),
		d.SetRenderState(RSStencilEnable, 1),
		d.SetRenderState(RSStencilFunc, CmpEqual),
		d.SetRenderState(RSStencilPass, StencilOpIncr),
		d.SetRenderState(RSCCWStencilPass, StencilOpDecr),
		d.SetRenderState(RSStencilMask, 0x0F))

	f := d.depth.Get()
	if f.DepthTest || f.DepthWrite || f.DepthCompare != gputypes.CompareFunctionAlways {
		t.Errorf("depth disabled: %+v", f)
	}
	if f.DepthBias != 16 {
		t.Errorf("DepthBias = %d, want 16", f.DepthBias)
	}
	if !f.StencilEnable || f.ReadMask != 0x0F {
		t.Errorf("stencil = %+v", f)
	}
	if f.Front != f.Back {
		t.Error("one-sided stencil uses different faces")
	}
	mustDo(t, d.SetRenderState(RSTwoSidedStencilMode, 1))
	f = d.depth.Get()
	if f.Front.PassOp == f.Back.PassOp {
		t.Errorf("two-sided stencil: front %v back %v", f.Front.PassOp, f.Back.PassOp)
	}
}

func TestSamplerSettings(t *testing.T) {
	d, _ := newTestDevice(t)
	mustDo(t,
		d.SetSamplerState(2, SampMinFilter, TexFilterAnisotropic),
		d.SetSamplerState(2, SampMaxAnisotropy, 8),
		d.SetSamplerState(2, SampMipFilter, TexFilterLinear),
		d.SetSamplerState(2, SampMaxMipLevel, 2),
		d.SetSamplerState(2, SampAddressU, TAddressClamp))
	s := d.sampler[2].Get()
	if s.MaxAnisotropy != 8 || s.MinFilter != gputypes.FilterModeLinear || s.MipFilter != gputypes.FilterModeLinear {
		t.Errorf("filters = %+v", s)
	}
	if s.LodMin != 2 || s.LodMax <= s.LodMin {
		t.Errorf("lod range = [%v, %v]", s.LodMin, s.LodMax)
	}
	if s.AddressU != gputypes.AddressModeClampToEdge {
		t.Errorf("AddressU = %v", s.AddressU)
	}
	if d.sampler[1].Get() == s {
		t.Error("sampler change leaked into another stage")
	}
}

func TestPermutationKey(t *testing.T) {
	d, _ := newTestDevice(t)
	mustDo(t, d.SetFVF(FVFXYZ|FVFNormal|FVFDiffuse|FVFTex(1)))

	k := d.permutationKey(false)
	if !k.Has(permutation.Lighting) || !k.Has(permutation.HasNormal) {
		t.Errorf("lit key = %v", k)
	}
	if k.Has(permutation.Fog) || k.AlphaTest() != 0 {
		t.Errorf("default key has fog or alpha test: %v", k)
	}

	mustDo(t,
		d.SetRenderState(RSAlphaTestEnable, 1),
		d.SetRenderState(RSAlphaFunc, CmpGreater),
		d.SetRenderState(RSFogEnable, 1),
		d.SetRenderState(RSFogVertexMode, FogExp),
		d.SetTextureStageState(1, TSSColorOp, TOPAdd))
	k = d.permutationKey(false)
	if k.AlphaTest() != CmpGreater {
		t.Errorf("alpha test = %d, want %d", k.AlphaTest(), CmpGreater)
	}
	if !k.Has(permutation.Fog) || k.FogMode() != FogExp {
		t.Errorf("fog = %v mode %d", k.Has(permutation.Fog), k.FogMode())
	}
	if k.Stages() != 2 {
		t.Errorf("stages = %d, want 2", k.Stages())
	}

	// OIT only applies to blended draws.
	if d.permutationKey(true).Has(permutation.OIT) {
		t.Error("opaque draw key has OIT")
	}
	mustDo(t, d.SetRenderState(RSAlphaBlendEnable, 1))
	if !d.permutationKey(true).Has(permutation.OIT) {
		t.Error("blended OIT draw key lacks OIT")
	}

	// Pretransformed vertices are never lit.
	mustDo(t, d.SetFVF(FVFXYZRHW|FVFDiffuse))
	if d.permutationKey(false).Has(permutation.Lighting) {
		t.Error("pretransformed key has lighting")
	}
}

func TestLights(t *testing.T) {
	d, _ := newTestDevice(t)

	bad := Light{Type: LightSpot, Direction: Vector3{0, 0, 1}, Theta: 1, Phi: 0.5}
	if err := d.SetLight(0, bad); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("SetLight(phi < theta) = %v", err)
	}
	if err := d.SetLight(0, Light{Type: LightDirectional}); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("SetLight(zero direction) = %v", err)
	}

	for i := range MaxActiveLights {
		mustDo(t, d.LightEnable(uint32(100-i), true))
	}
	if err := d.LightEnable(7, true); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("ninth LightEnable = %v, want ErrInvalidCall", err)
	}
	mustDo(t, d.LightEnable(100, true))

	b := d.lighting.Get()
	if b.count != MaxActiveLights {
		t.Errorf("light count = %d, want %d", b.count, MaxActiveLights)
	}
	if b.lights[0] != defaultLight() {
		t.Errorf("light never set = %+v, want default", b.lights[0])
	}

	// Changing an enabled light updates the block, a disabled one does not.
	mustDo(t, d.SetLight(93, Light{Type: LightPoint, Range: 5}))
	if d.lighting.Get().lights[0].Type != LightPoint {
		t.Error("enabled light change not packed")
	}
	mustDo(t, d.SetLight(3, Light{Type: LightPoint, Range: 1}))
	if d.lighting.Get().count != MaxActiveLights {
		t.Error("disabled light packed")
	}

	mustDo(t, d.LightEnable(93, false))
	if got := d.lighting.Get().count; got != MaxActiveLights-1 {
		t.Errorf("light count = %d after disable", got)
	}
	if err := d.SetMaterial(Material{Power: -1}); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("SetMaterial(negative power) = %v", err)
	}
}

func TestSetTransform(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.SetTransform(TransformKind(16), Identity()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("texture transform = %v, want ErrUnsupported", err)
	}
	if err := d.SetTransform(TransformKind(4), Identity()); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("unknown transform = %v, want ErrInvalidCall", err)
	}
	view := Translation(0, 0, 3)
	mustDo(t, d.SetTransform(TransformView, view))
	if got, _ := d.Transform(TransformView); got != view {
		t.Errorf("Transform(View) = %v", got)
	}
	if d.transforms.Get().view != view || d.lighting.Get().view != view {
		t.Error("view not propagated to the transform and lighting blocks")
	}
}

func TestSetViewport(t *testing.T) {
	d, _ := newTestDevice(t) // 64x48
	tests := []struct {
		name string
		vp   Viewport
		ok   bool
	}{
		{"full", Viewport{Width: 64, Height: 48, MaxZ: 1}, true},
		{"inset", Viewport{X: 8, Y: 8, Width: 16, Height: 16, MinZ: 0.25, MaxZ: 0.75}, true},
		{"empty", Viewport{Width: 0, Height: 48, MaxZ: 1}, false},
		{"outside", Viewport{X: 60, Width: 8, Height: 8, MaxZ: 1}, false},
		{"inverted depth", Viewport{Width: 8, Height: 8, MinZ: 1, MaxZ: 0}, false},
		{"depth above one", Viewport{Width: 8, Height: 8, MaxZ: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.SetViewport(tt.vp)
			if tt.ok && err != nil {
				t.Errorf("SetViewport = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCall) {
				t.Errorf("SetViewport = %v, want ErrInvalidCall", err)
			}
			if tt.ok && d.Viewport() != tt.vp {
				t.Errorf("Viewport() = %+v", d.Viewport())
			}
		})
	}
}

func TestStreamAndIndices(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)
	vb := d.stream.Get().buf
	if err := d.SetStreamSource(vb, 2, 0); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("unaligned offset = %v", err)
	}
	if err := d.SetIndices(vb, gputypes.IndexFormat(9)); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("bad index format = %v", err)
	}
	mustDo(t, d.SetIndices(vb, gputypes.IndexFormatUint16), d.SetStreamSource(nil, 0, 0))
	if d.stream.Get().buf != nil {
		t.Error("nil stream did not unbind")
	}
	if err := d.SetFVF(FVFXYZRHW | FVFNormal); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("pretransformed normals = %v", err)
	}
}
