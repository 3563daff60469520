// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RenderState names a device-wide render state. The numeric values follow
// the legacy interface so recorded call streams can be replayed directly.
type RenderState uint32

// Render states.
const (
	RSZEnable                  RenderState = 7
	RSFillMode                 RenderState = 8
	RSShadeMode                RenderState = 9
	RSZWriteEnable             RenderState = 14
	RSAlphaTestEnable          RenderState = 15
	RSSrcBlend                 RenderState = 19
	RSDestBlend                RenderState = 20
	RSCullMode                 RenderState = 22
	RSZFunc                    RenderState = 23
	RSAlphaRef                 RenderState = 24
	RSAlphaFunc                RenderState = 25
	RSDitherEnable             RenderState = 26
	RSAlphaBlendEnable         RenderState = 27
	RSFogEnable                RenderState = 28
	RSSpecularEnable           RenderState = 29
	RSFogColor                 RenderState = 34
	RSFogTableMode             RenderState = 35
	RSFogStart                 RenderState = 36
	RSFogEnd                   RenderState = 37
	RSFogDensity               RenderState = 38
	RSStencilEnable            RenderState = 52
	RSStencilFail              RenderState = 53
	RSStencilZFail             RenderState = 54
	RSStencilPass              RenderState = 55
	RSStencilFunc              RenderState = 56
	RSStencilRef               RenderState = 57
	RSStencilMask              RenderState = 58
	RSStencilWriteMask         RenderState = 59
	RSTextureFactor            RenderState = 60
	RSLighting                 RenderState = 137
	RSAmbient                  RenderState = 139
	RSFogVertexMode            RenderState = 140
	RSColorVertex              RenderState = 141
	RSNormalizeNormals         RenderState = 143
	RSDiffuseMaterialSource    RenderState = 145
	RSSpecularMaterialSource   RenderState = 146
	RSAmbientMaterialSource    RenderState = 147
	RSEmissiveMaterialSource   RenderState = 148
	RSPointSize                RenderState = 154
	RSColorWriteEnable         RenderState = 168
	RSBlendOp                  RenderState = 171
	RSSlopeScaleDepthBias      RenderState = 175
	RSTwoSidedStencilMode      RenderState = 185
	RSCCWStencilFail           RenderState = 186
	RSCCWStencilZFail          RenderState = 187
	RSCCWStencilPass           RenderState = 188
	RSCCWStencilFunc           RenderState = 189
	RSBlendFactor              RenderState = 193
	RSDepthBias                RenderState = 195
	RSSeparateAlphaBlendEnable RenderState = 206
	RSSrcBlendAlpha            RenderState = 207
	RSDestBlendAlpha           RenderState = 208
	RSBlendOpAlpha             RenderState = 209

	renderStateCount = 210
)

// TextureStageState names a per-stage texture combiner state.
type TextureStageState uint32

// Texture stage states.
const (
	TSSColorOp               TextureStageState = 1
	TSSColorArg1             TextureStageState = 2
	TSSColorArg2             TextureStageState = 3
	TSSAlphaOp               TextureStageState = 4
	TSSAlphaArg1             TextureStageState = 5
	TSSAlphaArg2             TextureStageState = 6
	TSSTexCoordIndex         TextureStageState = 11
	TSSTextureTransformFlags TextureStageState = 24
	TSSResultArg             TextureStageState = 28

	stageStateCount = 29
)

// SamplerState names a per-stage sampler state.
type SamplerState uint32

// Sampler states.
const (
	SampAddressU      SamplerState = 1
	SampAddressV      SamplerState = 2
	SampAddressW      SamplerState = 3
	SampMagFilter     SamplerState = 5
	SampMinFilter     SamplerState = 6
	SampMipFilter     SamplerState = 7
	SampMaxMipLevel   SamplerState = 9
	SampMaxAnisotropy SamplerState = 10

	samplerStateCount = 11
)

// TransformKind selects a transform matrix.
type TransformKind uint32

// Transform kinds.
const (
	TransformView       TransformKind = 2
	TransformProjection TransformKind = 3
	TransformWorld      TransformKind = 256
)

// PrimitiveType is the topology of a draw.
type PrimitiveType uint32

// Primitive types.
const (
	PointList     PrimitiveType = 1
	LineList      PrimitiveType = 2
	LineStrip     PrimitiveType = 3
	TriangleList  PrimitiveType = 4
	TriangleStrip PrimitiveType = 5
	TriangleFan   PrimitiveType = 6
)

// Values of the enumerated states.
const (
	FillSolid = 3

	CullNone = 1
	CullCW   = 2
	CullCCW  = 3

	CmpNever        = 1
	CmpLess         = 2
	CmpEqual        = 3
	CmpLessEqual    = 4
	CmpGreater      = 5
	CmpNotEqual     = 6
	CmpGreaterEqual = 7
	CmpAlways       = 8

	BlendZero            = 1
	BlendOne             = 2
	BlendSrcColor        = 3
	BlendInvSrcColor     = 4
	BlendSrcAlpha        = 5
	BlendInvSrcAlpha     = 6
	BlendDestAlpha       = 7
	BlendInvDestAlpha    = 8
	BlendDestColor       = 9
	BlendInvDestColor    = 10
	BlendSrcAlphaSat     = 11
	BlendBothSrcAlpha    = 12
	BlendBothInvSrcAlpha = 13
	BlendBlendFactor     = 14
	BlendInvBlendFactor  = 15

	BlendOpAdd         = 1
	BlendOpSubtract    = 2
	BlendOpRevSubtract = 3
	BlendOpMin         = 4
	BlendOpMax         = 5

	StencilOpKeep    = 1
	StencilOpZero    = 2
	StencilOpReplace = 3
	StencilOpIncrSat = 4
	StencilOpDecrSat = 5
	StencilOpInvert  = 6
	StencilOpIncr    = 7
	StencilOpDecr    = 8

	FogNone   = 0
	FogExp    = 1
	FogExp2   = 2
	FogLinear = 3

	MaterialSourceMaterial = 0
	MaterialSourceColor1   = 1
	MaterialSourceColor2   = 2

	TOPDisable             = 1
	TOPSelectArg1          = 2
	TOPSelectArg2          = 3
	TOPModulate            = 4
	TOPModulate2X          = 5
	TOPModulate4X          = 6
	TOPAdd                 = 7
	TOPAddSigned           = 8
	TOPAddSigned2X         = 9
	TOPSubtract            = 10
	TOPAddSmooth           = 11
	TOPBlendDiffuseAlpha   = 12
	TOPBlendTextureAlpha   = 13
	TOPBlendFactorAlpha    = 14
	TOPBlendTextureAlphaPM = 15
	TOPBlendCurrentAlpha   = 16

	TADiffuse        = 0
	TACurrent        = 1
	TATexture        = 2
	TATFactor        = 3
	TASpecular       = 4
	TATemp           = 5
	TAComplement     = 0x10
	TAAlphaReplicate = 0x20

	TAddressWrap   = 1
	TAddressMirror = 2
	TAddressClamp  = 3

	TexFilterNone        = 0
	TexFilterPoint       = 1
	TexFilterLinear      = 2
	TexFilterAnisotropic = 3

	// ColorWrite bits of RSColorWriteEnable.
	ColorWriteRed   = 1
	ColorWriteGreen = 2
	ColorWriteBlue  = 4
	ColorWriteAlpha = 8
)

// stateGroup is the consumer a render state feeds.
type stateGroup uint8

const (
	groupBlend stateGroup = iota + 1
	groupDepth
	groupStencilRef
	groupBlendFactor
	groupRaster
	groupPixel
	groupLighting
	groupTransform
	groupIgnored
)

func invalid(name string, v uint32) error {
	return fmt.Errorf("%w: %s value %d", ErrInvalidCall, name, v)
}

func unsupported(name string, v uint32) error {
	return fmt.Errorf("%w: %s value %d", ErrUnsupported, name, v)
}

func inRange(name string, v, lo, hi uint32) error {
	if v < lo || v > hi {
		return invalid(name, v)
	}
	return nil
}

// classify validates v for s and returns the group it belongs to.
func (s RenderState) classify(v uint32) (stateGroup, error) {
	switch s {
	case RSAlphaBlendEnable, RSSeparateAlphaBlendEnable, RSColorWriteEnable:
		return groupBlend, nil
	case RSSrcBlend, RSDestBlend, RSSrcBlendAlpha, RSDestBlendAlpha:
		return groupBlend, inRange("blend factor", v, BlendZero, BlendInvBlendFactor)
	case RSBlendOp, RSBlendOpAlpha:
		return groupBlend, inRange("blend op", v, BlendOpAdd, BlendOpMax)

	case RSZEnable:
		if v == 2 {
			return 0, unsupported("w-buffer", v)
		}
		return groupDepth, inRange("z enable", v, 0, 1)
	case RSZWriteEnable, RSStencilEnable, RSTwoSidedStencilMode,
		RSStencilMask, RSStencilWriteMask, RSDepthBias, RSSlopeScaleDepthBias:
		return groupDepth, nil
	case RSZFunc, RSStencilFunc, RSCCWStencilFunc:
		return groupDepth, inRange("compare function", v, CmpNever, CmpAlways)
	case RSStencilFail, RSStencilZFail, RSStencilPass, RSCCWStencilFail, RSCCWStencilZFail, RSCCWStencilPass:
		return groupDepth, inRange("stencil op", v, StencilOpKeep, StencilOpDecr)
	case RSStencilRef:
		return groupStencilRef, nil
	case RSBlendFactor:
		return groupBlendFactor, nil

	case RSCullMode:
		return groupRaster, inRange("cull mode", v, CullNone, CullCCW)
	case RSFillMode:
		if v == 1 || v == 2 {
			return 0, unsupported("fill mode", v)
		}
		return groupIgnored, inRange("fill mode", v, FillSolid, FillSolid)
	case RSShadeMode:
		if v == 1 || v == 3 {
			return 0, unsupported("shade mode", v)
		}
		return groupIgnored, inRange("shade mode", v, 2, 2)
	case RSDitherEnable:
		return groupIgnored, nil

	case RSAlphaTestEnable, RSFogEnable, RSSpecularEnable, RSFogColor, RSTextureFactor,
		RSAlphaRef, RSFogStart, RSFogEnd, RSFogDensity:
		return groupPixel, nil
	case RSAlphaFunc:
		return groupPixel, inRange("alpha func", v, CmpNever, CmpAlways)
	case RSFogTableMode, RSFogVertexMode:
		return groupPixel, inRange("fog mode", v, FogNone, FogLinear)

	case RSLighting, RSAmbient, RSColorVertex, RSNormalizeNormals:
		return groupLighting, nil
	case RSDiffuseMaterialSource, RSSpecularMaterialSource, RSAmbientMaterialSource, RSEmissiveMaterialSource:
		return groupLighting, inRange("material source", v, MaterialSourceMaterial, MaterialSourceColor2)

	case RSPointSize:
		return groupTransform, nil
	}
	return 0, fmt.Errorf("%w: render state %d", ErrInvalidCall, uint32(s))
}

// validateStageState checks a texture stage state value.
func validateStageState(s TextureStageState, v uint32) error {
	switch s {
	case TSSColorOp, TSSAlphaOp:
		if v == TOPBlendTextureAlphaPM || (v > TOPBlendCurrentAlpha && v <= 26) {
			return unsupported("texture op", v)
		}
		return inRange("texture op", v, TOPDisable, TOPBlendCurrentAlpha)
	case TSSColorArg1, TSSColorArg2, TSSAlphaArg1, TSSAlphaArg2:
		return validateArg(v)
	case TSSTexCoordIndex:
		if v>>16 != 0 {
			return unsupported("texcoord generation", v)
		}
		return inRange("texcoord index", v, 0, 7)
	case TSSTextureTransformFlags:
		if v != 0 {
			return unsupported("texture transform", v)
		}
		return nil
	case TSSResultArg:
		if v == TATemp {
			return unsupported("result arg", v)
		}
		return inRange("result arg", v, TACurrent, TACurrent)
	}
	return fmt.Errorf("%w: texture stage state %d", ErrInvalidCall, uint32(s))
}

func validateArg(v uint32) error {
	if v&^(0xF|TAComplement|TAAlphaReplicate) != 0 {
		return invalid("texture arg", v)
	}
	if sel := v & 0xF; sel > TATemp {
		return unsupported("texture arg", v)
	}
	return nil
}

// validateSamplerState checks a sampler state value.
func validateSamplerState(s SamplerState, v uint32) error {
	switch s {
	case SampAddressU, SampAddressV, SampAddressW:
		if v == 4 || v == 5 {
			return unsupported("border or mirror-once addressing", v)
		}
		return inRange("address mode", v, TAddressWrap, TAddressClamp)
	case SampMagFilter, SampMinFilter:
		return inRange("filter", v, TexFilterPoint, TexFilterAnisotropic)
	case SampMipFilter:
		return inRange("mip filter", v, TexFilterNone, TexFilterLinear)
	case SampMaxMipLevel:
		return inRange("max mip level", v, 0, 31)
	case SampMaxAnisotropy:
		return inRange("max anisotropy", v, 1, 16)
	}
	return fmt.Errorf("%w: sampler state %d", ErrInvalidCall, uint32(s))
}

// defaultRenderStates returns the legacy render state defaults.
func defaultRenderStates() [renderStateCount]uint32 {
	var rs [renderStateCount]uint32
	rs[RSZEnable] = 1
	rs[RSFillMode] = FillSolid
	rs[RSShadeMode] = 2
	rs[RSZWriteEnable] = 1
	rs[RSSrcBlend] = BlendOne
	rs[RSDestBlend] = BlendZero
	rs[RSCullMode] = CullCCW
	rs[RSZFunc] = CmpLessEqual
	rs[RSAlphaFunc] = CmpAlways
	rs[RSFogColor] = 0
	rs[RSFogEnd] = f32bits(1)
	rs[RSFogDensity] = f32bits(1)
	rs[RSStencilFail] = StencilOpKeep
	rs[RSStencilZFail] = StencilOpKeep
	rs[RSStencilPass] = StencilOpKeep
	rs[RSStencilFunc] = CmpAlways
	rs[RSStencilMask] = 0xFFFFFFFF
	rs[RSStencilWriteMask] = 0xFFFFFFFF
	rs[RSTextureFactor] = 0xFFFFFFFF
	rs[RSLighting] = 1
	rs[RSColorVertex] = 1
	rs[RSDiffuseMaterialSource] = MaterialSourceColor1
	rs[RSSpecularMaterialSource] = MaterialSourceColor2
	rs[RSPointSize] = f32bits(1)
	rs[RSColorWriteEnable] = 0xF
	rs[RSBlendOp] = BlendOpAdd
	rs[RSCCWStencilFail] = StencilOpKeep
	rs[RSCCWStencilZFail] = StencilOpKeep
	rs[RSCCWStencilPass] = StencilOpKeep
	rs[RSCCWStencilFunc] = CmpAlways
	rs[RSBlendFactor] = 0xFFFFFFFF
	rs[RSSrcBlendAlpha] = BlendOne
	rs[RSDestBlendAlpha] = BlendZero
	rs[RSBlendOpAlpha] = BlendOpAdd
	return rs
}

// defaultStageStates returns the texture stage defaults: stage 0
// modulates texture and diffuse, the rest are disabled.
func defaultStageStates() [8][stageStateCount]uint32 {
	var ts [8][stageStateCount]uint32
	for i := range ts {
		ts[i][TSSColorOp] = TOPDisable
		ts[i][TSSColorArg1] = TATexture
		ts[i][TSSColorArg2] = TACurrent
		ts[i][TSSAlphaOp] = TOPDisable
		ts[i][TSSAlphaArg1] = TATexture
		ts[i][TSSAlphaArg2] = TACurrent
		ts[i][TSSTexCoordIndex] = uint32(i)
		ts[i][TSSResultArg] = TACurrent
	}
	ts[0][TSSColorOp] = TOPModulate
	ts[0][TSSAlphaOp] = TOPSelectArg1
	return ts
}

// defaultSamplerStates returns the sampler defaults for every stage.
func defaultSamplerStates() [8][samplerStateCount]uint32 {
	var ss [8][samplerStateCount]uint32
	for i := range ss {
		ss[i][SampAddressU] = TAddressWrap
		ss[i][SampAddressV] = TAddressWrap
		ss[i][SampAddressW] = TAddressWrap
		ss[i][SampMagFilter] = TexFilterPoint
		ss[i][SampMinFilter] = TexFilterPoint
		ss[i][SampMipFilter] = TexFilterNone
		ss[i][SampMaxAnisotropy] = 1
	}
	return ss
}

// Conversions from legacy values to backend enums. Inputs are validated
// by the setters.

func compareFunc(v uint32) gputypes.CompareFunction {
	// The legacy and WebGPU compare functions share order and origin.
	return gputypes.CompareFunction(v)
}

func blendFactor(v uint32) gputypes.BlendFactor {
	switch v {
	case BlendZero:
		return gputypes.BlendFactorZero
	case BlendOne:
		return gputypes.BlendFactorOne
	case BlendSrcColor:
		return gputypes.BlendFactorSrc
	case BlendInvSrcColor:
		return gputypes.BlendFactorOneMinusSrc
	case BlendSrcAlpha:
		return gputypes.BlendFactorSrcAlpha
	case BlendInvSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case BlendDestAlpha:
		return gputypes.BlendFactorDstAlpha
	case BlendInvDestAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case BlendDestColor:
		return gputypes.BlendFactorDst
	case BlendInvDestColor:
		return gputypes.BlendFactorOneMinusDst
	case BlendSrcAlphaSat:
		return gputypes.BlendFactorSrcAlphaSaturated
	case BlendBlendFactor:
		return gputypes.BlendFactorConstant
	case BlendInvBlendFactor:
		return gputypes.BlendFactorOneMinusConstant
	}
	return gputypes.BlendFactorOne
}

// blendPair resolves the source and destination factors, expanding the
// legacy "both" factors that set the destination implicitly.
func blendPair(src, dst uint32) (gputypes.BlendFactor, gputypes.BlendFactor) {
	switch src {
	case BlendBothSrcAlpha:
		return gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha
	case BlendBothInvSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendFactorSrcAlpha
	}
	return blendFactor(src), blendFactor(dst)
}

func blendOp(v uint32) gputypes.BlendOperation {
	switch v {
	case BlendOpSubtract:
		return gputypes.BlendOperationSubtract
	case BlendOpRevSubtract:
		return gputypes.BlendOperationReverseSubtract
	case BlendOpMin:
		return gputypes.BlendOperationMin
	case BlendOpMax:
		return gputypes.BlendOperationMax
	}
	return gputypes.BlendOperationAdd
}

func stencilOp(v uint32) hal.StencilOperation {
	switch v {
	case StencilOpZero:
		return hal.StencilOperationZero
	case StencilOpReplace:
		return hal.StencilOperationReplace
	case StencilOpIncrSat:
		return hal.StencilOperationIncrementClamp
	case StencilOpDecrSat:
		return hal.StencilOperationDecrementClamp
	case StencilOpInvert:
		return hal.StencilOperationInvert
	case StencilOpIncr:
		return hal.StencilOperationIncrementWrap
	case StencilOpDecr:
		return hal.StencilOperationDecrementWrap
	}
	return hal.StencilOperationKeep
}

// cullMode maps the legacy cull mode. Front faces wind clockwise, so
// culling counter-clockwise triangles culls back faces.
func cullMode(v uint32) gputypes.CullMode {
	switch v {
	case CullCW:
		return gputypes.CullModeFront
	case CullCCW:
		return gputypes.CullModeBack
	}
	return gputypes.CullModeNone
}

func addressMode(v uint32) gputypes.AddressMode {
	switch v {
	case TAddressMirror:
		return gputypes.AddressModeMirrorRepeat
	case TAddressClamp:
		return gputypes.AddressModeClampToEdge
	}
	return gputypes.AddressModeRepeat
}

func filterMode(v uint32) gputypes.FilterMode {
	if v == TexFilterLinear || v == TexFilterAnisotropic {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// topology maps a primitive type and count to a backend topology and
// vertex count.
func topology(pt PrimitiveType, count uint32) (gputypes.PrimitiveTopology, uint32, error) {
	switch pt {
	case PointList:
		return gputypes.PrimitiveTopologyPointList, count, nil
	case LineList:
		return gputypes.PrimitiveTopologyLineList, 2 * count, nil
	case LineStrip:
		return gputypes.PrimitiveTopologyLineStrip, count + 1, nil
	case TriangleList:
		return gputypes.PrimitiveTopologyTriangleList, 3 * count, nil
	case TriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, count + 2, nil
	case TriangleFan:
		return 0, 0, unsupported("primitive type", uint32(pt))
	}
	return 0, 0, invalid("primitive type", uint32(pt))
}

func isStrip(t gputypes.PrimitiveTopology) bool {
	return t == gputypes.PrimitiveTopologyLineStrip || t == gputypes.PrimitiveTopologyTriangleStrip
}
