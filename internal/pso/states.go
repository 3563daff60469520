// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pso

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BlendFlags describes color blending for the single render target.
type BlendFlags struct {
	Enabled   bool
	SrcColor  gputypes.BlendFactor
	DstColor  gputypes.BlendFactor
	ColorOp   gputypes.BlendOperation
	SrcAlpha  gputypes.BlendFactor
	DstAlpha  gputypes.BlendFactor
	AlphaOp   gputypes.BlendOperation
	WriteMask gputypes.ColorWriteMask
}

// DefaultBlendFlags is blending disabled with all channels written.
func DefaultBlendFlags() BlendFlags {
	return BlendFlags{
		SrcColor:  gputypes.BlendFactorOne,
		DstColor:  gputypes.BlendFactorZero,
		ColorOp:   gputypes.BlendOperationAdd,
		SrcAlpha:  gputypes.BlendFactorOne,
		DstAlpha:  gputypes.BlendFactorZero,
		AlphaOp:   gputypes.BlendOperationAdd,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
}

// BlendState is the pipeline fragment of a blend state object.
type BlendState struct {
	Blend     *gputypes.BlendState
	WriteMask gputypes.ColorWriteMask
}

// NewBlendCache creates the blend state cache.
func NewBlendCache() *StateCache[BlendFlags, BlendState] {
	return NewStateCache(func(f BlendFlags) (BlendState, error) {
		s := BlendState{WriteMask: f.WriteMask}
		if f.Enabled {
			s.Blend = &gputypes.BlendState{
				Color: gputypes.BlendComponent{SrcFactor: f.SrcColor, DstFactor: f.DstColor, Operation: f.ColorOp},
				Alpha: gputypes.BlendComponent{SrcFactor: f.SrcAlpha, DstFactor: f.DstAlpha, Operation: f.AlphaOp},
			}
		}
		return s, nil
	}, nil)
}

// StencilFace describes stencil behavior for one facing.
type StencilFace struct {
	Compare     gputypes.CompareFunction
	FailOp      hal.StencilOperation
	DepthFailOp hal.StencilOperation
	PassOp      hal.StencilOperation
}

// DepthFlags describes depth and stencil testing. The stencil reference
// value is deliberately absent: it is set at draw time.
type DepthFlags struct {
	DepthTest     bool
	DepthWrite    bool
	DepthCompare  gputypes.CompareFunction
	StencilEnable bool
	Front         StencilFace
	Back          StencilFace
	ReadMask      uint32
	WriteMask     uint32
	DepthBias     int32
	SlopeScale    float32
}

// DefaultDepthFlags matches the legacy defaults: depth test and write on
// with less-equal, stencil off.
func DefaultDepthFlags() DepthFlags {
	face := StencilFace{Compare: gputypes.CompareFunctionAlways}
	return DepthFlags{
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionLessEqual,
		Front:        face,
		Back:         face,
		ReadMask:     0xFFFFFFFF,
		WriteMask:    0xFFFFFFFF,
	}
}

// Canonical returns f with its float fields canonicalized.
func (f DepthFlags) Canonical() DepthFlags {
	f.SlopeScale = CanonicalFloat(f.SlopeScale)
	return f
}

// NewDepthStencilCache creates the depth-stencil state cache for the given
// depth buffer format.
func NewDepthStencilCache(format gputypes.TextureFormat) *StateCache[DepthFlags, hal.DepthStencilState] {
	return NewStateCache(func(f DepthFlags) (hal.DepthStencilState, error) {
		s := hal.DepthStencilState{
			Format:              format,
			DepthWriteEnabled:   f.DepthTest && f.DepthWrite,
			DepthCompare:        gputypes.CompareFunctionAlways,
			DepthBias:           f.DepthBias,
			DepthBiasSlopeScale: f.SlopeScale,
		}
		if f.DepthTest {
			s.DepthCompare = f.DepthCompare
		}
		if f.StencilEnable {
			s.StencilFront = halFace(f.Front)
			s.StencilBack = halFace(f.Back)
			s.StencilReadMask = f.ReadMask
			s.StencilWriteMask = f.WriteMask
		} else {
			off := hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways}
			s.StencilFront, s.StencilBack = off, off
		}
		return s, nil
	}, nil)
}

func halFace(f StencilFace) hal.StencilFaceState {
	return hal.StencilFaceState{Compare: f.Compare, FailOp: f.FailOp, DepthFailOp: f.DepthFailOp, PassOp: f.PassOp}
}

// RasterFlags describes rasterizer state that is baked into pipelines.
type RasterFlags struct {
	CullMode  gputypes.CullMode
	FrontFace gputypes.FrontFace
	Topology  gputypes.PrimitiveTopology

	// StripIndexFormat is set for indexed strip topologies only.
	StripIndexFormat gputypes.IndexFormat
}

// NewRasterCache creates the rasterizer state cache.
func NewRasterCache() *StateCache[RasterFlags, gputypes.PrimitiveState] {
	return NewStateCache(func(f RasterFlags) (gputypes.PrimitiveState, error) {
		s := gputypes.PrimitiveState{
			Topology:  f.Topology,
			FrontFace: f.FrontFace,
			CullMode:  f.CullMode,
		}
		if f.StripIndexFormat != gputypes.IndexFormatUndefined {
			format := f.StripIndexFormat
			s.StripIndexFormat = &format
		}
		return s, nil
	}, nil)
}
