// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestTopology(t *testing.T) {
	tests := []struct {
		pt    PrimitiveType
		prims uint32
		topo  gputypes.PrimitiveTopology
		verts uint32
	}{
		{PointList, 5, gputypes.PrimitiveTopologyPointList, 5},
		{LineList, 5, gputypes.PrimitiveTopologyLineList, 10},
		{LineStrip, 5, gputypes.PrimitiveTopologyLineStrip, 6},
		{TriangleList, 5, gputypes.PrimitiveTopologyTriangleList, 15},
		{TriangleStrip, 5, gputypes.PrimitiveTopologyTriangleStrip, 7},
	}
	for _, tt := range tests {
		topo, verts, err := topology(tt.pt, tt.prims)
		if err != nil {
			t.Errorf("topology(%d) = %v", tt.pt, err)
			continue
		}
		if topo != tt.topo || verts != tt.verts {
			t.Errorf("topology(%d, %d) = %v, %d; want %v, %d", tt.pt, tt.prims, topo, verts, tt.topo, tt.verts)
		}
	}
	if _, _, err := topology(TriangleFan, 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("triangle fan = %v, want ErrUnsupported", err)
	}
}

func TestBlendPair(t *testing.T) {
	tests := []struct {
		name     string
		src, dst uint32
		wantSrc  gputypes.BlendFactor
		wantDst  gputypes.BlendFactor
	}{
		{"plain", BlendSrcAlpha, BlendInvSrcAlpha, gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha},
		{"both src alpha", BlendBothSrcAlpha, BlendZero, gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha},
		{"both inv src alpha", BlendBothInvSrcAlpha, BlendOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendFactorSrcAlpha},
		{"blend factor", BlendBlendFactor, BlendInvBlendFactor, gputypes.BlendFactorConstant, gputypes.BlendFactorOneMinusConstant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := blendPair(tt.src, tt.dst)
			if src != tt.wantSrc || dst != tt.wantDst {
				t.Errorf("blendPair = %v, %v; want %v, %v", src, dst, tt.wantSrc, tt.wantDst)
			}
		})
	}
}

func TestCullMode(t *testing.T) {
	tests := []struct {
		v    uint32
		want gputypes.CullMode
	}{
		{CullNone, gputypes.CullModeNone},
		{CullCW, gputypes.CullModeFront},
		{CullCCW, gputypes.CullModeBack},
	}
	for _, tt := range tests {
		if got := cullMode(tt.v); got != tt.want {
			t.Errorf("cullMode(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestClassify_Groups(t *testing.T) {
	tests := []struct {
		s    RenderState
		v    uint32
		want stateGroup
	}{
		{RSAlphaBlendEnable, 1, groupBlend},
		{RSZWriteEnable, 0, groupDepth},
		{RSStencilRef, 3, groupStencilRef},
		{RSBlendFactor, 0x80808080, groupBlendFactor},
		{RSCullMode, CullNone, groupRaster},
		{RSFogColor, 0xFF00FF00, groupPixel},
		{RSAmbient, 0xFF202020, groupLighting},
		{RSPointSize, f32bits(4), groupTransform},
		{RSDitherEnable, 1, groupIgnored},
	}
	for _, tt := range tests {
		got, err := tt.s.classify(tt.v)
		if err != nil || got != tt.want {
			t.Errorf("classify(%d, %d) = %d, %v; want %d", tt.s, tt.v, got, err, tt.want)
		}
	}
}

func TestColorFromARGB(t *testing.T) {
	c := ColorFromARGB(ARGB(0xFF, 0x80, 0x00, 0xFF))
	if c.A != 1 || c.G != 0 || c.B != 1 || !near(c.R, 128.0/255) {
		t.Errorf("ColorFromARGB = %+v", c)
	}
}
