// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fixedfunc/internal/permutation"
)

// FVF is a flexible vertex format: a bitmask naming which components a
// vertex carries. Components are laid out in a fixed order: position,
// normal, point size, diffuse, specular, then texture coordinate sets.
type FVF uint32

// Vertex format bits.
const (
	FVFXYZ      FVF = 0x002
	FVFXYZRHW   FVF = 0x004
	FVFNormal   FVF = 0x010
	FVFPSize    FVF = 0x020
	FVFDiffuse  FVF = 0x040
	FVFSpecular FVF = 0x080

	fvfPositionMask FVF = 0x400E
	fvfTexCountMask FVF = 0xF00
	fvfTexShift         = 8
	fvfTexSizeMask  FVF = 0xFFFF0000
)

// FVFTex returns the bits for n sets of 2D texture coordinates.
func FVFTex(n int) FVF { return FVF(n) << fvfTexShift & fvfTexCountMask }

// TexCount returns the number of texture coordinate sets.
func (f FVF) TexCount() int { return int((f & fvfTexCountMask) >> fvfTexShift) }

// Validate reports whether the device can read vertices of this format.
// Blend weights, packed 1D/3D/4D texture coordinates and more than seven
// coordinate sets are not supported.
func (f FVF) Validate() error {
	switch f & fvfPositionMask {
	case FVFXYZ, FVFXYZRHW:
	case 0:
		return fmt.Errorf("%w: vertex format %#x has no position", ErrInvalidCall, uint32(f))
	default:
		return fmt.Errorf("%w: vertex format %#x position type", ErrUnsupported, uint32(f))
	}
	if f&FVFXYZRHW != 0 && f&FVFNormal != 0 {
		return fmt.Errorf("%w: pretransformed vertices cannot carry normals", ErrInvalidCall)
	}
	if f&fvfTexSizeMask != 0 {
		return fmt.Errorf("%w: non-2D texture coordinates", ErrUnsupported)
	}
	if f.TexCount() > permutation.MaxTexCoords {
		return fmt.Errorf("%w: %d texture coordinate sets", ErrUnsupported, f.TexCount())
	}
	known := fvfPositionMask | FVFNormal | FVFPSize | FVFDiffuse | FVFSpecular | fvfTexCountMask
	if f&^known != 0 {
		return fmt.Errorf("%w: vertex format bits %#x", ErrUnsupported, uint32(f&^known))
	}
	return nil
}

// Stride returns the size of one vertex in bytes.
func (f FVF) Stride() uint32 {
	var n uint32 = 12
	if f&fvfPositionMask == FVFXYZRHW {
		n = 16
	}
	if f&FVFNormal != 0 {
		n += 12
	}
	if f&FVFPSize != 0 {
		n += 4
	}
	if f&FVFDiffuse != 0 {
		n += 4
	}
	if f&FVFSpecular != 0 {
		n += 4
	}
	return n + 8*uint32(f.TexCount())
}

// keyBits returns the permutation key vertex format bits.
func (f FVF) keyBits() permutation.Key {
	var k permutation.Key
	k = k.With(permutation.HasNormal, f&FVFNormal != 0)
	k = k.With(permutation.HasPointSize, f&FVFPSize != 0)
	k = k.With(permutation.HasDiffuse, f&FVFDiffuse != 0)
	k = k.With(permutation.HasSpecular, f&FVFSpecular != 0)
	k = k.With(permutation.Pretransform, f&fvfPositionMask == FVFXYZRHW)
	return k.WithTexCoords(f.TexCount())
}

// Shader input locations.
const (
	locPosition = 0
	locNormal   = 1
	locPSize    = 2
	locDiffuse  = 3
	locSpecular = 4
	locTexCoord = 5
)

// Layout returns the vertex buffer layout for one stream of this format
// read with the given stride. A zero stride uses Stride.
func (f FVF) Layout(stride uint32) gputypes.VertexBufferLayout {
	if stride == 0 {
		stride = f.Stride()
	}
	var attrs []gputypes.VertexAttribute
	var off uint64
	add := func(format gputypes.VertexFormat, size uint64, loc uint32) {
		attrs = append(attrs, gputypes.VertexAttribute{Format: format, Offset: off, ShaderLocation: loc})
		off += size
	}
	if f&fvfPositionMask == FVFXYZRHW {
		add(gputypes.VertexFormatFloat32x4, 16, locPosition)
	} else {
		add(gputypes.VertexFormatFloat32x3, 12, locPosition)
	}
	if f&FVFNormal != 0 {
		add(gputypes.VertexFormatFloat32x3, 12, locNormal)
	}
	if f&FVFPSize != 0 {
		add(gputypes.VertexFormatFloat32, 4, locPSize)
	}
	if f&FVFDiffuse != 0 {
		add(gputypes.VertexFormatUnorm8x4, 4, locDiffuse)
	}
	if f&FVFSpecular != 0 {
		add(gputypes.VertexFormatUnorm8x4, 4, locSpecular)
	}
	for i := range f.TexCount() {
		add(gputypes.VertexFormatFloat32x2, 8, locTexCoord+uint32(i))
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(stride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}
}
