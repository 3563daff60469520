// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package permutation defines the shader permutation key: a bitfield that
// selects which optional features are compiled into a shader variant.
//
// Keys are always canonicalized with Sanitize before they are used to
// look up or insert cached shaders, so states that cannot produce
// different output share one variant.
package permutation

import (
	"fmt"
	"strings"
)

// Key is a shader permutation bitfield.
//
// Layout:
//
//	bit  0     lighting
//	bit  1     specular
//	bit  2     alpha blend
//	bits 3-5   alpha test compare function (0 = disabled)
//	bit  6     fog
//	bits 7-8   fog mode
//	bit  9     order-independent transparency
//	bits 10-17 vertex format
//	bits 18-21 bound texture stage count
//	bit  31    uber marker
type Key uint32

// Single-bit flags.
const (
	Lighting   Key = 1 << 0
	Specular   Key = 1 << 1
	AlphaBlend Key = 1 << 2
	Fog        Key = 1 << 6
	OIT        Key = 1 << 9

	// Vertex format bits.
	HasNormal    Key = 1 << 10
	HasDiffuse   Key = 1 << 11
	HasSpecular  Key = 1 << 12
	Pretransform Key = 1 << 13
	HasPointSize Key = 1 << 17

	// Uber marks a key projected for the uber cache.
	Uber Key = 1 << 31
)

const (
	alphaTestShift = 3
	alphaTestMask  = Key(0x7) << alphaTestShift

	fogModeShift = 7
	fogModeMask  = Key(0x3) << fogModeShift

	texCoordShift = 14
	texCoordMask  = Key(0x7) << texCoordShift

	stageShift = 18
	stageMask  = Key(0xF) << stageShift

	// VertexFormatMask covers every vertex format bit.
	VertexFormatMask = HasNormal | HasDiffuse | HasSpecular | Pretransform | texCoordMask | HasPointSize
)

// Limits of the packed fields.
const (
	MaxTexCoords = 7
	MaxStages    = 8
	// MaxAlphaTest is the largest encodable alpha test function.
	MaxAlphaTest = 7
)

// Fog modes stored in the fog mode field.
const (
	FogNone uint8 = iota
	FogExp
	FogExp2
	FogLinear
)

// Stage identifies a programmable shader stage.
type Stage uint8

const (
	VertexStage Stage = iota
	PixelStage
)

// String returns the stage name.
func (s Stage) String() string {
	if s == VertexStage {
		return "vertex"
	}
	return "pixel"
}

// vertexBits are the bits the vertex shader depends on.
const vertexBits = Lighting | Specular | VertexFormatMask

// pixelBits are the bits the pixel shader depends on.
const pixelBits = alphaTestMask | Fog | fogModeMask | OIT | stageMask

// Has reports whether every bit of f is set.
func (k Key) Has(f Key) bool { return k&f == f }

// With returns k with f set or cleared.
func (k Key) With(f Key, on bool) Key {
	if on {
		return k | f
	}
	return k &^ f
}

// AlphaTest returns the alpha test compare function, 0 when disabled.
func (k Key) AlphaTest() uint8 { return uint8((k & alphaTestMask) >> alphaTestShift) }

// WithAlphaTest returns k with the alpha test function set. Values above
// MaxAlphaTest disable the test.
func (k Key) WithAlphaTest(fn uint8) Key {
	if fn > MaxAlphaTest {
		fn = 0
	}
	return k&^alphaTestMask | Key(fn)<<alphaTestShift
}

// FogMode returns the fog mode field.
func (k Key) FogMode() uint8 { return uint8((k & fogModeMask) >> fogModeShift) }

// WithFogMode returns k with the fog mode set.
func (k Key) WithFogMode(m uint8) Key {
	return k&^fogModeMask | Key(m&0x3)<<fogModeShift
}

// TexCoords returns the number of texture coordinate sets in the vertex format.
func (k Key) TexCoords() int { return int((k & texCoordMask) >> texCoordShift) }

// WithTexCoords returns k with the texture coordinate count set, clamped
// to MaxTexCoords.
func (k Key) WithTexCoords(n int) Key {
	n = min(max(n, 0), MaxTexCoords)
	return k&^texCoordMask | Key(n)<<texCoordShift
}

// Stages returns the number of bound texture stages.
func (k Key) Stages() int { return int((k & stageMask) >> stageShift) }

// WithStages returns k with the texture stage count set, clamped to MaxStages.
func (k Key) WithStages(n int) Key {
	n = min(max(n, 0), MaxStages)
	return k&^stageMask | Key(n)<<stageShift
}

// VertexFormat returns only the vertex format bits.
func (k Key) VertexFormat() Key { return k & VertexFormatMask }

// Sanitize clears bits that cannot affect shader output:
//   - lighting without normals, or with pretransformed vertices
//   - specular without lighting
//   - OIT without alpha blending
//   - fog mode without fog
//
// Sanitize never sets a bit and Sanitize(Sanitize(k)) == Sanitize(k).
func Sanitize(k Key) Key {
	if !k.Has(HasNormal) || k.Has(Pretransform) {
		k &^= Lighting
	}
	if !k.Has(Lighting) {
		k &^= Specular
	}
	if !k.Has(AlphaBlend) {
		k &^= OIT
	}
	if !k.Has(Fog) {
		k &^= fogModeMask
	}
	return k
}

// Project returns the sanitized bits that the given stage depends on.
// The two projections are disjoint.
func (k Key) Project(s Stage) Key {
	k = Sanitize(k)
	if s == VertexStage {
		return k & vertexBits
	}
	return k & pixelBits
}

// UberProject returns the key of the uber variant serving k for the given
// stage. Vertex uber shaders keep the vertex format because it fixes the
// input layout; pixel uber shaders keep OIT because it fixes the bindings.
// Everything else is evaluated at run time from uniforms.
func (k Key) UberProject(s Stage) Key {
	k = Sanitize(k)
	if s == VertexStage {
		return k.VertexFormat() | Uber
	}
	return k&OIT | Uber
}

// String returns a compact description, e.g. "L|S|AT3|fog2|tc1|st2".
func (k Key) String() string {
	var parts []string
	add := func(f Key, name string) {
		if k.Has(f) {
			parts = append(parts, name)
		}
	}
	add(Uber, "uber")
	add(Lighting, "L")
	add(Specular, "S")
	add(AlphaBlend, "AB")
	if at := k.AlphaTest(); at != 0 {
		parts = append(parts, fmt.Sprintf("AT%d", at))
	}
	if k.Has(Fog) {
		parts = append(parts, fmt.Sprintf("fog%d", k.FogMode()))
	}
	add(OIT, "oit")
	add(HasNormal, "n")
	add(HasDiffuse, "d")
	add(HasSpecular, "s")
	add(Pretransform, "rhw")
	add(HasPointSize, "psz")
	if n := k.TexCoords(); n != 0 {
		parts = append(parts, fmt.Sprintf("tc%d", n))
	}
	if n := k.Stages(); n != 0 {
		parts = append(parts, fmt.Sprintf("st%d", n))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}
