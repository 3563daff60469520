// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"fmt"

	"github.com/chewxy/math32"
)

// ColorValue is an RGBA color with float components, nominally in [0, 1].
type ColorValue struct {
	R, G, B, A float32
}

// vec4 returns the color as a shader vector.
func (c ColorValue) vec4() [4]float32 { return [4]float32{c.R, c.G, c.B, c.A} }

// ColorFromARGB unpacks a packed 0xAARRGGBB color.
func ColorFromARGB(argb uint32) ColorValue {
	return ColorValue{
		R: float32(argb>>16&0xFF) / 255,
		G: float32(argb>>8&0xFF) / 255,
		B: float32(argb&0xFF) / 255,
		A: float32(argb>>24) / 255,
	}
}

// ARGB packs three or four 8-bit channels into a 0xAARRGGBB color.
func ARGB(a, r, g, b uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// LightType is the kind of a light source.
type LightType uint32

// Light types. The values match the shader's light kinds.
const (
	LightPoint       LightType = 1
	LightSpot        LightType = 2
	LightDirectional LightType = 3
)

// String returns the light type name.
func (t LightType) String() string {
	switch t {
	case LightPoint:
		return "Point"
	case LightSpot:
		return "Spot"
	case LightDirectional:
		return "Directional"
	default:
		return fmt.Sprintf("LightType(%d)", uint32(t))
	}
}

// Light describes a light source in world space.
//
// Attenuation is 1 / (Attenuation0 + Attenuation1*d + Attenuation2*d²).
// Spot lights are fully lit inside the Theta cone, unlit outside Phi and
// fall off with exponent Falloff in between; angles are in radians.
type Light struct {
	Type      LightType
	Diffuse   ColorValue
	Specular  ColorValue
	Ambient   ColorValue
	Position  Vector3
	Direction Vector3
	Range     float32
	Falloff   float32

	Attenuation0 float32
	Attenuation1 float32
	Attenuation2 float32

	Theta float32
	Phi   float32
}

// validate rejects lights the shader cannot evaluate.
func (l *Light) validate() error {
	switch l.Type {
	case LightPoint, LightSpot, LightDirectional:
	default:
		return fmt.Errorf("%w: light type %d", ErrInvalidCall, l.Type)
	}
	if l.Type != LightPoint && l.Direction.Len() == 0 {
		return fmt.Errorf("%w: %v light with zero direction", ErrInvalidCall, l.Type)
	}
	if l.Type != LightDirectional && l.Range < 0 {
		return fmt.Errorf("%w: negative light range", ErrInvalidCall)
	}
	if l.Type == LightSpot && (l.Theta < 0 || l.Phi < l.Theta || l.Phi > math32.Pi) {
		return fmt.Errorf("%w: spot cone theta=%v phi=%v", ErrInvalidCall, l.Theta, l.Phi)
	}
	if l.Attenuation0 < 0 || l.Attenuation1 < 0 || l.Attenuation2 < 0 {
		return fmt.Errorf("%w: negative attenuation", ErrInvalidCall)
	}
	return nil
}

// Material describes surface reflectance for vertex lighting.
type Material struct {
	Diffuse  ColorValue
	Ambient  ColorValue
	Specular ColorValue
	Emissive ColorValue
	Power    float32
}

// DefaultMaterial is white diffuse and ambient with no specular or
// emission.
func DefaultMaterial() Material {
	return Material{
		Diffuse: ColorValue{1, 1, 1, 1},
		Ambient: ColorValue{1, 1, 1, 1},
	}
}

// Viewport is the render target region draws map to.
type Viewport struct {
	X, Y, Width, Height uint32
	MinZ, MaxZ          float32
}

// MaxActiveLights is the number of lights that can be enabled at once.
const MaxActiveLights = 8

// viewLight is a light transformed to view space, as the shader reads it.
type viewLight struct {
	kind        LightType
	diffuse     ColorValue
	specular    ColorValue
	ambient     ColorValue
	position    Vector3
	lightRange  float32
	direction   Vector3
	attenuation Vector3
	falloff     float32
	cosTheta    float32
	cosPhi      float32
}

// toView transforms l by the view matrix.
func (l *Light) toView(view Matrix) viewLight {
	v := viewLight{
		kind:        l.Type,
		diffuse:     l.Diffuse,
		specular:    l.Specular,
		ambient:     l.Ambient,
		position:    view.TransformCoord(l.Position),
		lightRange:  l.Range,
		direction:   view.TransformNormal(l.Direction).Normalize(),
		attenuation: Vector3{l.Attenuation0, l.Attenuation1, l.Attenuation2},
		falloff:     l.Falloff,
		cosTheta:    math32.Cos(l.Theta / 2),
		cosPhi:      math32.Cos(l.Phi / 2),
	}
	if l.Type == LightDirectional {
		v.lightRange = math32.MaxFloat32
	}
	if v.falloff == 0 {
		v.falloff = 1
	}
	return v
}
