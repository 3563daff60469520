// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package permutation

import "strconv"

// Define is a preprocessor definition. Value is empty for flag-style
// definitions.
type Define struct {
	Name  string
	Value string
}

// Defines derives the preprocessor definitions for a projected key. The
// result depends only on the key, so equal keys produce equal shaders.
func Defines(k Key) []Define {
	var out []Define
	flag := func(f Key, name string) {
		if k.Has(f) {
			out = append(out, Define{Name: name})
		}
	}
	flag(Uber, "UBER")
	flag(Lighting, "LIGHTING")
	flag(Specular, "SPECULAR")
	flag(OIT, "OIT")
	flag(HasNormal, "VERTEX_NORMAL")
	flag(HasDiffuse, "VERTEX_DIFFUSE")
	flag(HasSpecular, "VERTEX_SPECULAR")
	flag(Pretransform, "VERTEX_RHW")
	flag(HasPointSize, "VERTEX_PSIZE")
	if at := k.AlphaTest(); at != 0 {
		out = append(out, Define{Name: "ALPHA_TEST", Value: strconv.Itoa(int(at))})
	}
	if k.Has(Fog) {
		out = append(out, Define{Name: "FOG", Value: strconv.Itoa(int(k.FogMode()))})
	}
	for i := range k.TexCoords() {
		out = append(out, Define{Name: "VERTEX_TEXCOORD" + strconv.Itoa(i)})
	}
	if !k.Has(Uber) {
		out = append(out, Define{Name: "STAGE_COUNT", Value: strconv.Itoa(k.Stages())})
	}
	return out
}
