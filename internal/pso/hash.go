// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pso

import (
	"encoding/binary"
	"hash/fnv"
)

// CanonicalFloat maps -0 and NaN to +0. Flags hash the bits of their float
// fields but compare them with ==, so float fields must be canonical for
// equal flags to share one bucket and for a flags value to equal itself.
func CanonicalFloat(v float32) float32 {
	if v == 0 || v != v {
		return 0
	}
	return v
}

// Hash returns the FNV-1a hash of the little-endian binary encoding of v.
//
// T must be a fixed-size value (booleans, sized numbers, arrays and
// structs of those). Equal values always encode to equal bytes, so equal
// flags hash equal.
func Hash[T comparable](v T) uint64 {
	h := fnv.New64a()
	if err := binary.Write(h, binary.LittleEndian, v); err != nil {
		// Only reachable for variable-size types, which no flags struct is.
		panic("pso: hash of non fixed-size type: " + err.Error())
	}
	return h.Sum64()
}
