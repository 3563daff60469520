// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cbuffer packs typed values into uniform buffer bytes.
//
// The packing rule follows the classic constant-buffer convention: values
// are written densely, but a value that would straddle a 16-byte boundary
// starts at the next boundary instead. Matrices always start on a
// boundary. Shader-side structs are declared so that this rule and the
// WGSL uniform layout agree (every vec3 is followed by a scalar, array
// elements are separated by Align).
package cbuffer

import (
	"encoding/binary"
	"math"
)

// Boundary is the register size in bytes.
const Boundary = 16

// Writer accumulates packed uniform data.
//
// The zero value is ready to use. Output is deterministic for a fixed
// sequence of calls.
type Writer struct {
	buf []byte
	off int
}

// NewWriter creates a writer with capacity for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// reserve places a value of n bytes, moving to the next boundary when the
// value would straddle one, and returns its offset.
func (w *Writer) reserve(n int) int {
	if rem := w.off % Boundary; rem != 0 && rem+n > Boundary {
		w.off += Boundary - rem
	}
	start := w.off
	w.off += n
	w.grow(w.off)
	return start
}

func (w *Writer) grow(n int) {
	if n <= len(w.buf) {
		return
	}
	if n <= cap(w.buf) {
		old := len(w.buf)
		w.buf = w.buf[:n]
		clear(w.buf[old:])
		return
	}
	nb := make([]byte, n, max(n, 2*cap(w.buf)))
	copy(nb, w.buf)
	w.buf = nb
}

func (w *Writer) put32(off int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[off:], v)
}

// Float writes a 32-bit float.
func (w *Writer) Float(v float32) {
	w.put32(w.reserve(4), math.Float32bits(v))
}

// Uint writes a 32-bit unsigned integer.
func (w *Writer) Uint(v uint32) {
	w.put32(w.reserve(4), v)
}

// Int writes a 32-bit signed integer.
func (w *Writer) Int(v int32) {
	w.put32(w.reserve(4), uint32(v))
}

// Bool writes a boolean as a 32-bit 0 or 1.
func (w *Writer) Bool(v bool) {
	var u uint32
	if v {
		u = 1
	}
	w.put32(w.reserve(4), u)
}

func (w *Writer) floats(v []float32) {
	off := w.reserve(4 * len(v))
	for i, f := range v {
		w.put32(off+4*i, math.Float32bits(f))
	}
}

// Vec2 writes a 2-component float vector.
func (w *Writer) Vec2(v [2]float32) { w.floats(v[:]) }

// Vec3 writes a 3-component float vector.
func (w *Writer) Vec3(v [3]float32) { w.floats(v[:]) }

// Vec4 writes a 4-component float vector.
func (w *Writer) Vec4(v [4]float32) { w.floats(v[:]) }

// Mat4 writes a 4x4 matrix (16 floats in the given order) starting at a
// boundary.
func (w *Writer) Mat4(m [16]float32) {
	w.Align()
	w.floats(m[:])
}

// Align advances the cursor to the next 16-byte boundary. It does nothing
// when the cursor already sits on a boundary.
func (w *Writer) Align() {
	if rem := w.off % Boundary; rem != 0 {
		w.off += Boundary - rem
		w.grow(w.off)
	}
}

// Len returns the cursor offset in bytes.
func (w *Writer) Len() int { return w.off }

// Size returns the buffer size rounded up to a whole number of registers.
func (w *Writer) Size() int {
	return (w.off + Boundary - 1) / Boundary * Boundary
}

// Bytes returns the packed data padded to Size. The slice aliases the
// writer's storage until the next Reset.
func (w *Writer) Bytes() []byte {
	w.grow(w.Size())
	return w.buf[:w.Size()]
}

// Reset empties the writer, keeping its storage.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.off = 0
}
