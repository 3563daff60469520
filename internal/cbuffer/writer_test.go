// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cbuffer

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestWriter_FloatThenVec3(t *testing.T) {
	var w Writer
	w.Float(1)
	w.Vec3([3]float32{2, 3, 4})
	if w.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", w.Len())
	}
	w.Align()
	w.Float(5)

	b := w.Bytes()
	if len(b) != 32 {
		t.Fatalf("len(Bytes()) = %d, want 32", len(b))
	}
	want := map[int]float32{0: 1, 4: 2, 8: 3, 12: 4, 16: 5}
	for off, v := range want {
		if got := f32(b, off); got != v {
			t.Errorf("offset %d = %v, want %v", off, got, v)
		}
	}
	if !bytes.Equal(b[20:32], make([]byte, 12)) {
		t.Errorf("padding not zero: %v", b[20:32])
	}
}

func TestWriter_StraddleRule(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w *Writer)
		wantLen int
	}{
		{"two vec2", func(w *Writer) { w.Vec2([2]float32{}); w.Vec2([2]float32{}) }, 16},
		{"float vec2 vec2", func(w *Writer) { w.Float(0); w.Vec2([2]float32{}); w.Vec2([2]float32{}) }, 24},
		{"vec3 vec2", func(w *Writer) { w.Vec3([3]float32{}); w.Vec2([2]float32{}) }, 24},
		{"float vec4", func(w *Writer) { w.Float(0); w.Vec4([4]float32{}) }, 32},
		{"vec3 float", func(w *Writer) { w.Vec3([3]float32{}); w.Float(0) }, 16},
		{"float mat4", func(w *Writer) { w.Float(0); w.Mat4([16]float32{}) }, 80},
		{"bool uint int", func(w *Writer) { w.Bool(true); w.Uint(2); w.Int(-1) }, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Writer
			tt.write(&w)
			if w.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", w.Len(), tt.wantLen)
			}
		})
	}
}

func TestWriter_AlignOnBoundaryIsNoop(t *testing.T) {
	var w Writer
	w.Align()
	if w.Len() != 0 {
		t.Errorf("Align on empty writer moved to %d", w.Len())
	}
	w.Vec4([4]float32{1, 2, 3, 4})
	w.Align()
	if w.Len() != 16 {
		t.Errorf("Align after vec4 moved to %d", w.Len())
	}
}

func TestWriter_LightArrayLayout(t *testing.T) {
	// Two light records: vec4 color, vec3 position + float range, bool enabled.
	var w Writer
	for i := range 2 {
		w.Vec4([4]float32{float32(i), 0, 0, 1})
		w.Vec3([3]float32{1, 2, 3})
		w.Float(10)
		w.Bool(i == 1)
		w.Align()
	}
	if w.Len() != 96 {
		t.Fatalf("Len() = %d, want 96", w.Len())
	}
	b := w.Bytes()
	if got := f32(b, 48); got != 1 {
		t.Errorf("second light color.r = %v, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(b[80:]); got != 1 {
		t.Errorf("second light enabled = %d, want 1", got)
	}
}

func TestWriter_Deterministic(t *testing.T) {
	seq := func(w *Writer) {
		w.Mat4([16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1})
		w.Float(0.5)
		w.Vec3([3]float32{1, 1, 1})
		w.Align()
		w.Int(-3)
	}
	var a, b Writer
	seq(&a)
	seq(&b)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("identical sequences produced different bytes")
	}
	if a.Size() != 96 {
		t.Errorf("Size() = %d, want 96", a.Size())
	}
}

func TestWriter_Reset(t *testing.T) {
	w := NewWriter(64)
	w.Vec4([4]float32{9, 9, 9, 9})
	w.Reset()
	if w.Len() != 0 || len(w.Bytes()) != 0 {
		t.Fatalf("Reset left Len=%d Bytes=%d", w.Len(), len(w.Bytes()))
	}
	w.Float(1)
	b := w.Bytes()
	if f32(b, 4) != 0 || f32(b, 12) != 0 {
		t.Error("stale data survived Reset")
	}
}
