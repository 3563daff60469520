// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package oit

import (
	"slices"
	"sync/atomic"

	"github.com/chewxy/math32"
)

// Null terminates a fragment list and marks an empty list head.
const Null uint32 = 0xFFFFFFFF

// NodeSize is the size of one GPU fragment node in bytes.
const NodeSize = 16

// DefaultMaxFragments is the per-pixel fragment limit used when none is
// configured.
const DefaultMaxFragments = 8

// BlendMode selects how a fragment is blended during composite.
type BlendMode uint8

// Blend modes stored in the low byte of a node's flags.
const (
	BlendAlpha BlendMode = iota
	BlendAdd
	BlendPremultiplied
	BlendModulate
)

// String returns the blend mode name.
func (m BlendMode) String() string {
	switch m {
	case BlendAlpha:
		return "Alpha"
	case BlendAdd:
		return "Add"
	case BlendPremultiplied:
		return "Premultiplied"
	case BlendModulate:
		return "Modulate"
	default:
		return "Unknown"
	}
}

// Node mirrors the GPU fragment node layout.
type Node struct {
	Depth float32
	Color uint32 // packed RGBA8, red in the low byte
	Flags uint32 // draw id << 8 | blend mode
	Next  uint32
}

// PackFlags builds node flags from a draw id and a blend mode.
func PackFlags(drawID uint32, mode BlendMode) uint32 {
	return drawID<<8 | uint32(mode)
}

// DrawID returns the draw call id stored in the node.
func (n Node) DrawID() uint32 { return n.Flags >> 8 }

// Mode returns the node's blend mode.
func (n Node) Mode() BlendMode { return BlendMode(n.Flags & 0xFF) }

// Color is a straight-alpha RGBA color.
type Color struct {
	R, G, B, A float32
}

func unorm8(v float32) uint32 {
	return uint32(math32.Round(min(max(v, 0), 1) * 255))
}

// PackColor packs c the way WGSL pack4x8unorm does.
func PackColor(c Color) uint32 {
	return unorm8(c.R) | unorm8(c.G)<<8 | unorm8(c.B)<<16 | unorm8(c.A)<<24
}

// UnpackColor is the inverse of PackColor up to 8-bit quantization.
func UnpackColor(v uint32) Color {
	return Color{
		R: float32(v&0xFF) / 255,
		G: float32(v>>8&0xFF) / 255,
		B: float32(v>>16&0xFF) / 255,
		A: float32(v>>24&0xFF) / 255,
	}
}

// FragmentList is a CPU model of the GPU fragment list. Append follows the
// shader's protocol exactly: a per-pixel counter bounds the list length, a
// global counter allocates nodes and the head is swapped atomically.
//
// Append is safe for concurrent use. Fragments, Resolve and Reset must not
// run concurrently with Append.
type FragmentList struct {
	width, height uint32
	maxFragments  uint32

	heads  []atomic.Uint32
	counts []atomic.Uint32
	alloc  atomic.Uint32
	nodes  []Node
}

// NewFragmentList creates a list for a width x height target holding up
// to maxFragments fragments per pixel.
func NewFragmentList(width, height, maxFragments uint32) *FragmentList {
	if maxFragments == 0 {
		maxFragments = DefaultMaxFragments
	}
	n := int(width) * int(height)
	l := &FragmentList{
		width:        width,
		height:       height,
		maxFragments: maxFragments,
		heads:        make([]atomic.Uint32, n),
		counts:       make([]atomic.Uint32, n),
		nodes:        make([]Node, n*int(maxFragments)),
	}
	l.Reset()
	return l
}

// Capacity returns the total number of nodes.
func (l *FragmentList) Capacity() uint32 { return uint32(len(l.nodes)) }

// MaxFragments returns the per-pixel limit.
func (l *FragmentList) MaxFragments() uint32 { return l.maxFragments }

// Append inserts a fragment at pixel (x, y). It reports false when the
// fragment was dropped because the pixel or the node pool is full, or the
// pixel is outside the target.
func (l *FragmentList) Append(x, y uint32, depth float32, c Color, drawID uint32, mode BlendMode) bool {
	if x >= l.width || y >= l.height {
		return false
	}
	px := y*l.width + x
	if l.counts[px].Add(1)-1 >= l.maxFragments {
		return false
	}
	idx := l.alloc.Add(1) - 1
	if idx >= uint32(len(l.nodes)) {
		return false
	}
	l.nodes[idx] = Node{Depth: depth, Color: PackColor(c), Flags: PackFlags(drawID, mode)}
	for {
		head := l.heads[px].Load()
		l.nodes[idx].Next = head
		if l.heads[px].CompareAndSwap(head, idx) {
			return true
		}
	}
}

// Count returns the number of fragments that reached pixel (x, y),
// including dropped ones.
func (l *FragmentList) Count(x, y uint32) uint32 {
	if x >= l.width || y >= l.height {
		return 0
	}
	return l.counts[y*l.width+x].Load()
}

// Overflowed reports whether pixel (x, y) dropped fragments.
func (l *FragmentList) Overflowed(x, y uint32) bool {
	return l.Count(x, y) > l.maxFragments
}

// Fragments returns the stored fragments of pixel (x, y) in list order,
// newest first. The walk is bounded like the composite shader's.
func (l *FragmentList) Fragments(x, y uint32) []Node {
	if x >= l.width || y >= l.height {
		return nil
	}
	var out []Node
	idx := l.heads[y*l.width+x].Load()
	for idx != Null && idx < uint32(len(l.nodes)) && uint32(len(out)) < l.maxFragments {
		n := l.nodes[idx]
		out = append(out, n)
		idx = n.Next
	}
	return out
}

// Sorted returns the fragments of pixel (x, y) in blend order: farther
// first, earlier draw first on equal depth.
func (l *FragmentList) Sorted(x, y uint32) []Node {
	frags := l.Fragments(x, y)
	slices.SortStableFunc(frags, func(a, b Node) int {
		switch {
		case a.Depth > b.Depth:
			return -1
		case a.Depth < b.Depth:
			return 1
		}
		return int(a.DrawID()) - int(b.DrawID())
	})
	return frags
}

// Resolve blends the fragments of pixel (x, y) back to front. The result
// is premultiplied: the composited pixel is C + dst * (1 - A). ok is false
// when the pixel has no fragments.
func (l *FragmentList) Resolve(x, y uint32) (c Color, ok bool) {
	frags := l.Sorted(x, y)
	if len(frags) == 0 {
		return Color{}, false
	}
	var r, g, b float32
	t := float32(1)
	for _, f := range frags {
		col := UnpackColor(f.Color)
		switch f.Mode() {
		case BlendAdd:
			r += col.R * col.A
			g += col.G * col.A
			b += col.B * col.A
		case BlendPremultiplied:
			r = col.R + r*(1-col.A)
			g = col.G + g*(1-col.A)
			b = col.B + b*(1-col.A)
			t *= 1 - col.A
		case BlendModulate:
			r *= col.R
			g *= col.G
			b *= col.B
			t *= (col.R + col.G + col.B) / 3
		default:
			r += (col.R - r) * col.A
			g += (col.G - g) * col.A
			b += (col.B - b) * col.A
			t *= 1 - col.A
		}
	}
	return Color{R: r, G: g, B: b, A: 1 - t}, true
}

// Composite resolves pixel (x, y) over dst, the way the composite
// pipeline's One, OneMinusSrcAlpha blend does.
func (l *FragmentList) Composite(x, y uint32, dst Color) Color {
	src, ok := l.Resolve(x, y)
	if !ok {
		return dst
	}
	k := 1 - src.A
	return Color{
		R: src.R + dst.R*k,
		G: src.G + dst.G*k,
		B: src.B + dst.B*k,
		A: src.A + dst.A*k,
	}
}

// Reset empties every list.
func (l *FragmentList) Reset() {
	for i := range l.heads {
		l.heads[i].Store(Null)
		l.counts[i].Store(0)
	}
	l.alloc.Store(0)
}
