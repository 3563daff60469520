// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dirty provides value cells that remember whether they changed
// since the consumer last acknowledged them.
//
// Every piece of GPU-visible device state lives in a Cell. Setters call
// Assign, the pre-draw update pass checks Dirty, pushes the value to the
// GPU and calls Clear.
//
// Cells are not safe for concurrent use. They are owned by the render
// thread together with the device that embeds them.
package dirty

// Mode selects how Assign decides whether a cell becomes dirty.
type Mode uint8

const (
	// OnAssign marks the cell dirty on every assignment, even when the
	// value is unchanged.
	OnAssign Mode = iota

	// CompareCleared marks the cell dirty while its value differs from the
	// value it held at the last Clear. Assigning the cleared value back
	// makes the cell clean again.
	CompareCleared

	// ComparePrevious marks the cell dirty when an assignment differs from
	// the immediately previous value. The flag is sticky until Clear.
	ComparePrevious
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case OnAssign:
		return "OnAssign"
	case CompareCleared:
		return "CompareCleared"
	case ComparePrevious:
		return "ComparePrevious"
	default:
		return "Unknown"
	}
}

// Cell is a value of type T plus a changed-since-last-clear flag.
//
// A new cell starts dirty so the first update pass commits the initial
// value.
type Cell[T comparable] struct {
	value  T
	last   T // value at last Clear (CompareCleared) or previous value (ComparePrevious)
	mode   Mode
	dirty  bool
	forced bool
}

// New creates a dirty cell holding init.
func New[T comparable](mode Mode, init T) Cell[T] {
	return Cell[T]{value: init, last: init, mode: mode, dirty: true, forced: true}
}

// Assign stores v and updates the dirty flag according to the cell mode.
func (c *Cell[T]) Assign(v T) {
	switch c.mode {
	case CompareCleared:
		c.value = v
		c.dirty = c.forced || v != c.last
	case ComparePrevious:
		if v != c.value {
			c.dirty = true
		}
		c.last = c.value
		c.value = v
	default:
		c.value = v
		c.dirty = true
	}
}

// Get returns the current value.
func (c *Cell[T]) Get() T { return c.value }

// Ptr returns a pointer to the stored value for in-place edits of large
// values. Callers must call Mark after modifying through it.
func (c *Cell[T]) Ptr() *T { return &c.value }

// Previous returns the baseline the cell compares against.
func (c *Cell[T]) Previous() T { return c.last }

// Dirty reports whether the value changed since the last Clear.
func (c *Cell[T]) Dirty() bool { return c.dirty }

// Clear acknowledges the current value.
func (c *Cell[T]) Clear() {
	c.dirty = false
	c.forced = false
	c.last = c.value
}

// Mark forces the cell dirty regardless of its value. The flag stays set
// until the next Clear.
func (c *Cell[T]) Mark() {
	c.dirty = true
	c.forced = true
}

// Mode returns the comparison mode of the cell.
func (c *Cell[T]) Mode() Mode { return c.mode }
