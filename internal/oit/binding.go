// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package oit

import (
	"errors"
	"fmt"
)

// ErrBindingConflict is returned when the fragment list would be bound as
// writable and readable at the same time.
var ErrBindingConflict = errors.New("oit: fragment list bound as writable and readable")

// Binding is how the fragment list buffers are currently bound.
type Binding uint8

const (
	// Unbound means no pass references the fragment list.
	Unbound Binding = iota

	// Writable means a pass has the write bind group set.
	Writable

	// Readable means the composite pass has the read-only bind group set.
	Readable
)

// String returns the binding name.
func (b Binding) String() string {
	switch b {
	case Unbound:
		return "Unbound"
	case Writable:
		return "Writable"
	case Readable:
		return "Readable"
	default:
		return fmt.Sprintf("Binding(%d)", b)
	}
}

// transition moves from b to next. Switching directly between Writable
// and Readable is rejected; the buffers must be unbound in between.
func (b Binding) transition(next Binding) (Binding, error) {
	if b != Unbound && next != Unbound && b != next {
		return b, fmt.Errorf("%w: %v -> %v", ErrBindingConflict, b, next)
	}
	return next, nil
}
