// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"

	"github.com/gogpu/fixedfunc/internal/shadercache"
)

// Sentinel errors returned by Device methods.
var (
	// ErrInvalidCall is returned for out-of-range indices, unknown states
	// and calls made in the wrong device state.
	ErrInvalidCall = errors.New("fixedfunc: invalid call")

	// ErrUnsupported is returned for legacy features the device does not
	// emulate, such as wireframe fill, triangle fans or palette modes.
	ErrUnsupported = errors.New("fixedfunc: unsupported feature")

	// ErrNilDevice is returned when no backend device or queue is given.
	ErrNilDevice = errors.New("fixedfunc: backend device is nil")

	// ErrNoHAL is returned by NewFromProvider when the provider does not
	// expose its hal device and queue.
	ErrNoHAL = errors.New("fixedfunc: provider does not expose a hal device")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("fixedfunc: device is closed")

	// ErrNotInScene is returned by draws issued outside BeginScene/EndScene.
	ErrNotInScene = errors.New("fixedfunc: not in scene")

	// ErrInScene is returned by BeginScene, Present and Reset while a scene
	// is open.
	ErrInScene = errors.New("fixedfunc: scene already begun")

	// ErrNoStream is returned by draws without a vertex stream or, for
	// indexed draws, without an index buffer.
	ErrNoStream = errors.New("fixedfunc: no vertex or index buffer bound")
)

// CompileError reports a shader permutation that failed to compile on
// the synchronous path. Use errors.As to inspect the stage, key and
// compiler log.
type CompileError = shadercache.CompileError

// CompileAction is the decision returned by a CompileErrorHandler.
type CompileAction uint8

const (
	// Abandon fails the draw with the compile error.
	Abandon CompileAction = iota

	// Retry invalidates every shader cache and compiles again.
	Retry
)

// String returns the action name.
func (a CompileAction) String() string {
	switch a {
	case Abandon:
		return "Abandon"
	case Retry:
		return "Retry"
	default:
		return "Unknown"
	}
}

// CompileErrorHandler decides how a draw reacts to a shader compile error.
// attempt starts at 1. The device stops retrying after maxCompileAttempts
// regardless of the answer.
type CompileErrorHandler func(err *CompileError, attempt int) CompileAction

// maxCompileAttempts bounds Retry loops on a permanently broken shader.
const maxCompileAttempts = 3
