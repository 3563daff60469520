// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DeviceOption configures a Device during creation.
//
// Example:
//
//	// 1280x720 back buffer with OIT from the first frame
//	d, err := fixedfunc.New(device, queue,
//	    fixedfunc.WithSize(1280, 720),
//	    fixedfunc.WithOIT(true))
type DeviceOption func(*deviceOptions)

// ModuleBuilder turns preprocessed WGSL into a backend shader module and
// its compiled blob. The default compiles with naga.
type ModuleBuilder func(device hal.Device, label, src string) (hal.ShaderModule, []byte, error)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	width, height   uint32
	oit             bool
	maxFragments    uint32
	workers         int
	permutationFile string
	shaderDir       string
	watchShaders    bool
	uberFallback    bool
	onCompileError  CompileErrorHandler
	colorFormat     gputypes.TextureFormat
	build           ModuleBuilder
}

// defaultOptions returns the default device options.
func defaultOptions() deviceOptions {
	return deviceOptions{
		width:        640,
		height:       480,
		uberFallback: true,
		colorFormat:  gputypes.TextureFormatBGRA8Unorm,
	}
}

// WithSize sets the back buffer size. Zero dimensions are ignored.
func WithSize(width, height uint32) DeviceOption {
	return func(o *deviceOptions) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithOIT requests order-independent transparency from the first frame.
// It can be toggled later with Device.SetOIT.
func WithOIT(on bool) DeviceOption {
	return func(o *deviceOptions) {
		o.oit = on
	}
}

// WithMaxFragments sets the per-pixel OIT fragment limit. Fragments past
// the limit are dropped. Zero keeps the default of 8.
func WithMaxFragments(n uint32) DeviceOption {
	return func(o *deviceOptions) {
		o.maxFragments = n
	}
}

// WithCompileWorkers sets the number of background shader compilers.
// Zero or less uses GOMAXPROCS.
func WithCompileWorkers(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.workers = n
	}
}

// WithPermutationFile records every shader permutation the device uses in
// path and prewarms the shader caches from it at creation.
//
// Example:
//
//	d, err := fixedfunc.New(device, queue,
//	    fixedfunc.WithPermutationFile("~/.cache/mygame/shaders.bin"))
func WithPermutationFile(path string) DeviceOption {
	return func(o *deviceOptions) {
		o.permutationFile = path
	}
}

// WithShaderDir overrides the embedded shaders with <name>.wgsl files from
// dir. With watch, edits to the directory reload shaders at the next frame.
func WithShaderDir(dir string, watch bool) DeviceOption {
	return func(o *deviceOptions) {
		o.shaderDir = dir
		o.watchShaders = watch
	}
}

// WithUberFallback controls whether draws may use an uber shader while
// the specialized permutation compiles in the background. Enabled by
// default; when disabled every new permutation compiles synchronously.
func WithUberFallback(on bool) DeviceOption {
	return func(o *deviceOptions) {
		o.uberFallback = on
	}
}

// WithCompileErrorHandler installs the handler consulted when a draw hits
// a shader compile error. Without one the draw fails with the error.
//
// Example:
//
//	fixedfunc.WithCompileErrorHandler(func(err *fixedfunc.CompileError, attempt int) fixedfunc.CompileAction {
//	    log.Printf("shader %v failed: %s", err.Key, err.Log)
//	    return fixedfunc.Retry
//	})
func WithCompileErrorHandler(h CompileErrorHandler) DeviceOption {
	return func(o *deviceOptions) {
		o.onCompileError = h
	}
}

// WithColorFormat sets the back buffer format.
func WithColorFormat(f gputypes.TextureFormat) DeviceOption {
	return func(o *deviceOptions) {
		if f != gputypes.TextureFormatUndefined {
			o.colorFormat = f
		}
	}
}

// WithModuleBuilder replaces the shader module builder, e.g. to load
// precompiled SPIR-V or to skip compilation in tests.
func WithModuleBuilder(b ModuleBuilder) DeviceOption {
	return func(o *deviceOptions) {
		o.build = b
	}
}
