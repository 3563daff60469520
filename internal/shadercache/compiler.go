// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/permutation"
	"github.com/gogpu/fixedfunc/internal/shadersrc"
)

// Entry is a compiled shader variant. Entries are shared by the cache and
// by whatever pipeline currently uses them; they are released only when
// the whole cache is invalidated or closed.
type Entry struct {
	Stage permutation.Stage
	Key   permutation.Key

	// Module is the backend shader module.
	Module hal.ShaderModule

	// Blob is the compiled SPIR-V.
	Blob []byte
}

// EntryPoint returns the WGSL entry point name for the entry's stage.
func (e *Entry) EntryPoint() string {
	if e.Stage == permutation.VertexStage {
		return "vs_main"
	}
	return "fs_main"
}

// CompileError reports a shader that failed to compile.
type CompileError struct {
	Stage permutation.Stage
	Key   permutation.Key
	Log   string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shadercache: %s shader %v: %s", e.Stage, e.Key, e.Log)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compiler turns a projected permutation key into a shader entry.
// Implementations must be safe for concurrent use.
type Compiler interface {
	Compile(stage permutation.Stage, key permutation.Key) (*Entry, error)
	Release(e *Entry)
}

// ModuleFunc builds a backend shader module from WGSL source and returns
// it with its compiled blob.
type ModuleFunc func(device hal.Device, label, src string) (hal.ShaderModule, []byte, error)

// SourceCompiler preprocesses the fixed-function shaders for a key and
// hands the result to a ModuleFunc.
type SourceCompiler struct {
	device hal.Device
	source shadersrc.Provider
	build  ModuleFunc
}

// NewNagaCompiler creates a compiler for device reading from source that
// compiles with naga.
func NewNagaCompiler(device hal.Device, source shadersrc.Provider) *SourceCompiler {
	return NewSourceCompiler(device, source, CompileModule)
}

// NewSourceCompiler creates a compiler with a custom module builder.
// A nil build uses CompileModule.
func NewSourceCompiler(device hal.Device, source shadersrc.Provider, build ModuleFunc) *SourceCompiler {
	if build == nil {
		build = CompileModule
	}
	return &SourceCompiler{device: device, source: source, build: build}
}

// Compile implements Compiler.
func (c *SourceCompiler) Compile(stage permutation.Stage, key permutation.Key) (*Entry, error) {
	name := shadersrc.FixedPixel
	if stage == permutation.VertexStage {
		name = shadersrc.FixedVertex
	}
	src, err := c.source.Source(name, permutation.Defines(key))
	if err != nil {
		return nil, &CompileError{Stage: stage, Key: key, Log: err.Error(), Err: err}
	}
	label := fmt.Sprintf("%s[%v]", name, key)
	module, blob, err := c.build(c.device, label, src)
	if err != nil {
		return nil, &CompileError{Stage: stage, Key: key, Log: err.Error(), Err: err}
	}
	return &Entry{Stage: stage, Key: key, Module: module, Blob: blob}, nil
}

// Release implements Compiler.
func (c *SourceCompiler) Release(e *Entry) {
	if e != nil && e.Module != nil {
		c.device.DestroyShaderModule(e.Module)
	}
}

// CompileModule compiles WGSL source to SPIR-V and creates a shader
// module from it.
func CompileModule(device hal.Device, label, src string) (hal.ShaderModule, []byte, error) {
	blob, err := naga.Compile(src)
	if err != nil {
		return nil, nil, fmt.Errorf("compile %s: %w", label, err)
	}
	// SPIR-V is a stream of little-endian 32-bit words.
	code := make([]uint32, len(blob)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create module %s: %w", label, err)
	}
	return module, blob, nil
}
