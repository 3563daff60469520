// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shadersrc supplies WGSL source for shader permutations.
//
// Sources are embedded in the binary and may be overridden by files in a
// directory, which can be watched for changes to drive shader reloads.
package shadersrc

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/gogpu/fixedfunc/internal/permutation"
)

// Shader names served by Library.
const (
	FixedVertex  = "fixed_vertex"
	FixedPixel   = "fixed_pixel"
	OITComposite = "oit_composite"
)

// ErrNotFound is returned when no source exists for a shader name.
var ErrNotFound = errors.New("shadersrc: shader not found")

//go:embed shaders/*.wgsl
var embedded embed.FS

// Provider returns compilable source for a logical shader name and a set
// of preprocessor definitions.
type Provider interface {
	Source(name string, defines []permutation.Define) (string, error)
}

// Library is the default Provider. Files named <name>.wgsl in the override
// directory take precedence over the embedded sources.
//
// Library is safe for concurrent use; it holds no mutable state.
type Library struct {
	dir string
}

// NewLibrary creates a library. An empty dir disables overrides. A
// leading "~" in dir is expanded to the user's home directory.
func NewLibrary(dir string) (*Library, error) {
	if dir == "" {
		return &Library{}, nil
	}
	d, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("shadersrc: expand %q: %w", dir, err)
	}
	return &Library{dir: d}, nil
}

// Dir returns the override directory, or "" when overrides are disabled.
func (l *Library) Dir() string { return l.dir }

// Raw returns the unprocessed source for name.
func (l *Library) Raw(name string) (string, error) {
	file := name + ".wgsl"
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, file))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("shadersrc: read override %s: %w", file, err)
		}
	}
	data, err := embedded.ReadFile(path.Join("shaders", file))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return string(data), nil
}

// Source returns the preprocessed source for name.
func (l *Library) Source(name string, defines []permutation.Define) (string, error) {
	raw, err := l.Raw(name)
	if err != nil {
		return "", err
	}
	out, err := Preprocess(raw, defines)
	if err != nil {
		return "", fmt.Errorf("shadersrc: %s: %w", name, err)
	}
	return out, nil
}

// Names lists the embedded shader names.
func Names() []string {
	entries, err := embedded.ReadDir("shaders")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".wgsl"))
	}
	sort.Strings(names)
	return names
}
