// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
width = 1280
height = 720
oit = true
max_fragments_per_pixel = 12
compile_workers = 3
permutation_file = "keys.bin"
shader_dir = "shaders"
watch_shaders = true
uber_fallback = false
log_level = "Debug"
`

func TestReadConfig(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("ReadConfig() = %v", err)
	}
	if c.Width != 1280 || c.Height != 720 {
		t.Errorf("size = %dx%d", c.Width, c.Height)
	}
	if !c.OIT || c.MaxFragmentsPerPixel != 12 || c.CompileWorkers != 3 {
		t.Errorf("OIT=%v max=%d workers=%d", c.OIT, c.MaxFragmentsPerPixel, c.CompileWorkers)
	}
	if c.UberFallback == nil || *c.UberFallback {
		t.Errorf("UberFallback = %v, want explicit false", c.UberFallback)
	}
	level, ok, err := c.Level()
	if err != nil || !ok || level != slog.LevelDebug {
		t.Errorf("Level() = %v, %v, %v", level, ok, err)
	}

	o := defaultOptions()
	for _, opt := range c.Options() {
		opt(&o)
	}
	if o.width != 1280 || !o.oit || o.maxFragments != 12 || o.workers != 3 {
		t.Errorf("options not applied: %+v", o)
	}
	if o.permutationFile != "keys.bin" || o.shaderDir != "shaders" || !o.watchShaders || o.uberFallback {
		t.Errorf("options not applied: %+v", o)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadConfig() = %v", err)
	}
	o := defaultOptions()
	for _, opt := range c.Options() {
		opt(&o)
	}
	def := defaultOptions()
	if o.width != def.width || o.height != def.height || o.oit || o.maxFragments != 0 || !o.uberFallback {
		t.Errorf("empty config changed options: %+v", o)
	}
	if o.permutationFile != "" || o.shaderDir != "" {
		t.Errorf("empty config set paths: %+v", o)
	}
	if _, ok, _ := c.Level(); ok {
		t.Error("empty log level should disable logging")
	}
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "colour = 3\n"},
		{"wrong type", "width = \"wide\"\n"},
		{"bad level", "log_level = \"chatty\"\n"},
		{"syntax", "width = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadConfig(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := ReadConfig(strings.NewReader("log_level = \"chatty\"\n"))
	if !errors.Is(err, ErrInvalidCall) {
		t.Errorf("bad level error = %v, want ErrInvalidCall", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ff.toml")
	if err := os.WriteFile(path, []byte("width = 800\nheight = 600\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() = %v", err)
	}
	if c.Width != 800 || c.Height != 600 {
		t.Errorf("size = %dx%d", c.Width, c.Height)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}
