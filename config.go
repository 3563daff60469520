// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// Config is the file form of the device options.
//
// Example file:
//
//	width = 1280
//	height = 720
//	oit = true
//	max_fragments_per_pixel = 8
//	permutation_file = "~/.cache/fixedfunc/keys.bin"
//	shader_dir = "~/src/shaders"
//	watch_shaders = true
//	log_level = "debug"
type Config struct {
	Width                uint32 `toml:"width"`
	Height               uint32 `toml:"height"`
	OIT                  bool   `toml:"oit"`
	MaxFragmentsPerPixel uint32 `toml:"max_fragments_per_pixel"`
	CompileWorkers       int    `toml:"compile_workers"`
	PermutationFile      string `toml:"permutation_file"`
	ShaderDir            string `toml:"shader_dir"`
	WatchShaders         bool   `toml:"watch_shaders"`

	// UberFallback is a pointer so an absent key keeps the default (on).
	UberFallback *bool `toml:"uber_fallback"`

	// LogLevel is one of "debug", "info", "warn", "error" or empty for no
	// logging.
	LogLevel string `toml:"log_level"`
}

// LoadConfig reads a TOML config file. A leading "~" in path is expanded
// to the user's home directory. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("fixedfunc: expand %q: %w", path, err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("fixedfunc: open config: %w", err)
	}
	defer f.Close()
	return ReadConfig(f)
}

// ReadConfig decodes a TOML config from r.
func ReadConfig(r io.Reader) (*Config, error) {
	var c Config
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("fixedfunc: config %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("fixedfunc: config: %w", err)
	}
	if _, _, err := c.Level(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Level parses LogLevel. ok is false when logging is off.
func (c *Config) Level() (level slog.Level, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "":
		return 0, false, nil
	case "debug":
		return slog.LevelDebug, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "warn", "warning":
		return slog.LevelWarn, true, nil
	case "error":
		return slog.LevelError, true, nil
	default:
		return 0, false, fmt.Errorf("%w: log level %q", ErrInvalidCall, c.LogLevel)
	}
}

// Options converts the config to device options. Zero values keep the
// defaults.
func (c *Config) Options() []DeviceOption {
	opts := []DeviceOption{
		WithSize(c.Width, c.Height),
		WithOIT(c.OIT),
		WithMaxFragments(c.MaxFragmentsPerPixel),
		WithCompileWorkers(c.CompileWorkers),
	}
	if c.PermutationFile != "" {
		opts = append(opts, WithPermutationFile(c.PermutationFile))
	}
	if c.ShaderDir != "" {
		opts = append(opts, WithShaderDir(c.ShaderDir, c.WatchShaders))
	}
	if c.UberFallback != nil {
		opts = append(opts, WithUberFallback(*c.UberFallback))
	}
	return opts
}
