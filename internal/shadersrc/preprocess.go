// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadersrc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/fixedfunc/internal/permutation"
)

// Preprocessor errors.
var (
	// ErrUnbalanced is returned for #else/#endif without #ifdef, or an
	// unterminated conditional block.
	ErrUnbalanced = errors.New("shadersrc: unbalanced conditional")

	// ErrDirective is returned for an unknown or malformed directive.
	ErrDirective = errors.New("shadersrc: bad directive")
)

// frame is one level of conditional nesting.
type frame struct {
	parent bool // enclosing block is emitting
	taken  bool // condition of this block
	inElse bool
}

func (f frame) active() bool {
	if f.inElse {
		return f.parent && !f.taken
	}
	return f.parent && f.taken
}

// Preprocess resolves #define, #ifdef, #ifndef, #else and #endif lines in
// src. Definitions with a value are also emitted as WGSL u32 constants at
// the top of the output, so shaders can use them in expressions and array
// sizes.
func Preprocess(src string, defines []permutation.Define) (string, error) {
	defined := make(map[string]bool, len(defines))
	var b strings.Builder
	for _, d := range defines {
		defined[d.Name] = true
		if d.Value != "" {
			fmt.Fprintf(&b, "const %s: u32 = %su;\n", d.Name, d.Value)
		}
	}

	var stack []frame
	emitting := true

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if emitting {
				b.WriteString(line)
				if i < len(lines)-1 {
					b.WriteByte('\n')
				}
			}
			continue
		}

		fields := strings.Fields(trimmed[1:])
		if len(fields) == 0 {
			return "", fmt.Errorf("line %d: %w: empty directive", i+1, ErrDirective)
		}
		switch fields[0] {
		case "define":
			if len(fields) < 2 {
				return "", fmt.Errorf("line %d: %w: #define needs a name", i+1, ErrDirective)
			}
			if emitting {
				defined[fields[1]] = true
			}
		case "ifdef", "ifndef":
			if len(fields) != 2 {
				return "", fmt.Errorf("line %d: %w: #%s needs one name", i+1, ErrDirective, fields[0])
			}
			taken := defined[fields[1]]
			if fields[0] == "ifndef" {
				taken = !taken
			}
			f := frame{parent: emitting, taken: taken}
			stack = append(stack, f)
			emitting = f.active()
		case "else":
			if len(stack) == 0 || stack[len(stack)-1].inElse {
				return "", fmt.Errorf("line %d: %w: stray #else", i+1, ErrUnbalanced)
			}
			stack[len(stack)-1].inElse = true
			emitting = stack[len(stack)-1].active()
		case "endif":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: %w: stray #endif", i+1, ErrUnbalanced)
			}
			emitting = stack[len(stack)-1].parent
			stack = stack[:len(stack)-1]
		default:
			return "", fmt.Errorf("line %d: %w: #%s", i+1, ErrDirective, fields[0])
		}
	}
	if len(stack) != 0 {
		return "", fmt.Errorf("%w: %d open block(s)", ErrUnbalanced, len(stack))
	}
	return b.String(), nil
}
