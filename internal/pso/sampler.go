// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pso

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SamplerSettings describes one texture stage's sampler.
type SamplerSettings struct {
	AddressU      gputypes.AddressMode
	AddressV      gputypes.AddressMode
	AddressW      gputypes.AddressMode
	MagFilter     gputypes.FilterMode
	MinFilter     gputypes.FilterMode
	MipFilter     gputypes.FilterMode
	MaxAnisotropy uint16
	LodMin        float32
	LodMax        float32
}

// DefaultSamplerSettings matches the legacy sampler defaults: wrap
// addressing, point filtering, no mip filtering.
func DefaultSamplerSettings() SamplerSettings {
	return SamplerSettings{
		AddressU:      gputypes.AddressModeRepeat,
		AddressV:      gputypes.AddressModeRepeat,
		AddressW:      gputypes.AddressModeRepeat,
		MagFilter:     gputypes.FilterModeNearest,
		MinFilter:     gputypes.FilterModeNearest,
		MipFilter:     gputypes.FilterModeNearest,
		MaxAnisotropy: 1,
		LodMin:        0,
		LodMax:        32,
	}
}

// Canonical returns s with its float fields canonicalized.
func (s SamplerSettings) Canonical() SamplerSettings {
	s.LodMin = CanonicalFloat(s.LodMin)
	s.LodMax = CanonicalFloat(s.LodMax)
	return s
}

// NewSamplerCache creates a sampler cache backed by device.
func NewSamplerCache(device hal.Device) (*StateCache[SamplerSettings, hal.Sampler], error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	create := func(s SamplerSettings) (hal.Sampler, error) {
		aniso := s.MaxAnisotropy
		if aniso < 1 {
			aniso = 1
		}
		// Anisotropy requires linear filtering everywhere.
		if s.MagFilter != gputypes.FilterModeLinear || s.MinFilter != gputypes.FilterModeLinear || s.MipFilter != gputypes.FilterModeLinear {
			aniso = 1
		}
		smp, err := device.CreateSampler(&hal.SamplerDescriptor{
			Label:        "fixedfunc sampler",
			AddressModeU: s.AddressU,
			AddressModeV: s.AddressV,
			AddressModeW: s.AddressW,
			MagFilter:    s.MagFilter,
			MinFilter:    s.MinFilter,
			MipmapFilter: s.MipFilter,
			LodMinClamp:  s.LodMin,
			LodMaxClamp:  s.LodMax,
			Anisotropy:   aniso,
		})
		if err != nil {
			return nil, fmt.Errorf("pso: create sampler: %w", err)
		}
		return smp, nil
	}
	return NewStateCache(create, device.DestroySampler), nil
}
