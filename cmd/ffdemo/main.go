// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command ffdemo renders a few frames of a lit, partly translucent scene
// through the fixed-function device on the noop backend and prints the
// device counters. It is a smoke test for shader generation, state caching
// and the OIT path without a window or GPU.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/fixedfunc"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		width      = flag.Uint("width", 640, "back buffer width")
		height     = flag.Uint("height", 480, "back buffer height")
		frames     = flag.Int("frames", 8, "frames to render")
		toggle     = flag.Int("toggle-oit", 3, "toggle OIT every n frames (0 keeps it fixed)")
		oit        = flag.Bool("oit", true, "start with OIT enabled")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	opts := []fixedfunc.DeviceOption{
		fixedfunc.WithSize(uint32(*width), uint32(*height)),
		fixedfunc.WithOIT(*oit),
	}
	level, logging := slog.LevelDebug, *verbose
	if *configPath != "" {
		cfg, err := fixedfunc.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, cfg.Options()...)
		if l, ok, _ := cfg.Level(); ok && !*verbose {
			level, logging = l, true
		}
	}
	if logging {
		fixedfunc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	device, queue, cleanup, err := openNoop()
	if err != nil {
		log.Fatalf("open backend: %v", err)
	}
	defer cleanup()

	dev, err := fixedfunc.New(device, queue, opts...)
	if err != nil {
		log.Fatalf("create device: %v", err)
	}
	defer dev.Close()

	s, err := newScene(dev, device, queue)
	if err != nil {
		log.Fatalf("scene: %v", err)
	}
	defer s.release()

	for i := range *frames {
		if *toggle > 0 && i > 0 && i%*toggle == 0 {
			dev.SetOIT(!dev.OIT())
		}
		if err := s.render(float32(i)); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		// Let the variants this frame queued land before the next one,
		// so later frames show uber hits turning into specialized hits.
		if err := dev.WaitCompiles(); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
	}

	st := dev.Stats()
	log.Printf("frames=%d draws=%d uber=%d oit=%d/%d passes=%d",
		st.Frames, st.Draws, st.UberDraws, st.OITDraws, st.OITFrames, st.Passes)
	log.Printf("shaders: specialized=%d uber=%d hits=%d uber-hits=%d sync=%d async=%d",
		st.Shaders.Specialized, st.Shaders.Uber, st.Shaders.Hits, st.Shaders.UberHits,
		st.Shaders.SyncCompiles, st.Shaders.AsyncCompiles)
	log.Printf("pipelines=%d (hits %d, misses %d) blend=%d depth=%d raster=%d samplers=%d texture-groups=%d",
		st.Pipelines, st.PipelineHits, st.PipelineMisses, st.BlendStates, st.DepthStates,
		st.RasterStates, st.Samplers, st.TextureGroups)
}

func openNoop() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, os.ErrNotExist
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, err
	}
	return open.Device, open.Queue, func() {
		open.Device.Destroy()
		instance.Destroy()
	}, nil
}

// vertex is FVFXYZ | FVFNormal | FVFDiffuse.
const vertexFVF = fixedfunc.FVFXYZ | fixedfunc.FVFNormal | fixedfunc.FVFDiffuse

type scene struct {
	dev    *fixedfunc.Device
	device hal.Device
	quad   hal.Buffer
}

func newScene(dev *fixedfunc.Device, device hal.Device, queue hal.Queue) (*scene, error) {
	// Two triangles facing -Z.
	pos := [][3]float32{{-1, -1, 0}, {-1, 1, 0}, {1, 1, 0}, {-1, -1, 0}, {1, 1, 0}, {1, -1, 0}}
	stride := vertexFVF.Stride()
	data := make([]byte, 0, int(stride)*len(pos))
	for _, p := range pos {
		for _, f := range []float32{p[0], p[1], p[2], 0, 0, -1} {
			data = binary.LittleEndian.AppendUint32(data, math32.Float32bits(f))
		}
		data = binary.LittleEndian.AppendUint32(data, 0xFFFFFFFF)
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ffdemo quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, err
	}
	return &scene{dev: dev, device: device, quad: buf}, nil
}

func (s *scene) release() { s.device.DestroyBuffer(s.quad) }

func (s *scene) render(t float32) error {
	d := s.dev
	w, h := d.Size()
	steps := []error{
		d.SetFVF(vertexFVF),
		d.SetStreamSource(s.quad, 0, 0),
		d.SetTransform(fixedfunc.TransformView, fixedfunc.LookAtLH(
			fixedfunc.Vector3{X: 0, Y: 2, Z: -8}, fixedfunc.Vector3{}, fixedfunc.Vector3{Y: 1})),
		d.SetTransform(fixedfunc.TransformProjection, fixedfunc.PerspectiveFovLH(
			math32.Pi/4, float32(w)/float32(h), 0.5, 100)),
		d.SetLight(0, fixedfunc.Light{
			Type:      fixedfunc.LightDirectional,
			Diffuse:   fixedfunc.ColorValue{R: 1, G: 0.9, B: 0.8, A: 1},
			Direction: fixedfunc.Vector3{X: 0.3, Y: -0.5, Z: 1},
		}),
		d.LightEnable(0, true),
		d.SetRenderState(fixedfunc.RSAmbient, fixedfunc.ARGB(0xFF, 0x30, 0x30, 0x30)),
		d.SetRenderState(fixedfunc.RSCullMode, fixedfunc.CullNone),
		d.Clear(fixedfunc.ClearTarget|fixedfunc.ClearZBuffer, fixedfunc.ARGB(0xFF, 0x10, 0x18, 0x20), 1, 0),
		d.BeginScene(),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}

	// Opaque floor.
	if err := s.draw(fixedfunc.RotationY(t*0.1).Mul(fixedfunc.Scaling(4, 4, 4)), false); err != nil {
		return err
	}
	// Three overlapping translucent quads, drawn back to front on even
	// frames and front to back on odd ones.
	for i := range 3 {
		z := float32(i) - 1
		if int(t)%2 == 1 {
			z = -z
		}
		m := fixedfunc.RotationY(t * 0.2).Mul(fixedfunc.Translation(float32(i)*0.4-0.4, 0.5, z))
		if err := s.draw(m, true); err != nil {
			return err
		}
	}
	if err := d.EndScene(); err != nil {
		return err
	}
	return d.Present()
}

func (s *scene) draw(world fixedfunc.Matrix, translucent bool) error {
	d := s.dev
	blend := uint32(0)
	if translucent {
		blend = 1
	}
	steps := []error{
		d.SetTransform(fixedfunc.TransformWorld, world),
		d.SetRenderState(fixedfunc.RSAlphaBlendEnable, blend),
		d.SetRenderState(fixedfunc.RSSrcBlend, fixedfunc.BlendSrcAlpha),
		d.SetRenderState(fixedfunc.RSDestBlend, fixedfunc.BlendInvSrcAlpha),
		d.SetRenderState(fixedfunc.RSTextureFactor, fixedfunc.ARGB(0x80, 0xFF, 0xFF, 0xFF)),
		d.SetTextureStageState(0, fixedfunc.TSSAlphaArg1, fixedfunc.TATFactor),
		d.DrawPrimitive(fixedfunc.TriangleList, 0, 2),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	return nil
}
