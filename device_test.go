// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fixedfunc/internal/haltest"
	"github.com/gogpu/fixedfunc/internal/shadersrc"
)

// newTestDevice opens a device on the noop backend with shader
// compilation stubbed out.
func newTestDevice(t *testing.T, opts ...DeviceOption) (*Device, *haltest.Device) {
	t.Helper()
	dev, queue := haltest.Open(t)
	rec := haltest.NewDevice(dev)
	opts = append([]DeviceOption{
		WithSize(64, 48),
		WithCompileWorkers(2),
		WithModuleBuilder(haltest.FakeModule),
	}, opts...)
	d, err := New(rec, queue, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
	return d, rec
}

// bindTriangles sets a position+diffuse format and a vertex buffer.
func bindTriangles(t *testing.T, d *Device, rec *haltest.Device) {
	t.Helper()
	vb, err := rec.CreateBuffer(&hal.BufferDescriptor{
		Label: "test vertices",
		Size:  4096,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.DestroyBuffer(vb) })
	if err := d.SetFVF(FVFXYZ | FVFDiffuse); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStreamSource(vb, 0, 0); err != nil {
		t.Fatal(err)
	}
}

func mustDo(t *testing.T, errs ...error) {
	t.Helper()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
}

func lastEncoder(t *testing.T, rec *haltest.Device) *haltest.Encoder {
	t.Helper()
	encs := rec.Encoders()
	if len(encs) == 0 {
		t.Fatal("no command encoders recorded")
	}
	return encs[len(encs)-1]
}

func TestNew_NilDevice(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil) = %v, want ErrNilDevice", err)
	}
}

type bareProvider struct {
	gpucontext.DeviceProvider
}

type halDeviceProvider struct {
	gpucontext.DeviceProvider
	dev   hal.Device
	queue hal.Queue
}

func (p *halDeviceProvider) HalDevice() any { return p.dev }
func (p *halDeviceProvider) HalQueue() any  { return p.queue }
func (p *halDeviceProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

func TestNewFromProvider(t *testing.T) {
	if _, err := NewFromProvider(bareProvider{}); !errors.Is(err, ErrNoHAL) {
		t.Errorf("NewFromProvider(no hal) = %v, want ErrNoHAL", err)
	}

	dev, queue := haltest.Open(t)
	d, err := NewFromProvider(&halDeviceProvider{dev: dev, queue: queue}, WithModuleBuilder(haltest.FakeModule))
	if err != nil {
		t.Fatalf("NewFromProvider failed: %v", err)
	}
	defer d.Close()
	if d.opts.colorFormat != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("color format = %v, want surface format", d.opts.colorFormat)
	}
}

func TestDevice_Close(t *testing.T) {
	dev, queue := haltest.Open(t)
	d, err := New(dev, queue, WithModuleBuilder(haltest.FakeModule))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := d.SetRenderState(RSZEnable, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("SetRenderState after Close = %v, want ErrClosed", err)
	}
	if err := d.BeginScene(); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginScene after Close = %v, want ErrClosed", err)
	}
	if err := d.WaitCompiles(); !errors.Is(err, ErrClosed) {
		t.Errorf("WaitCompiles after Close = %v, want ErrClosed", err)
	}
}

func TestDevice_SceneErrors(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	if err := d.DrawPrimitive(TriangleList, 0, 1); !errors.Is(err, ErrNotInScene) {
		t.Errorf("draw outside scene = %v, want ErrNotInScene", err)
	}
	if err := d.EndScene(); !errors.Is(err, ErrNotInScene) {
		t.Errorf("EndScene without BeginScene = %v, want ErrNotInScene", err)
	}
	mustDo(t, d.BeginScene())
	if err := d.BeginScene(); !errors.Is(err, ErrInScene) {
		t.Errorf("nested BeginScene = %v, want ErrInScene", err)
	}
	if err := d.Present(); !errors.Is(err, ErrInScene) {
		t.Errorf("Present in scene = %v, want ErrInScene", err)
	}
	if err := d.Reset(32, 32); !errors.Is(err, ErrInScene) {
		t.Errorf("Reset in scene = %v, want ErrInScene", err)
	}
	mustDo(t, d.EndScene(), d.Present())
}

func TestDevice_DrawValidation(t *testing.T) {
	d, rec := newTestDevice(t)
	mustDo(t, d.BeginScene())
	defer func() { mustDo(t, d.EndScene(), d.Present()) }()

	if err := d.DrawPrimitive(TriangleList, 0, 1); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("draw without FVF = %v, want ErrInvalidCall", err)
	}
	mustDo(t, d.SetFVF(FVFXYZ))
	if err := d.DrawPrimitive(TriangleList, 0, 1); !errors.Is(err, ErrNoStream) {
		t.Errorf("draw without stream = %v, want ErrNoStream", err)
	}
	bindTriangles(t, d, rec)
	if err := d.DrawIndexedPrimitive(TriangleList, 0, 0, 3, 0, 1); !errors.Is(err, ErrNoStream) {
		t.Errorf("indexed draw without indices = %v, want ErrNoStream", err)
	}
	if err := d.DrawIndexedPrimitive(TriangleList, 0, 0, 0, 0, 1); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("indexed draw with empty range = %v, want ErrInvalidCall", err)
	}
	if err := d.DrawPrimitive(TriangleFan, 0, 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("triangle fan = %v, want ErrUnsupported", err)
	}
	if err := d.DrawPrimitive(PrimitiveType(9), 0, 1); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("unknown primitive = %v, want ErrInvalidCall", err)
	}
	if err := d.DrawPrimitive(TriangleList, 0, 0); err != nil {
		t.Errorf("empty draw = %v, want nil", err)
	}
	if got := d.Stats().Draws; got != 0 {
		t.Errorf("Draws = %d after rejected draws, want 0", got)
	}
}

func TestDevice_RedundantStateNotRebound(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.SetRenderState(RSZEnable, 1),
		d.SetRenderState(RSCullMode, CullCCW),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())

	enc := lastEncoder(t, rec)
	if len(enc.Passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(enc.Passes))
	}
	p := enc.Passes[0]
	if p.Draws != 2 {
		t.Errorf("draws = %d, want 2", p.Draws)
	}
	if p.Pipelines != 1 {
		t.Errorf("pipelines set = %d, want 1", p.Pipelines)
	}
	uniforms := 0
	for _, g := range p.Groups {
		if g == "fixedfunc uniforms" {
			uniforms++
		}
	}
	if uniforms != 1 {
		t.Errorf("uniform group bound %d times, want 1", uniforms)
	}
	if got := rec.Created("pipeline"); got != 1 {
		t.Errorf("pipelines created = %d, want 1", got)
	}
}

func TestDevice_RedundantDrawsSkipStateLookups(t *testing.T) {
	d, rec := newTestDevice(t, WithOIT(false))
	bindTriangles(t, d, rec)

	lookups := func() [3]uint64 {
		bh, bm := d.blends.Stats()
		zh, zm := d.depths.Stats()
		rh, rm := d.rasters.Stats()
		return [3]uint64{bh + bm, zh + zm, rh + rm}
	}

	mustDo(t, d.BeginScene(), d.DrawPrimitive(TriangleList, 0, 1))
	first := lookups()
	if first != [3]uint64{1, 1, 1} {
		t.Fatalf("first draw lookups = %v, want [1 1 1]", first)
	}
	for range 10 {
		mustDo(t, d.DrawPrimitive(TriangleList, 0, 1))
	}
	if got := lookups(); got != first {
		t.Errorf("redundant draws: lookups = %v, want %v", got, first)
	}

	mustDo(t,
		d.SetRenderState(RSAlphaBlendEnable, 1),
		d.DrawPrimitive(TriangleList, 0, 1))
	if got, want := lookups(), [3]uint64{2, 1, 1}; got != want {
		t.Errorf("after blend change: lookups = %v, want %v", got, want)
	}

	mustDo(t, d.ReloadShaders(), d.DrawPrimitive(TriangleList, 0, 1))
	if got, want := lookups(), [3]uint64{3, 2, 2}; got != want {
		t.Errorf("after reload: lookups = %v, want %v", got, want)
	}
	mustDo(t, d.EndScene(), d.Present())
}

func TestDevice_EquivalentBlendStatesShareObjects(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(),
		d.SetRenderState(RSAlphaBlendEnable, 1),
		d.SetRenderState(RSSrcBlend, BlendSrcAlpha),
		d.SetRenderState(RSDestBlend, BlendInvSrcAlpha),
		d.DrawPrimitive(TriangleList, 0, 1))
	blends := d.Stats().BlendStates

	// BOTHSRCALPHA implies the same destination factor.
	mustDo(t, d.SetRenderState(RSSrcBlend, BlendBothSrcAlpha),
		d.SetRenderState(RSDestBlend, BlendOne),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())

	if got := d.Stats().BlendStates; got != blends {
		t.Errorf("blend states = %d, want %d", got, blends)
	}
	if got := rec.Created("pipeline"); got != 1 {
		t.Errorf("pipelines created = %d, want 1", got)
	}
}

func TestDevice_StateChangeCreatesPipeline(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.SetRenderState(RSZFunc, CmpLess),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.SetRenderState(RSZFunc, CmpLessEqual),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())

	if got := rec.Created("pipeline"); got != 2 {
		t.Errorf("pipelines created = %d, want 2", got)
	}
	p := lastEncoder(t, rec).Passes[0]
	if p.Pipelines != 3 {
		t.Errorf("pipelines set = %d, want 3", p.Pipelines)
	}
	s := d.Stats()
	if s.PipelineHits != 1 || s.PipelineMisses != 2 {
		t.Errorf("pipeline hits/misses = %d/%d, want 1/2", s.PipelineHits, s.PipelineMisses)
	}
	if s.Shaders.Workers != 2 {
		t.Errorf("compile workers = %d, want 2", s.Shaders.Workers)
	}
}

func TestDevice_StencilRefPerPass(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.SetRenderState(RSStencilRef, 0x105),
		d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(),
		d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())

	enc := lastEncoder(t, rec)
	if len(enc.Passes) != 2 {
		t.Fatalf("passes = %d, want 2", len(enc.Passes))
	}
	for i, p := range enc.Passes {
		if len(p.StencilRef) != 1 || p.StencilRef[0] != 5 {
			t.Errorf("pass %d stencil refs = %v, want [5]", i, p.StencilRef)
		}
	}
}

func TestDevice_ClearFoldsIntoLoadOps(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.Clear(ClearTarget|ClearZBuffer, 0xFF0000FF, 0.5, 0),
		d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())

	enc := lastEncoder(t, rec)
	if len(enc.Passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(enc.Passes))
	}
	p := enc.Passes[0]
	c := p.Colors[0]
	if c.LoadOp != gputypes.LoadOpClear {
		t.Errorf("color load = %v, want clear", c.LoadOp)
	}
	if c.Clear.B != 1 || c.Clear.R != 0 || c.Clear.A != 1 {
		t.Errorf("clear color = %+v, want opaque blue", c.Clear)
	}
	if p.Depth.DepthLoadOp != gputypes.LoadOpClear || p.Depth.DepthClear != 0.5 {
		t.Errorf("depth load = %v/%v, want clear/0.5", p.Depth.DepthLoadOp, p.Depth.DepthClear)
	}
	if p.Depth.StencilLoadOp != gputypes.LoadOpLoad {
		t.Errorf("stencil load = %v, want load", p.Depth.StencilLoadOp)
	}

	// A clear with no draws still reaches the target.
	mustDo(t, d.Clear(ClearStencil, 0, 0, 0x1FF), d.Present())
	p = lastEncoder(t, rec).Passes[0]
	if p.Depth.StencilLoadOp != gputypes.LoadOpClear || p.Depth.StencilClear != 0xFF {
		t.Errorf("stencil load = %v/%#x, want clear/0xff", p.Depth.StencilLoadOp, p.Depth.StencilClear)
	}
	if p.Colors[0].LoadOp != gputypes.LoadOpLoad {
		t.Errorf("color load = %v, want load", p.Colors[0].LoadOp)
	}
}

func TestDevice_ClearValidation(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name  string
		flags uint32
		z     float32
	}{
		{"no flags", 0, 1},
		{"unknown flag", 8, 1},
		{"depth below range", ClearZBuffer, -0.1},
		{"depth above range", ClearZBuffer, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Clear(tt.flags, 0, tt.z, 0); !errors.Is(err, ErrInvalidCall) {
				t.Errorf("Clear = %v, want ErrInvalidCall", err)
			}
		})
	}
}

func TestDevice_Reset(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.SetRenderState(RSZEnable, 0),
		d.SetTransform(TransformWorld, Translation(1, 2, 3)),
		d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene())
	if err := d.Reset(0, 10); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("Reset(0, 10) = %v, want ErrInvalidCall", err)
	}
	mustDo(t, d.Reset(32, 16))

	if v, _ := d.RenderStateValue(RSZEnable); v != 1 {
		t.Errorf("RSZEnable = %d after Reset, want 1", v)
	}
	if m, _ := d.Transform(TransformWorld); !m.IsIdentity() {
		t.Errorf("world = %v after Reset, want identity", m)
	}
	if w, h := d.Size(); w != 32 || h != 16 {
		t.Errorf("Size() = %dx%d, want 32x16", w, h)
	}
	if vp := d.Viewport(); vp.Width != 32 || vp.Height != 16 || vp.MaxZ != 1 {
		t.Errorf("Viewport() = %+v", vp)
	}
	mustDo(t, d.BeginScene())
	if err := d.DrawPrimitive(TriangleList, 0, 1); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("draw after Reset = %v, want ErrInvalidCall (no FVF)", err)
	}
	mustDo(t, d.EndScene(), d.Present())
}

func TestDevice_UberFallback(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(), d.DrawPrimitive(TriangleList, 0, 1), d.WaitCompiles())
	if s := d.Stats().Shaders; s.Uber != 2 || s.AsyncCompiles != 2 || s.Pending != 0 {
		t.Fatalf("after first draw: uber %d async %d pending %d, want 2 2 0", s.Uber, s.AsyncCompiles, s.Pending)
	}

	// Fog only changes the pixel permutation; its specialized variant is
	// missing so the uber pixel shader serves the draw.
	mustDo(t, d.SetRenderState(RSFogEnable, 1),
		d.SetRenderState(RSFogTableMode, FogLinear),
		d.DrawPrimitive(TriangleList, 0, 1))
	if got := d.Stats().UberDraws; got != 1 {
		t.Fatalf("UberDraws = %d, want 1", got)
	}
	mustDo(t, d.WaitCompiles())

	mustDo(t, d.DrawPrimitive(TriangleList, 0, 1), d.EndScene(), d.Present())
	s := d.Stats()
	if s.Shaders.AsyncCompiles != 3 {
		t.Errorf("AsyncCompiles = %d, want 3", s.Shaders.AsyncCompiles)
	}
	if s.UberDraws != 1 {
		t.Errorf("UberDraws = %d after background compile, want 1", s.UberDraws)
	}
	if s.Shaders.UberHits != 1 {
		t.Errorf("shader UberHits = %d, want 1", s.Shaders.UberHits)
	}
	if s.Draws != 3 {
		t.Errorf("Draws = %d, want 3", s.Draws)
	}
}

func TestDevice_UberFallbackDisabled(t *testing.T) {
	d, rec := newTestDevice(t, WithUberFallback(false))
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.SetRenderState(RSFogEnable, 1),
		d.SetRenderState(RSFogTableMode, FogExp),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())

	s := d.Stats()
	if s.UberDraws != 0 || s.Shaders.Uber != 0 {
		t.Errorf("UberDraws = %d, Uber = %d, want 0, 0", s.UberDraws, s.Shaders.Uber)
	}
	if s.Shaders.SyncCompiles != 3 {
		t.Errorf("SyncCompiles = %d, want 3", s.Shaders.SyncCompiles)
	}
}

// failingBuilder fails every pixel shader compile until fails reaches
// zero.
func failingBuilder(fails int32) ModuleBuilder {
	var left atomic.Int32
	left.Store(fails)
	return func(dev hal.Device, label, src string) (hal.ShaderModule, []byte, error) {
		if strings.HasPrefix(label, shadersrc.FixedPixel) && left.Add(-1) >= 0 {
			return nil, nil, errors.New("syntax error")
		}
		return haltest.FakeModule(dev, label, src)
	}
}

func TestDevice_CompileErrorRetry(t *testing.T) {
	var attempts []int
	d, rec := newTestDevice(t,
		WithModuleBuilder(failingBuilder(1)),
		WithCompileErrorHandler(func(err *CompileError, attempt int) CompileAction {
			attempts = append(attempts, attempt)
			return Retry
		}))
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(), d.DrawPrimitive(TriangleList, 0, 1), d.EndScene(), d.Present())
	if len(attempts) != 1 || attempts[0] != 1 {
		t.Errorf("handler attempts = %v, want [1]", attempts)
	}
	if got := d.Stats().Retries; got != 1 {
		t.Errorf("Retries = %d, want 1", got)
	}
	if got := d.Stats().Draws; got != 1 {
		t.Errorf("Draws = %d, want 1", got)
	}
}

func TestDevice_CompileErrorAbandon(t *testing.T) {
	calls := 0
	d, rec := newTestDevice(t,
		WithModuleBuilder(failingBuilder(100)),
		WithCompileErrorHandler(func(err *CompileError, attempt int) CompileAction {
			calls++
			return Abandon
		}))
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene())
	err := d.DrawPrimitive(TriangleList, 0, 1)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("draw = %v, want *CompileError", err)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	mustDo(t, d.EndScene(), d.Present())
	if got := d.Stats().Draws; got != 0 {
		t.Errorf("Draws = %d, want 0", got)
	}
}

func TestDevice_CompileErrorRetryLimit(t *testing.T) {
	calls := 0
	d, rec := newTestDevice(t,
		WithModuleBuilder(failingBuilder(100)),
		WithCompileErrorHandler(func(err *CompileError, attempt int) CompileAction {
			calls++
			return Retry
		}))
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene())
	var ce *CompileError
	if err := d.DrawPrimitive(TriangleList, 0, 1); !errors.As(err, &ce) {
		t.Fatalf("draw = %v, want *CompileError", err)
	}
	if calls != maxCompileAttempts-1 {
		t.Errorf("handler calls = %d, want %d", calls, maxCompileAttempts-1)
	}
	mustDo(t, d.EndScene(), d.Present())
}

func TestDevice_PermutationFilePrewarm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms.bin")

	d, rec := newTestDevice(t, WithPermutationFile(path))
	bindTriangles(t, d, rec)
	mustDo(t, d.BeginScene(),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.DrawPrimitive(TriangleList, 0, 1),
		d.EndScene(), d.Present())
	if got := d.Stats().KnownPermutations; got != 1 {
		t.Fatalf("KnownPermutations = %d, want 1", got)
	}
	mustDo(t, d.Close())

	d2, _ := newTestDevice(t, WithPermutationFile(path))
	s := d2.Stats()
	if s.KnownPermutations != 1 {
		t.Errorf("KnownPermutations = %d after reopen, want 1", s.KnownPermutations)
	}
	if s.Shaders.Specialized != 2 {
		t.Errorf("Specialized = %d after prewarm, want 2", s.Shaders.Specialized)
	}
}

func TestDevice_ReloadShaders(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	mustDo(t, d.BeginScene(), d.DrawPrimitive(TriangleList, 0, 1))
	mustDo(t, d.ReloadShaders())
	if got := d.Stats().Pipelines; got != 0 {
		t.Errorf("Pipelines = %d after reload, want 0", got)
	}
	mustDo(t, d.DrawPrimitive(TriangleList, 0, 1), d.EndScene(), d.Present())
	if got := rec.Created("pipeline"); got != 2 {
		t.Errorf("pipelines created = %d, want 2", got)
	}
}

func TestDevice_TextureGroupsCached(t *testing.T) {
	d, rec := newTestDevice(t)
	bindTriangles(t, d, rec)

	frame := func() {
		mustDo(t, d.BeginScene(), d.DrawPrimitive(TriangleList, 0, 1), d.EndScene(), d.Present())
	}
	frame()
	frame()
	if got := d.Stats().TextureGroups; got != 1 {
		t.Errorf("TextureGroups = %d, want 1", got)
	}

	mustDo(t, d.SetSamplerState(0, SampMinFilter, TexFilterLinear))
	frame()
	if got := d.Stats().TextureGroups; got != 2 {
		t.Errorf("TextureGroups = %d after sampler change, want 2", got)
	}
	if got := d.Stats().Samplers; got != 2 {
		t.Errorf("Samplers = %d, want 2", got)
	}
}
