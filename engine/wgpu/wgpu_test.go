//go:build !nogpu

package wgpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/engine/software"
)

type mockDevice struct{}

func (m *mockDevice) Poll(bool) {}

func (m *mockDevice) Destroy() {}

type mockQueue struct{}

type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL accessors.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device {
	return &mockDevice{}
}

func (m *mockProvider) Queue() gpucontext.Queue {
	return &mockQueue{}
}

func (m *mockProvider) Adapter() gpucontext.Adapter {
	return &mockAdapter{}
}

func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

func TestNewSharedDevice_RequiresHAL(t *testing.T) {
	_, err := New().NewSharedDevice(&mockProvider{})
	if !errors.Is(err, engine.ErrInvalidParam) {
		t.Errorf("NewSharedDevice = %v, want ErrInvalidParam", err)
	}
}

func TestEngine_Registered(t *testing.T) {
	if e := engine.Get(engine.NameWGPU); e == nil || e.Name() != engine.NameWGPU {
		t.Fatalf("engine.Get(%q) = %v", engine.NameWGPU, e)
	}
}

// pattern returns an RGBA frame of a diagonal texture shifted right by shift.
func pattern(w, h, shift int) []byte {
	px := make([]byte, w*h*4)
	for y := range h {
		for x := range w {
			sx := x - shift
			v := byte((sx*sx*13 + y*y*7 + sx*y*3) >> 2)
			o := (y*w + x) * 4
			px[o], px[o+1], px[o+2], px[o+3] = v, byte(sx*5), byte(y*11), 255
		}
	}
	return px
}

// records runs one estimation on e and returns the raw record bytes.
func records(t *testing.T, e engine.Engine, ref, in []byte, w, h int) []byte {
	t.Helper()
	dev, err := e.OpenDevice(0)
	if err != nil {
		t.Skipf("%s device not available: %v", e.Name(), err)
	}
	release := func(name string, fn func() error) {
		t.Cleanup(func() {
			if err := fn(); err != nil {
				t.Errorf("%s: %v", name, err)
			}
		})
	}
	release("Close", dev.Close)
	sess, err := dev.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	release("Destroy", sess.Destroy)
	err = sess.Initialize(engine.InitializeParams{
		Codec: engine.CodecH264, Preset: engine.PresetP5,
		Width: w, Height: h, MaxWidth: w, MaxHeight: h,
		FrameRateNum: 30, FrameRateDen: 1, EnableMEOnlyMode: true,
	})
	if err != nil {
		t.Skipf("Initialize: %v", err)
	}

	var mapped []engine.MappedResource
	for _, px := range [][]byte{ref, in} {
		s, err := dev.AllocPitch(w*4, h, 16)
		if err != nil {
			t.Fatalf("AllocPitch: %v", err)
		}
		release("Free", func() error { return dev.Free(s) })
		reg, err := sess.RegisterResource(engine.RegisterParams{
			Surface: s, Width: w, Height: h, Pitch: s.Pitch(),
			Format: engine.BufferFormatABGR, Usage: engine.UsageInputImage,
		})
		if err != nil {
			t.Fatalf("RegisterResource: %v", err)
		}
		release("UnregisterResource", func() error { return sess.UnregisterResource(reg) })
		if err := dev.CopyToSurface(s, px, w*4, w*4, h); err != nil {
			t.Fatalf("CopyToSurface: %v", err)
		}
		m, err := sess.MapInputResource(reg)
		if err != nil {
			t.Fatalf("MapInputResource: %v", err)
		}
		release("UnmapInputResource", func() error { return sess.UnmapInputResource(m) })
		mapped = append(mapped, m)
	}
	buf, err := sess.CreateMVBuffer()
	if err != nil {
		t.Fatalf("CreateMVBuffer: %v", err)
	}
	release("DestroyMVBuffer", func() error { return sess.DestroyMVBuffer(buf) })
	err = sess.RunMotionEstimationOnly(engine.MEOnlyParams{
		Input: mapped[1], Reference: mapped[0], InputWidth: w, InputHeight: h, MVBuffer: buf,
	})
	if err != nil {
		t.Fatalf("RunMotionEstimationOnly: %v", err)
	}
	locked, err := sess.LockBitstream(buf, engine.LockParams{})
	if err != nil {
		t.Fatalf("LockBitstream: %v", err)
	}
	out := bytes.Clone(locked.Data)
	if err := sess.UnlockBitstream(buf); err != nil {
		t.Errorf("UnlockBitstream: %v", err)
	}
	return out
}

func TestEngine_MatchesSoftware(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	w, h := 48, 32
	ref, in := pattern(w, h, 0), pattern(w, h, 2)

	gpu := New()
	gpu.SearchRange = 4
	got := records(t, gpu, ref, in, w, h)

	cpu := software.New()
	cpu.SearchRange = 4
	want := records(t, cpu, ref, in, w, h)

	if !bytes.Equal(got, want) {
		t.Errorf("GPU records differ from software records:\n got %x\nwant %x", got, want)
	}
}
