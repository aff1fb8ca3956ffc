package software

import (
	"errors"
	"testing"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/vector"
)

// texture returns a deterministic high-contrast RGBA frame.
func texture(w, h int, shift int) []byte {
	px := make([]byte, w*h*4)
	for y := range h {
		for x := range w {
			sx := x - shift
			v := byte((uint32(sx*7919+y*104729+sx*y*31) >> 3) * 2654435761 >> 24)
			o := (y*w + x) * 4
			px[o], px[o+1], px[o+2], px[o+3] = v, v, v, 255
		}
	}
	return px
}

type run struct {
	t    *testing.T
	dev  engine.Device
	sess engine.Session
	surf []engine.Surface
	reg  []engine.RegisteredResource
	maps []engine.MappedResource
	buf  engine.MVBuffer
}

func initParams(w, h int) engine.InitializeParams {
	return engine.InitializeParams{
		Codec: engine.CodecH264, Preset: engine.PresetP5,
		Width: w, Height: h, MaxWidth: w, MaxHeight: h,
		FrameRateNum: 30, FrameRateDen: 1,
		EnableMEOnlyMode: true,
	}
}

// estimate runs one full ME-only pass and returns the decoded records.
func estimate(t *testing.T, e *Engine, ref, in []byte, w, h int) []vector.Record {
	t.Helper()
	r := &run{t: t}
	var err error
	if r.dev, err = e.OpenDevice(0); err != nil {
		t.Fatalf("OpenDevice: %v", err)
	}
	if r.sess, err = r.dev.OpenSession(); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := r.sess.Initialize(initParams(w, h)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, px := range [][]byte{ref, in} {
		s, err := r.dev.AllocPitch(w*4, h, 16)
		if err != nil {
			t.Fatalf("AllocPitch: %v", err)
		}
		reg, err := r.sess.RegisterResource(engine.RegisterParams{
			Surface: s, Width: w, Height: h, Pitch: s.Pitch(),
			Format: engine.BufferFormatABGR, Usage: engine.UsageInputImage,
		})
		if err != nil {
			t.Fatalf("RegisterResource: %v", err)
		}
		if err := r.dev.CopyToSurface(s, px, w*4, w*4, h); err != nil {
			t.Fatalf("CopyToSurface: %v", err)
		}
		m, err := r.sess.MapInputResource(reg)
		if err != nil {
			t.Fatalf("MapInputResource: %v", err)
		}
		r.surf, r.reg, r.maps = append(r.surf, s), append(r.reg, reg), append(r.maps, m)
	}
	if r.buf, err = r.sess.CreateMVBuffer(); err != nil {
		t.Fatalf("CreateMVBuffer: %v", err)
	}
	err = r.sess.RunMotionEstimationOnly(engine.MEOnlyParams{
		Input: r.maps[1], Reference: r.maps[0],
		InputWidth: w, InputHeight: h, MVBuffer: r.buf,
	})
	if err != nil {
		t.Fatalf("RunMotionEstimationOnly: %v", err)
	}
	locked, err := r.sess.LockBitstream(r.buf, engine.LockParams{})
	if err != nil {
		t.Fatalf("LockBitstream: %v", err)
	}
	cols, rows, _ := vector.Grid(w, h)
	records, err := vector.DecodeRecords(locked.Data, cols*rows)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	r.teardown()
	return records
}

func (r *run) teardown() {
	t := r.t
	if err := r.sess.UnlockBitstream(r.buf); err != nil {
		t.Errorf("UnlockBitstream: %v", err)
	}
	if err := r.sess.DestroyMVBuffer(r.buf); err != nil {
		t.Errorf("DestroyMVBuffer: %v", err)
	}
	for i := len(r.reg) - 1; i >= 0; i-- {
		if err := r.sess.UnmapInputResource(r.maps[i]); err != nil {
			t.Errorf("UnmapInputResource: %v", err)
		}
		if err := r.sess.UnregisterResource(r.reg[i]); err != nil {
			t.Errorf("UnregisterResource: %v", err)
		}
		if err := r.dev.Free(r.surf[i]); err != nil {
			t.Errorf("Free: %v", err)
		}
	}
	if err := r.sess.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
	if err := r.dev.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestEngine_ZeroMotionUniform(t *testing.T) {
	w, h := 40, 24
	gray := make([]byte, w*h*4)
	for i := range gray {
		gray[i] = 128
	}
	records := estimate(t, New(), gray, gray, w, h)
	if len(records) != 3*2 {
		t.Fatalf("len(records) = %d, want 6", len(records))
	}
	for i, rec := range records {
		for k, mv := range rec.MV {
			if mv != (vector.MotionVector{}) {
				t.Errorf("record %d MV[%d] = %+v, want zero", i, k, mv)
			}
		}
		if rec.Cost != 0 {
			t.Errorf("record %d cost = %d, want 0", i, rec.Cost)
		}
		if rec.MBType != vector.MBTypeInter || rec.PartitionType != vector.Partition8x8 {
			t.Errorf("record %d type = %d/%d", i, rec.MBType, rec.PartitionType)
		}
	}
}

func TestEngine_DetectsShift(t *testing.T) {
	w, h := 64, 64
	ref := texture(w, h, 0)
	in := texture(w, h, 3) // input(x) = reference(x-3)

	e := New()
	e.SearchRange = 6
	e.Workers = 2
	records := estimate(t, e, ref, in, w, h)

	// Interior macroblock (1, 1) is fully matched by the shifted reference.
	rec := records[1*4+1]
	for k, mv := range rec.MV {
		if mv != (vector.MotionVector{X: -12, Y: 0}) {
			t.Errorf("MV[%d] = %+v, want {-12 0}", k, mv)
		}
	}
	if rec.Cost != 0 {
		t.Errorf("Cost = %d, want 0", rec.Cost)
	}
}

func TestSession_StateErrors(t *testing.T) {
	dev, _ := New().OpenDevice(0)
	sess, _ := dev.OpenSession()

	if _, err := sess.CreateMVBuffer(); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("CreateMVBuffer before Initialize = %v, want ErrNotInitialized", err)
	}
	bad := initParams(16, 16)
	bad.EnableMEOnlyMode = false
	if err := sess.Initialize(bad); !errors.Is(err, engine.ErrUnsupported) {
		t.Errorf("Initialize(encode mode) = %v, want ErrUnsupported", err)
	}
	if err := sess.Initialize(initParams(16, 16)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := sess.Initialize(initParams(16, 16)); !errors.Is(err, engine.ErrAlreadyInitialized) {
		t.Errorf("second Initialize = %v, want ErrAlreadyInitialized", err)
	}

	s, _ := dev.AllocPitch(64, 16, 16)
	reg, err := sess.RegisterResource(engine.RegisterParams{
		Surface: s, Width: 16, Height: 16, Pitch: s.Pitch(),
		Format: engine.BufferFormatARGB, Usage: engine.UsageInputImage,
	})
	if err != nil {
		t.Fatalf("RegisterResource: %v", err)
	}
	m, _ := sess.MapInputResource(reg)
	if _, err := sess.MapInputResource(reg); !errors.Is(err, engine.ErrAlreadyMapped) {
		t.Errorf("second map = %v, want ErrAlreadyMapped", err)
	}
	if err := sess.UnregisterResource(reg); !errors.Is(err, engine.ErrResourceMapped) {
		t.Errorf("unregister while mapped = %v, want ErrResourceMapped", err)
	}

	buf, _ := sess.CreateMVBuffer()
	if _, err := sess.LockBitstream(buf, engine.LockParams{DoNotWait: true}); !errors.Is(err, engine.ErrNotReady) {
		t.Errorf("lock before run = %v, want ErrNotReady", err)
	}
	if err := sess.UnlockBitstream(buf); !errors.Is(err, engine.ErrBufferNotLocked) {
		t.Errorf("unlock unlocked = %v, want ErrBufferNotLocked", err)
	}
	if err := sess.RunMotionEstimationOnly(engine.MEOnlyParams{
		Input: m, Reference: engine.MappedResource(999), InputWidth: 16, InputHeight: 16, MVBuffer: buf,
	}); !errors.Is(err, engine.ErrInvalidHandle) {
		t.Errorf("run with bad reference = %v, want ErrInvalidHandle", err)
	}

	if err := sess.Destroy(); !errors.Is(err, engine.ErrResourcesLive) {
		t.Errorf("Destroy with live resources = %v, want ErrResourcesLive", err)
	}
	if err := sess.Destroy(); !errors.Is(err, engine.ErrDestroyed) {
		t.Errorf("second Destroy = %v, want ErrDestroyed", err)
	}
	if err := dev.Close(); !errors.Is(err, engine.ErrResourcesLive) {
		t.Errorf("Close with live surface = %v, want ErrResourcesLive", err)
	}
}

func TestDevice_Surfaces(t *testing.T) {
	dev, err := New().OpenDevice(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New().OpenDevice(1); !errors.Is(err, engine.ErrNoDevice) {
		t.Errorf("OpenDevice(1) = %v, want ErrNoDevice", err)
	}
	v, _ := dev.MaxSupportedVersion()
	if v != engine.RequiredVersion {
		t.Errorf("MaxSupportedVersion = %v, want %v", v, engine.RequiredVersion)
	}

	s, err := dev.AllocPitch(12, 2, 16)
	if err != nil {
		t.Fatalf("AllocPitch: %v", err)
	}
	if s.Pitch() != 16 || s.WidthBytes() != 12 || s.Height() != 2 {
		t.Errorf("surface = pitch %d, width %d, height %d", s.Pitch(), s.WidthBytes(), s.Height())
	}
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}
	if err := dev.CopyToSurface(s, src, 12, 12, 2); err != nil {
		t.Fatalf("CopyToSurface: %v", err)
	}
	data := s.(*surface).data
	if data[16] != 13 || data[12] != 0 {
		t.Errorf("row 1 starts with %d, padding %d; want 13, 0", data[16], data[12])
	}
	if err := dev.CopyToSurface(s, src, 12, 16, 2); !errors.Is(err, engine.ErrInvalidParam) {
		t.Errorf("oversized copy = %v, want ErrInvalidParam", err)
	}

	if err := dev.Free(s); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := dev.Free(s); !errors.Is(err, engine.ErrInvalidHandle) {
		t.Errorf("double Free = %v, want ErrInvalidHandle", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, err := dev.AllocPitch(4, 4, 4); !errors.Is(err, engine.ErrDestroyed) {
		t.Errorf("AllocPitch after Close = %v, want ErrDestroyed", err)
	}
}

func TestEngine_Registered(t *testing.T) {
	e := engine.Get(engine.NameSoftware)
	if e == nil || e.Name() != engine.NameSoftware {
		t.Fatalf("engine.Get(%q) = %v", engine.NameSoftware, e)
	}
}
