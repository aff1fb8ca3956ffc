package enginetest

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/vector"
)

func TestEngine_FailOn(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	e.FailOn(CallOpenSession, boom)

	dev, err := e.OpenDevice(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dev.OpenSession(); !errors.Is(err, boom) {
		t.Errorf("OpenSession = %v, want injected error", err)
	}
	if got := e.Calls(); !slices.Equal(got, []string{CallOpenDevice, CallOpenSession}) {
		t.Errorf("Calls = %v", got)
	}
	if e.Count(CallOpenSession) != 1 {
		t.Errorf("Count(OpenSession) = %d, want 1", e.Count(CallOpenSession))
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if live := e.Live(); len(live) != 0 {
		t.Errorf("Live = %v, want none", live)
	}
}

func TestEngine_Records(t *testing.T) {
	e := New()
	e.Vector = vector.MotionVector{X: -4, Y: 8}
	e.Cost = 9

	dev, _ := e.OpenDevice(0)
	sess, _ := dev.OpenSession()
	if err := sess.Initialize(engine.InitializeParams{
		Codec: engine.CodecH264, Preset: engine.PresetP1, Width: 17, Height: 16, EnableMEOnlyMode: true,
	}); err != nil {
		t.Fatal(err)
	}
	var mapped []engine.MappedResource
	for range 2 {
		s, _ := dev.AllocPitch(17*4, 16, 16)
		r, err := sess.RegisterResource(engine.RegisterParams{
			Surface: s, Width: 17, Height: 16, Pitch: s.Pitch(),
			Format: engine.BufferFormatABGR, Usage: engine.UsageInputImage,
		})
		if err != nil {
			t.Fatal(err)
		}
		m, _ := sess.MapInputResource(r)
		mapped = append(mapped, m)
	}
	buf, _ := sess.CreateMVBuffer()
	if _, err := sess.LockBitstream(buf, engine.LockParams{}); !errors.Is(err, engine.ErrNotReady) {
		t.Errorf("Lock before run = %v, want ErrNotReady", err)
	}
	if err := sess.RunMotionEstimationOnly(engine.MEOnlyParams{
		Input: mapped[1], Reference: mapped[0], InputWidth: 17, InputHeight: 16, MVBuffer: buf,
	}); err != nil {
		t.Fatal(err)
	}
	locked, err := sess.LockBitstream(buf, engine.LockParams{})
	if err != nil {
		t.Fatal(err)
	}
	records, err := vector.DecodeRecords(locked.Data, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range records {
		if r.MV[2] != e.Vector || r.Cost != 9 || r.PartitionType != vector.Partition8x8 {
			t.Errorf("record %d = %+v", i, r)
		}
	}
	if err := sess.UnlockBitstream(buf); err != nil {
		t.Fatal(err)
	}
	if err := sess.UnlockBitstream(buf); !errors.Is(err, engine.ErrBufferNotLocked) {
		t.Errorf("second unlock = %v, want ErrBufferNotLocked", err)
	}

	live := e.Live()
	want := []string{"device", "mapping", "mapping", "mv buffer", "registration", "registration", "session", "surface", "surface"}
	if !slices.Equal(live, want) {
		t.Errorf("Live = %v, want %v", live, want)
	}
}
