package render

import (
	"errors"
	"testing"

	"github.com/gogpu/mvfield/internal/frame"
	"github.com/gogpu/mvfield/internal/vector"
)

func encode(t *testing.T, cols, rows int, rec func(i, j int) vector.Record) []byte {
	t.Helper()
	raw := make([]byte, cols*rows*vector.RecordSize)
	for i := range rows {
		for j := range cols {
			if err := vector.PutRecord(raw, i*cols+j, rec(i, j)); err != nil {
				t.Fatal(err)
			}
		}
	}
	return raw
}

func TestSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{1, 1, 2, 2},
		{16, 16, 2, 2},
		{17, 16, 4, 2},
		{32, 32, 4, 4},
		{1920, 1080, 240, 136},
	}
	for _, tt := range tests {
		w, h, err := Size(tt.w, tt.h)
		if err != nil {
			t.Fatalf("Size(%d, %d): %v", tt.w, tt.h, err)
		}
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("Size(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
	if _, _, err := Size(0, 5); !errors.Is(err, vector.ErrInvalidDimensions) {
		t.Errorf("Size(0, 5) = %v, want ErrInvalidDimensions", err)
	}
}

func TestRender_ZeroMotion(t *testing.T) {
	raw := make([]byte, 2*2*vector.RecordSize)
	img, err := Render(raw, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width() != 4 || img.Height() != 4 || img.Format() != frame.FormatRGB8 {
		t.Fatalf("image = %dx%d %v, want 4x4 RGB8", img.Width(), img.Height(), img.Format())
	}
	for i, v := range img.Data() {
		if v != vector.Neutral {
			t.Fatalf("byte %d = %d, want %d", i, v, vector.Neutral)
		}
	}
}

func TestRender_SubBlockPlacement(t *testing.T) {
	// Sub-block k of macroblock (i, j) carries x = 4*(10*k), y = 4*(i*2+j).
	cols, rows := 2, 2
	raw := encode(t, cols, rows, func(i, j int) vector.Record {
		var rec vector.Record
		for k := range vector.SubBlocks {
			rec.MV[k] = vector.MotionVector{X: int16(40 * k), Y: int16(4 * (i*2 + j))}
		}
		return rec
	})
	img, err := Render(raw, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		for j := range cols {
			for k := range vector.SubBlocks {
				x, y := 2*j+k%2, 2*i+k/2
				px := img.Pixel(x, y)
				wantX := uint8(127 + 10*k)
				wantY := uint8(127 + i*2 + j)
				if px[0] != wantX || px[1] != wantY || px[2] != vector.Neutral {
					t.Errorf("pixel (%d,%d) = %v, want [%d %d 127]", x, y, px, wantX, wantY)
				}
			}
		}
	}
}

func TestRender_Saturates(t *testing.T) {
	raw := encode(t, 1, 1, func(int, int) vector.Record {
		return vector.Record{MV: [4]vector.MotionVector{
			{X: -32768, Y: 32767}, {X: -508, Y: 512}, {X: -3, Y: 3}, {X: 4, Y: -4},
		}}
	})
	img, err := Render(raw, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]uint8{{0, 255}, {0, 255}, {127, 127}, {128, 126}}
	for k, w := range want {
		px := img.Pixel(k%2, k/2)
		if px[0] != w[0] || px[1] != w[1] {
			t.Errorf("sub-block %d = (%d, %d), want (%d, %d)", k, px[0], px[1], w[0], w[1])
		}
	}
}

func TestRender_ShortBuffer(t *testing.T) {
	raw := make([]byte, 4*vector.RecordSize-1)
	if _, err := Render(raw, 64, 16); !errors.Is(err, vector.ErrShortBuffer) {
		t.Errorf("Render(short) = %v, want ErrShortBuffer", err)
	}
}

func TestSummarize(t *testing.T) {
	raw := encode(t, 3, 1, func(_, j int) vector.Record {
		return vector.Record{
			MV:     [4]vector.MotionVector{{X: int16(-4 * j)}},
			MBType: uint8(j % 2),
			Cost:   uint32(100 * j),
		}
	})
	st, err := Summarize(raw, 48, 16)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Macroblocks: 3, Inter: 1, TotalCost: 300, MaxAbs: 8}
	if st != want {
		t.Errorf("Summarize = %+v, want %+v", st, want)
	}
}
