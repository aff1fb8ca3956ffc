// Package render draws decoded motion vector records as an image.
package render

import (
	"fmt"

	"github.com/gogpu/mvfield/internal/frame"
	"github.com/gogpu/mvfield/internal/vector"
)

// Size returns the motion field image size for a width x height frame:
// two pixels per macroblock in each direction.
func Size(width, height int) (w, h int, err error) {
	cols, rows, err := vector.Grid(width, height)
	if err != nil {
		return 0, 0, err
	}
	return 2 * cols, 2 * rows, nil
}

// Render decodes the records of a width x height frame from raw and returns
// the 3-channel motion field image.
//
// Sub-block k of the macroblock at (row i, col j) lands on pixel
// (2j + k%2, 2i + k/2): top-left, top-right, bottom-left, bottom-right.
// Channel 0 encodes the x component, channel 1 the y component; channel 2
// and any unwritten pixel stay at vector.Neutral.
func Render(raw []byte, width, height int) (*frame.Buffer, error) {
	cols, rows, err := vector.Grid(width, height)
	if err != nil {
		return nil, err
	}
	records, err := vector.DecodeRecords(raw, cols*rows)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	img, err := frame.New(2*cols, 2*rows, frame.FormatRGB8)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	img.Fill(vector.Neutral)

	for i := range rows {
		for j := range cols {
			rec := records[i*cols+j]
			for k, mv := range rec.MV {
				px := img.Pixel(2*j+k%2, 2*i+k/2)
				px[0] = vector.EncodeU8(mv.X)
				px[1] = vector.EncodeU8(mv.Y)
			}
		}
	}
	return img, nil
}

// Stats summarizes decoded records.
type Stats struct {
	Macroblocks int
	Inter       int
	TotalCost   uint64
	// MaxAbs is the largest absolute vector component, in quarter pixels.
	MaxAbs int
}

// Summarize decodes the records of a width x height frame and aggregates
// their metadata.
func Summarize(raw []byte, width, height int) (Stats, error) {
	cols, rows, err := vector.Grid(width, height)
	if err != nil {
		return Stats{}, err
	}
	records, err := vector.DecodeRecords(raw, cols*rows)
	if err != nil {
		return Stats{}, fmt.Errorf("render: %w", err)
	}
	st := Stats{Macroblocks: len(records)}
	for _, rec := range records {
		if rec.MBType == vector.MBTypeInter {
			st.Inter++
		}
		st.TotalCost += uint64(rec.Cost)
		for _, mv := range rec.MV {
			st.MaxAbs = max(st.MaxAbs, absInt(int(mv.X)), absInt(int(mv.Y)))
		}
	}
	return st, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
