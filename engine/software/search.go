package software

import (
	"math"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/parallel"
	"github.com/gogpu/mvfield/internal/vector"
)

const subBlockSize = vector.MacroblockSize / 2

// lumaPlane is an 8-bit luma copy of a registered surface.
type lumaPlane struct {
	pix  []uint8
	w, h int
}

func newLumaPlane(s *surface, p engine.RegisterParams) lumaPlane {
	pl := lumaPlane{pix: make([]uint8, p.Width*p.Height), w: p.Width, h: p.Height}
	for y := range p.Height {
		row := s.data[y*s.pitch : y*s.pitch+p.Width*4]
		for x := range p.Width {
			pl.pix[y*p.Width+x] = engine.Luma(row[x*4:x*4+4], p.Format)
		}
	}
	return pl
}

// at returns the luma at (x, y) with coordinates clamped to the plane.
func (pl lumaPlane) at(x, y int) int32 {
	x = min(max(x, 0), pl.w-1)
	y = min(max(y, 0), pl.h-1)
	return int32(pl.pix[y*pl.w+x])
}

// searcher runs an integer full search for every 8x8 sub-block.
//
// For each sub-block the displacement (dx, dy) in [-rng, rng]^2 minimizing
// the sum of absolute luma differences between the input block and the
// displaced reference block wins. Ties go to the shorter vector (L1), then
// to the first candidate in row-major scan order, so flat content yields
// zero motion. Samples outside the frame are edge-clamped.
type searcher struct {
	ref, in lumaPlane
	rng     int
	workers int
}

func (s searcher) run(out []byte) error {
	cols, rows, err := vector.Grid(s.in.w, s.in.h)
	if err != nil {
		return err
	}

	return parallel.NewPool(s.workers).ExecuteRows(rows, func(i int) error {
		for j := range cols {
			if err := vector.PutRecord(out, i*cols+j, s.macroblock(i, j)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s searcher) macroblock(row, col int) vector.Record {
	rec := vector.Record{MBType: vector.MBTypeInter, PartitionType: vector.Partition8x8}
	for k := range vector.SubBlocks {
		bx := col*vector.MacroblockSize + (k%2)*subBlockSize
		by := row*vector.MacroblockSize + (k/2)*subBlockSize
		dx, dy, sad := s.subBlock(bx, by)
		rec.MV[k] = vector.MotionVector{X: int16(dx * 4), Y: int16(dy * 4)} //nolint:gosec // |d| <= range, far below int16 limits
		rec.Cost += sad
	}
	return rec
}

func (s searcher) subBlock(bx, by int) (bestDX, bestDY int, bestSAD uint32) {
	bestSAD = math.MaxUint32
	bestLen := math.MaxInt
	for dy := -s.rng; dy <= s.rng; dy++ {
		for dx := -s.rng; dx <= s.rng; dx++ {
			var sad uint32
			for y := range subBlockSize {
				for x := range subBlockSize {
					d := s.in.at(bx+x, by+y) - s.ref.at(bx+x+dx, by+y+dy)
					if d < 0 {
						d = -d
					}
					sad += uint32(d) //nolint:gosec // d >= 0
				}
			}
			l := abs(dx) + abs(dy)
			if sad < bestSAD || sad == bestSAD && l < bestLen {
				bestSAD, bestLen, bestDX, bestDY = sad, l, dx, dy
			}
		}
	}
	return bestDX, bestDY, bestSAD
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
