package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record layout errors.
var (
	// ErrShortBuffer is returned when a raw buffer holds fewer bytes than the
	// requested number of records.
	ErrShortBuffer = errors.New("vector: buffer too short for record count")

	// ErrInvalidDimensions is returned for frame sizes below 1x1.
	ErrInvalidDimensions = errors.New("vector: invalid frame dimensions")
)

const (
	// MacroblockSize is the edge length of a macroblock in pixels.
	MacroblockSize = 16

	// SubBlocks is the number of 8x8 sub-blocks (and vectors) per macroblock.
	SubBlocks = 4

	// RecordSize is the size in bytes of one packed macroblock record.
	RecordSize = 24

	offsetMBType    = 16
	offsetPartition = 17
	offsetCost      = 20
	vectorStride    = 4
)

// Macroblock types.
const (
	MBTypeIntra uint8 = 0
	MBTypeInter uint8 = 1
)

// Partition types.
const (
	Partition16x16 uint8 = 0
	Partition8x8   uint8 = 1
	Partition16x8  uint8 = 2
	Partition8x16  uint8 = 3
)

// MotionVector is a displacement in quarter-pixel units.
type MotionVector struct {
	X, Y int16
}

// Record is the estimation result for one 16x16 macroblock.
//
// MV holds one vector per 8x8 sub-block in raster order: top-left,
// top-right, bottom-left, bottom-right.
//
// The packed form is 24 little-endian bytes:
//
//	0..15   MV[0..3] as (int16 x, int16 y)
//	16      MBType
//	17      PartitionType
//	18..19  reserved
//	20..23  Cost (uint32)
type Record struct {
	MV            [SubBlocks]MotionVector
	MBType        uint8
	PartitionType uint8
	Cost          uint32
}

// Grid returns the macroblock grid size covering a width x height frame.
func Grid(width, height int) (cols, rows int, err error) {
	if width < 1 || height < 1 {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	cols = (width + MacroblockSize - 1) / MacroblockSize
	rows = (height + MacroblockSize - 1) / MacroblockSize
	return cols, rows, nil
}

// BufferSize returns the packed size of the records covering a frame.
func BufferSize(width, height int) (int, error) {
	cols, rows, err := Grid(width, height)
	if err != nil {
		return 0, err
	}
	return cols * rows * RecordSize, nil
}

// DecodeRecord reads the record stored at index i of raw.
func DecodeRecord(raw []byte, i int) (Record, error) {
	off := i * RecordSize
	if i < 0 || off+RecordSize > len(raw) {
		return Record{}, fmt.Errorf("%w: record %d needs %d bytes, have %d",
			ErrShortBuffer, i, off+RecordSize, len(raw))
	}
	b := raw[off : off+RecordSize]

	var r Record
	for k := range SubBlocks {
		p := k * vectorStride
		r.MV[k].X = int16(binary.LittleEndian.Uint16(b[p:]))   //nolint:gosec // two's complement reinterpretation
		r.MV[k].Y = int16(binary.LittleEndian.Uint16(b[p+2:])) //nolint:gosec // two's complement reinterpretation
	}
	r.MBType = b[offsetMBType]
	r.PartitionType = b[offsetPartition]
	r.Cost = binary.LittleEndian.Uint32(b[offsetCost:])
	return r, nil
}

// DecodeRecords reinterprets raw as count consecutive records.
func DecodeRecords(raw []byte, count int) ([]Record, error) {
	if count < 0 || count*RecordSize > len(raw) {
		return nil, fmt.Errorf("%w: %d records need %d bytes, have %d",
			ErrShortBuffer, count, count*RecordSize, len(raw))
	}
	records := make([]Record, count)
	for i := range records {
		r, err := DecodeRecord(raw, i)
		if err != nil {
			return nil, err
		}
		records[i] = r
	}
	return records, nil
}

// PutRecord packs r into dst at record index i.
func PutRecord(dst []byte, i int, r Record) error {
	off := i * RecordSize
	if i < 0 || off+RecordSize > len(dst) {
		return fmt.Errorf("%w: record %d needs %d bytes, have %d",
			ErrShortBuffer, i, off+RecordSize, len(dst))
	}
	b := dst[off : off+RecordSize]
	for k := range SubBlocks {
		p := k * vectorStride
		binary.LittleEndian.PutUint16(b[p:], uint16(r.MV[k].X))   //nolint:gosec // two's complement reinterpretation
		binary.LittleEndian.PutUint16(b[p+2:], uint16(r.MV[k].Y)) //nolint:gosec // two's complement reinterpretation
	}
	b[offsetMBType] = r.MBType
	b[offsetPartition] = r.PartitionType
	b[18], b[19] = 0, 0
	binary.LittleEndian.PutUint32(b[offsetCost:], r.Cost)
	return nil
}
