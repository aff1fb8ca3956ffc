package frame

import (
	"errors"
	"fmt"
)

// Common errors for buffer operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("frame: invalid dimensions")

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = errors.New("frame: invalid format")

	// ErrInvalidStride is returned when stride is less than minimum required.
	ErrInvalidStride = errors.New("frame: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("frame: data buffer too small")

	// ErrOutOfBounds is returned when pixel coordinates are outside the buffer.
	ErrOutOfBounds = errors.New("frame: coordinates out of bounds")

	// ErrDimensionMismatch is returned when reference and input frames differ
	// in width, height or channel count.
	ErrDimensionMismatch = errors.New("frame: reference and input dimensions differ")
)

// Buffer is a row-major interleaved 8-bit pixel buffer with a row pitch
// (stride) of at least width*channels bytes.
//
// A Buffer has a single owner. It is not safe for concurrent mutation.
type Buffer struct {
	data   []byte
	width  int
	height int
	stride int
	format Format
}

// New creates a zeroed buffer with tightly packed rows.
func New(width, height int, format Format) (*Buffer, error) {
	return NewWithStride(width, height, format, format.RowBytes(width))
}

// NewWithStride creates a zeroed buffer with a custom row stride.
// Stride must be at least format.RowBytes(width).
func NewWithStride(width, height int, format Format, stride int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stride < format.RowBytes(width) {
		return nil, ErrInvalidStride
	}
	return &Buffer{
		data:   make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// FromRaw wraps existing data without copying.
// The caller must not retain data for other uses.
func FromRaw(data []byte, width, height int, format Format, stride int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stride < format.RowBytes(width) {
		return nil, ErrInvalidStride
	}
	required := stride * height
	if len(data) < required {
		return nil, ErrDataTooSmall
	}
	return &Buffer{
		data:   data[:required],
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// NewFrame creates a zeroed 4-channel frame.
func NewFrame(width, height int) (*Buffer, error) {
	return New(width, height, FormatRGBA8)
}

// Width returns the width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Buffer) Height() int { return b.height }

// Stride returns the number of bytes per row, including padding.
func (b *Buffer) Stride() int { return b.stride }

// Format returns the pixel format.
func (b *Buffer) Format() Format { return b.format }

// Channels returns the number of 8-bit channels per pixel.
func (b *Buffer) Channels() int { return b.format.Channels() }

// Data returns the raw pixel data.
func (b *Buffer) Data() []byte { return b.data }

// RowBytes returns the visible bytes of row y, without padding.
// Returns nil if y is out of bounds.
func (b *Buffer) RowBytes(y int) []byte {
	if y < 0 || y >= b.height {
		return nil
	}
	start := y * b.stride
	return b.data[start : start+b.format.RowBytes(b.width)]
}

// PixelOffset returns the byte offset of pixel (x, y) in the data slice.
// Returns -1 if coordinates are out of bounds.
func (b *Buffer) PixelOffset(x, y int) int {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return -1
	}
	return y*b.stride + x*b.format.BytesPerPixel()
}

// Pixel returns the bytes of pixel (x, y), or nil if out of bounds.
func (b *Buffer) Pixel(x, y int) []byte {
	off := b.PixelOffset(x, y)
	if off < 0 {
		return nil
	}
	return b.data[off : off+b.format.BytesPerPixel()]
}

// SetPixel copies px into pixel (x, y).
func (b *Buffer) SetPixel(x, y int, px ...byte) error {
	off := b.PixelOffset(x, y)
	if off < 0 {
		return ErrOutOfBounds
	}
	copy(b.data[off:off+b.format.BytesPerPixel()], px)
	return nil
}

// Fill sets every byte of every pixel, padding included, to v.
func (b *Buffer) Fill(v byte) {
	for i := range b.data {
		b.data[i] = v
	}
}

// CheckPair verifies that ref and in describe the same frame geometry.
func CheckPair(ref, in *Buffer) error {
	if ref == nil || in == nil {
		return fmt.Errorf("%w: nil frame", ErrDimensionMismatch)
	}
	if ref.width != in.width || ref.height != in.height || ref.Channels() != in.Channels() {
		return fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", ErrDimensionMismatch,
			ref.width, ref.height, ref.Channels(), in.width, in.height, in.Channels())
	}
	return nil
}
