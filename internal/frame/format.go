// Package frame holds the host-side pixel buffers of a motion field run and
// converts them to and from image files.
package frame

// Format represents a pixel storage format.
type Format uint8

const (
	// FormatRGBA8 is 32-bit RGBA, 4 interleaved 8-bit channels. Reference and
	// input frames are always stored in this format.
	FormatRGBA8 Format = iota

	// FormatRGB8 is 24-bit RGB with no alpha. The motion field image uses it.
	FormatRGB8

	formatCount
)

// BytesPerPixel returns the number of bytes per pixel for this format.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatRGB8:
		return 3
	default:
		return 0
	}
}

// Channels returns the number of channels. Every channel is one byte.
func (f Format) Channels() int {
	return f.BytesPerPixel()
}

// IsValid returns true if the format is a valid known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGB8:
		return "RGB8"
	default:
		return "Unknown"
	}
}
