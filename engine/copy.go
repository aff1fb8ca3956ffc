package engine

import "fmt"

// AlignPitch rounds widthBytes up to a multiple of align.
// align must be a positive power of two.
func AlignPitch(widthBytes, align int) (int, error) {
	if widthBytes <= 0 {
		return 0, fmt.Errorf("%w: width %d bytes", ErrInvalidParam, widthBytes)
	}
	if align <= 0 || align&(align-1) != 0 {
		return 0, fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidParam, align)
	}
	return (widthBytes + align - 1) &^ (align - 1), nil
}

// Copy2D copies height rows of widthBytes bytes between buffers with
// different row strides. Padding bytes in dst are left untouched.
func Copy2D(dst []byte, dstPitch int, src []byte, srcPitch, widthBytes, height int) error {
	if widthBytes <= 0 || height <= 0 {
		return fmt.Errorf("%w: copy %dx%d", ErrInvalidParam, widthBytes, height)
	}
	if dstPitch < widthBytes || srcPitch < widthBytes {
		return fmt.Errorf("%w: pitch (src %d, dst %d) below row width %d",
			ErrInvalidParam, srcPitch, dstPitch, widthBytes)
	}
	if need := (height-1)*srcPitch + widthBytes; len(src) < need {
		return fmt.Errorf("%w: source holds %d bytes, copy needs %d", ErrInvalidParam, len(src), need)
	}
	if need := (height-1)*dstPitch + widthBytes; len(dst) < need {
		return fmt.Errorf("%w: destination holds %d bytes, copy needs %d", ErrInvalidParam, len(dst), need)
	}
	for y := range height {
		copy(dst[y*dstPitch:y*dstPitch+widthBytes], src[y*srcPitch:y*srcPitch+widthBytes])
	}
	return nil
}

// Luma returns the BT.601 luma of one 4-byte pixel in format f.
func Luma(px []byte, f BufferFormat) uint8 {
	r, g, b := uint32(px[0]), uint32(px[1]), uint32(px[2])
	if f == BufferFormatARGB {
		r, b = b, r
	}
	return uint8((77*r + 150*g + 29*b + 128) >> 8) //nolint:gosec // weights sum to 256
}
