// Package vector decodes motion estimation output into typed macroblock
// records and maps vector components onto a visual 8-bit scale.
package vector

// Neutral is the visualization value of a zero displacement. It is also the
// fill value for image areas that carry no vector data.
const Neutral = 127

// EncodeU8 maps a quarter-pel motion vector component to an 8-bit value.
//
// The sub-pixel part is discarded (integer division truncating toward zero),
// the result is biased by Neutral and saturated to [0, 255]. The mapping is
// lossy and monotonic: components at or below -508 encode to 0 and components
// at or above 512 encode to 255.
func EncodeU8(x int16) uint8 {
	v := int32(x)/4 + Neutral
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v) //nolint:gosec // bounded to [0, 255] above
	}
}
