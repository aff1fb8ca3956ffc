package engine

import "fmt"

// Limits bounds the frame sizes an engine accepts.
type Limits struct {
	MinWidth, MinHeight int
	MaxWidth, MaxHeight int
}

// DefaultLimits matches the H.264 ME-only limits of common hardware encoders.
func DefaultLimits() Limits {
	return Limits{MinWidth: 1, MinHeight: 1, MaxWidth: 4096, MaxHeight: 4096}
}

// CheckInitialize validates session parameters against l.
func CheckInitialize(p InitializeParams, l Limits) error {
	if !p.EnableMEOnlyMode {
		return fmt.Errorf("%w: motion-estimation-only mode is required", ErrUnsupported)
	}
	if p.EnableOutputInVidmem {
		return fmt.Errorf("%w: output in video memory", ErrUnsupported)
	}
	if p.Codec != CodecH264 {
		return fmt.Errorf("%w: codec %v", ErrUnsupported, p.Codec)
	}
	if p.Preset < PresetP1 || p.Preset > PresetP7 {
		return fmt.Errorf("%w: preset %d", ErrInvalidParam, p.Preset)
	}
	if p.FrameRateNum < 0 || p.FrameRateDen < 0 {
		return fmt.Errorf("%w: frame rate %d/%d", ErrInvalidParam, p.FrameRateNum, p.FrameRateDen)
	}
	if p.MaxWidth != 0 && p.MaxWidth < p.Width || p.MaxHeight != 0 && p.MaxHeight < p.Height {
		return fmt.Errorf("%w: size %dx%d above max %dx%d",
			ErrInvalidParam, p.Width, p.Height, p.MaxWidth, p.MaxHeight)
	}
	return l.check(p.Width, p.Height)
}

// CheckRegister validates surface registration parameters against the
// session's configured size and l.
func CheckRegister(p RegisterParams, session InitializeParams, l Limits) error {
	if p.Surface == nil {
		return fmt.Errorf("%w: nil surface", ErrInvalidParam)
	}
	if p.Format != BufferFormatARGB && p.Format != BufferFormatABGR {
		return fmt.Errorf("%w: buffer format %v", ErrUnsupported, p.Format)
	}
	if p.Usage != UsageInputImage {
		return fmt.Errorf("%w: buffer usage %d", ErrUnsupported, p.Usage)
	}
	if err := l.check(p.Width, p.Height); err != nil {
		return err
	}
	if p.Width != session.Width || p.Height != session.Height {
		return fmt.Errorf("%w: surface %dx%d, session %dx%d",
			ErrInvalidParam, p.Width, p.Height, session.Width, session.Height)
	}
	if p.Pitch < p.Width*4 || p.Pitch != p.Surface.Pitch() || p.Surface.Height() < p.Height {
		return fmt.Errorf("%w: pitch %d for %d pixels (surface pitch %d, %d rows)",
			ErrInvalidParam, p.Pitch, p.Width, p.Surface.Pitch(), p.Surface.Height())
	}
	return nil
}

func (l Limits) check(w, h int) error {
	if w < l.MinWidth || h < l.MinHeight {
		return fmt.Errorf("%w: %dx%d below %dx%d", ErrInvalidParam, w, h, l.MinWidth, l.MinHeight)
	}
	if w > l.MaxWidth || h > l.MaxHeight {
		return fmt.Errorf("%w: %dx%d above %dx%d", ErrDimensionsExceeded, w, h, l.MaxWidth, l.MaxHeight)
	}
	return nil
}
