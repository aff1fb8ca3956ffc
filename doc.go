// Package mvfield extracts block motion vectors between two frames and
// renders them as an image.
//
// # Overview
//
// A run loads a reference and an input frame of equal size, places both in
// registered device surfaces, performs exactly one motion-estimation-only
// operation and decodes the resulting per-macroblock records into a motion
// field image. Every 16x16 macroblock carries four 8x8 sub-block vectors in
// quarter-pixel units; each becomes one pixel of a 2x2 neighborhood, so the
// image is (2·ceil(W/16)) x (2·ceil(H/16)) pixels.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/mvfield"
//	    _ "github.com/gogpu/mvfield/engine/software"
//	    _ "github.com/gogpu/mvfield/engine/wgpu"
//	)
//
//	res, err := mvfield.Run("ref.png", "in.png", "motion.png")
//
// # Encoding
//
// Channel 0 holds the x component and channel 1 the y component, each as
// clamp(v/4 + 127, 0, 255). Channel 2 is always 127, so a frame without
// motion renders as uniform gray.
//
// # Engines
//
// Engines register themselves by name when imported. The wgpu engine runs
// the search as a compute shader; the software engine runs it on the CPU and
// is used when no GPU device opens. Use [WithEngine] to pick one explicitly.
//
// # Errors
//
// Every failure is a [*StageError] naming the pipeline stage that failed.
// Use errors.Is with the stage sentinels ([ErrLoad], [ErrRegistration], ...)
// to classify. Device resources acquired before a failure are always
// released in reverse order; release failures are joined as [ErrTeardown].
package mvfield
