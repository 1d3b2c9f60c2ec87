// Package stamp turns a photographed ink stamp into a clean, transparent
// stamp asset: background removal through a quantized color-cube mask,
// a fixed four-stage optimization pass, and auxiliary contour detection.
package stamp

import "errors"

var (
	// ErrProcessingFailed marks a required filter stage that produced no
	// usable output. Non-retryable; never downgraded to a partial result.
	ErrProcessingFailed = errors.New("processing failed")

	// ErrNoEdgesDetected is the normal outcome when boundary detection finds
	// zero contours. Callers treat it as "no optional signal available".
	ErrNoEdgesDetected = errors.New("no edges detected")
)

// Mask tuning. The cube resolution and the red band are the compiled-in
// policy for official stamp ink; see DefaultBand.
const (
	cubeDimension = 64

	hueLowMax     = 0.05
	hueHighMin    = 0.95
	saturationMin = 0.3
)

// Optimization stage tuning. The stage order is part of the contract:
// denoise before sharpening, color before anti-aliasing, sharpening last.
const (
	denoiseStrength  = 0.02
	denoiseSharpness = 0.4
	saturationBoost  = 1.2
	brightnessLift   = 0.05
	contrastBoost    = 1.1
	antialiasRadius  = 0.5
	sharpenStrength  = 0.4
)

// Edge detection tuning.
const (
	edgeContrastBoost = 2.0
	minContourPoints  = 8
)
