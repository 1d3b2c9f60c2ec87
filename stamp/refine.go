package stamp

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ygzhang/sealkit/raster"
)

// RemoveBackground isolates stamp-colored pixels and composites the input
// over a fully transparent canvas of identical extent, using the color-cube
// mask as the alpha channel. The output extent always equals the input
// extent.
func RemoveBackground(img image.Image) (image.Image, error) {
	if err := raster.Validate(img); err != nil {
		return nil, err
	}
	src := raster.ToNRGBA(img)
	m := defaultCube().mask(src)
	out, err := compositeWithMask(src, m)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// compositeWithMask draws src onto a transparent canvas, multiplying the
// source alpha by the mask. Mask compositing is the one stage that fails
// hard instead of degrading.
func compositeWithMask(src *image.NRGBA, m *Mask) (*image.NRGBA, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if m == nil || m.W != w || m.H != h || len(m.Alpha) != w*h {
		return nil, fmt.Errorf("mask compositing: %w", ErrProcessingFailed)
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride:]
		outRow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			o := x * 4
			outRow[o] = srcRow[o]
			outRow[o+1] = srcRow[o+1]
			outRow[o+2] = srcRow[o+2]
			outRow[o+3] = uint8(uint16(srcRow[o+3]) * uint16(m.at(x, y)) / 255)
		}
	}
	return out, nil
}

// Optimize applies the four correction stages in fixed order: noise
// reduction, color enhancement, anti-aliasing, luminance sharpening. A
// stage that produces no output passes the pre-stage image through
// unchanged; a failed enhancement is better than a stamp that disappears.
func Optimize(img image.Image) (image.Image, error) {
	if err := raster.Validate(img); err != nil {
		return nil, err
	}
	cur := raster.ToNRGBA(img)
	cur = orPrevious(cur, reduceNoise(cur))
	cur = orPrevious(cur, enhanceColor(cur))
	cur = orPrevious(cur, antialias(cur))
	cur = orPrevious(cur, sharpenLuminance(cur))
	return cur, nil
}

// Refine is the full two-stage pipeline: background removal, then
// optimization. This is the unit of work the bulk coordinator fans out.
func Refine(img image.Image) (image.Image, error) {
	cleaned, err := RemoveBackground(img)
	if err != nil {
		return nil, err
	}
	return Optimize(cleaned)
}

func orPrevious(prev, next *image.NRGBA) *image.NRGBA {
	if next == nil || next.Bounds().Empty() {
		return prev
	}
	return next
}

// reduceNoise smooths sensor noise with a blur scaled from the denoise
// strength, then restores edges at the configured sharpness weight.
func reduceNoise(in *image.NRGBA) *image.NRGBA {
	blurred := imaging.Blur(in, denoiseStrength*25)
	if blurred == nil || blurred.Bounds().Empty() {
		return nil
	}
	return imaging.Sharpen(blurred, denoiseSharpness)
}

// enhanceColor lifts saturation, brightness and contrast. Hue is left
// neutral; targeted hue correction is a planned extension of this stage.
func enhanceColor(in *image.NRGBA) *image.NRGBA {
	out := imaging.AdjustSaturation(in, (saturationBoost-1)*100)
	out = imaging.AdjustBrightness(out, brightnessLift*100)
	return imaging.AdjustContrast(out, (contrastBoost-1)*100)
}

// antialias smooths jagged mask edges. The radius is intentionally small so
// fine stamp detail survives.
func antialias(in *image.NRGBA) *image.NRGBA {
	return imaging.Blur(in, antialiasRadius)
}

// sharpenLuminance recovers edge definition lost to the denoise and
// anti-aliasing stages; it must run last.
func sharpenLuminance(in *image.NRGBA) *image.NRGBA {
	return imaging.Sharpen(in, sharpenStrength)
}
