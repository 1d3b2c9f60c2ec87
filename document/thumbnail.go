package document

import (
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ygzhang/sealkit/observability"
)

// RenderThumbnail rasterizes one page and scales it uniformly to fit
// inside targetW by targetH, centered on an opaque white canvas of
// exactly that size. White backing matters: pages can carry transparent
// regions that must not bleed through a preview. Returns nil for a
// malformed document, a bad page index, or a degenerate target size.
func (e *Engine) RenderThumbnail(doc []byte, pageIndex, targetW, targetH int) image.Image {
	if targetW <= 0 || targetH <= 0 {
		return nil
	}

	start := time.Now()
	page, err := e.render(doc, pageIndex)
	if err != nil {
		e.log.Warn("thumbnail rasterization failed",
			observability.Int("page", pageIndex),
			observability.Error("err", err))
		return nil
	}
	thumb := letterbox(page, targetW, targetH)
	e.log.Debug("thumbnail rendered",
		observability.Int("page", pageIndex),
		observability.Float64(observability.MetricThumbnailTime, time.Since(start).Seconds()))
	return thumb
}

// letterbox scales img to fit (targetW, targetH) preserving aspect
// ratio and centers it over white.
func letterbox(img image.Image, targetW, targetH int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sw, sh := fitExtent(w, h, targetW, targetH)
	if sw == 0 || sh == 0 {
		return nil
	}

	scaled := imaging.Resize(img, sw, sh, imaging.Lanczos)
	canvas := imaging.New(targetW, targetH, color.White)
	return imaging.OverlayCenter(canvas, scaled, 1.0)
}

// fitExtent computes the scaled size under a uniform scale of
// min(targetW/w, targetH/h). Zero input extents yield zero.
func fitExtent(w, h, targetW, targetH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := float64(targetW) / float64(w)
	if s := float64(targetH) / float64(h); s < scale {
		scale = s
	}

	sw := int(float64(w)*scale + 0.5)
	sh := int(float64(h)*scale + 0.5)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	if sw > targetW {
		sw = targetW
	}
	if sh > targetH {
		sh = targetH
	}
	return sw, sh
}
