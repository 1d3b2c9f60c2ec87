package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	data := solidPNG(t, 12, 7, color.NRGBA{R: 200, A: 255})
	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	w, h := Extent(img)
	if w != 12 || h != 7 {
		t.Fatalf("extent = %dx%d, want 12x7", w, h)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeBytes([]byte("not an image"))
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("err = %v, want ErrInvalidImage", err)
	}
	_, err = DecodeBytes(nil)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("err for empty input = %v, want ErrInvalidImage", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("nil bitmap: err = %v", err)
	}
	if err := Validate(image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("zero extent: err = %v", err)
	}
	if err := Validate(image.NewNRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("valid bitmap rejected: %v", err)
	}
}

func TestEncodePNGKeepsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 0})
	data, err := EncodePNGBytes(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, _, _, a := back.At(1, 1).RGBA()
	if a != 0 {
		t.Fatalf("alpha not preserved: %d", a)
	}
}

func TestToNRGBADoesNotAliasSource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	dst := ToNRGBA(src)
	dst.SetNRGBA(0, 0, color.NRGBA{R: 99, A: 255})
	if got := src.NRGBAAt(0, 0); got.R != 10 {
		t.Fatalf("source mutated through copy: %+v", got)
	}
}
