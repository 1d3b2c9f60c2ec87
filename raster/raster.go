// Package raster is the image codec boundary for the refinement and
// compositing engines. Engines consume and produce decoded bitmaps
// (image.Image); this package owns the byte-level decode/encode and the
// validity rules for those bitmaps.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage marks input that could not be decoded into a usable pixel
// buffer, or a bitmap with zero extent. Non-retryable.
var ErrInvalidImage = errors.New("invalid image")

// Validate reports whether img is a usable bitmap (non-nil, positive extent).
func Validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil bitmap", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: zero extent", ErrInvalidImage)
	}
	return nil
}

// Decode reads one image in any registered format (PNG, JPEG, GIF, WebP,
// TIFF, BMP).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := Validate(img); err != nil {
		return nil, err
	}
	return img, nil
}

func DecodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// EncodePNG writes img as PNG. PNG is the interchange format for refined
// stamps: it is the only registered format that keeps the alpha channel.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := Validate(img); err != nil {
		return err
	}
	return png.Encode(w, img)
}

func EncodePNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJPEG writes img as JPEG with the given quality (1-100). Alpha is
// discarded; callers wanting transparency must use EncodePNG.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if err := Validate(img); err != nil {
		return err
	}
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// ToNRGBA returns a fresh NRGBA copy of img. Filter stages run on copies so
// inputs are never mutated and intermediate results stay reusable.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Extent returns width and height in pixels.
func Extent(img image.Image) (w, h int) {
	if img == nil {
		return 0, 0
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
