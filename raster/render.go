package raster

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// RenderPage rasterizes one page of an in-memory PDF through MuPDF at
// the library's default resolution. Pages are zero-indexed.
func RenderPage(doc []byte, page int) (image.Image, error) {
	return renderPage(doc, page, 0)
}

// RenderPageDPI rasterizes one page at an explicit resolution.
func RenderPageDPI(doc []byte, page int, dpi float64) (image.Image, error) {
	return renderPage(doc, page, dpi)
}

func renderPage(doc []byte, page int, dpi float64) (image.Image, error) {
	f, err := fitz.NewFromMemory(doc)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	if page < 0 || page >= f.NumPage() {
		return nil, fmt.Errorf("page %d out of range, document has %d", page, f.NumPage())
	}
	if dpi > 0 {
		return f.ImageDPI(page, dpi)
	}
	return f.Image(page)
}
