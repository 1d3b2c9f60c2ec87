package document

import (
	"errors"
	"image"
	"testing"
)

func TestFitExtent(t *testing.T) {
	cases := []struct {
		w, h, tw, th int
		wantW, wantH int
	}{
		{100, 100, 50, 50, 50, 50},
		{200, 100, 100, 100, 100, 50},
		{100, 200, 100, 100, 50, 100},
		{300, 200, 90, 90, 90, 60},
		// Small pages scale up; thumbnails are fixed-size previews.
		{10, 10, 40, 20, 20, 20},
		{0, 100, 50, 50, 0, 0},
	}
	for _, c := range cases {
		gotW, gotH := fitExtent(c.w, c.h, c.tw, c.th)
		if gotW != c.wantW || gotH != c.wantH {
			t.Errorf("fitExtent(%d, %d, %d, %d) = (%d, %d), want (%d, %d)",
				c.w, c.h, c.tw, c.th, gotW, gotH, c.wantW, c.wantH)
		}
	}
}

func TestLetterboxCentersOverWhite(t *testing.T) {
	out := letterbox(blue(20, 10), 40, 40)
	if out == nil {
		t.Fatal("letterbox returned nil")
	}
	b := out.Bounds()
	if b.Dx() != 40 || b.Dy() != 40 {
		t.Fatalf("canvas %dx%d, want 40x40", b.Dx(), b.Dy())
	}

	// The 40x20 scaled page sits vertically centered; above and below
	// is opaque white.
	r, g, bl, a := out.At(20, 2).RGBA()
	if r != 0xffff || g != 0xffff || bl != 0xffff || a != 0xffff {
		t.Errorf("top band not opaque white: %v %v %v %v", r, g, bl, a)
	}
	r, g, bl, _ = out.At(20, 20).RGBA()
	if bl < 0x8000 || r > 0x4000 || g > 0x4000 {
		t.Errorf("center not blue: %v %v %v", r, g, bl)
	}
}

func TestRenderThumbnailScalesPage(t *testing.T) {
	e := testEngine()
	e.render = func(doc []byte, page int) (image.Image, error) {
		return blue(100, 50), nil
	}

	out := e.RenderThumbnail([]byte("doc"), 0, 50, 50)
	if out == nil {
		t.Fatal("expected a thumbnail")
	}
	if b := out.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("thumbnail %dx%d, want 50x50", b.Dx(), b.Dy())
	}
}

func TestRenderThumbnailFailedRaster(t *testing.T) {
	e := testEngine()
	e.render = func(doc []byte, page int) (image.Image, error) {
		return nil, errors.New("no such page")
	}
	if out := e.RenderThumbnail([]byte("doc"), 9, 50, 50); out != nil {
		t.Errorf("raster failure should yield nil")
	}
}

func TestRenderThumbnailBadTarget(t *testing.T) {
	e := testEngine()
	e.render = func(doc []byte, page int) (image.Image, error) {
		t.Fatal("rasterizer must not run for a degenerate target")
		return nil, nil
	}
	if out := e.RenderThumbnail([]byte("doc"), 0, 0, 50); out != nil {
		t.Errorf("zero width target should yield nil")
	}
}
