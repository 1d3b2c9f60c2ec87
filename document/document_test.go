package document

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/ygzhang/sealkit/ir"
	"github.com/ygzhang/sealkit/ir/semantic"
)

func testEngine() *Engine { return New(Config{}) }

func solid(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var redPixel = color.NRGBA{R: 255, A: 255}

func blue(w, h int) image.Image  { return solid(w, h, color.NRGBA{B: 255, A: 255}) }
func green(w, h int) image.Image { return solid(w, h, color.NRGBA{G: 255, A: 255}) }

func reparse(t *testing.T, data []byte) *semantic.Document {
	t.Helper()
	doc, err := ir.NewDefault().Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("reparsing emitted document: %v", err)
	}
	return doc
}

// combinedContent joins every content stream of a page as parsed text.
func combinedContent(t *testing.T, p *semantic.Page) string {
	t.Helper()
	var sb strings.Builder
	for _, cs := range p.Contents {
		sb.Write(cs.RawBytes)
	}
	return sb.String()
}

func TestImagesToDocumentPageExtents(t *testing.T) {
	e := testEngine()
	data := e.ImagesToDocument([]image.Image{blue(100, 100), green(200, 50)})
	if data == nil {
		t.Fatal("expected document bytes")
	}

	doc := reparse(t, data)
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}

	p0 := doc.Pages[0]
	if p0.MediaBox.Width() != 100 || p0.MediaBox.Height() != 100 {
		t.Errorf("page 0 box %+v, want 100x100", p0.MediaBox)
	}
	p1 := doc.Pages[1]
	if p1.MediaBox.Width() != 200 || p1.MediaBox.Height() != 50 {
		t.Errorf("page 1 box %+v, want 200x50", p1.MediaBox)
	}

	img := p0.Resources.XObjects["Im1"]
	if img == nil || img.Width != 100 || img.Height != 100 {
		t.Errorf("page 0 image not registered at pixel extent: %+v", img)
	}

	content := combinedContent(t, p0)
	if !strings.Contains(content, "100 0 0 100 0 0 cm") {
		t.Errorf("page 0 image not drawn at full extent:\n%s", content)
	}
	if !strings.Contains(content, "/Im1 Do") {
		t.Errorf("page 0 missing image paint:\n%s", content)
	}
}

func TestImagesToDocumentEmpty(t *testing.T) {
	if got := testEngine().ImagesToDocument(nil); got != nil {
		t.Errorf("empty input should yield nil, got %d bytes", len(got))
	}
}

func TestImagesToDocumentSkipsUndecodable(t *testing.T) {
	e := testEngine()
	if got := e.ImagesToDocument([]image.Image{nil}); got != nil {
		t.Errorf("all-invalid input should yield nil")
	}

	data := e.ImagesToDocument([]image.Image{blue(10, 10), nil})
	if data == nil {
		t.Fatal("valid image should still produce a document")
	}
	if n := e.PageCount(data); n != 1 {
		t.Errorf("expected 1 page, got %d", n)
	}
}

func TestPageCountSolidDocument(t *testing.T) {
	e := testEngine()
	data := e.ImagesToDocument([]image.Image{blue(100, 100)})
	if n := e.PageCount(data); n != 1 {
		t.Errorf("expected page count 1, got %d", n)
	}
}

func TestPageCountMalformed(t *testing.T) {
	e := testEngine()
	if n := e.PageCount([]byte("not a document")); n != 0 {
		t.Errorf("malformed input should count 0, got %d", n)
	}
	if n := e.PageCount(nil); n != 0 {
		t.Errorf("nil input should count 0, got %d", n)
	}
}

func TestMergeAdditivity(t *testing.T) {
	e := testEngine()
	d1 := e.ImagesToDocument([]image.Image{blue(100, 100), green(100, 100)})
	d2 := e.ImagesToDocument([]image.Image{blue(200, 50)})

	merged := e.Merge([][]byte{d1, d2})
	if merged == nil {
		t.Fatal("expected merged document")
	}
	if n := e.PageCount(merged); n != e.PageCount(d1)+e.PageCount(d2) {
		t.Errorf("merged page count %d, want %d", n, e.PageCount(d1)+e.PageCount(d2))
	}

	// Input order and intra-document order survive the merge.
	doc := reparse(t, merged)
	widths := []float64{100, 100, 200}
	for i, w := range widths {
		if doc.Pages[i].MediaBox.Width() != w {
			t.Errorf("page %d width %v, want %v", i, doc.Pages[i].MediaBox.Width(), w)
		}
	}
}

func TestMergeSingleDocumentKeepsPages(t *testing.T) {
	e := testEngine()
	d := e.ImagesToDocument([]image.Image{blue(100, 100), green(100, 100)})

	merged := e.Merge([][]byte{d})
	if n := e.PageCount(merged); n != 2 {
		t.Errorf("merge of one 2-page document has %d pages", n)
	}
}

func TestMergeSkipsUnparseable(t *testing.T) {
	e := testEngine()
	d := e.ImagesToDocument([]image.Image{blue(100, 100)})

	merged := e.Merge([][]byte{[]byte("garbage"), d})
	if merged == nil {
		t.Fatal("parseable input should survive the merge")
	}
	if n := e.PageCount(merged); n != 1 {
		t.Errorf("expected the one parseable page, got %d", n)
	}
}

func TestMergeEmpty(t *testing.T) {
	if got := testEngine().Merge(nil); got != nil {
		t.Errorf("empty merge should yield nil")
	}
}
