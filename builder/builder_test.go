package builder

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ygzhang/sealkit/ir/semantic"
)

func testImage() *semantic.Image {
	return &semantic.Image{
		Width:            2,
		Height:           2,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Data:             []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255},
	}
}

func pageOps(t *testing.T, p *semantic.Page) []semantic.Operation {
	t.Helper()
	if len(p.Contents) != 1 {
		t.Fatalf("expected one content stream, got %d", len(p.Contents))
	}
	return p.Contents[0].Operations
}

func operatorNames(ops []semantic.Operation) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Operator
	}
	return names
}

func numbers(t *testing.T, op semantic.Operation) []float64 {
	t.Helper()
	out := make([]float64, 0, len(op.Operands))
	for _, o := range op.Operands {
		n, ok := o.(semantic.NumberOperand)
		if !ok {
			t.Fatalf("operand %T is not a number", o)
		}
		out = append(out, n.Value)
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuilderAssemblesPages(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(612, 792).Finish().
		NewPage(200, 100).SetRotation(90).Finish().
		SetInfo(&semantic.DocumentInfo{Title: "Contract"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	for i, p := range doc.Pages {
		if p.Index != i {
			t.Errorf("page %d has index %d", i, p.Index)
		}
	}
	if doc.Pages[0].MediaBox.Width() != 612 || doc.Pages[0].MediaBox.Height() != 792 {
		t.Errorf("unexpected media box: %+v", doc.Pages[0].MediaBox)
	}
	if doc.Pages[0].CropBox != doc.Pages[0].MediaBox {
		t.Errorf("crop box should match media box on new pages")
	}
	if doc.Pages[1].Rotate != 90 {
		t.Errorf("expected rotation 90, got %d", doc.Pages[1].Rotate)
	}
	if doc.Info == nil || doc.Info.Title != "Contract" {
		t.Errorf("document info not carried: %+v", doc.Info)
	}
}

func TestDrawImageEmitsPaintOperators(t *testing.T) {
	img := testImage()
	doc, err := NewBuilder().
		NewPage(300, 200).
		DrawImage(img, 10, 20, 100, 50, ImageOptions{}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	page := doc.Pages[0]
	ops := pageOps(t, page)
	want := []string{"q", "cm", "Do", "Q"}
	got := operatorNames(ops)
	if len(got) != len(want) {
		t.Fatalf("expected operators %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected operators %v, got %v", want, got)
		}
	}

	cm := numbers(t, ops[1])
	wantCM := []float64{100, 0, 0, 50, 10, 20}
	for i := range wantCM {
		if !near(cm[i], wantCM[i]) {
			t.Errorf("placement matrix %v, want %v", cm, wantCM)
			break
		}
	}

	name, ok := ops[2].Operands[0].(semantic.NameOperand)
	if !ok || name.Value != "Im1" {
		t.Errorf("expected Do operand /Im1, got %v", ops[2].Operands[0])
	}
	if page.Resources == nil || page.Resources.XObjects["Im1"] != img {
		t.Errorf("image not registered under /Im1")
	}
}

func TestDrawImageWithOpacityAndRotation(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(300, 200).
		DrawImage(testImage(), 0, 0, 100, 100, ImageOptions{Opacity: 0.6, Rotation: 90}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	page := doc.Pages[0]
	ops := pageOps(t, page)
	want := []string{"q", "gs", "cm", "cm", "Do", "Q"}
	got := operatorNames(ops)
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("expected operators %v, got %v", want, got)
		}
	}

	gsName, ok := ops[1].Operands[0].(semantic.NameOperand)
	if !ok || gsName.Value != "GS1" {
		t.Fatalf("expected gs operand /GS1, got %v", ops[1].Operands[0])
	}
	gs, ok := page.Resources.ExtGStates["GS1"]
	if !ok {
		t.Fatal("alpha state not registered under /GS1")
	}
	if gs.FillAlpha == nil || !near(*gs.FillAlpha, 0.6) {
		t.Errorf("fill alpha = %v, want 0.6", gs.FillAlpha)
	}
	if gs.StrokeAlpha == nil || !near(*gs.StrokeAlpha, 0.6) {
		t.Errorf("stroke alpha = %v, want 0.6", gs.StrokeAlpha)
	}
}

func TestDrawImageSharesResourceAcrossPages(t *testing.T) {
	img := testImage()
	b := NewBuilder()
	b.NewPage(100, 100).DrawImage(img, 0, 0, 50, 50, ImageOptions{}).Finish()
	b.NewPage(100, 100).DrawImage(img, 10, 10, 50, 50, ImageOptions{}).Finish()
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i, p := range doc.Pages {
		if p.Resources.XObjects["Im1"] != img {
			t.Errorf("page %d does not share /Im1", i)
		}
	}
}

func TestDrawImageDefaultsToPixelSize(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(100, 100).
		DrawImage(testImage(), 5, 5, 0, 0, ImageOptions{}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ops := pageOps(t, doc.Pages[0])
	cm := numbers(t, ops[1])
	if cm[0] != 2 || cm[3] != 2 {
		t.Errorf("expected 2x2 placement from image size, got %v", cm)
	}
}

func TestDrawImageNilIsNoop(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(100, 100).
		DrawImage(nil, 0, 0, 10, 10, ImageOptions{}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(doc.Pages[0].Contents) != 0 {
		t.Errorf("nil image should not emit content")
	}
}

func TestRotateAboutFixesCenter(t *testing.T) {
	op := rotateAbout(90, 50, 50)
	m := numbers(t, op)

	// The rotation matrix must map the pivot onto itself.
	x := m[0]*50 + m[2]*50 + m[4]
	y := m[1]*50 + m[3]*50 + m[5]
	if !near(x, 50) || !near(y, 50) {
		t.Errorf("pivot moved to (%v, %v)", x, y)
	}
	// Counterclockwise 90 degrees sends a point right of the pivot up.
	x = m[0]*60 + m[2]*50 + m[4]
	y = m[1]*60 + m[3]*50 + m[5]
	if !near(x, 50) || !near(y, 60) {
		t.Errorf("(60, 50) rotated to (%v, %v), want (50, 60)", x, y)
	}
}

func TestDrawTextRegistersFont(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(300, 200).
		DrawText("Approved", 40, 150, TextOptions{Color: &Color{R: 1}}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	page := doc.Pages[0]
	if page.Resources.Fonts["F1"] != "Helvetica" {
		t.Errorf("default font not registered: %v", page.Resources.Fonts)
	}

	ops := pageOps(t, page)
	want := []string{"BT", "Tf", "Tm", "rg", "Tj", "ET"}
	got := operatorNames(ops)
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("expected operators %v, got %v", want, got)
		}
	}

	tf := ops[1]
	if name := tf.Operands[0].(semantic.NameOperand); name.Value != "F1" {
		t.Errorf("Tf font = %q, want F1", name.Value)
	}
	if size := tf.Operands[1].(semantic.NumberOperand); size.Value != 12 {
		t.Errorf("Tf size = %v, want 12", size.Value)
	}

	tj := ops[4]
	if s := tj.Operands[0].(semantic.StringOperand); string(s.Value) != "Approved" {
		t.Errorf("Tj text = %q", s.Value)
	}
}

func TestDrawTextEmptyIsNoop(t *testing.T) {
	doc, err := NewBuilder().
		NewPage(100, 100).
		DrawText("", 0, 0, TextOptions{}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(doc.Pages[0].Contents) != 0 {
		t.Errorf("empty text should not emit content")
	}
}

func TestFromImageSeparatesAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 5, G: 6, B: 7, A: 128})

	img := FromImage(src)
	if img.Width != 2 || img.Height != 1 {
		t.Fatalf("unexpected size %dx%d", img.Width, img.Height)
	}
	if img.ColorSpace != "DeviceRGB" || img.BitsPerComponent != 8 {
		t.Errorf("unexpected pixel format: %s/%d", img.ColorSpace, img.BitsPerComponent)
	}
	wantPix := []byte{200, 10, 30, 5, 6, 7}
	if len(img.Data) != len(wantPix) {
		t.Fatalf("pixel plane length %d, want %d", len(img.Data), len(wantPix))
	}
	for i := range wantPix {
		if img.Data[i] != wantPix[i] {
			t.Fatalf("pixel plane %v, want %v", img.Data, wantPix)
		}
	}

	if img.SMask == nil {
		t.Fatal("expected a soft mask for partial alpha")
	}
	if img.SMask.ColorSpace != "DeviceGray" {
		t.Errorf("soft mask color space %q", img.SMask.ColorSpace)
	}
	if img.SMask.Data[0] != 255 || img.SMask.Data[1] != 128 {
		t.Errorf("alpha plane %v", img.SMask.Data)
	}
}

func TestFromImageOpaqueHasNoMask(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		}
	}
	if img := FromImage(src); img.SMask != nil {
		t.Errorf("opaque image should not carry a soft mask")
	}
}
