package document

import (
	"fmt"
	"image"
	"math"

	"github.com/ygzhang/sealkit/builder"
	"github.com/ygzhang/sealkit/coords"
	"github.com/ygzhang/sealkit/ir/raw"
	"github.com/ygzhang/sealkit/ir/semantic"
	"github.com/ygzhang/sealkit/observability"
	"github.com/ygzhang/sealkit/raster"
)

// ApplyOverlay re-renders exactly one page with the overlay drawn on top
// of the untouched original content. Every other page is carried through
// unchanged. Returns nil when the document is malformed, the page index
// is out of range, or the overlay cannot be used.
func (e *Engine) ApplyOverlay(doc []byte, overlay image.Image, pageIndex int, pl Placement) []byte {
	parsed := e.parse(doc)
	if parsed == nil {
		return nil
	}
	if pageIndex < 0 || pageIndex >= len(parsed.Pages) {
		e.log.Warn("overlay page out of range",
			observability.Int("page", pageIndex),
			observability.Int("pages", len(parsed.Pages)))
		return nil
	}
	if err := raster.Validate(overlay); err != nil {
		e.log.Warn("overlay image rejected", observability.Error("err", err))
		return nil
	}

	e.stampPage(parsed.Pages[pageIndex], builder.FromImage(overlay), pl)
	return e.serialize(parsed)
}

// ApplyOverlayAllPages applies the identical placement to every page
// independently. Returns nil when the document is malformed or the
// overlay cannot be used.
func (e *Engine) ApplyOverlayAllPages(doc []byte, overlay image.Image, pl Placement) []byte {
	parsed := e.parse(doc)
	if parsed == nil {
		return nil
	}
	if err := raster.Validate(overlay); err != nil {
		e.log.Warn("overlay image rejected", observability.Error("err", err))
		return nil
	}

	img := builder.FromImage(overlay)
	for _, p := range parsed.Pages {
		e.stampPage(p, img, pl)
	}
	return e.serialize(parsed)
}

// ApplyText stamps one line of text onto a page in a base-14 font.
// x and y are points from the page's top-left corner, y locating the
// text baseline. A zero size draws at 12 points. Returns nil when the
// document is malformed, the page index is out of range, or the text
// is empty.
func (e *Engine) ApplyText(doc []byte, text string, pageIndex int, x, y, size float64) []byte {
	parsed := e.parse(doc)
	if parsed == nil {
		return nil
	}
	if pageIndex < 0 || pageIndex >= len(parsed.Pages) {
		e.log.Warn("text page out of range",
			observability.Int("page", pageIndex),
			observability.Int("pages", len(parsed.Pages)))
		return nil
	}
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 12
	}

	page := parsed.Pages[pageIndex]
	if page.Resources == nil {
		page.Resources = semantic.NewResources()
	}
	name := freeName(page, "Font", "F")
	page.Resources.Fonts[name] = "Helvetica"

	baseline := page.MediaBox.LLY + page.MediaBox.Height() - y
	ops := []semantic.Operation{
		{Operator: "BT"},
		{Operator: "Tf", Operands: []semantic.Operand{
			semantic.NameOperand{Value: name},
			semantic.NumberOperand{Value: size},
		}},
		{Operator: "Tm", Operands: matrixOperands(coords.Translate(page.MediaBox.LLX+x, baseline))},
		{Operator: "Tj", Operands: []semantic.Operand{semantic.StringOperand{Value: []byte(text)}}},
		{Operator: "ET"},
	}
	page.Contents = append(page.Contents, semantic.ContentStream{Operations: ops})
	return e.serialize(parsed)
}

// stampPage registers the overlay in the page's resources and appends a
// content stream painting it with the placement transform.
func (e *Engine) stampPage(page *semantic.Page, img *semantic.Image, pl Placement) {
	if page.Resources == nil {
		page.Resources = semantic.NewResources()
	}
	res := page.Resources

	name := freeName(page, "XObject", "Im")
	res.XObjects[name] = img

	// Top-left placement into the bottom-up page space. The media box
	// may sit away from the origin.
	x := page.MediaBox.LLX + pl.X
	y := page.MediaBox.LLY + page.MediaBox.Height() - pl.Y - pl.H

	ops := []semantic.Operation{{Operator: "q"}}

	if pl.Opacity > 0 && pl.Opacity < 1 {
		gsName := freeName(page, "ExtGState", "GS")
		a := pl.Opacity
		res.ExtGStates[gsName] = semantic.ExtGState{FillAlpha: &a, StrokeAlpha: &a}
		ops = append(ops, semantic.Operation{
			Operator: "gs",
			Operands: []semantic.Operand{semantic.NameOperand{Value: gsName}},
		})
	}

	if pl.Rotation != 0 {
		ops = append(ops, rotateClockwise(pl.Rotation, x+pl.W/2, y+pl.H/2))
	}

	ops = append(ops,
		semantic.Operation{Operator: "cm", Operands: matrixOperands(coords.Scale(pl.W, pl.H).Multiply(coords.Translate(x, y)))},
		semantic.Operation{Operator: "Do", Operands: []semantic.Operand{semantic.NameOperand{Value: name}}},
		semantic.Operation{Operator: "Q"},
	)

	page.Contents = append(page.Contents, semantic.ContentStream{Operations: ops})
}

// rotateClockwise builds a cm operation rotating clockwise about
// (cx, cy). The content stream rotation operator turns counterclockwise,
// so the angle is negated.
func rotateClockwise(degrees, cx, cy float64) semantic.Operation {
	rad := -degrees * math.Pi / 180
	return semantic.Operation{
		Operator: "cm",
		Operands: matrixOperands(coords.RotateAround(rad, cx, cy)),
	}
}

func matrixOperands(m coords.Matrix) []semantic.Operand {
	operands := make([]semantic.Operand, len(m))
	for i, v := range m {
		operands[i] = semantic.NumberOperand{Value: v}
	}
	return operands
}

// freeName picks a resource name not taken by the page. Names parsed
// into the semantic maps are not the whole story: the original file's
// resource dictionary can hold entries the parser does not model, form
// XObjects for instance, and those still collide in the output file.
func freeName(page *semantic.Page, category, prefix string) string {
	taken := takenNames(page, category)
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s%d", prefix, n)
		if !taken[name] {
			return name
		}
	}
}

func takenNames(page *semantic.Page, category string) map[string]bool {
	taken := make(map[string]bool)
	res := page.Resources
	if res == nil {
		return taken
	}

	switch category {
	case "XObject":
		for k := range res.XObjects {
			taken[k] = true
		}
	case "ExtGState":
		for k := range res.ExtGStates {
			taken[k] = true
		}
	case "Font":
		for k := range res.Fonts {
			taken[k] = true
		}
	}

	var doc *raw.Document
	if page.Source != nil {
		doc = page.Source.Doc
	}
	resolve := func(o raw.Object) raw.Object {
		if doc != nil {
			return doc.Resolve(o)
		}
		return o
	}

	dict, ok := resolve(res.Raw).(*raw.DictObj)
	if !ok {
		return taken
	}
	sub, ok := dict.Get(raw.NameLiteral(category))
	if !ok {
		return taken
	}
	if subDict, ok := resolve(sub).(*raw.DictObj); ok {
		for _, k := range subDict.Keys() {
			taken[k.Value()] = true
		}
	}
	return taken
}
