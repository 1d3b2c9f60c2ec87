// Package builder offers a fluent API for assembling documents in
// memory: pages, stamped images and short text runs.
package builder

import (
	"fmt"
	"math"

	"github.com/ygzhang/sealkit/coords"
	"github.com/ygzhang/sealkit/ir/semantic"
)

// DocumentBuilder accumulates pages and document metadata.
type DocumentBuilder interface {
	NewPage(width, height float64) PageBuilder
	AddPage(page *semantic.Page) DocumentBuilder
	SetInfo(info *semantic.DocumentInfo) DocumentBuilder
	Build() (*semantic.Document, error)
}

// PageBuilder draws onto a single page and returns to its document
// builder via Finish.
type PageBuilder interface {
	DrawImage(img *semantic.Image, x, y, width, height float64, opts ImageOptions) PageBuilder
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	SetRotation(degrees int) PageBuilder
	Finish() DocumentBuilder
}

// ImageOptions configures image placement.
type ImageOptions struct {
	// Opacity in (0, 1). Zero and one both paint fully opaque.
	Opacity float64
	// Rotation in degrees, counterclockwise about the placed image's
	// center.
	Rotation float64
}

// TextOptions configures text drawing.
type TextOptions struct {
	// Font is the resource name, F1 when empty.
	Font string
	// BaseFont is the standard font it maps to, Helvetica when empty.
	BaseFont string
	// Size in points, 12 when zero.
	Size  float64
	Color *Color
}

type Color struct{ R, G, B float64 }

const (
	defaultFontName = "F1"
	defaultBaseFont = "Helvetica"
)

type builderImpl struct {
	pages []*semantic.Page
	info  *semantic.DocumentInfo

	xobjectCount int
	xobjectNames map[*semantic.Image]string
	alphaCount   int
	alphaNames   map[float64]string
}

type pageBuilderImpl struct {
	parent *builderImpl
	page   *semantic.Page
}

// NewBuilder constructs an empty DocumentBuilder.
func NewBuilder() DocumentBuilder { return &builderImpl{} }

func (b *builderImpl) NewPage(width, height float64) PageBuilder {
	p := &semantic.Page{
		MediaBox: semantic.Rectangle{URX: width, URY: height},
		CropBox:  semantic.Rectangle{URX: width, URY: height},
	}
	b.pages = append(b.pages, p)
	return &pageBuilderImpl{parent: b, page: p}
}

func (b *builderImpl) AddPage(p *semantic.Page) DocumentBuilder {
	b.pages = append(b.pages, p)
	return b
}

func (b *builderImpl) SetInfo(info *semantic.DocumentInfo) DocumentBuilder {
	b.info = info
	return b
}

func (b *builderImpl) Build() (*semantic.Document, error) {
	for i, p := range b.pages {
		p.Index = i
	}
	return &semantic.Document{Pages: b.pages, Info: b.info}, nil
}

// imageName hands out one stable resource name per image value, so the
// same stamp drawn on several pages shares its XObject.
func (b *builderImpl) imageName(img *semantic.Image) string {
	if b.xobjectNames == nil {
		b.xobjectNames = make(map[*semantic.Image]string)
	}
	if name, ok := b.xobjectNames[img]; ok {
		return name
	}
	b.xobjectCount++
	name := fmt.Sprintf("Im%d", b.xobjectCount)
	b.xobjectNames[img] = name
	return name
}

func (b *builderImpl) alphaName(alpha float64) string {
	if b.alphaNames == nil {
		b.alphaNames = make(map[float64]string)
	}
	if name, ok := b.alphaNames[alpha]; ok {
		return name
	}
	b.alphaCount++
	name := fmt.Sprintf("GS%d", b.alphaCount)
	b.alphaNames[alpha] = name
	return name
}

func (p *pageBuilderImpl) DrawImage(img *semantic.Image, x, y, width, height float64, opts ImageOptions) PageBuilder {
	if img == nil {
		return p
	}
	res := p.ensureResources()
	name := p.parent.imageName(img)
	if _, ok := res.XObjects[name]; !ok {
		res.XObjects[name] = img
	}

	w := width
	if w == 0 {
		w = float64(img.Width)
	}
	h := height
	if h == 0 {
		h = float64(img.Height)
	}

	ops := p.ensureContentOps()
	*ops = append(*ops, semantic.Operation{Operator: "q"})

	if opts.Opacity > 0 && opts.Opacity < 1 {
		gs := p.parent.alphaName(opts.Opacity)
		if _, ok := res.ExtGStates[gs]; !ok {
			a := opts.Opacity
			res.ExtGStates[gs] = semantic.ExtGState{FillAlpha: &a, StrokeAlpha: &a}
		}
		*ops = append(*ops, semantic.Operation{
			Operator: "gs",
			Operands: []semantic.Operand{semantic.NameOperand{Value: gs}},
		})
	}

	if opts.Rotation != 0 {
		*ops = append(*ops, rotateAbout(opts.Rotation, x+w/2, y+h/2))
	}

	*ops = append(*ops, semantic.Operation{Operator: "cm", Operands: matrixOperands(coords.Scale(w, h).Multiply(coords.Translate(x, y)))})
	*ops = append(*ops, semantic.Operation{
		Operator: "Do",
		Operands: []semantic.Operand{semantic.NameOperand{Value: name}},
	})
	*ops = append(*ops, semantic.Operation{Operator: "Q"})
	return p
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	if text == "" {
		return p
	}
	res := p.ensureResources()
	name := opts.Font
	if name == "" {
		name = defaultFontName
	}
	if _, ok := res.Fonts[name]; !ok {
		base := opts.BaseFont
		if base == "" {
			base = defaultBaseFont
		}
		res.Fonts[name] = base
	}
	size := opts.Size
	if size <= 0 {
		size = 12
	}

	ops := p.ensureContentOps()
	*ops = append(*ops, semantic.Operation{Operator: "BT"})
	*ops = append(*ops, semantic.Operation{
		Operator: "Tf",
		Operands: []semantic.Operand{semantic.NameOperand{Value: name}, semantic.NumberOperand{Value: size}},
	})
	*ops = append(*ops, semantic.Operation{Operator: "Tm", Operands: matrixOperands(coords.Translate(x, y))})
	if opts.Color != nil {
		*ops = append(*ops, semantic.Operation{
			Operator: "rg",
			Operands: []semantic.Operand{
				semantic.NumberOperand{Value: opts.Color.R},
				semantic.NumberOperand{Value: opts.Color.G},
				semantic.NumberOperand{Value: opts.Color.B},
			},
		})
	}
	*ops = append(*ops, semantic.Operation{
		Operator: "Tj",
		Operands: []semantic.Operand{semantic.StringOperand{Value: []byte(text)}},
	})
	*ops = append(*ops, semantic.Operation{Operator: "ET"})
	return p
}

func (p *pageBuilderImpl) SetRotation(degrees int) PageBuilder {
	p.page.Rotate = degrees
	return p
}

func (p *pageBuilderImpl) Finish() DocumentBuilder { return p.parent }

func (p *pageBuilderImpl) ensureResources() *semantic.Resources {
	if p.page.Resources == nil {
		p.page.Resources = semantic.NewResources()
	}
	return p.page.Resources
}

func (p *pageBuilderImpl) ensureContentOps() *[]semantic.Operation {
	if len(p.page.Contents) == 0 {
		p.page.Contents = append(p.page.Contents, semantic.ContentStream{})
	}
	return &p.page.Contents[0].Operations
}

// rotateAbout builds the cm operation for a rotation around (cx, cy).
func rotateAbout(degrees, cx, cy float64) semantic.Operation {
	rad := degrees * math.Pi / 180
	return semantic.Operation{Operator: "cm", Operands: matrixOperands(coords.RotateAround(rad, cx, cy))}
}

func matrixOperands(m coords.Matrix) []semantic.Operand {
	operands := make([]semantic.Operand, len(m))
	for i, v := range m {
		operands[i] = semantic.NumberOperand{Value: v}
	}
	return operands
}
