// Package semantic models a PDF as pages with geometry, content streams and
// resources. It is the layer the compositing engine and the writer work on:
// parsed pages keep a handle to their raw origin so everything the engine
// does not touch survives a rewrite byte-for-byte.
package semantic

import (
	"context"

	"github.com/ygzhang/sealkit/ir/decoded"
	"github.com/ygzhang/sealkit/ir/raw"
)

// Document is the semantic representation of a PDF.
type Document struct {
	Pages   []*Page
	Info    *DocumentInfo
	Version string
}

// PageSource ties a parsed page to its origin. The writer deep-copies the
// original page dictionary and swaps only the parts the engine changed.
type PageSource struct {
	Doc  *raw.Document
	Ref  raw.ObjectRef
	Dict *raw.DictObj
}

// Page models a single page. Built pages have a nil Source.
type Page struct {
	Index     int
	MediaBox  Rectangle
	CropBox   Rectangle
	Rotate    int // degrees: 0/90/180/270
	Contents  []ContentStream
	Resources *Resources
	Source    *PageSource
}

// Appended reports how many content streams were added after parsing.
// Parsed streams keep their RawBytes; appended overlay streams are built
// from Operations.
func (p *Page) Appended() int {
	n := 0
	for _, cs := range p.Contents {
		if cs.RawBytes == nil {
			n++
		}
	}
	return n
}

// ContentStream is a sequence of operations on a page. RawBytes, when set,
// is emitted verbatim by the writer; Operations is the built path.
type ContentStream struct {
	Operations []Operation
	RawBytes   []byte
}

// Operation represents a PDF operator and its operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is a type-safe operand value.
type Operand interface {
	operand()
	Type() string
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand()     {}
func (NumberOperand) Type() string { return "number" }

type NameOperand struct{ Value string }

func (NameOperand) operand()     {}
func (NameOperand) Type() string { return "name" }

type StringOperand struct{ Value []byte }

func (StringOperand) operand()     {}
func (StringOperand) Type() string { return "string" }

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) operand()     {}
func (ArrayOperand) Type() string { return "array" }

// Resources holds the page resources the engine understands. Raw keeps the
// original resources object of parsed pages for carry-through.
type Resources struct {
	XObjects   map[string]*XObject
	ExtGStates map[string]ExtGState
	Fonts      map[string]string // resource name -> base font
	Raw        raw.Object
}

// NewResources returns an empty, initialized resource set.
func NewResources() *Resources {
	return &Resources{
		XObjects:   make(map[string]*XObject),
		ExtGStates: make(map[string]ExtGState),
		Fonts:      make(map[string]string),
	}
}

// ExtGState captures the transparency defaults the compositor needs.
type ExtGState struct {
	FillAlpha   *float64
	StrokeAlpha *float64
}

// XObject describes an image resource. Filter, when set, names the codec
// still applied to Data (a passed-through DCTDecode payload).
type XObject struct {
	Width            int
	Height           int
	ColorSpace       string
	BitsPerComponent int
	Data             []byte
	Filter           string
	SMask            *XObject
}

// Image is an alias for XObject for image convenience APIs.
type Image = XObject

// Rectangle represents a PDF rectangle.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// DocumentInfo models /Info dictionary values.
type DocumentInfo struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
	Keywords []string
}

// Builder produces a semantic document from decoded IR.
type Builder interface {
	Build(ctx context.Context, dec *decoded.Document) (*Document, error)
}
