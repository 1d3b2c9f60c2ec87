// Package document composes paged documents: whole-page image documents,
// overlay stamping onto existing files, merging and thumbnail rendering.
//
// Every method is lenient: malformed input yields a zero value (nil bytes,
// zero count, nil image), never an error and never a panic. UI callers
// check for emptiness instead of branching on error kinds.
package document

import (
	"context"
	"image"
	"time"

	"github.com/ygzhang/sealkit/builder"
	"github.com/ygzhang/sealkit/ir"
	"github.com/ygzhang/sealkit/ir/semantic"
	"github.com/ygzhang/sealkit/observability"
	"github.com/ygzhang/sealkit/raster"
	"github.com/ygzhang/sealkit/writer"
)

// Placement positions an overlay on a page. Coordinates are in points
// from the page's top-left corner, matching screen convention; the
// engine converts to the bottom-up document coordinate space.
type Placement struct {
	// X, Y locate the overlay box's top-left corner.
	X, Y float64
	// W, H are the drawn size of the overlay in points.
	W, H float64
	// Rotation in degrees, clockwise, about the overlay's own center.
	Rotation float64
	// Opacity in (0, 1). Zero and one both paint fully opaque.
	Opacity float64
}

// Config controls an Engine.
type Config struct {
	Logger observability.Logger
	// Writer configures serialization of every document the engine emits.
	Writer writer.Config
}

// Engine produces new document bytes from images and existing documents.
// Engines hold no state between calls and are safe for concurrent use.
type Engine struct {
	log      observability.Logger
	pipeline *ir.Pipeline
	writer   *writer.Writer

	// render is the page rasterizer, swappable in tests.
	render func(doc []byte, page int) (image.Image, error)
}

// New constructs an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{
		log:      observability.OrNop(cfg.Logger),
		pipeline: ir.NewDefault(),
		writer:   writer.New(cfg.Writer),
		render:   raster.RenderPage,
	}
}

// ImagesToDocument emits one page per image, in input order, each page
// exactly the image's pixel extent at one point per pixel with the image
// drawn across the full page. Undecodable entries are dropped. Returns
// nil when the input is empty.
func (e *Engine) ImagesToDocument(images []image.Image) []byte {
	if len(images) == 0 {
		return nil
	}

	b := builder.NewBuilder()
	pages := 0
	for i, img := range images {
		if err := raster.Validate(img); err != nil {
			e.log.Warn("skipping page image", observability.Int("index", i), observability.Error("err", err))
			continue
		}
		w, h := raster.Extent(img)
		fw, fh := float64(w), float64(h)
		b.NewPage(fw, fh).
			DrawImage(builder.FromImage(img), 0, 0, fw, fh, builder.ImageOptions{}).
			Finish()
		pages++
	}
	if pages == 0 {
		return nil
	}

	doc, err := b.Build()
	if err != nil {
		e.log.Error("assembling image document", observability.Error("err", err))
		return nil
	}
	e.log.Debug("images composed", observability.Int(observability.MetricPagesComposed, pages))
	return e.serialize(doc)
}

// PageCount reports the number of pages, 0 for anything unparseable.
func (e *Engine) PageCount(doc []byte) int {
	parsed := e.parse(doc)
	if parsed == nil {
		return 0
	}
	return len(parsed.Pages)
}

// Merge concatenates the pages of every parseable input, in input order.
// Documents that fail to parse contribute nothing. Returns nil for an
// empty input list.
func (e *Engine) Merge(docs [][]byte) []byte {
	if len(docs) == 0 {
		return nil
	}

	merged := &semantic.Document{}
	for i, d := range docs {
		parsed := e.parse(d)
		if parsed == nil {
			e.log.Warn("merge skipping unparseable document", observability.Int("index", i))
			continue
		}
		if merged.Version == "" {
			merged.Version = parsed.Version
		}
		merged.Pages = append(merged.Pages, parsed.Pages...)
	}
	for i, p := range merged.Pages {
		p.Index = i
	}
	e.log.Debug("documents merged",
		observability.Int("inputs", len(docs)),
		observability.Int("pages", len(merged.Pages)))
	return e.serialize(merged)
}

// parse runs the document pipeline, returning nil for malformed input.
func (e *Engine) parse(doc []byte) *semantic.Document {
	if len(doc) == 0 {
		return nil
	}
	start := time.Now()
	parsed, err := e.pipeline.Parse(context.Background(), doc)
	if err != nil {
		e.log.Warn("document parse failed", observability.Error("err", err))
		return nil
	}
	e.log.Debug("document parsed",
		observability.Int("pages", len(parsed.Pages)),
		observability.Float64(observability.MetricParseTime, time.Since(start).Seconds()))
	return parsed
}

func (e *Engine) serialize(doc *semantic.Document) []byte {
	start := time.Now()
	data, err := e.writer.Bytes(context.Background(), doc)
	if err != nil {
		e.log.Error("document serialization failed", observability.Error("err", err))
		return nil
	}
	e.log.Debug("document written",
		observability.Int("bytes", len(data)),
		observability.Float64(observability.MetricWriteTime, time.Since(start).Seconds()))
	return data
}
