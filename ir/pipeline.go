// Package ir layers a PDF into three progressively richer document
// models: raw objects, decoded streams and semantic pages.
package ir

import (
	"context"
	"fmt"

	"github.com/ygzhang/sealkit/filters"
	"github.com/ygzhang/sealkit/ir/decoded"
	"github.com/ygzhang/sealkit/ir/semantic"
	"github.com/ygzhang/sealkit/parser"
)

// Pipeline chains the three layers behind a single Parse call.
type Pipeline struct {
	parser  *parser.Parser
	decoder decoded.Decoder
	builder semantic.Builder
}

// New constructs a pipeline from explicit parser configuration. The
// stream decoder shares the parser's decode limits.
func New(cfg parser.Config) *Pipeline {
	return &Pipeline{
		parser:  parser.New(cfg),
		decoder: decoded.NewDecoder(filters.NewDefaultPipeline(cfg.Limits)),
		builder: semantic.NewBuilder(),
	}
}

// NewDefault constructs a pipeline with default limits and a silent logger.
func NewDefault() *Pipeline { return New(parser.Config{}) }

// Parse orchestrates raw -> decoded -> semantic.
func (p *Pipeline) Parse(ctx context.Context, data []byte) (*semantic.Document, error) {
	rawDoc, err := p.parser.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("raw parsing failed: %w", err)
	}

	decodedDoc, err := p.decoder.Decode(ctx, rawDoc)
	if err != nil {
		return nil, fmt.Errorf("decoding failed: %w", err)
	}

	semDoc, err := p.builder.Build(ctx, decodedDoc)
	if err != nil {
		return nil, fmt.Errorf("semantic building failed: %w", err)
	}

	return semDoc, nil
}
