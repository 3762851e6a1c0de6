package ir

import (
	"context"
	"fmt"
	"io"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/decoded"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/ir/semantic"
	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/parser"
)

// Pipeline orchestrates the Raw -> Decoded -> Semantic layers.
type Pipeline struct {
	rawParser       *parser.DocumentParser
	decoder         decoded.Decoder
	semanticBuilder semantic.Builder
	logger          observability.Logger
}

// NewDefault constructs a pipeline with the standard filter set.
func NewDefault(log observability.Logger) *Pipeline {
	if log == nil {
		log = observability.NopLogger{}
	}
	fp := filters.NewPipeline(filters.StandardDecoders(), filters.Limits{})
	return &Pipeline{
		rawParser:       parser.NewDocumentParser(parser.Config{}),
		decoder:         decoded.NewDecoder(fp),
		semanticBuilder: semantic.NewBuilder(log),
		logger:          log,
	}
}

// ParseRaw stops after the raw layer.
func (p *Pipeline) ParseRaw(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	rawDoc, err := p.rawParser.Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("raw parsing failed: %w", err)
	}
	return rawDoc, nil
}

// Build runs the decode and semantic stages over an already-parsed raw
// document.
func (p *Pipeline) Build(ctx context.Context, rawDoc *raw.Document) (*semantic.Document, error) {
	decodedDoc, err := p.decoder.Decode(ctx, rawDoc)
	if err != nil {
		return nil, fmt.Errorf("decoding failed: %w", err)
	}

	semDoc, err := p.semanticBuilder.Build(ctx, decodedDoc)
	if err != nil {
		return nil, fmt.Errorf("semantic building failed: %w", err)
	}
	return semDoc, nil
}

// Parse runs all three stages.
func (p *Pipeline) Parse(ctx context.Context, r io.ReaderAt) (*semantic.Document, error) {
	rawDoc, err := p.ParseRaw(ctx, r)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx, rawDoc)
}
