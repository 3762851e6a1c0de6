package redact

import (
	"context"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/extractor"
	"github.com/wudi/pdfredact/ir/semantic"
	"github.com/wudi/pdfredact/observability"
)

// RedactionOp instructs the applicator to erase one span's region and
// draw replacement text at its baseline. Created by the Locator,
// consumed once.
type RedactionOp struct {
	Page    int
	BBox    coords.Rect
	Origin  coords.Point
	NewText string
	// FontName is the original resource name (e.g. F1); BaseFont the
	// original face name used for fallback mapping.
	FontName string
	BaseFont string
	FontSize float64
	Color    contentstream.Color
	// FontProgram holds the original embedded font bytes, when present,
	// so the replacement can be drawn with the exact same face.
	FontProgram []byte
	// Runs are the placed runs that make up the span, used to find the
	// operators to erase.
	Runs []contentstream.PlacedRun
}

// Locator walks a page's spans and emits a RedactionOp for every span
// whose text changes under the rule set. Span order (top-to-bottom,
// left-to-right) is kept as produced by the extractor.
type Locator struct {
	rules *RuleSet
	ext   *extractor.Extractor
	log   observability.Logger
}

func NewLocator(rules *RuleSet, ext *extractor.Extractor, log observability.Logger) *Locator {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Locator{rules: rules, ext: ext, log: log}
}

// Locate runs the matcher over every text span on the page. A script
// failure skips that span (left untouched) unless the context itself is
// done.
func (l *Locator) Locate(ctx context.Context, page *semantic.Page) ([]RedactionOp, error) {
	spans, err := l.ext.PageSpans(page)
	if err != nil {
		return nil, err
	}

	var ops []RedactionOp
	for _, span := range spans {
		if span.Text == "" {
			continue
		}
		newText, changed, err := l.rules.Apply(ctx, span.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.log.Error("rule application failed, span left untouched",
				observability.Int("page", span.Page),
				observability.Error("error", err))
			continue
		}
		if !changed {
			continue
		}
		ops = append(ops, RedactionOp{
			Page:        span.Page,
			BBox:        span.BBox,
			Origin:      span.Baseline,
			NewText:     newText,
			FontName:    span.FontName,
			BaseFont:    span.BaseFont,
			FontSize:    span.FontSize,
			Color:       span.Color,
			FontProgram: span.FontBytes,
			Runs:        span.Runs,
		})
	}
	return ops, nil
}
