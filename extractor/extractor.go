// Package extractor pulls structured text out of a semantic document:
// placed runs grouped into blocks, lines, and styled spans.
package extractor

import (
	"errors"
	"sort"
	"strings"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/semantic"
)

// baselineTolerance is the maximum baseline Y distance, in user space
// units, for two runs to count as the same line.
const baselineTolerance = 0.5

// Span is a maximal sequence of same-styled runs on one line.
type Span struct {
	Page     int
	Block    int
	Line     int
	Text     string
	Raw      [][]byte // operand bytes per run, in order
	Runs     []contentstream.PlacedRun
	BBox     coords.Rect
	Baseline coords.Point
	FontName string
	BaseFont string
	FontSize float64
	Color    contentstream.Color
	// FontBytes holds the embedded font program, when the font carries one.
	FontBytes []byte
}

// Line groups the spans sharing a baseline inside a block.
type Line struct {
	Block int
	Y     float64
	Spans []Span
}

// PageText captures extracted text for one page.
type PageText struct {
	Page    int
	Content string
}

// Extractor exposes text extraction over a semantic document.
type Extractor struct {
	doc    *semantic.Document
	tracer *contentstream.Tracer
	cmaps  map[*semantic.Font]*toUnicodeMap
}

// New creates an extractor backed by the provided semantic document.
func New(doc *semantic.Document) (*Extractor, error) {
	if doc == nil {
		return nil, errors.New("semantic document is required")
	}
	return &Extractor{
		doc:    doc,
		tracer: contentstream.NewTracer(),
		cmaps:  make(map[*semantic.Font]*toUnicodeMap),
	}, nil
}

// PageSpans traces the page content and groups the text runs into
// styled spans ordered by block, line, and X position.
func (e *Extractor) PageSpans(page *semantic.Page) ([]Span, error) {
	var runs []contentstream.PlacedRun
	for _, cs := range page.Contents {
		r, err := e.tracer.Trace(cs.Operations, page.Resources)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r...)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	lines := groupLines(runs)
	var spans []Span
	for lineIdx, line := range lines {
		spans = append(spans, e.lineSpans(page.Index, lineIdx, line)...)
	}
	return spans, nil
}

// Lines returns the page's spans grouped per line.
func (e *Extractor) Lines(page *semantic.Page) ([]Line, error) {
	spans, err := e.PageSpans(page)
	if err != nil {
		return nil, err
	}
	var lines []Line
	for _, s := range spans {
		if n := len(lines); n > 0 && lines[n-1].Block == s.Block && lines[n-1].Spans[0].Line == s.Line {
			lines[n-1].Spans = append(lines[n-1].Spans, s)
			continue
		}
		lines = append(lines, Line{Block: s.Block, Y: s.Baseline.Y, Spans: []Span{s}})
	}
	return lines, nil
}

// ExtractText returns the plain text of every page, lines separated by
// newlines and blocks by blank lines.
func (e *Extractor) ExtractText() ([]PageText, error) {
	var out []PageText
	for _, page := range e.doc.Pages {
		lines, err := e.Lines(page)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			continue
		}
		var b strings.Builder
		lastBlock := lines[0].Block
		for i, line := range lines {
			if i > 0 {
				b.WriteByte('\n')
				if line.Block != lastBlock {
					b.WriteByte('\n')
				}
			}
			lastBlock = line.Block
			for j, s := range line.Spans {
				if j > 0 && needsSpace(line.Spans[j-1], s) {
					b.WriteByte(' ')
				}
				b.WriteString(s.Text)
			}
		}
		txt := strings.TrimSpace(b.String())
		if txt == "" {
			continue
		}
		out = append(out, PageText{Page: page.Index, Content: txt})
	}
	return out, nil
}

// DecodeRun converts a run's raw string bytes to Unicode text using the
// font's ToUnicode CMap when present.
func (e *Extractor) DecodeRun(run contentstream.PlacedRun) string {
	return e.decodeBytes(run.Raw, run.Font)
}

func (e *Extractor) decodeBytes(raw []byte, font *semantic.Font) string {
	if font != nil && len(font.ToUnicodeCMap) > 0 {
		cmap, ok := e.cmaps[font]
		if !ok {
			cmap = parseToUnicodeCMap(font.ToUnicodeCMap)
			e.cmaps[font] = cmap
		}
		if cmap != nil {
			return cmap.decode(raw)
		}
	}
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		return decodeUTF16BE(raw[2:])
	}
	return string(raw)
}

// groupLines orders runs by block then baseline then X, and splits them
// into lines using the baseline tolerance.
func groupLines(runs []contentstream.PlacedRun) [][]contentstream.PlacedRun {
	sorted := make([]contentstream.PlacedRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		if diff := a.LineY - b.LineY; diff > baselineTolerance || diff < -baselineTolerance {
			// Reading order: top of the page first.
			return a.LineY > b.LineY
		}
		return a.Origin.X < b.Origin.X
	})

	var lines [][]contentstream.PlacedRun
	for _, run := range sorted {
		if n := len(lines); n > 0 {
			last := lines[n-1][0]
			diff := run.LineY - last.LineY
			if run.Block == last.Block && diff <= baselineTolerance && diff >= -baselineTolerance {
				lines[n-1] = append(lines[n-1], run)
				continue
			}
		}
		lines = append(lines, []contentstream.PlacedRun{run})
	}
	return lines
}

// lineSpans merges consecutive same-styled runs of a line into spans.
func (e *Extractor) lineSpans(pageIdx, lineIdx int, line []contentstream.PlacedRun) []Span {
	var spans []Span
	for _, run := range line {
		text := e.DecodeRun(run)
		if n := len(spans); n > 0 && sameStyle(spans[n-1].Runs[len(spans[n-1].Runs)-1], run) {
			s := &spans[n-1]
			s.Text += text
			s.Raw = append(s.Raw, run.Raw)
			s.Runs = append(s.Runs, run)
			s.BBox = s.BBox.Union(run.Rect)
			continue
		}
		spans = append(spans, Span{
			Page:      pageIdx,
			Block:     run.Block,
			Line:      lineIdx,
			Text:      text,
			Raw:       [][]byte{run.Raw},
			Runs:      []contentstream.PlacedRun{run},
			BBox:      run.Rect,
			Baseline:  run.Origin,
			FontName:  run.FontName,
			BaseFont:  baseFontName(run.Font),
			FontSize:  run.FontSize,
			Color:     run.Color,
			FontBytes: embeddedFontBytes(run.Font),
		})
	}
	return spans
}

func sameStyle(a, b contentstream.PlacedRun) bool {
	if a.FontName != b.FontName || a.FontSize != b.FontSize {
		return false
	}
	ar, ag, ab := a.Color.RGB()
	br, bg, bb := b.Color.RGB()
	return ar == br && ag == bg && ab == bb
}

func baseFontName(font *semantic.Font) string {
	if font == nil {
		return ""
	}
	return font.BaseFont
}

func embeddedFontBytes(font *semantic.Font) []byte {
	if font == nil {
		return nil
	}
	if font.Descriptor != nil && len(font.Descriptor.FontFile) > 0 {
		return font.Descriptor.FontFile
	}
	if font.DescendantFont != nil && font.DescendantFont.Descriptor != nil {
		return font.DescendantFont.Descriptor.FontFile
	}
	return nil
}

// needsSpace reports whether a horizontal gap between adjacent spans is
// wide enough to represent a word break.
func needsSpace(prev, next Span) bool {
	if strings.HasSuffix(prev.Text, " ") || strings.HasPrefix(next.Text, " ") {
		return false
	}
	gap := next.BBox.Lo.X - prev.BBox.Hi.X
	size := prev.FontSize
	if size <= 0 {
		size = next.FontSize
	}
	return gap > size*0.2
}
