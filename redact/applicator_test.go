package redact

import (
	"bytes"
	"context"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/pdfredact/extractor"
	"github.com/wudi/pdfredact/fonts"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/ir/semantic"
)

func arial() *semantic.Font {
	widths := make(map[int]int)
	for c := 32; c < 127; c++ {
		widths[c] = 500
	}
	return &semantic.Font{
		Name:      "F1",
		Subtype:   "TrueType",
		BaseFont:  "Arial",
		FirstChar: 32,
		Widths:    widths,
	}
}

// testPage builds a one-page document present in both the raw and the
// semantic model, the way the parser and builder would produce it.
func testPage(t *testing.T, content string) (*raw.Document, *semantic.Page) {
	t.Helper()

	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object)}

	streamDict := raw.Dict()
	streamDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(content))))
	contentRef := doc.Allocate(raw.NewStream(streamDict, []byte(content)))

	resDict := raw.Dict()
	pageDict := raw.Dict()
	pageDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	pageDict.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))
	pageDict.Set(raw.NameLiteral("Resources"), resDict)
	pageRef := doc.Allocate(pageDict)

	ops, err := semantic.ParseOperations([]byte(content))
	if err != nil {
		t.Fatalf("parse operations: %v", err)
	}
	page := &semantic.Page{
		MediaBox: semantic.Rectangle{URX: 612, URY: 792},
		Resources: &semantic.Resources{
			Fonts: map[string]*semantic.Font{"F1": arial()},
			Dict:  resDict,
		},
		Contents:    []semantic.ContentStream{{Operations: ops, RawBytes: []byte(content), Refs: []raw.ObjectRef{contentRef}}},
		OriginalRef: pageRef,
	}
	return doc, page
}

func locateOps(t *testing.T, page *semantic.Page, rules *RuleSet) []RedactionOp {
	t.Helper()
	ext, err := extractor.New(&semantic.Document{Pages: []*semantic.Page{page}})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	ops, err := NewLocator(rules, ext, nil).Locate(context.Background(), page)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	return ops
}

func TestLocatorRecordsGeometryAndStyle(t *testing.T) {
	_, page := testPage(t, "BT /F1 11 Tf 72 700 Td (John Doe) Tj ET")
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	ops := locateOps(t, page, rules)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(ops))
	}
	op := ops[0]
	if op.NewText != "[REDACTED]" {
		t.Errorf("unexpected replacement: %q", op.NewText)
	}
	if op.Origin.X != 72 || op.Origin.Y != 700 {
		t.Errorf("baseline origin not recorded: %+v", op.Origin)
	}
	if op.BaseFont != "Arial" || op.FontSize != 11 {
		t.Errorf("style not recorded: %+v", op)
	}
	if op.BBox.Empty() {
		t.Error("bbox not recorded")
	}
}

func TestLocatorSkipsUnchangedSpans(t *testing.T) {
	_, page := testPage(t, "BT /F1 11 Tf 72 700 Td (Nothing sensitive) Tj ET")
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	if ops := locateOps(t, page, rules); len(ops) != 0 {
		t.Fatalf("expected no ops, got %d", len(ops))
	}
}

func TestApplyReplacesSpanAtBaseline(t *testing.T) {
	doc, page := testPage(t,
		"BT /F1 11 Tf 72 700 Td (John Doe) Tj ET\n"+
			"BT /F1 11 Tf 72 650 Td (Jane Smith) Tj ET")
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	ops := locateOps(t, page, rules)
	if err := NewApplicator(doc, nil).Apply(page, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ext, err := extractor.New(&semantic.Document{Pages: []*semantic.Page{page}})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	spans, err := ext.PageSpans(page)
	if err != nil {
		t.Fatalf("page spans: %v", err)
	}

	var foundReplacement, foundOriginal, foundOther bool
	for _, s := range spans {
		switch s.Text {
		case "[REDACTED]":
			foundReplacement = true
			if s.Baseline.X != 72 || s.Baseline.Y != 700 {
				t.Errorf("replacement not at original baseline: %+v", s.Baseline)
			}
			if s.FontSize != 11 {
				t.Errorf("replacement lost font size: %f", s.FontSize)
			}
		case "John Doe":
			foundOriginal = true
		case "Jane Smith":
			foundOther = true
		}
	}
	if !foundReplacement {
		t.Error("replacement text not extractable")
	}
	if foundOriginal {
		t.Error("original text still present")
	}
	if !foundOther {
		t.Error("untouched span was disturbed")
	}
}

func TestApplyMapsArialToHelvetica(t *testing.T) {
	doc, page := testPage(t, "BT /F1 11 Tf 72 700 Td (John Doe) Tj ET")
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	if err := NewApplicator(doc, nil).Apply(page, locateOps(t, page, rules)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var fallback *semantic.Font
	for name, f := range page.Resources.Fonts {
		if name != "F1" {
			fallback = f
		}
	}
	if fallback == nil {
		t.Fatal("no replacement font registered")
	}
	if fallback.BaseFont != "Helvetica" || fallback.Subtype != "Type1" {
		t.Fatalf("unexpected fallback font: %+v", fallback)
	}
}

func TestApplyPersistsToRawDocument(t *testing.T) {
	doc, page := testPage(t, "BT /F1 11 Tf 72 700 Td (John Doe) Tj ET")
	contentRef := page.Contents[0].Refs[0]
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	if err := NewApplicator(doc, nil).Apply(page, locateOps(t, page, rules)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stream, ok := doc.Objects[contentRef].(raw.Stream)
	if !ok {
		t.Fatalf("content object is %T, want stream", doc.Objects[contentRef])
	}
	if !bytes.Contains(stream.RawData(), []byte("[REDACTED]")) {
		t.Error("raw content stream missing replacement")
	}
	if bytes.Contains(stream.RawData(), []byte("John Doe")) {
		t.Error("raw content stream still contains original text")
	}

	fontObj, ok := page.Resources.Dict.Get(raw.NameLiteral("Font"))
	if !ok {
		t.Fatal("resources missing /Font after apply")
	}
	fontDict, ok := fontObj.(raw.Dictionary)
	if !ok {
		t.Fatalf("/Font is %T, want dictionary", fontObj)
	}
	if fontDict.Len() == 0 {
		t.Error("no font registered in raw resources")
	}
}

func TestApplyEmbeddedFontProgram(t *testing.T) {
	doc, page := testPage(t, "BT /F1 11 Tf 72 700 Td (John Doe) Tj ET")
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	ops := locateOps(t, page, rules)
	ops[0].FontProgram = goregular.TTF
	ops[0].BaseFont = "GoRegular"

	if err := NewApplicator(doc, nil).Apply(page, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var embedded *semantic.Font
	for name, f := range page.Resources.Fonts {
		if name != "F1" {
			embedded = f
		}
	}
	if embedded == nil {
		t.Fatal("no replacement font registered")
	}
	if embedded.Subtype != "Type0" || embedded.Encoding != "Identity-H" {
		t.Fatalf("expected reinstalled Type0 font, got %+v", embedded)
	}

	var hasFontFile bool
	for _, obj := range doc.Objects {
		if s, ok := obj.(raw.Stream); ok && bytes.Equal(s.RawData(), goregular.TTF) {
			hasFontFile = true
		}
	}
	if !hasFontFile {
		t.Error("font program not written to the document")
	}
}

func TestApplyEmbeddedFontWidthsCoverAllOps(t *testing.T) {
	// Two spans draw with the same reinstalled font but disjoint glyph
	// sets; the shared /W array must list the glyphs of both.
	doc, page := testPage(t,
		"BT /F1 11 Tf 72 700 Td (John Doe) Tj ET\n"+
			"BT /F1 11 Tf 72 650 Td (Jane Smith) Tj ET")
	rules := mustRules(t,
		Rule{Find: "John Doe", Replace: "alpha"},
		Rule{Find: "Jane Smith", Replace: "ZEBRA"},
	)

	ops := locateOps(t, page, rules)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(ops))
	}
	for i := range ops {
		ops[i].FontProgram = goregular.TTF
		ops[i].BaseFont = "GoRegular"
	}

	if err := NewApplicator(doc, nil).Apply(page, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}

	listed := make(map[int]bool)
	for _, obj := range doc.Objects {
		dict, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		sub, ok := dict.Get(raw.NameLiteral("Subtype"))
		if !ok {
			continue
		}
		if name, isName := sub.(raw.Name); !isName || name.Value() != "CIDFontType2" {
			continue
		}
		wObj, ok := dict.Get(raw.NameLiteral("W"))
		if !ok {
			t.Fatal("descendant font has no /W array")
		}
		arr, ok := wObj.(raw.Array)
		if !ok {
			t.Fatalf("/W is %T, want array", wObj)
		}
		for i := 0; i < arr.Len(); i += 2 {
			if item, found := arr.Get(i); found {
				if n, isNum := item.(raw.Number); isNum {
					listed[int(n.Int())] = true
				}
			}
		}
	}
	if len(listed) == 0 {
		t.Fatal("no reinstalled CID font found")
	}

	loaded, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("load font: %v", err)
	}
	for _, text := range []string{"alpha", "ZEBRA"} {
		glyphs, err := fonts.ShapeText(text, loaded)
		if err != nil {
			t.Fatalf("shape %q: %v", text, err)
		}
		for _, g := range glyphs {
			if !listed[g.ID] {
				t.Errorf("glyph %d for %q missing from /W", g.ID, text)
			}
		}
	}
}

func TestApplyDegradesOnInsertFailure(t *testing.T) {
	doc, page := testPage(t, "BT /F1 11 Tf 72 700 Td (John Doe) Tj ET")
	rules := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})

	ops := locateOps(t, page, rules)
	ops[0].FontProgram = []byte("not a real font program")

	if err := NewApplicator(doc, nil).Apply(page, ops); err != nil {
		t.Fatalf("apply should degrade, not fail: %v", err)
	}

	stream := doc.Objects[page.Contents[0].Refs[0]].(raw.Stream)
	if bytes.Contains(stream.RawData(), []byte("John Doe")) {
		t.Error("original text must be erased even when insert fails")
	}
	if bytes.Contains(stream.RawData(), []byte("[REDACTED]")) {
		t.Error("replacement must not appear when insert failed")
	}
}

func TestApplyErasesAllBeforeInserting(t *testing.T) {
	// Two spans on the same line with overlapping regions. If erase and
	// insert were interleaved per span, the second erase could wipe the
	// first insertion.
	doc, page := testPage(t,
		"BT /F1 11 Tf 72 700 Td (secret one) Tj ET\n"+
			"BT /F1 11 Tf 80 700 Td (secret two) Tj ET")
	rules := mustRules(t, Rule{Find: "secret", Replace: "[X]"})

	if err := NewApplicator(doc, nil).Apply(page, locateOps(t, page, rules)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stream := doc.Objects[page.Contents[0].Refs[0]].(raw.Stream)
	if n := bytes.Count(stream.RawData(), []byte("[X]")); n != 2 {
		t.Fatalf("expected both replacements present, found %d", n)
	}
}

func TestApplyNoOpsLeavesPageUntouched(t *testing.T) {
	doc, page := testPage(t, "BT /F1 11 Tf 72 700 Td (hello) Tj ET")
	before := doc.Objects[page.Contents[0].Refs[0]].(raw.Stream).RawData()

	if err := NewApplicator(doc, nil).Apply(page, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	after := doc.Objects[page.Contents[0].Refs[0]].(raw.Stream).RawData()
	if !bytes.Equal(before, after) {
		t.Error("page mutated without redaction ops")
	}
}
