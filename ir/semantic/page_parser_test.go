package semantic

import (
	"fmt"
	"testing"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

type mockResolver struct {
	objects map[raw.ObjectRef]raw.Object
}

func (r *mockResolver) Resolve(ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := r.objects[ref]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %v not found", ref)
}

func (r *mockResolver) StreamData(ref raw.ObjectRef) ([]byte, bool) { return nil, false }

func TestParsePagesInheritsMediaBoxAndResources(t *testing.T) {
	fontDict := &raw.DictObj{KV: map[string]raw.Object{
		"Type":     raw.NameObj{Val: "Font"},
		"Subtype":  raw.NameObj{Val: "Type1"},
		"BaseFont": raw.NameObj{Val: "Helvetica"},
	}}
	resources := &raw.DictObj{KV: map[string]raw.Object{
		"Font": &raw.DictObj{KV: map[string]raw.Object{"F1": fontDict}},
	}}
	content := &raw.StreamObj{
		Dict: raw.Dict(),
		Data: []byte("BT /F1 11 Tf 72 700 Td (hello) Tj ET"),
	}

	page1 := &raw.DictObj{KV: map[string]raw.Object{
		"Type":     raw.NameObj{Val: "Page"},
		"Contents": raw.RefObj{R: raw.ObjectRef{Num: 10, Gen: 0}},
	}}
	pages := &raw.DictObj{KV: map[string]raw.Object{
		"Type": raw.NameObj{Val: "Pages"},
		"MediaBox": &raw.ArrayObj{Items: []raw.Object{
			raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(595), raw.NumberInt(842),
		}},
		"Resources": resources,
		"Kids":      &raw.ArrayObj{Items: []raw.Object{page1}},
		"Count":     raw.NumberInt(1),
	}}

	resolver := &mockResolver{objects: map[raw.ObjectRef]raw.Object{
		{Num: 10, Gen: 0}: content,
	}}

	parsed, err := parsePages(pages, resolver, inheritedPageProps{}, observability.NopLogger{})
	if err != nil {
		t.Fatalf("parsePages failed: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 page, got %d", len(parsed))
	}

	p := parsed[0]
	if p.MediaBox != (Rectangle{0, 0, 595, 842}) {
		t.Fatalf("MediaBox not inherited: %+v", p.MediaBox)
	}
	if p.CropBox != p.MediaBox {
		t.Fatalf("CropBox should default to MediaBox")
	}
	if p.Resources == nil || p.Resources.Fonts["F1"] == nil {
		t.Fatalf("font resources not inherited")
	}
	if got := p.Resources.Fonts["F1"].BaseFont; got != "Helvetica" {
		t.Fatalf("unexpected BaseFont: %q", got)
	}
	if len(p.Contents) != 1 {
		t.Fatalf("expected 1 content stream, got %d", len(p.Contents))
	}
	if len(p.Contents[0].Operations) == 0 {
		t.Fatalf("content stream operations not parsed")
	}
}

func TestParsePagesNestedTree(t *testing.T) {
	leaf := func() *raw.DictObj {
		return &raw.DictObj{KV: map[string]raw.Object{
			"Type": raw.NameObj{Val: "Page"},
		}}
	}
	inner := &raw.DictObj{KV: map[string]raw.Object{
		"Type": raw.NameObj{Val: "Pages"},
		"Kids": &raw.ArrayObj{Items: []raw.Object{leaf(), leaf()}},
	}}
	root := &raw.DictObj{KV: map[string]raw.Object{
		"Type": raw.NameObj{Val: "Pages"},
		"Kids": &raw.ArrayObj{Items: []raw.Object{leaf(), inner}},
		"MediaBox": &raw.ArrayObj{Items: []raw.Object{
			raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792),
		}},
	}}

	parsed, err := parsePages(root, &mockResolver{}, inheritedPageProps{}, observability.NopLogger{})
	if err != nil {
		t.Fatalf("parsePages failed: %v", err)
	}
	if len(parsed) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(parsed))
	}
	for i, p := range parsed {
		if p.MediaBox.URX != 612 {
			t.Fatalf("page %d missing inherited MediaBox", i)
		}
	}
}

func TestParseFontWidthsAndDescriptor(t *testing.T) {
	fontDict := &raw.DictObj{KV: map[string]raw.Object{
		"Type":      raw.NameObj{Val: "Font"},
		"Subtype":   raw.NameObj{Val: "TrueType"},
		"BaseFont":  raw.NameObj{Val: "ABCDEF+CustomSans"},
		"FirstChar": raw.NumberInt(65),
		"Widths": &raw.ArrayObj{Items: []raw.Object{
			raw.NumberInt(600), raw.NumberInt(650), raw.NumberInt(700),
		}},
		"FontDescriptor": &raw.DictObj{KV: map[string]raw.Object{
			"FontName": raw.NameObj{Val: "ABCDEF+CustomSans"},
			"Flags":    raw.NumberInt(32),
			"Ascent":   raw.NumberInt(720),
			"Descent":  raw.NumberInt(-200),
		}},
	}}

	font, err := parseFont(fontDict, &mockResolver{})
	if err != nil {
		t.Fatalf("parseFont failed: %v", err)
	}
	if font.Subtype != "TrueType" {
		t.Fatalf("unexpected subtype: %q", font.Subtype)
	}
	if font.Widths[65] != 600 || font.Widths[67] != 700 {
		t.Fatalf("widths misindexed: %v", font.Widths)
	}
	if font.Descriptor == nil || font.Descriptor.Ascent != 720 {
		t.Fatalf("descriptor not parsed: %+v", font.Descriptor)
	}
}

func TestParseCIDWidths(t *testing.T) {
	// [ 1 [500 600] 10 12 250 ]
	arr := &raw.ArrayObj{Items: []raw.Object{
		raw.NumberInt(1),
		&raw.ArrayObj{Items: []raw.Object{raw.NumberInt(500), raw.NumberInt(600)}},
		raw.NumberInt(10), raw.NumberInt(12), raw.NumberInt(250),
	}}
	out := make(map[int]int)
	parseCIDWidths(arr, &mockResolver{}, out)

	want := map[int]int{1: 500, 2: 600, 10: 250, 11: 250, 12: 250}
	for cid, w := range want {
		if out[cid] != w {
			t.Fatalf("cid %d: expected %d, got %d", cid, w, out[cid])
		}
	}
}
