package redact

import (
	"fmt"
	"sort"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/fonts"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/ir/semantic"
	"github.com/wudi/pdfredact/observability"
)

// Applicator erases redacted regions from a page and draws replacement
// text. Work happens in three strict phases per page: mark every region,
// commit the erase of all glyph operators inside marked regions in one
// pass, then insert replacements. Interleaving erase and insert per span
// could erase a fresh insertion when regions overlap.
type Applicator struct {
	doc *raw.Document
	log observability.Logger

	// registered caches standard-font resource names per page apply.
	registered map[string]string
	// pending collects embedded fonts whose raw objects are written
	// after all inserts, once every used glyph is known.
	pending  map[string]*pendingType0
	nextFont int
}

// pendingType0 is an embedded font awaiting its raw object graph. The
// resource name is reserved at first use; used accumulates glyph IDs
// across every insert so the /W array covers them all.
type pendingType0 struct {
	font *semantic.Font
	name string
	dict raw.Dictionary
	used map[int]bool
}

func NewApplicator(doc *raw.Document, log observability.Logger) *Applicator {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Applicator{doc: doc, log: log}
}

// Apply mutates the page's content stream and resources in place and
// writes the result back into the raw document. A per-op insert failure
// leaves that region blank and continues; only structural failures
// (untraceable content) abort.
func (a *Applicator) Apply(page *semantic.Page, ops []RedactionOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(page.Contents) == 0 {
		return fmt.Errorf("page %d has no content stream", page.Index)
	}
	a.registered = make(map[string]string)
	a.pending = make(map[string]*pendingType0)

	// Mark.
	regions := make([]coords.Rect, len(ops))
	for i, op := range ops {
		regions[i] = op.BBox
	}

	// Commit.
	kept, err := a.eraseMarked(page, regions)
	if err != nil {
		return err
	}

	// Insert.
	for _, op := range ops {
		drawn, err := a.insert(page, op)
		if err != nil {
			a.log.Error("replacement insert failed, region left blank",
				observability.Int("page", page.Index),
				observability.String("font", op.BaseFont),
				observability.Error("error", err))
			continue
		}
		kept = append(kept, drawn...)
	}
	a.flushType0()

	page.Contents[0].Operations = kept
	return a.persistContent(page)
}

// eraseMarked removes every glyph-showing operator whose placed run
// intersects a marked region. The ' and " operators also move the line,
// so they are rewritten to keep their side effects.
func (a *Applicator) eraseMarked(page *semantic.Page, regions []coords.Rect) ([]semantic.Operation, error) {
	operations := page.Contents[0].Operations
	runs, err := contentstream.NewTracer().Trace(operations, page.Resources)
	if err != nil {
		return nil, fmt.Errorf("trace page %d: %w", page.Index, err)
	}

	erase := make(map[int]bool)
	for _, run := range runs {
		if !intersectsAny(run.Rect, regions) {
			continue
		}
		if run.FormDepth > 0 {
			a.log.Warn("matched text inside a form XObject cannot be erased",
				observability.Int("page", page.Index),
				observability.String("font", run.FontName))
			continue
		}
		erase[run.OpIndex] = true
	}

	kept := make([]semantic.Operation, 0, len(operations))
	for i, op := range operations {
		if !erase[i] {
			kept = append(kept, op)
			continue
		}
		switch op.Operator {
		case "'":
			kept = append(kept, semantic.Operation{Operator: "T*"})
		case "\"":
			if len(op.Operands) >= 2 {
				kept = append(kept,
					semantic.Operation{Operator: "Tw", Operands: op.Operands[:1]},
					semantic.Operation{Operator: "Tc", Operands: op.Operands[1:2]})
			}
			kept = append(kept, semantic.Operation{Operator: "T*"})
		}
		// Tj and TJ are dropped outright.
	}
	return kept, nil
}

func intersectsAny(r coords.Rect, regions []coords.Rect) bool {
	for _, region := range regions {
		if r.Intersects(region) {
			return true
		}
	}
	return false
}

// insert resolves a drawing font for the op and returns the operations
// that draw the replacement at the recorded baseline.
func (a *Applicator) insert(page *semantic.Page, op RedactionOp) ([]semantic.Operation, error) {
	var (
		resName string
		str     semantic.StringOperand
		err     error
	)
	if len(op.FontProgram) > 0 {
		resName, str, err = a.embeddedText(page, op)
	} else {
		resName, str, err = a.standardText(page, op)
	}
	if err != nil {
		return nil, err
	}

	r, g, b := op.Color.RGB()
	return []semantic.Operation{
		{Operator: "q"},
		{Operator: "BT"},
		{Operator: "Tf", Operands: []semantic.Operand{
			semantic.NameOperand{Value: resName},
			semantic.NumberOperand{Value: op.FontSize},
		}},
		{Operator: "rg", Operands: []semantic.Operand{
			semantic.NumberOperand{Value: r},
			semantic.NumberOperand{Value: g},
			semantic.NumberOperand{Value: b},
		}},
		{Operator: "Td", Operands: []semantic.Operand{
			semantic.NumberOperand{Value: op.Origin.X},
			semantic.NumberOperand{Value: op.Origin.Y},
		}},
		{Operator: "Tj", Operands: []semantic.Operand{str}},
		{Operator: "ET"},
		{Operator: "Q"},
	}, nil
}

// embeddedText reinstalls the span's original font program as a Type0
// Identity-H font and encodes the replacement as shaped glyph IDs. The
// raw font objects are written later by flushType0 so the /W array
// covers the glyphs of every op that drew with the font.
func (a *Applicator) embeddedText(page *semantic.Page, op RedactionOp) (string, semantic.StringOperand, error) {
	key := "emb:" + op.BaseFont
	reg := a.pending[key]

	var font *semantic.Font
	if reg != nil {
		font = reg.font
	} else {
		loaded, err := fonts.LoadTrueType(op.BaseFont, op.FontProgram)
		if err != nil {
			return "", semantic.StringOperand{}, err
		}
		font = loaded
	}

	glyphs, err := fonts.ShapeText(op.NewText, font)
	if err != nil {
		return "", semantic.StringOperand{}, err
	}
	if len(glyphs) == 0 {
		return "", semantic.StringOperand{}, fmt.Errorf("shaping %q produced no glyphs", op.NewText)
	}

	if reg == nil {
		name, fontDict, err := a.reserveFontName(page, font)
		if err != nil {
			return "", semantic.StringOperand{}, err
		}
		reg = &pendingType0{font: font, name: name, dict: fontDict, used: make(map[int]bool)}
		a.pending[key] = reg
	}
	for _, g := range glyphs {
		reg.used[g.ID] = true
	}

	encoded := make([]byte, 0, len(glyphs)*2)
	for _, g := range glyphs {
		encoded = append(encoded, byte(g.ID>>8), byte(g.ID))
	}
	return reg.name, semantic.StringOperand{Value: encoded, Hex: true}, nil
}

// flushType0 writes the object graph of every pending embedded font and
// binds it under its reserved resource name. Allocation cannot fail, so
// inserts that already reference the name stay valid.
func (a *Applicator) flushType0() {
	for _, reg := range a.pending {
		used := make([]int, 0, len(reg.used))
		for gid := range reg.used {
			used = append(used, gid)
		}
		ref := a.writeType0Objects(reg.font, used)
		reg.dict.Set(raw.NameLiteral(reg.name), raw.Ref(ref.Num, ref.Gen))
	}
}

// standardText maps the original face to a standard-14 font and encodes
// the replacement as WinAnsi text. Characters outside the encodable
// range degrade to '?'.
func (a *Applicator) standardText(page *semantic.Page, op RedactionOp) (string, semantic.StringOperand, error) {
	face := fonts.Fallback(op.BaseFont)
	key := "std:" + face
	name, ok := a.registered[key]
	if !ok {
		var err error
		name, err = a.registerStandard(page, face)
		if err != nil {
			return "", semantic.StringOperand{}, err
		}
		a.registered[key] = name
	}

	encoded := make([]byte, 0, len(op.NewText))
	for _, r := range op.NewText {
		if r < 32 || r > 126 {
			encoded = append(encoded, '?')
			continue
		}
		encoded = append(encoded, byte(r))
	}
	return name, semantic.StringOperand{Value: encoded}, nil
}

func (a *Applicator) registerStandard(page *semantic.Page, face string) (string, error) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(face))
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	ref := a.doc.Allocate(dict)

	font := fonts.Standard(face)
	return a.addFontResource(page, font, ref)
}

// writeType0Objects writes the Type0 font, its descendant CID font, the
// descriptor and the FontFile2 stream into the raw document and returns
// the top-level font ref. The /W array lists only the glyphs actually
// used; /DW covers the rest.
func (a *Applicator) writeType0Objects(font *semantic.Font, usedGlyphs []int) raw.ObjectRef {
	desc := font.Descriptor
	fileDict := raw.Dict()
	fileDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(desc.FontFile))))
	fileDict.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(desc.FontFile))))
	fileRef := a.doc.Allocate(raw.NewStream(fileDict, desc.FontFile))

	descDict := raw.Dict()
	descDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	descDict.Set(raw.NameLiteral("FontName"), raw.NameLiteral(desc.FontName))
	descDict.Set(raw.NameLiteral("Flags"), raw.NumberInt(int64(desc.Flags)))
	descDict.Set(raw.NameLiteral("ItalicAngle"), raw.NumberFloat(desc.ItalicAngle))
	descDict.Set(raw.NameLiteral("Ascent"), raw.NumberFloat(desc.Ascent))
	descDict.Set(raw.NameLiteral("Descent"), raw.NumberFloat(desc.Descent))
	descDict.Set(raw.NameLiteral("CapHeight"), raw.NumberFloat(desc.CapHeight))
	descDict.Set(raw.NameLiteral("StemV"), raw.NumberInt(int64(desc.StemV)))
	descDict.Set(raw.NameLiteral("FontBBox"), raw.NewArray(
		raw.NumberFloat(desc.FontBBox[0]), raw.NumberFloat(desc.FontBBox[1]),
		raw.NumberFloat(desc.FontBBox[2]), raw.NumberFloat(desc.FontBBox[3])))
	descDict.Set(raw.NameLiteral("FontFile2"), raw.Ref(fileRef.Num, fileRef.Gen))
	descRef := a.doc.Allocate(descDict)

	cid := font.DescendantFont
	sysDict := raw.Dict()
	sysDict.Set(raw.NameLiteral("Registry"), raw.Str([]byte(cid.CIDSystemInfo.Registry)))
	sysDict.Set(raw.NameLiteral("Ordering"), raw.Str([]byte(cid.CIDSystemInfo.Ordering)))
	sysDict.Set(raw.NameLiteral("Supplement"), raw.NumberInt(int64(cid.CIDSystemInfo.Supplement)))

	sort.Ints(usedGlyphs)
	wArr := raw.NewArray()
	for _, gid := range usedGlyphs {
		w, ok := cid.W[gid]
		if !ok {
			continue
		}
		wArr.Append(raw.NumberInt(int64(gid)))
		wArr.Append(raw.NewArray(raw.NumberInt(int64(w))))
	}

	cidDict := raw.Dict()
	cidDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	cidDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(cid.Subtype))
	cidDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(cid.BaseFont))
	cidDict.Set(raw.NameLiteral("CIDSystemInfo"), sysDict)
	cidDict.Set(raw.NameLiteral("DW"), raw.NumberInt(int64(cid.DW)))
	cidDict.Set(raw.NameLiteral("W"), wArr)
	cidDict.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	cidDict.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(descRef.Num, descRef.Gen))
	cidRef := a.doc.Allocate(cidDict)

	topDict := raw.Dict()
	topDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	topDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	topDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(font.BaseFont))
	topDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	topDict.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.Ref(cidRef.Num, cidRef.Gen)))
	return a.doc.Allocate(topDict)
}

// addFontResource binds the font into both the semantic resources (so
// re-extraction sees it) and the raw resource dictionary (so the writer
// emits it).
func (a *Applicator) addFontResource(page *semantic.Page, font *semantic.Font, fontRef raw.ObjectRef) (string, error) {
	name, fontDict, err := a.reserveFontName(page, font)
	if err != nil {
		return "", err
	}
	fontDict.Set(raw.NameLiteral(name), raw.Ref(fontRef.Num, fontRef.Gen))
	return name, nil
}

// reserveFontName binds the font into the semantic resources under a
// fresh name and returns the raw /Font dictionary the caller will point
// at the font's object once it exists.
func (a *Applicator) reserveFontName(page *semantic.Page, font *semantic.Font) (string, raw.Dictionary, error) {
	if page.Resources == nil {
		page.Resources = &semantic.Resources{}
	}
	if page.Resources.Fonts == nil {
		page.Resources.Fonts = make(map[string]*semantic.Font)
	}

	fontDict, err := a.ensureRawFontDict(page)
	if err != nil {
		return "", nil, err
	}

	name := a.freshFontName(page)
	font.Name = name
	page.Resources.Fonts[name] = font
	return name, fontDict, nil
}

func (a *Applicator) freshFontName(page *semantic.Page) string {
	for {
		a.nextFont++
		name := fmt.Sprintf("RF%d", a.nextFont)
		if _, taken := page.Resources.Fonts[name]; !taken {
			return name
		}
	}
}

// ensureRawFontDict walks (or builds) /Resources /Font for the page in
// the raw document.
func (a *Applicator) ensureRawFontDict(page *semantic.Page) (raw.Dictionary, error) {
	resDict := page.Resources.Dict
	if resDict == nil {
		pageObj, ok := a.doc.Objects[page.OriginalRef]
		if !ok {
			return nil, fmt.Errorf("page object %s not found", page.OriginalRef)
		}
		pageDict, ok := pageObj.(raw.Dictionary)
		if !ok {
			return nil, fmt.Errorf("page object %s is not a dictionary", page.OriginalRef)
		}
		resDict = raw.Dict()
		pageDict.Set(raw.NameLiteral("Resources"), resDict)
		page.Resources.Dict = resDict
	}

	fontObj, ok := resDict.Get(raw.NameLiteral("Font"))
	if ok {
		if ref, isRef := fontObj.(raw.Reference); isRef {
			fontObj, ok = a.doc.Objects[ref.Ref()]
			if !ok {
				return nil, fmt.Errorf("font dictionary %s not found", ref.Ref())
			}
		}
		if dict, isDict := fontObj.(raw.Dictionary); isDict {
			return dict, nil
		}
		return nil, fmt.Errorf("resource /Font is not a dictionary")
	}

	fontDict := raw.Dict()
	resDict.Set(raw.NameLiteral("Font"), fontDict)
	return fontDict, nil
}

// persistContent serializes the page's operations back into the raw
// document. The first original content stream carries the new bytes;
// any further streams are emptied rather than removed so array-valued
// /Contents entries stay valid.
func (a *Applicator) persistContent(page *semantic.Page) error {
	data := semantic.SerializeOperations(page.Contents[0].Operations)
	page.Contents[0].RawBytes = data

	refs := page.Contents[0].Refs
	if len(refs) == 0 {
		dict := raw.Dict()
		dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
		ref := a.doc.Allocate(raw.NewStream(dict, data))

		pageObj, ok := a.doc.Objects[page.OriginalRef]
		if !ok {
			return fmt.Errorf("page object %s not found", page.OriginalRef)
		}
		pageDict, ok := pageObj.(raw.Dictionary)
		if !ok {
			return fmt.Errorf("page object %s is not a dictionary", page.OriginalRef)
		}
		pageDict.Set(raw.NameLiteral("Contents"), raw.Ref(ref.Num, ref.Gen))
		page.Contents[0].Refs = []raw.ObjectRef{ref}
		return nil
	}

	first := raw.Dict()
	first.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	a.doc.Objects[refs[0]] = raw.NewStream(first, data)

	for _, ref := range refs[1:] {
		empty := raw.Dict()
		empty.Set(raw.NameLiteral("Length"), raw.NumberInt(0))
		a.doc.Objects[ref] = raw.NewStream(empty, nil)
	}
	return nil
}
