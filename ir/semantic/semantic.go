// Package semantic models a parsed PDF at the page level: the page
// tree, per-page resources, fonts, and content stream operations.
package semantic

import (
	"context"

	"github.com/wudi/pdfredact/ir/decoded"
	"github.com/wudi/pdfredact/ir/raw"
)

// Document is the semantic representation of a PDF.
type Document struct {
	Pages     []*Page
	Info      *DocumentInfo
	Lang      string
	Encrypted bool
	decoded   *decoded.DecodedDocument
}

// Decoded returns the underlying decoded document (if set).
func (d *Document) Decoded() *decoded.DecodedDocument { return d.decoded }

// Page models a single PDF page.
type Page struct {
	Index       int
	MediaBox    Rectangle
	CropBox     Rectangle
	Rotate      int // degrees: 0/90/180/270
	Resources   *Resources
	Contents    []ContentStream
	OriginalRef raw.ObjectRef
}

// ContentStream is a sequence of operations on a page.
type ContentStream struct {
	Operations []Operation
	RawBytes   []byte
	// Refs are the raw stream objects this content came from, in order.
	Refs []raw.ObjectRef
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

type StringOperand struct {
	Value []byte
	Hex   bool
}

func (StringOperand) operand()     {}
func (StringOperand) Type() string { return "string" }

type BoolOperand struct{ Value bool }

func (BoolOperand) operand()     {}
func (BoolOperand) Type() string { return "bool" }

type NullOperand struct{}

func (NullOperand) operand()     {}
func (NullOperand) Type() string { return "null" }

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) operand()     {}
func (ArrayOperand) Type() string { return "array" }

type DictOperand struct{ Values map[string]Operand }

func (DictOperand) operand()     {}
func (DictOperand) Type() string { return "dict" }

type InlineImageOperand struct {
	Image DictOperand
	Data  []byte
}

func (InlineImageOperand) operand()     {}
func (InlineImageOperand) Type() string { return "inline_image" }

// Resources holds per-page resources with inheritance applied.
type Resources struct {
	Fonts       map[string]*Font
	XObjects    map[string]*XObject
	OriginalRef raw.ObjectRef
	// Dict is the raw resource dictionary, kept so edits can add entries.
	Dict raw.Dictionary
}

// Font represents a font resource.
type Font struct {
	Name           string // resource name, e.g. F1
	Subtype        string // Type1 (default), TrueType, Type0, Type3
	BaseFont       string
	Encoding       string
	EncodingDict   *EncodingDict
	FirstChar      int
	Widths         map[int]int // character code -> width (1000 units/em)
	ToUnicodeCMap  []byte      // decoded ToUnicode CMap stream
	DescendantFont *CIDFont
	Descriptor     *FontDescriptor
	OriginalRef    raw.ObjectRef
}

// EncodingDict represents a custom encoding dictionary.
type EncodingDict struct {
	BaseEncoding string
	Differences  []EncodingDifference
}

// EncodingDifference maps a character code to a glyph name.
type EncodingDifference struct {
	Code int
	Name string
}

// CIDFont describes a descendant font for Type0 fonts.
type CIDFont struct {
	Subtype         string // CIDFontType0 or CIDFontType2
	BaseFont        string
	CIDSystemInfo   CIDSystemInfo
	DW              int
	W               map[int]int // CID -> width
	CIDToGIDMapName string      // e.g. "Identity"
	Descriptor      *FontDescriptor
}

// CIDSystemInfo describes the registry/ordering of a CID font.
type CIDSystemInfo struct {
	Registry   string
	Ordering   string
	Supplement int
}

// FontDescriptor carries metrics and font file embedding details.
type FontDescriptor struct {
	FontName     string
	Flags        int
	ItalicAngle  float64
	Ascent       float64
	Descent      float64
	CapHeight    float64
	StemV        int
	FontBBox     [4]float64
	FontFile     []byte // decoded embedded font program
	FontFileType string // FontFile, FontFile2, or FontFile3
}

// XObject describes a referenced form or image XObject.
type XObject struct {
	Subtype     string // Image or Form
	Width       int
	Height      int
	BBox        Rectangle
	Matrix      []float64
	Resources   *Resources
	Data        []byte // decoded content for Form XObjects
	OriginalRef raw.ObjectRef
}

// Rectangle represents a PDF rectangle in default user space.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// DocumentInfo models /Info dictionary values.
type DocumentInfo struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
	Keywords string
}

// Builder produces a semantic document from decoded IR.
type Builder interface {
	Build(ctx context.Context, dec *decoded.DecodedDocument) (*Document, error)
}
