package pipeline

import (
	"bytes"
	"context"
	"os"

	"github.com/wudi/pdfredact/ir"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

// Info describes a document without modifying it.
type Info struct {
	Path        string
	FileSize    int64
	Version     string
	PageCount   int
	ObjectCount int
	Encrypted   bool
	Compressed  bool
	Metadata    raw.DocumentMetadata
}

// Inspect parses a file and reports its structure. It needs no rule
// set; encrypted documents are reported, not rejected.
func Inspect(ctx context.Context, path string, log observability.Logger) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap(ErrFileAccess, err)
	}
	rawDoc, err := ir.NewDefault(log).ParseRaw(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, wrap(ErrDocumentParse, err)
	}
	return &Info{
		Path:        path,
		FileSize:    int64(len(data)),
		Version:     rawDoc.Version,
		PageCount:   countPages(rawDoc),
		ObjectCount: len(rawDoc.Objects),
		Encrypted:   rawDoc.Encrypted,
		Compressed:  hasCompressedStreams(rawDoc),
		Metadata:    rawDoc.Metadata,
	}, nil
}

// countPages walks Trailer -> /Root -> /Pages and reads /Count. A
// malformed tree yields zero rather than an error.
func countPages(doc *raw.Document) int {
	if doc.Trailer == nil {
		return 0
	}
	catalog, ok := resolveDict(doc, doc.Trailer, "Root")
	if !ok {
		return 0
	}
	pages, ok := resolveDict(doc, catalog, "Pages")
	if !ok {
		return 0
	}
	count, ok := pages.Get(raw.NameLiteral("Count"))
	if !ok {
		return 0
	}
	num, ok := resolve(doc, count).(raw.Number)
	if !ok {
		return 0
	}
	return int(num.Int())
}

func resolveDict(doc *raw.Document, dict raw.Dictionary, key string) (raw.Dictionary, bool) {
	obj, ok := dict.Get(raw.NameLiteral(key))
	if !ok {
		return nil, false
	}
	d, ok := resolve(doc, obj).(raw.Dictionary)
	return d, ok
}

func resolve(doc *raw.Document, obj raw.Object) raw.Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(raw.Reference)
		if !ok {
			return obj
		}
		next, ok := doc.Objects[ref.Ref()]
		if !ok {
			return nil
		}
		obj = next
	}
	return nil
}
