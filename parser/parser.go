// Package parser builds a raw.Document from PDF bytes: xref resolution,
// object loading (including object streams), metadata extraction and
// encryption detection.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/scanner"
	"github.com/wudi/pdfredact/xref"
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	XRef        xref.ResolverConfig
	Scanner     scanner.Config
	MaxIndirect int
	Cache       Cache
}

const defaultMaxIndirect = 64

// DocumentParser builds a raw.Document using xref tables/streams and the
// object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.MaxIndirect == 0 {
		cfg.MaxIndirect = defaultMaxIndirect
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	resolver := xref.NewResolver(p.cfg.XRef)
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}

	builder := &ObjectLoaderBuilder{}
	loader, err := builder.
		WithReader(r).
		WithXRef(table).
		WithScannerConfig(p.cfg.Scanner).
		WithMaxDepth(p.cfg.MaxIndirect).
		WithCache(p.cfg.Cache).
		Build()
	if err != nil {
		return nil, err
	}

	trailer := resolver.Trailer()
	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: trailer,
		Version: detectHeaderVersion(r),
	}
	if trailer != nil {
		if _, ok := trailer.Get(raw.NameObj{Val: "Encrypt"}); ok {
			doc.Encrypted = true
		}
	}

	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free head entry
		}
		_, gen, found := table.Lookup(objNum)
		if !found {
			// entry lives in an object stream
			gen = 0
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load object %d: %w", objNum, err)
		}
		doc.Objects[ref] = obj
	}

	if doc.Trailer != nil {
		populateMetadata(doc)
	}

	return doc, nil
}

func populateMetadata(doc *raw.Document) {
	infoObj, ok := doc.Trailer.Get(raw.NameObj{Val: "Info"})
	if !ok {
		return
	}
	var dict *raw.DictObj
	switch v := infoObj.(type) {
	case raw.RefObj:
		obj, ok := doc.Objects[v.R]
		if !ok {
			return
		}
		dict, _ = obj.(*raw.DictObj)
	case *raw.DictObj:
		dict = v
	}
	if dict == nil {
		return
	}
	md := raw.DocumentMetadata{}
	if v, ok := stringValue(dict, "Title"); ok {
		md.Title = v
	}
	if v, ok := stringValue(dict, "Author"); ok {
		md.Author = v
	}
	if v, ok := stringValue(dict, "Creator"); ok {
		md.Creator = v
	}
	if v, ok := stringValue(dict, "Producer"); ok {
		md.Producer = v
	}
	if v, ok := stringValue(dict, "Subject"); ok {
		md.Subject = v
	}
	if v, ok := stringValue(dict, "Keywords"); ok {
		md.Keywords = v
	}
	doc.Metadata = md
}

func stringValue(dict *raw.DictObj, key string) (string, bool) {
	obj, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return "", false
	}
	str, ok := obj.(raw.StringObj)
	if !ok {
		return "", false
	}
	return string(str.Value()), true
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 64)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	line := string(buf[:n])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:])
	}
	return ""
}
