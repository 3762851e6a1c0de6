package semantic

import (
	"context"
	"fmt"

	"github.com/wudi/pdfredact/ir/decoded"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

// NewBuilder returns a semantic builder that parses the page tree,
// resources, and content streams of a decoded document.
func NewBuilder(log observability.Logger) Builder {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &builderImpl{log: log}
}

type builderImpl struct {
	log observability.Logger
}

func (b *builderImpl) Build(ctx context.Context, dec *decoded.DecodedDocument) (*Document, error) {
	doc := &Document{
		decoded:   dec,
		Encrypted: dec.Encrypted,
	}

	if dec.Raw == nil || dec.Raw.Trailer == nil {
		return doc, nil
	}

	resolver := &docResolver{doc: dec.Raw, streams: dec.Streams}

	doc.Info = &DocumentInfo{
		Title:    dec.Raw.Metadata.Title,
		Author:   dec.Raw.Metadata.Author,
		Subject:  dec.Raw.Metadata.Subject,
		Creator:  dec.Raw.Metadata.Creator,
		Producer: dec.Raw.Metadata.Producer,
		Keywords: dec.Raw.Metadata.Keywords,
	}

	rootObj, ok := dec.Raw.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil, fmt.Errorf("trailer missing Root")
	}
	catalog, ok := resolveDict(rootObj, resolver)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary")
	}

	if langObj, ok := catalog.Get(raw.NameLiteral("Lang")); ok {
		if s, ok := langObj.(raw.StringObj); ok {
			doc.Lang = string(s.Value())
		}
	}

	pagesObj, ok := catalog.Get(raw.NameLiteral("Pages"))
	if !ok {
		return nil, fmt.Errorf("catalog missing Pages")
	}
	pages, err := parsePages(pagesObj, resolver, inheritedPageProps{}, b.log)
	if err != nil {
		return nil, fmt.Errorf("parse page tree: %w", err)
	}
	for i, p := range pages {
		p.Index = i
	}
	doc.Pages = pages

	return doc, nil
}

// rawResolver resolves indirect references against a document.
type rawResolver interface {
	Resolve(ref raw.ObjectRef) (raw.Object, error)
	// StreamData returns decoded stream bytes for ref when available.
	StreamData(ref raw.ObjectRef) ([]byte, bool)
}

type docResolver struct {
	doc     *raw.Document
	streams map[raw.ObjectRef]decoded.Stream
}

func (r *docResolver) Resolve(ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := r.doc.Objects[ref]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %v not found", ref)
}

func (r *docResolver) StreamData(ref raw.ObjectRef) ([]byte, bool) {
	if s, ok := r.streams[ref]; ok {
		return s.Data(), true
	}
	return nil, false
}

func resolveDict(obj raw.Object, resolver rawResolver) (*raw.DictObj, bool) {
	if ref, ok := obj.(raw.Reference); ok {
		resolved, err := resolver.Resolve(ref.Ref())
		if err != nil {
			return nil, false
		}
		obj = resolved
	}
	dict, ok := obj.(*raw.DictObj)
	return dict, ok
}
