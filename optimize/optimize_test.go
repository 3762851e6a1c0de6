package optimize

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"github.com/wudi/pdfredact/ir/raw"
)

func testDoc() (*raw.Document, raw.ObjectRef, raw.ObjectRef) {
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object)}

	streamDict := raw.Dict()
	content := bytes.Repeat([]byte("BT (hello hello hello) Tj ET\n"), 20)
	streamDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(content))))
	contentRef := doc.Allocate(raw.NewStream(streamDict, content))

	pageDict := raw.Dict()
	pageDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	pageDict.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))
	pageRef := doc.Allocate(pageDict)

	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(pageRef.Num, pageRef.Gen)))
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	pagesRef := doc.Allocate(pagesDict)

	rootDict := raw.Dict()
	rootDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	rootDict.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	rootRef := doc.Allocate(rootDict)

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(rootRef.Num, rootRef.Gen))
	doc.Trailer = trailer

	return doc, contentRef, pageRef
}

func TestGarbageCollectDropsOrphans(t *testing.T) {
	doc, contentRef, pageRef := testDoc()
	orphan := doc.Allocate(raw.Str([]byte("dead object")))
	before := len(doc.Objects)

	opt := New(Config{GarbageCollect: true})
	if err := opt.Optimize(context.Background(), doc); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if _, ok := doc.Objects[orphan]; ok {
		t.Error("orphan object survived garbage collection")
	}
	if _, ok := doc.Objects[contentRef]; !ok {
		t.Error("reachable content stream was dropped")
	}
	if _, ok := doc.Objects[pageRef]; !ok {
		t.Error("reachable page was dropped")
	}
	if len(doc.Objects) != before-1 {
		t.Errorf("expected exactly one object removed, had %d now %d", before, len(doc.Objects))
	}
}

func TestCompressStreamsAddsFilter(t *testing.T) {
	doc, contentRef, _ := testDoc()
	original := doc.Objects[contentRef].(raw.Stream).RawData()

	opt := New(Config{CompressStreams: true, CompressionLevel: 9})
	if err := opt.Optimize(context.Background(), doc); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	stream := doc.Objects[contentRef].(raw.Stream)
	filter, ok := stream.Dictionary().Get(raw.NameLiteral("Filter"))
	if !ok {
		t.Fatal("no /Filter after compression")
	}
	if name, isName := filter.(raw.Name); !isName || name.Value() != "FlateDecode" {
		t.Fatalf("unexpected filter: %v", filter)
	}
	if len(stream.RawData()) >= len(original) {
		t.Error("compression did not shrink the stream")
	}

	r, err := zlib.NewReader(bytes.NewReader(stream.RawData()))
	if err != nil {
		t.Fatalf("compressed data is not zlib: %v", err)
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out.Bytes(), original) {
		t.Error("compression round trip mismatch")
	}
}

func TestCompressLevelZeroDisablesCompression(t *testing.T) {
	doc, contentRef, _ := testDoc()
	original := doc.Objects[contentRef].(raw.Stream).RawData()

	opt := New(Config{CompressStreams: true, CompressionLevel: 0})
	if err := opt.Optimize(context.Background(), doc); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	stream := doc.Objects[contentRef].(raw.Stream)
	if _, ok := stream.Dictionary().Get(raw.NameLiteral("Filter")); ok {
		t.Error("level 0 must not add a filter")
	}
	if !bytes.Equal(stream.RawData(), original) {
		t.Error("level 0 must leave data untouched")
	}
}

func TestDecompressStreamsRemovesFilter(t *testing.T) {
	doc, contentRef, _ := testDoc()

	opt := New(Config{CompressStreams: true, CompressionLevel: 6})
	if err := opt.Optimize(context.Background(), doc); err != nil {
		t.Fatalf("compress: %v", err)
	}
	compressed := doc.Objects[contentRef].(raw.Stream)
	if _, ok := compressed.Dictionary().Get(raw.NameLiteral("Filter")); !ok {
		t.Fatal("fixture not compressed")
	}

	opt = New(Config{DecompressStreams: true})
	if err := opt.Optimize(context.Background(), doc); err != nil {
		t.Fatalf("decompress: %v", err)
	}

	stream := doc.Objects[contentRef].(raw.Stream)
	if _, ok := stream.Dictionary().Get(raw.NameLiteral("Filter")); ok {
		t.Error("filter entry survived decompression")
	}
	if !bytes.Contains(stream.RawData(), []byte("hello hello hello")) {
		t.Error("decompressed data does not match original content")
	}
	length, _ := stream.Dictionary().Get(raw.NameLiteral("Length"))
	if n, ok := length.(raw.Number); !ok || n.Int() != stream.Length() {
		t.Error("length entry not updated")
	}
}

func TestCompressSkipsStreamsThatWouldGrow(t *testing.T) {
	doc := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object)}
	dict := raw.Dict()
	tiny := []byte{0x01}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(1))
	ref := doc.Allocate(raw.NewStream(dict, tiny))
	doc.Trailer = raw.Dict()

	opt := New(Config{CompressStreams: true, CompressionLevel: 9})
	if err := opt.Optimize(context.Background(), doc); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if _, ok := doc.Objects[ref].(raw.Stream).Dictionary().Get(raw.NameLiteral("Filter")); ok {
		t.Error("incompressible stream should stay raw")
	}
}
