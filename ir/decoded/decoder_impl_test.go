package decoded

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
)

type uppercaseDecoder struct{}

func (uppercaseDecoder) Name() string { return "Upper" }
func (uppercaseDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out := make([]byte, len(in))
	for i, b := range in {
		if b >= 'a' && b <= 'z' {
			out[i] = b - 32
		} else {
			out[i] = b
		}
	}
	return out, nil
}

func TestDecoderAppliesFilters(t *testing.T) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Upper"))
	stream := raw.NewStream(dict, []byte("hello"))

	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1, Gen: 0}: stream,
		},
	}

	pipeline := filters.NewPipeline([]filters.Decoder{uppercaseDecoder{}}, filters.Limits{})
	dec := NewDecoder(pipeline)

	doc, err := dec.Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got := string(doc.Streams[raw.ObjectRef{Num: 1, Gen: 0}].Data())
	if got != "HELLO" {
		t.Fatalf("expected HELLO, got %s", got)
	}
}

func TestDecoderFlateStream(t *testing.T) {
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write([]byte("BT (hi) Tj ET"))
	zw.Close()

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	stream := raw.NewStream(dict, comp.Bytes())

	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 4, Gen: 0}: stream,
		},
	}

	pipeline := filters.NewPipeline(filters.StandardDecoders(), filters.Limits{})
	dec := NewDecoder(pipeline)

	doc, err := dec.Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := string(doc.Streams[raw.ObjectRef{Num: 4, Gen: 0}].Data()); got != "BT (hi) Tj ET" {
		t.Fatalf("unexpected data: %q", got)
	}
	if fl := doc.Streams[raw.ObjectRef{Num: 4, Gen: 0}].Filters(); len(fl) != 1 || fl[0] != "FlateDecode" {
		t.Fatalf("unexpected filters: %v", fl)
	}
}

func TestDecoderLeavesUnfilteredStreams(t *testing.T) {
	stream := raw.NewStream(raw.Dict(), []byte("plain"))
	rawDoc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 2, Gen: 0}: stream,
		},
	}

	dec := NewDecoder(filters.NewPipeline(filters.StandardDecoders(), filters.Limits{}))
	doc, err := dec.Decode(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := string(doc.Streams[raw.ObjectRef{Num: 2, Gen: 0}].Data()); got != "plain" {
		t.Fatalf("unexpected data: %q", got)
	}
}
