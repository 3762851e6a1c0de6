package decoded

import (
	"context"

	"github.com/wudi/pdfredact/ir/raw"
)

// Object wraps a raw object after decoding.
type Object interface {
	Raw() raw.Object
	Type() string
}

// Stream represents a decoded PDF stream (decompressed).
type Stream interface {
	Object
	Dictionary() raw.Dictionary
	Data() []byte
	Filters() []string
}

// DecodedDocument contains decoded streams plus a back-reference to the raw doc.
type DecodedDocument struct {
	Raw       *raw.Document
	Streams   map[raw.ObjectRef]Stream
	Encrypted bool
}

// Decoder transforms Raw IR into Decoded IR (applies stream filters).
type Decoder interface {
	Decode(ctx context.Context, rawDoc *raw.Document) (*DecodedDocument, error)
}
