package optimize

import (
	"context"
	"fmt"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
)

// compressStreams flate-encodes every unfiltered stream. Streams that
// would grow are left alone.
func (o *Optimizer) compressStreams(ctx context.Context, doc *raw.Document) error {
	for ref, obj := range doc.Objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		if _, filtered := stream.Dictionary().Get(raw.NameLiteral("Filter")); filtered {
			continue
		}
		data := stream.RawData()
		if len(data) == 0 {
			continue
		}

		encoded, err := filters.FlateEncode(data, o.config.CompressionLevel)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		if len(encoded) >= len(data) {
			continue
		}

		dict := copyDict(stream.Dictionary())
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
		dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(encoded))))
		doc.Objects[ref] = raw.NewStream(dict, encoded)
	}
	return nil
}

// decompressStreams decodes filtered streams and stores them raw.
func (o *Optimizer) decompressStreams(ctx context.Context, doc *raw.Document) error {
	pipeline := filters.NewPipeline(filters.StandardDecoders(), filters.Limits{MaxDecompressedSize: 1 << 30})

	for ref, obj := range doc.Objects {
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		names, params := filters.ExtractFilters(stream.Dictionary())
		if len(names) == 0 {
			continue
		}

		decoded, err := pipeline.Decode(ctx, stream.RawData(), names, params)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}

		dict := copyDict(stream.Dictionary())
		dict.Delete(raw.NameLiteral("Filter"))
		dict.Delete(raw.NameLiteral("DecodeParms"))
		dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(decoded))))
		doc.Objects[ref] = raw.NewStream(dict, decoded)
	}
	return nil
}

func copyDict(src raw.Dictionary) *raw.DictObj {
	dst := raw.Dict()
	for _, key := range src.Keys() {
		if v, ok := src.Get(key); ok {
			dst.Set(key, v)
		}
	}
	return dst
}
