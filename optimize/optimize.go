// Package optimize performs structure cleanup before save: garbage
// collection of unreferenced objects and stream re-compression.
package optimize

import (
	"context"
	"fmt"

	"github.com/wudi/pdfredact/ir/raw"
)

type Config struct {
	// GarbageCollect drops objects unreachable from the trailer.
	GarbageCollect bool
	// CompressStreams re-encodes unfiltered streams with FlateDecode at
	// CompressionLevel. Level 0 disables compression.
	CompressStreams  bool
	CompressionLevel int
	// DecompressStreams decodes every filtered stream and stores it raw.
	DecompressStreams bool
}

type Optimizer struct {
	config Config
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config}
}

func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) error {
	if o.config.DecompressStreams {
		if err := o.decompressStreams(ctx, doc); err != nil {
			return fmt.Errorf("failed to decompress streams: %w", err)
		}
	}

	if o.config.GarbageCollect {
		if err := o.garbageCollect(ctx, doc); err != nil {
			return fmt.Errorf("failed to garbage collect: %w", err)
		}
	}

	if o.config.CompressStreams && o.config.CompressionLevel > 0 {
		if err := o.compressStreams(ctx, doc); err != nil {
			return fmt.Errorf("failed to compress streams: %w", err)
		}
	}

	return nil
}
