package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/wudi/pdfredact/extractor"
	"github.com/wudi/pdfredact/ir"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/optimize"
	"github.com/wudi/pdfredact/redact"
	"github.com/wudi/pdfredact/writer"
)

// Options control the save policy.
type Options struct {
	// PreserveCompression re-compresses the output iff the input held
	// at least one compressed stream.
	PreserveCompression bool
	// CompressionLevel is the zlib level used when compressing (0-9).
	CompressionLevel int
}

// Result describes one processed file.
type Result struct {
	Input   string
	Output  string
	Changed int
	// Copied is set when no span matched and the input bytes were
	// copied verbatim.
	Copied bool
}

// Pipeline processes files one at a time with an immutable rule set.
type Pipeline struct {
	rules *redact.RuleSet
	opts  Options
	log   observability.Logger
	ir    *ir.Pipeline
}

func New(rules *redact.RuleSet, opts Options, log observability.Logger) (*Pipeline, error) {
	if rules == nil || rules.Len() == 0 {
		return nil, wrapf(ErrConfig, "no replacement rules")
	}
	if opts.CompressionLevel < 0 || opts.CompressionLevel > 9 {
		return nil, wrapf(ErrConfig, "compression level %d out of range 0-9", opts.CompressionLevel)
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Pipeline{rules: rules, opts: opts, log: log, ir: ir.NewDefault(log)}, nil
}

// ProcessFile runs the per-file state machine:
// OPEN -> INSPECT -> (DECOMPRESS?) -> PROCESS_PAGES -> SAVE -> CLEANUP.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	result := &Result{Input: inputPath, Output: outputPath}

	// OPEN
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, wrap(ErrFileAccess, err)
	}

	// INSPECT
	rawDoc, err := p.ir.ParseRaw(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, wrap(ErrDocumentParse, err)
	}
	if rawDoc.Encrypted {
		return nil, wrapf(ErrDocumentParse, "%s is encrypted", inputPath)
	}
	wasCompressed := hasCompressedStreams(rawDoc)
	p.log.Debug("inspected input",
		observability.String("path", inputPath),
		observability.Bool("compressed", wasCompressed),
		observability.Int("objects", len(rawDoc.Objects)))

	// DECOMPRESS
	var tempPath string
	if wasCompressed {
		tempPath, rawDoc, err = p.decompressToWorkingCopy(ctx, inputPath, data, rawDoc)
		if err != nil {
			p.removeWithRetry(tempPath)
			return nil, err
		}
		defer p.removeWithRetry(tempPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// PROCESS_PAGES
	changed, err := p.processPages(ctx, rawDoc)
	if err != nil {
		return nil, err
	}
	result.Changed = changed

	if changed == 0 {
		// Byte-for-byte copy so untouched documents do not get
		// re-encoded.
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return nil, wrap(ErrFileAccess, err)
		}
		result.Copied = true
		p.log.Info("no matches, copied input verbatim",
			observability.String("path", inputPath))
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// SAVE
	if err := p.save(ctx, rawDoc, outputPath, wasCompressed); err != nil {
		return nil, err
	}
	p.log.Info("processed file",
		observability.String("input", inputPath),
		observability.String("output", outputPath),
		observability.Int("changedSpans", changed))
	return result, nil
}

// decompressToWorkingCopy writes a fully-decompressed working copy next
// to the temp dir and reparses it. A decode failure is not fatal: the
// original bytes are copied to the temp path instead.
func (p *Pipeline) decompressToWorkingCopy(ctx context.Context, inputPath string, data []byte, rawDoc *raw.Document) (string, *raw.Document, error) {
	temp, err := os.CreateTemp("", "pdfredact-*"+filepath.Ext(inputPath))
	if err != nil {
		return "", nil, wrap(ErrFileAccess, err)
	}
	tempPath := temp.Name()

	working := data
	opt := optimize.New(optimize.Config{DecompressStreams: true})
	if err := opt.Optimize(ctx, rawDoc); err == nil {
		var buf bytes.Buffer
		if werr := writer.New().Write(ctx, rawDoc, &buf); werr == nil {
			working = buf.Bytes()
		} else {
			p.log.Warn("could not write decompressed copy, using original bytes",
				observability.Error("error", werr))
		}
	} else {
		p.log.Warn("decompression failed, using original bytes",
			observability.String("path", inputPath),
			observability.Error("error", err))
	}

	if _, err := temp.Write(working); err != nil {
		temp.Close()
		return tempPath, nil, wrap(ErrFileAccess, err)
	}
	if err := temp.Close(); err != nil {
		return tempPath, nil, wrap(ErrFileAccess, err)
	}

	reparsed, err := p.ir.ParseRaw(ctx, bytes.NewReader(working))
	if err != nil {
		return tempPath, nil, wrap(ErrDocumentParse, err)
	}
	return tempPath, reparsed, nil
}

// processPages locates and applies redactions page by page, strictly
// sequentially, and returns the total number of changed spans.
func (p *Pipeline) processPages(ctx context.Context, rawDoc *raw.Document) (int, error) {
	semDoc, err := p.ir.Build(ctx, rawDoc)
	if err != nil {
		return 0, wrap(ErrDocumentParse, err)
	}

	ext, err := extractor.New(semDoc)
	if err != nil {
		return 0, wrap(ErrDocumentParse, err)
	}
	locator := redact.NewLocator(p.rules, ext, p.log)
	applicator := redact.NewApplicator(rawDoc, p.log)

	changed := 0
	for _, page := range semDoc.Pages {
		ops, err := locator.Locate(ctx, page)
		if err != nil {
			return 0, wrap(ErrProcessing, err)
		}
		if len(ops) == 0 {
			continue
		}
		if err := applicator.Apply(page, ops); err != nil {
			return 0, wrap(ErrProcessing, err)
		}
		changed += len(ops)
		p.log.Debug("redacted page",
			observability.Int("page", page.Index),
			observability.Int("spans", len(ops)))
	}
	return changed, nil
}

// save applies the compression policy, garbage-collects and writes the
// final file. Compression is re-enabled only when the input itself was
// compressed.
func (p *Pipeline) save(ctx context.Context, rawDoc *raw.Document, outputPath string, wasCompressed bool) error {
	opt := optimize.New(optimize.Config{
		GarbageCollect:   true,
		CompressStreams:  p.opts.PreserveCompression && wasCompressed,
		CompressionLevel: p.opts.CompressionLevel,
	})
	if err := opt.Optimize(ctx, rawDoc); err != nil {
		return wrap(ErrSave, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return wrap(ErrSave, err)
	}
	if err := writer.New().Write(ctx, rawDoc, out); err != nil {
		out.Close()
		os.Remove(outputPath)
		return wrap(ErrSave, err)
	}
	if err := out.Close(); err != nil {
		return wrap(ErrSave, err)
	}
	return nil
}

// hasCompressedStreams reports whether any indirect object carries a
// stream filter.
func hasCompressedStreams(doc *raw.Document) bool {
	for _, obj := range doc.Objects {
		stream, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		if _, filtered := stream.Dictionary().Get(raw.NameLiteral("Filter")); filtered {
			return true
		}
	}
	return false
}
