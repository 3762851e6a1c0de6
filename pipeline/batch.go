package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wudi/pdfredact/observability"
)

// Summary aggregates a directory run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Changes   int
	Results   []Result
	// Failures records the error per skipped file, keyed by input path.
	Failures map[string]error
}

// ProcessDirectory processes every .pdf in inputDir sequentially, in
// lexical order, writing each result under outputDir with the same base
// name. Any per-file error skips that file and is recorded in the
// summary; only context cancellation aborts the batch.
func (p *Pipeline) ProcessDirectory(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, wrap(ErrFileAccess, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, wrap(ErrFileAccess, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	summary := &Summary{Failures: make(map[string]error)}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++
		in := filepath.Join(inputDir, name)
		out := filepath.Join(outputDir, name)

		result, err := p.ProcessFile(ctx, in, out)
		if err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			summary.Failed++
			summary.Failures[in] = err
			p.log.Error("skipping file",
				observability.String("path", in),
				observability.Error("error", err))
			continue
		}
		summary.Succeeded++
		summary.Changes += result.Changed
		summary.Results = append(summary.Results, *result)
	}
	return summary, nil
}
