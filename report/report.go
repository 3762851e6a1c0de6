// Package report renders a batch run summary as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/wudi/pdfredact/pipeline"
)

// Report captures everything worth showing about one run.
type Report struct {
	Started  time.Time
	Finished time.Time
	Summary  *pipeline.Summary
}

// New snapshots a finished run.
func New(started, finished time.Time, summary *pipeline.Summary) *Report {
	return &Report{Started: started, Finished: finished, Summary: summary}
}

// Markdown renders the report as GitHub-flavored Markdown.
func (r *Report) Markdown() string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString("# Redaction run report\n\n")
	fmt.Fprintf(&sb, "- Started: %s\n", r.Started.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- Duration: %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintf(&sb, "- Files: %d total, %d succeeded, %d failed\n", s.Total, s.Succeeded, s.Failed)
	fmt.Fprintf(&sb, "- Replaced spans: %d\n\n", s.Changes)

	if len(s.Results) > 0 {
		sb.WriteString("## Processed files\n\n")
		sb.WriteString("| File | Spans replaced | Output | Size delta |\n")
		sb.WriteString("| --- | ---: | --- | ---: |\n")
		for _, res := range s.Results {
			status := "rewritten"
			if res.Copied {
				status = "copied verbatim"
			}
			fmt.Fprintf(&sb, "| %s | %d | %s | %s |\n",
				filepath.Base(res.Input), res.Changed, status, sizeDelta(res.Input, res.Output))
		}
		sb.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		sb.WriteString("## Skipped files\n\n")
		paths := make([]string, 0, len(s.Failures))
		for p := range s.Failures {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&sb, "- `%s`: %v\n", filepath.Base(p), s.Failures[p])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteHTML converts the Markdown report to HTML.
func (r *Report) WriteHTML(w io.Writer) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Save writes the report to path, as HTML for .html/.htm and as
// Markdown otherwise.
func (r *Report) Save(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		var buf bytes.Buffer
		if err := r.WriteHTML(&buf); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0o644)
	}
	return os.WriteFile(path, []byte(r.Markdown()), 0o644)
}

func sizeDelta(inputPath, outputPath string) string {
	in, err := os.Stat(inputPath)
	if err != nil {
		return "n/a"
	}
	out, err := os.Stat(outputPath)
	if err != nil {
		return "n/a"
	}
	delta := out.Size() - in.Size()
	if delta >= 0 {
		return fmt.Sprintf("+%d B", delta)
	}
	return fmt.Sprintf("%d B", delta)
}
