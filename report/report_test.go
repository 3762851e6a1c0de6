package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wudi/pdfredact/pipeline"
)

func sampleSummary(t *testing.T) *pipeline.Summary {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "invoice.pdf")
	out := filepath.Join(dir, "invoice-out.pdf")
	if err := os.WriteFile(in, bytes.Repeat([]byte("a"), 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, bytes.Repeat([]byte("a"), 80), 0o644); err != nil {
		t.Fatal(err)
	}
	return &pipeline.Summary{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Changes:   3,
		Results: []pipeline.Result{
			{Input: in, Output: out, Changed: 3},
		},
		Failures: map[string]error{
			filepath.Join(dir, "broken.pdf"): errors.New("parse failed"),
		},
	}
}

func TestMarkdownContainsCountsAndFiles(t *testing.T) {
	started := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	r := New(started, started.Add(2*time.Second), sampleSummary(t))

	md := r.Markdown()
	for _, want := range []string{
		"2 total, 1 succeeded, 1 failed",
		"Replaced spans: 3",
		"invoice.pdf",
		"-20 B",
		"broken.pdf",
		"parse failed",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWriteHTMLRendersTable(t *testing.T) {
	now := time.Now()
	r := New(now, now, sampleSummary(t))

	var buf bytes.Buffer
	if err := r.WriteHTML(&buf); err != nil {
		t.Fatalf("write html: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "<table>") {
		t.Error("table not rendered")
	}
	if !strings.Contains(html, "<h1") {
		t.Error("heading not rendered")
	}
	if !strings.Contains(html, "invoice.pdf") {
		t.Error("file row missing")
	}
}

func TestSavePicksFormatByExtension(t *testing.T) {
	now := time.Now()
	r := New(now, now, sampleSummary(t))
	dir := t.TempDir()

	htmlPath := filepath.Join(dir, "run.html")
	if err := r.Save(htmlPath); err != nil {
		t.Fatalf("save html: %v", err)
	}
	data, _ := os.ReadFile(htmlPath)
	if !strings.Contains(string(data), "<h1") {
		t.Error("html file does not look like HTML")
	}

	mdPath := filepath.Join(dir, "run.md")
	if err := r.Save(mdPath); err != nil {
		t.Fatalf("save markdown: %v", err)
	}
	data, _ = os.ReadFile(mdPath)
	if !strings.HasPrefix(string(data), "# Redaction run report") {
		t.Error("markdown file does not look like Markdown")
	}
}

func TestMarkdownEmptyRun(t *testing.T) {
	now := time.Now()
	r := New(now, now, &pipeline.Summary{})
	md := r.Markdown()
	if strings.Contains(md, "## Processed files") || strings.Contains(md, "## Skipped files") {
		t.Error("empty run should not emit file sections")
	}
}
