// Package toolchain drives an alternate redaction path built on external
// tools. qpdf rewrites the document into its editable QDF form and back,
// pdftotext provides the text used to decide whether anything matches.
// The same rule set as the native path performs the substitutions.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/redact"
)

// ErrToolMissing reports a required external binary absent from PATH.
var ErrToolMissing = errors.New("required tool not found")

// Options configure the external binaries.
type Options struct {
	// QpdfPath overrides the qpdf binary name or path.
	QpdfPath string
	// PdftotextPath overrides the pdftotext binary name or path.
	PdftotextPath string
	// Linearize adds a final qpdf --linearize pass over the output.
	Linearize bool
}

// Runner executes the external-tool pipeline for one rule set.
type Runner struct {
	qpdf      string
	pdftotext string
	linearize bool
	rules     *redact.RuleSet
	log       observability.Logger
}

// New resolves the external tools up front. A missing binary is a
// precondition failure, not something discovered mid-run.
func New(rules *redact.RuleSet, opts Options, log observability.Logger) (*Runner, error) {
	if rules == nil || rules.Len() == 0 {
		return nil, errors.New("no replacement rules")
	}
	if log == nil {
		log = observability.NopLogger{}
	}

	qpdf := opts.QpdfPath
	if qpdf == "" {
		qpdf = "qpdf"
	}
	pdftotext := opts.PdftotextPath
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}

	qpdfResolved, err := exec.LookPath(qpdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, qpdf)
	}
	pdftotextResolved, err := exec.LookPath(pdftotext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, pdftotext)
	}

	return &Runner{
		qpdf:      qpdfResolved,
		pdftotext: pdftotextResolved,
		linearize: opts.Linearize,
		rules:     rules,
		log:       log,
	}, nil
}

// Redact processes one file. It reports whether any replacement was
// applied; an unchanged input is copied to the output verbatim.
func (r *Runner) Redact(ctx context.Context, inputPath, outputPath string) (bool, error) {
	text, err := r.extractText(ctx, inputPath)
	if err != nil {
		return false, err
	}
	if _, changed, err := r.rules.Apply(ctx, text); err != nil {
		return false, err
	} else if !changed {
		r.log.Info("no matches, copying file as-is",
			observability.String("path", inputPath))
		return false, copyFile(inputPath, outputPath)
	}

	tempDir, err := os.MkdirTemp("", "pdfredact-tools-")
	if err != nil {
		return false, err
	}
	defer os.RemoveAll(tempDir)

	// QDF mode keeps streams uncompressed and objects in a stable,
	// editable layout. qpdf recomputes stream lengths on the way back.
	qdfPath := filepath.Join(tempDir, "working.qdf.pdf")
	if err := r.run(ctx, r.qpdf, "--qdf", "--object-streams=disable", inputPath, qdfPath); err != nil {
		return false, fmt.Errorf("qpdf decompress: %w", err)
	}

	data, err := os.ReadFile(qdfPath)
	if err != nil {
		return false, err
	}
	replaced, changed, err := r.rules.Apply(ctx, string(data))
	if err != nil {
		return false, err
	}
	if changed {
		if err := os.WriteFile(qdfPath, []byte(replaced), 0o644); err != nil {
			return false, err
		}
	} else {
		r.log.Warn("matches visible in extracted text but not in document bytes",
			observability.String("path", inputPath))
	}

	rebuilt := filepath.Join(tempDir, "rebuilt.pdf")
	if err := r.run(ctx, r.qpdf, qdfPath, rebuilt); err != nil {
		return false, fmt.Errorf("qpdf rebuild: %w", err)
	}

	if r.linearize {
		if err := r.run(ctx, r.qpdf, "--linearize", rebuilt, outputPath); err != nil {
			return false, fmt.Errorf("qpdf linearize: %w", err)
		}
		return changed, nil
	}
	return changed, copyFile(rebuilt, outputPath)
}

// extractText runs pdftotext in layout mode, writing to stdout.
func (r *Runner) extractText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, r.pdftotext, "-layout", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.String(), nil
}

func (r *Runner) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	r.log.Debug("executing tool",
		observability.String("tool", name),
		observability.String("args", fmt.Sprint(args)))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
