// Package pipeline orchestrates per-file processing: open, inspect,
// optional decompression, page redaction, save policy, and temp cleanup,
// plus sequential batch-directory runs.
package pipeline

import (
	"errors"
	"fmt"
)

// Error taxonomy. Batch mode skips a file on ErrFileAccess,
// ErrDocumentParse and ErrSave; single-file mode treats them as fatal.
// ErrConfig aborts before any file is touched. Span-level processing
// failures degrade in place and never surface here.
var (
	ErrConfig        = errors.New("configuration error")
	ErrFileAccess    = errors.New("file access error")
	ErrDocumentParse = errors.New("document parse error")
	ErrProcessing    = errors.New("processing error")
	ErrSave          = errors.New("save error")
)

func wrap(kind error, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...)
}
