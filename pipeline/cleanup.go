package pipeline

import (
	"os"
	"time"

	"github.com/wudi/pdfredact/observability"
)

const (
	cleanupAttempts     = 5
	cleanupInitialDelay = 100 * time.Millisecond
)

// removeWithRetry deletes a temp file, retrying with a doubling backoff.
// Failure to clean up is logged as a warning and never fails the file.
func (p *Pipeline) removeWithRetry(path string) {
	if path == "" {
		return
	}
	delay := cleanupInitialDelay
	var lastErr error
	for attempt := 0; attempt < cleanupAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return
		}
		lastErr = err
	}
	p.log.Warn("temp file cleanup failed",
		observability.String("path", path),
		observability.Int("attempts", cleanupAttempts),
		observability.Error("error", lastErr))
}
