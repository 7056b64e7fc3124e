package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/roomscout/internal/model"
)

// SaveJSON writes records to path as a pretty-printed JSON array,
// creating parent directories and replacing any existing file.
func SaveJSON(path string, records []model.ListingRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// #nosec G304 -- path is the user's --output flag
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := NewJSONWriter(f, WithPrettyPrint()).Write(records); err != nil {
		_ = f.Close() //nolint:errcheck // write already failed
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}
