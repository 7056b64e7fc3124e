package report

import (
	"io"

	"github.com/nao1215/roomscout/internal/model"
)

// Writer defines the interface for report output.
// Implementations write search results in various formats.
type Writer interface {
	// Write outputs the listing records of a search.
	// Returns the number of bytes written and any error encountered.
	Write(records []model.ListingRecord) (int, error)

	// WriteRun outputs a whole run: identity, URLs, diagnostics and records.
	WriteRun(run *model.SearchRun) (int, error)

	// WriteDiff outputs the difference between two runs of one query.
	WriteDiff(diff *model.RunDiff) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the records to all configured Writers.
// Returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(records []model.ListingRecord) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(records) })
}

// WriteRun outputs the run to all configured Writers.
func (m *MultiWriter) WriteRun(run *model.SearchRun) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteRun(run) })
}

// WriteDiff outputs the diff to all configured Writers.
func (m *MultiWriter) WriteDiff(diff *model.RunDiff) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteDiff(diff) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// orEmpty maps a nil record list to an empty one so JSON shows [].
func orEmpty(records []model.ListingRecord) []model.ListingRecord {
	if records == nil {
		return []model.ListingRecord{}
	}
	return records
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
