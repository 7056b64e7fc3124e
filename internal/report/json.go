package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/roomscout/internal/model"
)

// JSONWriter outputs reports in JSON format.
// Records are written as a bare array, the format of the output file.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the records as a JSON array. No records writes [].
func (w *JSONWriter) Write(records []model.ListingRecord) (int, error) {
	return w.writeJSON(orEmpty(records))
}

// WriteRun outputs the whole run as a JSON object.
func (w *JSONWriter) WriteRun(run *model.SearchRun) (int, error) {
	return w.writeJSON(run)
}

// WriteDiff outputs the diff as a JSON object.
func (w *JSONWriter) WriteDiff(diff *model.RunDiff) (int, error) {
	return w.writeJSON(diff)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
