package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/roomscout/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	sentinel string

	// verbose adds descriptions, the browser identity and every diagnostic.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithSentinel sets the text shown for a missing price or rating.
func WithSentinel(s string) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.sentinel = s
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		sentinel:   "N/A",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs a numbered list of records.
func (w *SimpleWriter) Write(records []model.ListingRecord) (int, error) {
	var sb strings.Builder
	w.writeRecords(&sb, records)
	return io.WriteString(w.output, sb.String())
}

// WriteRun outputs the run header, its diagnostics and its records.
func (w *SimpleWriter) WriteRun(run *model.SearchRun) (int, error) {
	var sb strings.Builder

	rule(&sb, "=")
	fmt.Fprintf(&sb, "Query:    %s\n", run.Query)
	fmt.Fprintf(&sb, "Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration: %s\n", d.Round(100*time.Millisecond))
	}
	if run.LandingURL != "" {
		fmt.Fprintf(&sb, "Landing:  %s\n", run.LandingURL)
	}
	if run.FinalURL != "" {
		fmt.Fprintf(&sb, "Page:     %s\n", run.FinalURL)
	}
	if run.FallbackUsed {
		sb.WriteString("Fallback: direct marketplace URL\n")
	}
	if w.verbose {
		fmt.Fprintf(&sb, "Identity: %s, %s, %dx%d\n",
			run.Profile.Locale, run.Profile.Timezone,
			run.Profile.Viewport.Width, run.Profile.Viewport.Height)
	}

	switch {
	case run.TimedOut:
		sb.WriteString("Status:   TIMED OUT (partial results)\n")
	case run.Failed():
		fmt.Fprintf(&sb, "Status:   ERROR - %s\n", run.Error)
	default:
		sb.WriteString("Status:   Complete\n")
	}
	sb.WriteString("\n")

	diagnostics := run.Diagnostics
	if !w.verbose {
		diagnostics = warningsOnly(diagnostics)
	}
	if len(diagnostics) > 0 {
		rule(&sb, "-")
		sb.WriteString("DIAGNOSTICS\n\n")
		for _, d := range diagnostics {
			fmt.Fprintf(&sb, "  [%s] %s: %s\n", d.Level, d.Step, d.Message)
		}
		sb.WriteString("\n")
	}

	rule(&sb, "-")
	sb.WriteString("LISTINGS\n\n")
	w.writeRecords(&sb, run.Records)
	rule(&sb, "=")

	return io.WriteString(w.output, sb.String())
}

// WriteDiff outputs the listings that appeared, disappeared or changed.
func (w *SimpleWriter) WriteDiff(diff *model.RunDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run %d vs run %d: %d added, %d removed, %d changed, %d unchanged\n",
		diff.TargetRunID, diff.BaseRunID,
		len(diff.Added), len(diff.Removed), len(diff.Changed), diff.Unchanged)

	for _, r := range diff.Added {
		fmt.Fprintf(&sb, "  + %s  %s\n", r.Identifier, r.Title)
	}
	for _, r := range diff.Removed {
		fmt.Fprintf(&sb, "  - %s  %s\n", r.Identifier, r.Title)
	}
	for _, c := range diff.Changed {
		fmt.Fprintf(&sb, "  ~ %s  %s\n", c.After.Identifier, c.After.Title)
		if before, after := model.Deref(c.Before.Price, w.sentinel), model.Deref(c.After.Price, w.sentinel); before != after {
			fmt.Fprintf(&sb, "      price:  %s -> %s\n", before, after)
		}
		if before, after := model.Deref(c.Before.Rating, w.sentinel), model.Deref(c.After.Rating, w.sentinel); before != after {
			fmt.Fprintf(&sb, "      rating: %s -> %s\n", before, after)
		}
		if c.Before.Title != c.After.Title {
			fmt.Fprintf(&sb, "      title:  %s -> %s\n", c.Before.Title, c.After.Title)
		}
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeRecords(sb *strings.Builder, records []model.ListingRecord) {
	if len(records) == 0 {
		sb.WriteString("  No listings found\n\n")
		return
	}
	for i, r := range records {
		fmt.Fprintf(sb, "%2d. %s\n", i+1, r.Title)
		if w.verbose && r.Description != w.sentinel {
			fmt.Fprintf(sb, "    %s\n", r.Description)
		}
		fmt.Fprintf(sb, "    Price: %s  Rating: %s\n",
			model.Deref(r.Price, w.sentinel), model.Deref(r.Rating, w.sentinel))
		fmt.Fprintf(sb, "    %s\n\n", r.Link)
	}
}

func warningsOnly(ds []model.Diagnostic) []model.Diagnostic {
	var out []model.Diagnostic
	for _, d := range ds {
		if d.Level == model.LevelWarning {
			out = append(out, d)
		}
	}
	return out
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}
