package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/roomscout/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, for pasting into
// issues and notes.
type MarkdownWriter struct {
	baseWriter
	sentinel string
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
// Missing prices and ratings are shown as sentinel.
func NewMarkdownWriter(output io.Writer, sentinel string) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		sentinel:   sentinel,
	}
}

// Write outputs the records as a Markdown table.
func (w *MarkdownWriter) Write(records []model.ListingRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Listings")
	md.PlainText("")
	w.writeRecords(md, records)
	return len(md.String()), md.Build()
}

// WriteRun outputs the run summary, its diagnostics and its records.
func (w *MarkdownWriter) WriteRun(run *model.SearchRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Search: " + run.Query)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().Round(100 * time.Millisecond).String()},
			{"Landing page", orDash(run.LandingURL)},
			{"Final page", orDash(run.FinalURL)},
			{"Fallback used", strconv.FormatBool(run.FallbackUsed)},
			{"Locale", run.Profile.Locale},
			{"Timezone", run.Profile.Timezone},
			{"Status", statusText(run)},
		},
	})
	md.PlainText("")

	switch {
	case run.TimedOut:
		md.Warningf("The run timed out after %s; results are partial.", run.Duration().Round(time.Second))
	case run.Failed():
		md.Cautionf("The run failed: %s", run.Error)
	case len(run.Records) == 0:
		md.Note("No listings were found.")
	}
	md.PlainText("")

	if len(run.Diagnostics) > 0 {
		md.H2("Diagnostics")
		md.PlainText("")
		items := make([]string, len(run.Diagnostics))
		for i, d := range run.Diagnostics {
			items[i] = fmt.Sprintf("[%s] %s: %s", d.Level, d.Step, d.Message)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	md.H2("Listings")
	md.PlainText("")
	w.writeRecords(md, run.Records)

	return len(md.String()), md.Build()
}

// WriteDiff outputs added, removed and changed listings as tables.
func (w *MarkdownWriter) WriteDiff(diff *model.RunDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(fmt.Sprintf("Run %d compared with run %d", diff.TargetRunID, diff.BaseRunID))
	md.PlainText("")
	if !diff.HasChanges() {
		md.Tip(fmt.Sprintf("No changes. %d listing(s) unchanged.", diff.Unchanged))
		return len(md.String()), md.Build()
	}

	md.Table(markdown.TableSet{
		Header: []string{"Added", "Removed", "Changed", "Unchanged"},
		Rows: [][]string{{
			strconv.Itoa(len(diff.Added)),
			strconv.Itoa(len(diff.Removed)),
			strconv.Itoa(len(diff.Changed)),
			strconv.Itoa(diff.Unchanged),
		}},
	})
	md.PlainText("")

	if len(diff.Added) > 0 {
		md.H2("Added")
		md.PlainText("")
		w.writeRecords(md, diff.Added)
	}
	if len(diff.Removed) > 0 {
		md.H2("Removed")
		md.PlainText("")
		w.writeRecords(md, diff.Removed)
	}
	if len(diff.Changed) > 0 {
		md.H2("Changed")
		md.PlainText("")
		rows := make([][]string, len(diff.Changed))
		for i, c := range diff.Changed {
			rows[i] = []string{
				c.After.Identifier,
				escapeCell(truncateString(c.After.Title, 40)),
				model.Deref(c.Before.Price, w.sentinel) + " → " + model.Deref(c.After.Price, w.sentinel),
				model.Deref(c.Before.Rating, w.sentinel) + " → " + model.Deref(c.After.Rating, w.sentinel),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"ID", "Title", "Price", "Rating"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, records []model.ListingRecord) {
	if len(records) == 0 {
		md.PlainText("No listings.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			escapeCell(truncateString(r.Title, 50)),
			model.Deref(r.Price, w.sentinel),
			model.Deref(r.Rating, w.sentinel),
			"[" + r.Identifier + "](" + r.Link + ")",
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Title", "Price", "Rating", "Link"},
		Rows:   rows,
	})
	md.PlainText("")
}

// escapeCell keeps a pipe in scraped text from splitting a table cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func statusText(run *model.SearchRun) string {
	switch {
	case run.TimedOut:
		return "Timed out"
	case run.Failed():
		return "Failed"
	default:
		return "Complete"
	}
}
