package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/roomscout/internal/database"
	"github.com/nao1215/roomscout/internal/model"
)

// seedStore saves runs into a fresh SQLite store and returns its directory.
func seedStore(t *testing.T, runs ...*model.SearchRun) string {
	t.Helper()

	dir := t.TempDir()
	store, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	for _, run := range runs {
		if err := store.SaveRun(context.Background(), run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}
	return dir
}

func storedRun(query string, startedAt time.Time, records ...model.ListingRecord) *model.SearchRun {
	run := model.NewSearchRun(query, model.Profile{UserAgent: "test"})
	run.StartedAt = startedAt
	run.FinishedAt = startedAt.Add(time.Minute)
	run.Records = append(run.Records, records...)
	return run
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestHistoryCmd tests listing stored queries and runs.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	failed := storedRun("airbnb in goa", start.Add(time.Hour))
	failed.Error = "no listings"
	dir := seedStore(t,
		storedRun("airbnb in goa", start, model.ListingRecord{Identifier: "111", Title: "Hut"}),
		failed,
		storedRun("airbnb in lisbon", start),
	)

	t.Run("lists queries", func(t *testing.T) {
		out, err := execute(t, "history", "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "airbnb in goa") || !strings.Contains(out, "airbnb in lisbon") {
			t.Errorf("expected both queries, got %q", out)
		}
	})

	t.Run("lists runs of a query", func(t *testing.T) {
		out, err := execute(t, "history", "--db-dir", dir, "airbnb in goa")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "LISTINGS") {
			t.Errorf("expected a table header, got %q", out)
		}
		if !strings.Contains(out, "error: no listings") {
			t.Errorf("expected the failed run, got %q", out)
		}
	})

	t.Run("prints JSON", func(t *testing.T) {
		out, err := execute(t, "history", "--db-dir", dir, "--json", "airbnb in goa")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var history []database.RunSummary
		if err := json.Unmarshal([]byte(out), &history); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(history) != 2 || history[0].Error != "no listings" {
			t.Errorf("expected the newest run first, got %+v", history)
		}
	})

	t.Run("unknown query", func(t *testing.T) {
		out, err := execute(t, "history", "--db-dir", dir, "airbnb in oslo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No stored runs") {
			t.Errorf("expected a no runs message, got %q", out)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		out, err := execute(t, "history", "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No searches stored yet.") {
			t.Errorf("expected an empty message, got %q", out)
		}
	})
}
