package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestListingRecordJSON(t *testing.T) {
	t.Parallel()

	t.Run("absent price and rating are null", func(t *testing.T) {
		t.Parallel()
		rec := ListingRecord{
			Identifier:  "1",
			Title:       "N/A",
			Description: "N/A",
			Link:        "https://www.airbnb.com/rooms/1",
		}
		b, err := json.Marshal(rec)
		if err != nil {
			t.Fatal(err)
		}
		s := string(b)
		if !strings.Contains(s, `"price":null`) || !strings.Contains(s, `"rating":null`) {
			t.Errorf("expected null price and rating, got %s", s)
		}
	})

	t.Run("field names", func(t *testing.T) {
		t.Parallel()
		rec := ListingRecord{Identifier: "7", Price: StringPtr("₹5,200"), Rating: StringPtr("4.9")}
		b, err := json.Marshal(rec)
		if err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"identifier", "title", "description", "price", "rating", "link"} {
			if !strings.Contains(string(b), `"`+key+`"`) {
				t.Errorf("expected key %q in %s", key, b)
			}
		}
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := ListingRecord{Identifier: "1", Title: "Villa", Description: "Pool", Link: "https://x/rooms/1"}

	t.Run("stable", func(t *testing.T) {
		t.Parallel()
		if base.Fingerprint() != base.Fingerprint() {
			t.Error("expected identical fingerprints")
		}
		if len(base.Fingerprint()) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(base.Fingerprint()))
		}
	})

	t.Run("nil and empty price differ", func(t *testing.T) {
		t.Parallel()
		withEmpty := base
		withEmpty.Price = StringPtr("")
		if base.Fingerprint() == withEmpty.Fingerprint() {
			t.Error("expected nil and empty price to differ")
		}
	})

	t.Run("field boundaries matter", func(t *testing.T) {
		t.Parallel()
		a := base
		a.Title, a.Description = "Villa P", "ool"
		if a.Fingerprint() == base.Fingerprint() {
			t.Error("expected shifted field text to change the fingerprint")
		}
	})
}

func TestDiffRuns(t *testing.T) {
	t.Parallel()

	rec := func(id, price string) ListingRecord {
		return ListingRecord{Identifier: id, Title: "t" + id, Description: "d", Price: StringPtr(price), Link: "https://x/rooms/" + id}
	}

	base := &SearchRun{ID: 1, Records: []ListingRecord{rec("1", "$10"), rec("2", "$20"), rec("3", "$30")}}
	target := &SearchRun{ID: 2, Records: []ListingRecord{rec("2", "$25"), rec("3", "$30"), rec("4", "$40")}}

	d := DiffRuns(base, target)

	if d.BaseRunID != 1 || d.TargetRunID != 2 {
		t.Errorf("unexpected run ids %d, %d", d.BaseRunID, d.TargetRunID)
	}
	if len(d.Added) != 1 || d.Added[0].Identifier != "4" {
		t.Errorf("expected listing 4 added, got %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0].Identifier != "1" {
		t.Errorf("expected listing 1 removed, got %+v", d.Removed)
	}
	if len(d.Changed) != 1 || d.Changed[0].After.Identifier != "2" {
		t.Errorf("expected listing 2 changed, got %+v", d.Changed)
	}
	if d.Unchanged != 1 {
		t.Errorf("expected 1 unchanged, got %d", d.Unchanged)
	}
	if !d.HasChanges() {
		t.Error("expected HasChanges to be true")
	}

	same := DiffRuns(base, base)
	if same.HasChanges() || same.Unchanged != 3 {
		t.Errorf("expected no changes for identical runs, got %+v", same)
	}
}

func TestSearchRun(t *testing.T) {
	t.Parallel()

	r := NewSearchRun("goa", Profile{Locale: "en-IN"})
	if r.Records == nil {
		t.Fatal("expected non-nil records")
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"records":[]`) {
		t.Errorf("expected empty records array, got %s", b)
	}
	if r.Duration() != 0 {
		t.Error("expected zero duration for an unfinished run")
	}

	r.AddDiagnostic("dismiss_popup", LevelInfo, "no dialog")
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Level != LevelInfo {
		t.Errorf("unexpected diagnostics %+v", r.Diagnostics)
	}
	if r.Failed() {
		t.Error("expected run without error not to be failed")
	}
}

func TestLevelText(t *testing.T) {
	t.Parallel()

	for _, l := range []Level{LevelInfo, LevelWarning} {
		b, err := l.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Level
		if err := got.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if got != l {
			t.Errorf("expected %v, got %v", l, got)
		}
	}

	var l Level
	if err := l.UnmarshalText([]byte("fatal")); err == nil {
		t.Error("expected error for unknown level")
	}
}
