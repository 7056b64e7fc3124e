package session

import (
	"errors"
	"testing"

	"github.com/nao1215/roomscout/internal/model"
)

func defaultTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(
		[]string{"ua-1", "ua-2", "ua-3"},
		[]model.Viewport{{Width: 1366, Height: 768}, {Width: 1440, Height: 900}},
		[]string{"en-US", "en-IN", "en-GB"},
		[]string{"Asia/Kolkata", "Europe/London"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return table
}

func TestNewTable(t *testing.T) {
	t.Parallel()

	vp := []model.Viewport{{Width: 1, Height: 1}}

	tests := []struct {
		name      string
		ua        []string
		viewports []model.Viewport
		locales   []string
		timezones []string
		want      error
	}{
		{"empty user agents", nil, vp, []string{"en-US"}, []string{"UTC"}, ErrEmptyTable},
		{"blank user agent", []string{" "}, vp, []string{"en-US"}, []string{"UTC"}, ErrEmptyTable},
		{"zero viewport", []string{"ua"}, []model.Viewport{{Width: 0, Height: 10}}, []string{"en-US"}, []string{"UTC"}, ErrInvalidViewport},
		{"bad locale", []string{"ua"}, vp, []string{"not a locale!"}, []string{"UTC"}, ErrInvalidLocale},
		{"unknown timezone", []string{"ua"}, vp, []string{"en-US"}, []string{"Mars/Olympus"}, ErrInvalidTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTable(tt.ua, tt.viewports, tt.locales, tt.timezones)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("input slices are copied", func(t *testing.T) {
		t.Parallel()
		ua := []string{"original"}
		table, err := NewTable(ua, vp, []string{"en-US"}, []string{"UTC"})
		if err != nil {
			t.Fatal(err)
		}
		ua[0] = "mutated"
		if got := NewPicker(table, nil).Pick().UserAgent; got != "original" {
			t.Errorf("expected table to be unaffected by caller mutation, got %q", got)
		}
	})
}

func TestPicker(t *testing.T) {
	t.Parallel()

	t.Run("same seed gives same sequence", func(t *testing.T) {
		t.Parallel()
		table := defaultTable(t)
		a := NewSeededPicker(table, 42)
		b := NewSeededPicker(table, 42)
		for i := range 10 {
			if pa, pb := a.Pick(), b.Pick(); pa != pb {
				t.Fatalf("pick %d differs: %+v vs %+v", i, pa, pb)
			}
		}
	})

	t.Run("picks come from the table", func(t *testing.T) {
		t.Parallel()
		table := defaultTable(t)
		p := NewSeededPicker(table, 7)
		for range 50 {
			prof := p.Pick()
			if prof.UserAgent == "" || prof.Locale == "" || prof.Timezone == "" || prof.Viewport.Width == 0 {
				t.Fatalf("incomplete profile %+v", prof)
			}
		}
	})

	t.Run("every value is reachable", func(t *testing.T) {
		t.Parallel()
		table := defaultTable(t)
		p := NewSeededPicker(table, 99)
		locales := map[string]bool{}
		for range 200 {
			locales[p.Pick().Locale] = true
		}
		if len(locales) != 3 {
			t.Errorf("expected all 3 locales in 200 picks, got %v", locales)
		}
	})

	t.Run("size", func(t *testing.T) {
		t.Parallel()
		if got := defaultTable(t).Size(); got != 3*2*3*2 {
			t.Errorf("expected 36, got %d", got)
		}
	})
}

func TestAcceptLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"en-IN": "en-IN,en;q=0.9",
		"en":    "en",
		"fr-FR": "fr-FR,fr;q=0.9",
	}
	for in, want := range tests {
		if got := AcceptLanguage(in); got != want {
			t.Errorf("AcceptLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
