package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig pins the defaults so that changing one is a deliberate act.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MaxRecords is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRecords != 4 {
			t.Errorf("expected MaxRecords to be 4, got %d", cfg.MaxRecords)
		}
	})

	t.Run("default OutputFile is listings.json", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputFile != "listings.json" {
			t.Errorf("expected OutputFile to be listings.json, got %q", cfg.OutputFile)
		}
	})

	t.Run("default ChallengeTimeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.ChallengeTimeout != 30*time.Second {
			t.Errorf("expected ChallengeTimeout to be 30s, got %v", cfg.ChallengeTimeout)
		}
	})

	t.Run("default BatchSize is sequential", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("browser is visible by default", func(t *testing.T) {
		t.Parallel()
		if cfg.Headless {
			t.Error("expected Headless to be false")
		}
	})

	t.Run("rules are populated", func(t *testing.T) {
		t.Parallel()
		if cfg.Rules == nil {
			t.Fatal("expected Rules to be non-nil")
		}
		if cfg.Rules.Timing.ScrollCycles != 8 {
			t.Errorf("expected 8 scroll cycles, got %d", cfg.Rules.Timing.ScrollCycles)
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Queries = []string{"Airbnb in Goa"}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"no queries", func(c *Config) { c.Queries = nil }, ErrNoQuery},
		{"empty query", func(c *Config) { c.Queries = []string{"goa", ""} }, ErrNoQuery},
		{"zero max records", func(c *Config) { c.MaxRecords = 0 }, ErrInvalidMaxRecords},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative challenge timeout", func(c *Config) { c.ChallengeTimeout = -time.Second }, ErrInvalidTimeout},
		{"negative navigation interval", func(c *Config) { c.NavigationInterval = -1 }, ErrInvalidNavigationInterval},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"markdown and text", func(c *Config) { c.MarkdownReport, c.TextReport = true, true }, ErrConflictingReportFormats},
		{"tor and proxy", func(c *Config) { c.UseTor, c.ProxyAddress = true, "127.0.0.1:1080" }, ErrConflictingEgress},
		{"empty output file", func(c *Config) { c.OutputFile = "" }, ErrNoOutputFile},
		{"bad rules pattern", func(c *Config) { c.Rules.Extract.PricePattern = "([" }, ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("empty output file is fine with NoFile", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.OutputFile = ""
		cfg.NoFile = true
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

func TestFileValidate(t *testing.T) {
	t.Parallel()

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		rules := DefaultRules()
		if err := rules.Validate(); err != nil {
			t.Errorf("expected default rules to be valid, got %v", err)
		}
	})

	t.Run("missing card selector", func(t *testing.T) {
		t.Parallel()
		rules := DefaultRules()
		rules.Extract.CardSelector = "  "
		err := rules.Validate()
		if !errors.Is(err, ErrInvalidSelector) {
			t.Fatalf("expected ErrInvalidSelector, got %v", err)
		}
		if !strings.Contains(err.Error(), "extract.cardSelector") {
			t.Errorf("expected error to name the key, got %v", err)
		}
	})

	t.Run("no input selectors", func(t *testing.T) {
		t.Parallel()
		rules := DefaultRules()
		rules.Search.InputSelectors = nil
		if err := rules.Validate(); !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("expected ErrInvalidSelector, got %v", err)
		}
	})

	t.Run("fallback URL without verb", func(t *testing.T) {
		t.Parallel()
		rules := DefaultRules()
		rules.Marketplace.FallbackURL = "https://www.airbnb.com/s/homes"
		if err := rules.Validate(); !errors.Is(err, ErrInvalidFallbackURL) {
			t.Errorf("expected ErrInvalidFallbackURL, got %v", err)
		}
	})

	t.Run("negative scroll cycles", func(t *testing.T) {
		t.Parallel()
		rules := DefaultRules()
		rules.Timing.ScrollCycles = -1
		if err := rules.Validate(); !errors.Is(err, ErrInvalidScrollCycles) {
			t.Errorf("expected ErrInvalidScrollCycles, got %v", err)
		}
	})
}

func TestMergeRules(t *testing.T) {
	t.Parallel()

	t.Run("empty override keeps defaults", func(t *testing.T) {
		t.Parallel()
		defaults := DefaultRules()
		merged := MergeRules(defaults, File{})
		if merged.Extract.CardSelector != defaults.Extract.CardSelector {
			t.Errorf("expected card selector %q, got %q", defaults.Extract.CardSelector, merged.Extract.CardSelector)
		}
		if len(merged.Rotation.Locales) != 3 {
			t.Errorf("expected 3 locales, got %d", len(merged.Rotation.Locales))
		}
	})

	t.Run("override replaces scalars and lists", func(t *testing.T) {
		t.Parallel()
		override := File{
			Extract:  ExtractRules{CardSelector: "div.card", Sentinel: "unknown"},
			Timing:   TimingRules{ScrollCycles: 2, ListingsTimeout: 5 * time.Second},
			Rotation: RotationRules{Locales: []string{"fr-FR"}},
		}
		merged := MergeRules(DefaultRules(), override)
		if merged.Extract.CardSelector != "div.card" {
			t.Errorf("expected card selector override, got %q", merged.Extract.CardSelector)
		}
		if merged.Extract.Sentinel != "unknown" {
			t.Errorf("expected sentinel override, got %q", merged.Extract.Sentinel)
		}
		if merged.Extract.LinkSelector == "" {
			t.Error("expected link selector to keep its default")
		}
		if merged.Timing.ScrollCycles != 2 || merged.Timing.ListingsTimeout != 5*time.Second {
			t.Errorf("unexpected timing: %+v", merged.Timing)
		}
		if merged.Timing.ScrollPause != 2500*time.Millisecond {
			t.Errorf("expected scroll pause default, got %v", merged.Timing.ScrollPause)
		}
		if len(merged.Rotation.Locales) != 1 || merged.Rotation.Locales[0] != "fr-FR" {
			t.Errorf("expected locale list to be replaced, got %v", merged.Rotation.Locales)
		}
	})

	t.Run("merge does not alias defaults", func(t *testing.T) {
		t.Parallel()
		defaults := DefaultRules()
		merged := MergeRules(defaults, File{Search: SearchRules{EngineURL: "https://duckduckgo.com"}})
		if defaults.Search.EngineURL != "https://www.google.com" {
			t.Errorf("defaults were modified: %q", defaults.Search.EngineURL)
		}
		if merged.Search.EngineURL != "https://duckduckgo.com" {
			t.Errorf("expected engine override, got %q", merged.Search.EngineURL)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads and merges a rules file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, ".roomscout")
		content := `
extract:
  cardSelector: "div[data-testid='card-container']"
timing:
  listingsTimeout: 45s
  scrollCycles: 3
rotation:
  viewports:
    - width: 1280
      height: 720
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		rules, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rules.Extract.CardSelector != "div[data-testid='card-container']" {
			t.Errorf("unexpected card selector %q", rules.Extract.CardSelector)
		}
		if rules.Timing.ListingsTimeout != 45*time.Second {
			t.Errorf("expected 45s, got %v", rules.Timing.ListingsTimeout)
		}
		if rules.Timing.ScrollCycles != 3 {
			t.Errorf("expected 3 scroll cycles, got %d", rules.Timing.ScrollCycles)
		}
		if len(rules.Rotation.Viewports) != 1 || rules.Rotation.Viewports[0].Width != 1280 {
			t.Errorf("unexpected viewports %+v", rules.Rotation.Viewports)
		}
		if rules.Search.EngineURL != "https://www.google.com" {
			t.Errorf("expected default engine, got %q", rules.Search.EngineURL)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("extract: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error for invalid yaml")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvChromePath, "/opt/chrome/chrome")
	t.Setenv(EnvProxy, "127.0.0.1:1080")
	t.Setenv(EnvPostgresDSN, "")
	t.Setenv(EnvDBDir, "/tmp/roomscout-db")

	cfg := NewConfig()
	cfg.ApplyEnv()

	if cfg.ChromePath != "/opt/chrome/chrome" {
		t.Errorf("unexpected chrome path %q", cfg.ChromePath)
	}
	if cfg.ProxyAddress != "127.0.0.1:1080" {
		t.Errorf("unexpected proxy %q", cfg.ProxyAddress)
	}
	if cfg.PostgresDSN != "" {
		t.Errorf("expected empty DSN, got %q", cfg.PostgresDSN)
	}
	if cfg.DBDir != "/tmp/roomscout-db" {
		t.Errorf("unexpected db dir %q", cfg.DBDir)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ROOMSCOUT_TEST_DOTENV=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROOMSCOUT_TEST_DOTENV", "")
	if err := os.Unsetenv("ROOMSCOUT_TEST_DOTENV"); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("ROOMSCOUT_TEST_DOTENV"); got != "loaded" {
		t.Errorf("expected variable from .env, got %q", got)
	}
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end with %q, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %q, got %q", AppName, XDGConfigDir())
	}
}
