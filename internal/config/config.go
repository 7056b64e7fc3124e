package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxRecords is the number of listings kept per run.
	DefaultMaxRecords = 4

	// DefaultOutputFile is where the JSON array of listings is written.
	// The file is overwritten on every run.
	DefaultOutputFile = "listings.json"

	// DefaultTimeout bounds one whole search run, from browser launch to
	// extraction. Interstitial hand-off time counts against it.
	DefaultTimeout = 5 * time.Minute

	// DefaultChallengeTimeout is how long a human gets to clear a
	// verification page before the run fails.
	DefaultChallengeTimeout = 30 * time.Second

	// DefaultNavigationInterval is the minimum spacing between page loads.
	DefaultNavigationInterval = 2 * time.Second

	// DefaultBatchSize runs queries one after another.
	// Each concurrent query launches its own browser.
	DefaultBatchSize = 1

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "roomscout"
)

// Config holds all options for a search invocation.
// It is populated from defaults, the environment, the config file and
// CLI flags, in that order of increasing precedence.
type Config struct {
	// Queries are the free-text searches to run. Each query is one run.
	Queries []string

	// MaxRecords caps the number of listings extracted per run.
	MaxRecords int

	// OutputFile is the JSON output path. Parent directories are created.
	OutputFile string

	// NoFile disables writing OutputFile.
	NoFile bool

	// JSONReport, MarkdownReport and TextReport select the stdout format.
	// At most one may be set; JSON is used when none is.
	JSONReport     bool
	MarkdownReport bool
	TextReport     bool

	// Quiet suppresses progress messages on stdout.
	Quiet bool

	// Verbose enables debug logging on stderr.
	Verbose bool

	// Headless runs the browser without a window. A visible window is the
	// default because verification pages need a human.
	Headless bool

	// ChromePath overrides the browser executable lookup.
	ChromePath string

	// ProxyAddress is a SOCKS5 proxy ("host:port") for browser traffic.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes the browser through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout bounds embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Timeout bounds one run.
	Timeout time.Duration

	// ChallengeTimeout bounds the wait for a verification page to clear.
	ChallengeTimeout time.Duration

	// NavigationInterval is the minimum spacing between page loads.
	NavigationInterval time.Duration

	// Seed fixes the session profile choice. Zero means random.
	Seed int64

	// BatchSize is the number of queries run concurrently.
	BatchSize int

	// ConfigFilePath is an explicit path to the rules file.
	ConfigFilePath string

	// Rules holds the selectors, timings and rotation table. Always
	// non-nil after loading; missing keys fall back to DefaultRules.
	Rules *File

	// SaveToDB stores every run for history and compare.
	SaveToDB bool

	// DBDir is the directory of the SQLite database.
	DBDir string

	// PostgresDSN switches the run store to PostgreSQL when set.
	PostgresDSN string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	rules := DefaultRules()
	return &Config{
		MaxRecords:         DefaultMaxRecords,
		OutputFile:         DefaultOutputFile,
		TorStartupTimeout:  DefaultTorStartupTimeout,
		Timeout:            DefaultTimeout,
		ChallengeTimeout:   DefaultChallengeTimeout,
		NavigationInterval: DefaultNavigationInterval,
		BatchSize:          DefaultBatchSize,
		Rules:              &rules,
		SaveToDB:           true,
		DBDir:              XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for roomscout.
// On Linux: ~/.local/share/roomscout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for roomscout.
// On Linux: ~/.config/roomscout
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Queries) == 0 {
		return ErrNoQuery
	}
	for _, q := range c.Queries {
		if q == "" {
			return ErrNoQuery
		}
	}

	if c.MaxRecords <= 0 {
		return ErrInvalidMaxRecords
	}

	if c.Timeout <= 0 || c.ChallengeTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.NavigationInterval < 0 {
		return ErrInvalidNavigationInterval
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	formats := 0
	for _, set := range []bool{c.JSONReport, c.MarkdownReport, c.TextReport} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingEgress
	}

	if !c.NoFile && c.OutputFile == "" {
		return ErrNoOutputFile
	}

	if c.Rules != nil {
		if err := c.Rules.Validate(); err != nil {
			return err
		}
	}

	return nil
}
