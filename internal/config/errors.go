package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// File.Validate. Callers match them with errors.Is.
var (
	// ErrNoQuery is returned when no search text was given or a query is empty.
	ErrNoQuery = errors.New("no query specified: pass search text as arguments or on stdin")

	// ErrInvalidMaxRecords is returned when the record bound is not positive.
	ErrInvalidMaxRecords = errors.New("invalid max records: must be positive")

	// ErrInvalidTimeout is returned when a run or challenge timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidNavigationInterval is returned when page-load pacing is negative.
	ErrInvalidNavigationInterval = errors.New("invalid navigation interval: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of
	// --json, --markdown and --text is set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --json, --markdown, --text")

	// ErrConflictingEgress is returned when both --tor and --proxy are set.
	ErrConflictingEgress = errors.New("conflicting egress: --tor and --proxy cannot be used together")

	// ErrNoOutputFile is returned when file output is enabled without a path.
	ErrNoOutputFile = errors.New("no output file: set --output or use --no-file")

	// ErrInvalidPattern is returned when a rules regular expression does not compile.
	ErrInvalidPattern = errors.New("invalid pattern in rules")

	// ErrInvalidSelector is returned when a required rules selector is empty.
	ErrInvalidSelector = errors.New("invalid selector in rules: must not be empty")

	// ErrInvalidScrollCycles is returned when the scroll cycle count is negative.
	ErrInvalidScrollCycles = errors.New("invalid scroll cycles: must be non-negative")

	// ErrInvalidFallbackURL is returned when the marketplace fallback URL has no %s verb.
	ErrInvalidFallbackURL = errors.New("invalid fallback URL: must contain exactly one %s")
)
