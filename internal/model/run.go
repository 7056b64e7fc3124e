package model

import "time"

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Profile is the identity a browser session presents for one run.
type Profile struct {
	UserAgent string   `json:"user_agent"`
	Viewport  Viewport `json:"viewport"`
	Locale    string   `json:"locale"`
	Timezone  string   `json:"timezone"`
}

// SearchRun is the report of one pipeline execution for one query.
// Steps fill it in as they go, so a failed run still carries everything
// collected before the failure.
type SearchRun struct {
	// ID is assigned by the run store; zero until saved.
	ID int64 `json:"id,omitempty"`

	Query      string    `json:"query"`
	Profile    Profile   `json:"profile"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// SearchSubmitted is true once the query was typed and submitted.
	SearchSubmitted bool `json:"search_submitted"`

	// LandingURL is where following the first organic result led.
	// Empty when the search step failed.
	LandingURL string `json:"landing_url,omitempty"`

	// FinalURL is the page the records were extracted from.
	FinalURL string `json:"final_url,omitempty"`

	// FallbackUsed is true when the direct marketplace URL was loaded.
	FallbackUsed bool `json:"fallback_used"`

	Interstitials  []InterstitialEvent `json:"interstitials,omitempty"`
	Diagnostics    []Diagnostic        `json:"diagnostics,omitempty"`
	PerformedSteps []string            `json:"performed_steps,omitempty"`

	Records []ListingRecord `json:"records"`

	// Error holds the message of the error that ended the run early.
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// NewSearchRun creates a run for query with a non-nil empty record list.
func NewSearchRun(query string, profile Profile) *SearchRun {
	return &SearchRun{
		Query:       query,
		Profile:     profile,
		StartedAt:   time.Now(),
		Records:     []ListingRecord{},
		Diagnostics: []Diagnostic{},
	}
}

// AddDiagnostic records a non-fatal problem for step.
func (r *SearchRun) AddDiagnostic(step string, level Level, message string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Step:    step,
		Level:   level,
		Message: message,
		At:      time.Now(),
	})
}

// Failed reports whether the run ended with an error.
func (r *SearchRun) Failed() bool {
	return r.Error != ""
}

// Duration is the wall time of the run, or zero while it is running.
func (r *SearchRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
