package model

import (
	"fmt"
	"time"
)

// Level grades a Diagnostic.
type Level int

const (
	// LevelInfo marks an optional interaction that did not happen,
	// such as a consent button that was not shown.
	LevelInfo Level = iota
	// LevelWarning marks a problem the run recovered from, such as a
	// failed search that was replaced by the direct marketplace URL.
	LevelWarning
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*l = LevelInfo
	case "warning":
		*l = LevelWarning
	default:
		return fmt.Errorf("unknown diagnostic level %q", string(b))
	}
	return nil
}

// Diagnostic is a non-fatal problem recorded by a step.
type Diagnostic struct {
	Step    string    `json:"step"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// InterstitialEvent records one verification page seen during a run.
type InterstitialEvent struct {
	URL        string        `json:"url"`
	DetectedAt time.Time     `json:"detected_at"`
	Waited     time.Duration `json:"waited"`
	Resolved   bool          `json:"resolved"`
}
