// Package session draws the browser identity used by one search run.
//
// A Table is an immutable set of user agents, viewports, locales and
// timezones. A Picker draws one value from each list independently using
// an injected random source, so a fixed seed reproduces the same Profile.
package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on the host zoneinfo

	"golang.org/x/text/language"

	"github.com/nao1215/roomscout/internal/model"
)

// Table validation errors.
var (
	ErrEmptyTable      = errors.New("rotation table has an empty list")
	ErrInvalidViewport = errors.New("rotation table has a non-positive viewport")
	ErrInvalidLocale   = errors.New("rotation table has an invalid locale")
	ErrInvalidTimezone = errors.New("rotation table has an unknown timezone")
)

// Table holds the identity attributes a session may present.
// Use NewTable; the lists are copied and never exposed for mutation.
type Table struct {
	userAgents []string
	viewports  []model.Viewport
	locales    []string
	timezones  []string
}

// NewTable validates and copies the given lists.
// Every list must be non-empty, viewports positive, locales valid BCP 47
// tags and timezones known IANA names.
func NewTable(userAgents []string, viewports []model.Viewport, locales, timezones []string) (*Table, error) {
	if len(userAgents) == 0 || len(viewports) == 0 || len(locales) == 0 || len(timezones) == 0 {
		return nil, ErrEmptyTable
	}
	for _, ua := range userAgents {
		if strings.TrimSpace(ua) == "" {
			return nil, ErrEmptyTable
		}
	}
	for _, v := range viewports {
		if v.Width <= 0 || v.Height <= 0 {
			return nil, fmt.Errorf("%w: %dx%d", ErrInvalidViewport, v.Width, v.Height)
		}
	}
	for _, l := range locales {
		if _, err := language.Parse(l); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLocale, l)
		}
	}
	for _, tz := range timezones {
		if _, err := time.LoadLocation(tz); err != nil || tz == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
		}
	}
	return &Table{
		userAgents: slices.Clone(userAgents),
		viewports:  slices.Clone(viewports),
		locales:    slices.Clone(locales),
		timezones:  slices.Clone(timezones),
	}, nil
}

// Size returns the number of distinct profiles the table can produce.
func (t *Table) Size() int {
	return len(t.userAgents) * len(t.viewports) * len(t.locales) * len(t.timezones)
}

// Picker draws profiles from a Table.
type Picker struct {
	table *Table
	rng   *rand.Rand
}

// NewPicker returns a Picker over table. A nil rng uses a randomly
// seeded source.
func NewPicker(table *Table, rng *rand.Rand) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // identity rotation, not crypto
	}
	return &Picker{table: table, rng: rng}
}

// NewSeededPicker returns a Picker whose sequence is fixed by seed.
// A zero seed is random.
func NewSeededPicker(table *Table, seed int64) *Picker {
	if seed == 0 {
		return NewPicker(table, nil)
	}
	return NewPicker(table, rand.New(rand.NewPCG(uint64(seed), 0))) //nolint:gosec // identity rotation, not crypto
}

// Pick draws one value from each list, independently and uniformly.
// Picker is not safe for concurrent use.
func (p *Picker) Pick() model.Profile {
	t := p.table
	return model.Profile{
		UserAgent: t.userAgents[p.rng.IntN(len(t.userAgents))],
		Viewport:  t.viewports[p.rng.IntN(len(t.viewports))],
		Locale:    t.locales[p.rng.IntN(len(t.locales))],
		Timezone:  t.timezones[p.rng.IntN(len(t.timezones))],
	}
}

// AcceptLanguage returns an Accept-Language header value for locale,
// e.g. "en-IN,en;q=0.9" for "en-IN".
func AcceptLanguage(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == tag.String() {
		return tag.String()
	}
	return fmt.Sprintf("%s,%s;q=0.9", tag.String(), base.String())
}
