package pipeline

import "errors"

var (
	// ErrChallengeUnresolved is returned when a verification page is still
	// shown after the challenge timeout.
	ErrChallengeUnresolved = errors.New("verification page was not completed in time")

	// ErrNoListings is returned when no listing card appeared on the
	// marketplace page within the listings timeout.
	ErrNoListings = errors.New("no listings appeared on the marketplace page")

	// ErrNoSearchInput is returned when none of the search input selectors
	// matched on the search engine page.
	ErrNoSearchInput = errors.New("search input not found")

	// errPollTimeout is returned by poll when the condition never held.
	errPollTimeout = errors.New("condition not met before timeout")
)
