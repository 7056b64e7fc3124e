// Package model defines the data that flows through a search run: the
// session profile, the listing records extracted from a results page,
// the run report that the store persists, and run-to-run diffs.
package model
