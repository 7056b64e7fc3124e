package api

import "errors"

var (
	errMissingQuery    = errors.New("query parameter is required")
	errInvalidRunID    = errors.New("run id must be a positive integer")
	errNotEnoughRuns   = errors.New("at least two runs are needed to compare")
	errListingNotFound = errors.New("listing was never seen")
)
