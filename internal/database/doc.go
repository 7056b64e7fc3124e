// Package database stores search runs for history and comparison.
//
// RunStore keeps every run in two tables: runs, with the whole run as
// JSON plus the columns history listings need, and listings, one row per
// record with a fingerprint for spotting changes. SQLite (modernc.org/sqlite,
// no cgo) is the default, in the user's XDG data directory. PostgreSQL is
// used through the pgx database/sql driver when a DSN is configured.
package database
