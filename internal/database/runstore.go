package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/nao1215/roomscout/internal/model"
)

// DBFileName is the SQLite file created inside the database directory.
const DBFileName = "roomscout.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// RunStore persists search runs and the listings they found.
// It works on SQLite and PostgreSQL; the schema is the same apart from
// the primary key type.
type RunStore struct {
	db      *sql.DB
	dialect dialect

	// location is the SQLite file path, or "postgres" for PostgreSQL.
	location string
}

// Options configures the SQLite store.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the SQLite store in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunStore, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	// Concurrent processes wait for the write lock instead of failing.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &RunStore{db: db, dialect: dialectSQLite, location: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := store.createTables(context.Background()); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// OpenPostgres connects to PostgreSQL with dsn, a URL or key=value
// connection string, and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*RunStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &RunStore{db: db, dialect: dialectPostgres, location: "postgres"}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Location returns the SQLite file path, or "postgres".
func (s *RunStore) Location() string {
	return s.location
}

// createTables creates the schema if it doesn't exist. Timestamps are
// stored as text in timestampLayout so both dialects compare them alike.
func (s *RunStore) createTables(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			` + idColumn + `,
			query TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			landing_url TEXT,
			final_url TEXT,
			fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
			error_message TEXT,
			run_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_query ON runs(query)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS listings (
			run_id BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			identifier TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			price TEXT,
			rating TEXT,
			link TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			PRIMARY KEY (run_id, identifier)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_identifier ON listings(identifier)`,
	}

	// PostgreSQL rejects several statements in one prepared Exec.
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (s *RunStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRun stores run and its records in one transaction and sets run.ID.
func (s *RunStore) SaveRun(ctx context.Context, run *model.SearchRun) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	var id int64
	err = tx.QueryRowContext(ctx, s.rebind(`
	INSERT INTO runs (query, started_at, finished_at, landing_url, final_url, fallback_used, error_message, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`),
		run.Query,
		formatTimestamp(run.StartedAt),
		nullTimestamp(run.FinishedAt),
		run.LandingURL,
		run.FinalURL,
		run.FallbackUsed,
		nullString(run.Error),
		string(runJSON),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	insert := s.rebind(`
	INSERT INTO listings (run_id, position, identifier, title, description, price, rating, link, fingerprint)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, r := range run.Records {
		if _, err := tx.ExecContext(ctx, insert,
			id, i, r.Identifier, r.Title, r.Description,
			nullPtr(r.Price), nullPtr(r.Rating), r.Link, r.Fingerprint(),
		); err != nil {
			return fmt.Errorf("failed to save listing %s: %w", r.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = id
	return nil
}

// GetRun returns the run with id, or ErrRunNotFound.
func (s *RunStore) GetRun(ctx context.Context, id int64) (*model.SearchRun, error) {
	var runJSON string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT run_json FROM runs WHERE id = ?`), id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeRun(id, runJSON)
}

// ListQueries returns every stored query, alphabetically.
func (s *RunStore) ListQueries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT query FROM runs ORDER BY query`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	queries := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// RunSummary describes a stored run without loading its records.
type RunSummary struct {
	ID           int64     `json:"id"`
	Query        string    `json:"query"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	FinalURL     string    `json:"final_url,omitempty"`
	FallbackUsed bool      `json:"fallback_used"`
	Listings     int       `json:"listings"`
	Error        string    `json:"error,omitempty"`
}

// GetRunHistory returns summaries of every run of query, newest first.
func (s *RunStore) GetRunHistory(ctx context.Context, query string) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
	SELECT r.id, r.query, r.started_at, r.finished_at, r.final_url, r.fallback_used, r.error_message,
		(SELECT COUNT(*) FROM listings l WHERE l.run_id = r.id)
	FROM runs r
	WHERE r.query = ?
	ORDER BY r.started_at DESC, r.id DESC
	`), query)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	history := []RunSummary{}
	for rows.Next() {
		var (
			sum        RunSummary
			startedAt  string
			finishedAt sql.NullString
			finalURL   sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.Query, &startedAt, &finishedAt, &finalURL,
			&sum.FallbackUsed, &errMsg, &sum.Listings); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = parseTimestamp(startedAt)
		sum.FinishedAt = parseTimestamp(finishedAt.String)
		sum.FinalURL = finalURL.String
		sum.Error = errMsg.String
		history = append(history, sum)
	}
	return history, rows.Err()
}

// GetLatestRuns returns up to n runs of query, newest first.
func (s *RunStore) GetLatestRuns(ctx context.Context, query string, n int) ([]*model.SearchRun, error) {
	return s.latestRuns(ctx, query, n, false)
}

// GetLatestCompletedRuns is GetLatestRuns without the runs that ended
// with an error. Failed runs carry no records, so diffs skip them.
func (s *RunStore) GetLatestCompletedRuns(ctx context.Context, query string, n int) ([]*model.SearchRun, error) {
	return s.latestRuns(ctx, query, n, true)
}

func (s *RunStore) latestRuns(ctx context.Context, query string, n int, completedOnly bool) ([]*model.SearchRun, error) {
	where := "WHERE query = ?"
	if completedOnly {
		where += " AND error_message IS NULL"
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
	SELECT id, run_json FROM runs
	`+where+`
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`), query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest runs: %w", err)
	}
	defer rows.Close()

	runs := []*model.SearchRun{}
	for rows.Next() {
		var id int64
		var runJSON string
		if err := rows.Scan(&id, &runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := decodeRun(id, runJSON)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Sighting is one appearance of a listing in a stored run.
type Sighting struct {
	RunID  int64               `json:"run_id"`
	Query  string              `json:"query"`
	SeenAt time.Time           `json:"seen_at"`
	Record model.ListingRecord `json:"record"`
}

// GetListingHistory returns every run that found identifier, oldest first,
// so price and rating changes read in order.
func (s *RunStore) GetListingHistory(ctx context.Context, identifier string) ([]Sighting, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
	SELECT r.id, r.query, r.started_at, l.identifier, l.title, l.description, l.price, l.rating, l.link
	FROM listings l JOIN runs r ON r.id = l.run_id
	WHERE l.identifier = ?
	ORDER BY r.started_at, r.id
	`), identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing history: %w", err)
	}
	defer rows.Close()

	sightings := []Sighting{}
	for rows.Next() {
		var (
			sg        Sighting
			startedAt string
			price     sql.NullString
			rating    sql.NullString
		)
		if err := rows.Scan(&sg.RunID, &sg.Query, &startedAt,
			&sg.Record.Identifier, &sg.Record.Title, &sg.Record.Description,
			&price, &rating, &sg.Record.Link); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		sg.SeenAt = parseTimestamp(startedAt)
		if price.Valid {
			sg.Record.Price = model.StringPtr(price.String)
		}
		if rating.Valid {
			sg.Record.Rating = model.StringPtr(rating.String)
		}
		sightings = append(sightings, sg)
	}
	return sightings, rows.Err()
}

func decodeRun(id int64, runJSON string) (*model.SearchRun, error) {
	var run model.SearchRun
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run %d: %w", id, err)
	}
	run.ID = id
	if run.Records == nil {
		run.Records = []model.ListingRecord{}
	}
	return &run, nil
}

// timestampLayout is RFC 3339 with fixed-width nanoseconds, so stored
// values sort lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullPtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// timestampFormats are tried in order by parseTimestamp. Rows written by
// this package use RFC 3339; the others cover values edited by hand.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
