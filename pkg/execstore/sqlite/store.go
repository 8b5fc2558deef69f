// Package sqlite persists execution records in a SQLite (or libsql/Turso)
// database. Builds without cgo use the pure-Go modernc driver; cgo builds use
// go-libsql and additionally support remote libsql URLs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tracelab/opexec/pkg/execstore"
)

// Config locates the execution database.
type Config struct {
	// Path is a local filesystem path to the database. If set, it is
	// converted into a libsql-compatible DSN (file:<path>).
	Path string

	// URL is a libsql/Turso URL, e.g. libsql://your-db.turso.io.
	URL string

	// AuthToken is appended to URL-based DSNs as authToken=... when not
	// already present.
	AuthToken string
}

// Store implements execstore.Store on top of a SQL database.
type Store struct {
	db *sql.DB
}

var _ execstore.Store = (*Store)(nil)

// New wraps an already-opened and migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, rec *execstore.Record) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (
			execution_id, owner, description, state, summary, details_ref,
			record_availability, record_time, record_expires_at,
			summary_availability, summary_time, summary_expires_at,
			details_availability, details_time, details_expires_at,
			created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO NOTHING`,
		rec.ID, rec.Owner, rec.Description, string(rec.State),
		encodeSummary(rec.Summary), rec.DetailsRef,
		string(rec.RecordFacet.Availability), rec.RecordFacet.TimeSeconds, encodeExpiry(rec.RecordFacet.ExpiresAt),
		string(rec.SummaryFacet.Availability), rec.SummaryFacet.TimeSeconds, encodeExpiry(rec.SummaryFacet.ExpiresAt),
		string(rec.DetailsFacet.Availability), rec.DetailsFacet.TimeSeconds, encodeExpiry(rec.DetailsFacet.ExpiresAt),
		encodeTime(rec.CreatedAt), encodeTimePtr(rec.StartedAt), encodeTimePtr(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	if n == 0 {
		return execstore.ErrConflict
	}
	return nil
}

const recordColumns = `
	execution_id, owner, description, state, summary, details_ref,
	record_availability, record_time, record_expires_at,
	summary_availability, summary_time, summary_expires_at,
	details_availability, details_time, details_expires_at,
	created_at, started_at, finished_at`

func (s *Store) Get(ctx context.Context, id string) (*execstore.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM executions WHERE execution_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, execstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select execution: %w", err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, owner string) ([]*execstore.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM executions`
	args := []any{}
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at, execution_id`
	return s.queryRecords(ctx, query, args...)
}

func (s *Store) MarkScheduled(ctx context.Context, id string) error {
	return s.transition(ctx, id, execstore.StateScheduled, nil)
}

func (s *Store) MarkInProgress(ctx context.Context, id string, now time.Time) error {
	return s.transition(ctx, id, execstore.StateInProgress, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE executions SET started_at = ? WHERE execution_id = ?`,
			encodeTime(now), id)
		return err
	})
}

func (s *Store) MarkFinished(ctx context.Context, id string, results []string, detailsRef string, now time.Time) error {
	return s.transition(ctx, id, execstore.StateFinished, func(ctx context.Context, tx *sql.Tx) error {
		return finalize(ctx, tx, id, detailsRef, now, func(sum *execstore.Summary) {
			sum.Results = append([]string(nil), results...)
		})
	})
}

func (s *Store) MarkFailed(ctx context.Context, id string, errMsg string, detailsRef string, now time.Time) error {
	return s.transition(ctx, id, execstore.StateFailed, func(ctx context.Context, tx *sql.Tx) error {
		return finalize(ctx, tx, id, detailsRef, now, func(sum *execstore.Summary) {
			sum.Error = errMsg
		})
	})
}

// transition moves the record's lifecycle state forward, applying extra per
// state updates in the same transaction.
func (s *Store) transition(ctx context.Context, id string, next execstore.State, extra func(context.Context, *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM executions WHERE execution_id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return execstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select execution state: %w", err)
	}
	if !execstore.State(current).Next(next) {
		return fmt.Errorf("%w: %s to %s", execstore.ErrBadTransition, current, next)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE executions SET state = ? WHERE execution_id = ?`,
		string(next), id); err != nil {
		return fmt.Errorf("update execution state: %w", err)
	}
	if extra != nil {
		if err := extra(ctx, tx); err != nil {
			return fmt.Errorf("update execution: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// finalize stores the terminal summary content and starts the facet clocks.
func finalize(ctx context.Context, tx *sql.Tx, id string, detailsRef string, now time.Time, fill func(*execstore.Summary)) error {
	rec, err := lockedRecord(ctx, tx, id)
	if err != nil {
		return err
	}
	if rec.Summary == nil {
		rec.Summary = &execstore.Summary{}
	}
	fill(rec.Summary)
	rec.DetailsRef = detailsRef
	rec.Finalize(now)

	_, err = tx.ExecContext(ctx, `
		UPDATE executions SET
			summary = ?, details_ref = ?, finished_at = ?,
			record_availability = ?, record_expires_at = ?,
			summary_availability = ?, summary_expires_at = ?,
			details_availability = ?, details_expires_at = ?
		WHERE execution_id = ?`,
		encodeSummary(rec.Summary), rec.DetailsRef, encodeTimePtr(rec.FinishedAt),
		string(rec.RecordFacet.Availability), encodeExpiry(rec.RecordFacet.ExpiresAt),
		string(rec.SummaryFacet.Availability), encodeExpiry(rec.SummaryFacet.ExpiresAt),
		string(rec.DetailsFacet.Availability), encodeExpiry(rec.DetailsFacet.ExpiresAt),
		id)
	return err
}

func (s *Store) SetAvailability(ctx context.Context, id string, facet execstore.FacetKind, next execstore.Availability) error {
	col, ok := facetColumn(facet)
	if !ok {
		return fmt.Errorf("unknown facet %q", facet)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT `+col+` FROM executions WHERE execution_id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return execstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select availability: %w", err)
	}
	if !execstore.Availability(current).CanBecome(next) {
		return fmt.Errorf("%w: %s availability %s to %s", execstore.ErrBadTransition, facet, current, next)
	}

	query := `UPDATE executions SET ` + col + ` = ?`
	if next == execstore.TimedOut {
		switch facet {
		case execstore.FacetSummary:
			query += `, summary = NULL`
		case execstore.FacetDetails:
			query += `, details_ref = ''`
		}
	}
	query += ` WHERE execution_id = ?`
	if _, err := tx.ExecContext(ctx, query, string(next), id); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM executions WHERE execution_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	if n == 0 {
		return execstore.ErrNotFound
	}
	return nil
}

func (s *Store) DueTimeOutPending(ctx context.Context, now time.Time) ([]*execstore.Record, error) {
	ts := now.UTC().Unix()
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM executions WHERE
			(record_availability = 'AVAILABLE' AND record_expires_at IS NOT NULL AND record_expires_at <= ?)
			OR (summary_availability = 'AVAILABLE' AND summary_expires_at IS NOT NULL AND summary_expires_at <= ?)
			OR (details_availability = 'AVAILABLE' AND details_expires_at IS NOT NULL AND details_expires_at <= ?)
		ORDER BY execution_id`, ts, ts, ts)
}

func (s *Store) DuePurge(ctx context.Context) ([]*execstore.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM executions WHERE
			record_availability = 'TIME_OUT_PENDING'
			OR summary_availability = 'TIME_OUT_PENDING'
			OR details_availability = 'TIME_OUT_PENDING'
		ORDER BY execution_id`)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*execstore.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*execstore.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

func lockedRecord(ctx context.Context, tx *sql.Tx, id string) (*execstore.Record, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM executions WHERE execution_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, execstore.ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*execstore.Record, error) {
	var (
		rec                             execstore.Record
		state                           string
		summary                         sql.NullString
		recAvail, sumAvail, detAvail    string
		recExpiry, sumExpiry, detExpiry sql.NullInt64
		createdAt                       string
		startedAt, finishedAt           sql.NullString
	)
	if err := row.Scan(
		&rec.ID, &rec.Owner, &rec.Description, &state, &summary, &rec.DetailsRef,
		&recAvail, &rec.RecordFacet.TimeSeconds, &recExpiry,
		&sumAvail, &rec.SummaryFacet.TimeSeconds, &sumExpiry,
		&detAvail, &rec.DetailsFacet.TimeSeconds, &detExpiry,
		&createdAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	rec.State = execstore.State(state)
	rec.RecordFacet.Availability = execstore.Availability(recAvail)
	rec.SummaryFacet.Availability = execstore.Availability(sumAvail)
	rec.DetailsFacet.Availability = execstore.Availability(detAvail)
	rec.RecordFacet.ExpiresAt = decodeExpiry(recExpiry)
	rec.SummaryFacet.ExpiresAt = decodeExpiry(sumExpiry)
	rec.DetailsFacet.ExpiresAt = decodeExpiry(detExpiry)

	if summary.Valid {
		var sum execstore.Summary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return nil, fmt.Errorf("parse summary: %w", err)
		}
		rec.Summary = &sum
	}

	var err error
	if rec.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if rec.StartedAt, err = decodeTimePtr(startedAt); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = decodeTimePtr(finishedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func facetColumn(facet execstore.FacetKind) (string, bool) {
	switch facet {
	case execstore.FacetRecord:
		return "record_availability", true
	case execstore.FacetSummary:
		return "summary_availability", true
	case execstore.FacetDetails:
		return "details_availability", true
	default:
		return "", false
	}
}

func encodeSummary(sum *execstore.Summary) any {
	if sum == nil {
		return nil
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return nil
	}
	return string(b)
}

func encodeExpiry(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}

func decodeExpiry(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}

func decodeTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := decodeTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func buildDSN(cfg Config) (string, error) {
	if u := strings.TrimSpace(cfg.URL); u != "" {
		return addAuthToken(u, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("execution store path or url is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "file:") || strings.HasPrefix(path, "libsql:") {
		return path, nil
	}
	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if dsn == ":memory:" || !strings.HasPrefix(dsn, "file:") {
		return nil
	}

	// Keep a single connection and use WAL to reduce lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}
