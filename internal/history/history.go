// Package history stores one row per monitor check in SQLite and answers the
// per-day summary used by `focusd report`.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS productivity_log (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	day         TEXT NOT NULL,
	status      TEXT NOT NULL,
	stage       TEXT NOT NULL,
	total_ms    INTEGER NOT NULL,
	sample_ms   INTEGER NOT NULL,
	judge_ms    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_productivity_log_day ON productivity_log(day);
`

// Record is one check.
type Record struct {
	ID         string
	RunID      string
	Timestamp  time.Time
	Status     string // productive, unproductive or unknown
	Stage      string
	Total      time.Duration
	SampleTime time.Duration
	JudgeTime  time.Duration
}

// DayCount summarizes one calendar day in local time.
type DayCount struct {
	Day          string `json:"day"`
	Productive   int    `json:"productive"`
	Unproductive int    `json:"unproductive"`
	Unknown      int    `json:"unknown"`
}

// Total returns the number of checks that day.
func (d DayCount) Total() int {
	return d.Productive + d.Unproductive + d.Unknown
}

// Store manages the productivity log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRunID returns an identifier for one monitor run.
func NewRunID() string {
	return uuid.New().String()
}

// Insert stores r, assigning an ID and timestamp when missing.
func (s *Store) Insert(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	local := r.Timestamp.Local()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO productivity_log (id, run_id, timestamp, day, status, stage, total_ms, sample_ms, judge_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, local.Format(time.RFC3339Nano), local.Format("2006-01-02"),
		r.Status, r.Stage, r.Total.Milliseconds(), r.SampleTime.Milliseconds(), r.JudgeTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

// DailyCounts returns per-day verdict counts for the last days days
// (including today), oldest first. days <= 0 returns every day on record.
func (s *Store) DailyCounts(ctx context.Context, days int) ([]DayCount, error) {
	query := `SELECT day,
		SUM(CASE WHEN status = 'productive' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'unproductive' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status NOT IN ('productive', 'unproductive') THEN 1 ELSE 0 END)
		FROM productivity_log`
	var args []any
	if days > 0 {
		since := time.Now().AddDate(0, 0, -(days - 1)).Format("2006-01-02")
		query += ` WHERE day >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily counts: %w", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Productive, &d.Unproductive, &d.Unknown); err != nil {
			return nil, fmt.Errorf("scan daily counts: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Recent returns the latest limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, timestamp, status, stage, total_ms, sample_ms, judge_ms
		 FROM productivity_log ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			ts                string
			total, sample, jd int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &ts, &r.Status, &r.Stage, &total, &sample, &jd); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		r.Total = time.Duration(total) * time.Millisecond
		r.SampleTime = time.Duration(sample) * time.Millisecond
		r.JudgeTime = time.Duration(jd) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
