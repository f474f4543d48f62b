package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id          TEXT PRIMARY KEY,
    user_id     TEXT,
    status      TEXT NOT NULL,
    error_kind  TEXT,
    error       TEXT,
    object_path TEXT,
    duration_ms INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
)`

// Compile-time interface satisfaction check.
var _ Journal = (*SQLiteJournal)(nil)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens the SQLite database at dbPath and runs migrations.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createJobsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// RecordJob inserts one job outcome record.
func (s *SQLiteJournal) RecordJob(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (
			id, user_id, status, error_kind, error, object_path,
			duration_ms, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.Status, j.ErrorKind, j.Error, j.ObjectPath,
		j.DurationMS, j.CreatedAt, j.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job record by ID.
func (s *SQLiteJournal) GetJob(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, error_kind, error, object_path,
			duration_ms, created_at, finished_at
		FROM jobs WHERE id = ?`, id,
	).Scan(
		&j.ID, &j.UserID, &j.Status, &j.ErrorKind, &j.Error, &j.ObjectPath,
		&j.DurationMS, &j.CreatedAt, &j.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns a paginated list of jobs ordered by created_at DESC,
// along with the total count of all jobs.
func (s *SQLiteJournal) ListJobs(ctx context.Context, limit, offset int) ([]*Job, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, user_id, status, error_kind, error, object_path,
			duration_ms, created_at, finished_at
		FROM jobs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j := &Job{}
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.Status, &j.ErrorKind, &j.Error, &j.ObjectPath,
			&j.DurationMS, &j.CreatedAt, &j.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, total, nil
}

// GetJobStats aggregates outcome counts and average duration.
func (s *SQLiteJournal) GetJobStats(ctx context.Context) (*JobStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &JobStats{
		CountByStatus: make(map[string]int),
		CountByKind:   make(map[string]int),
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM jobs",
	).Scan(&stats.Total, &stats.AvgDurationMS); err != nil {
		return nil, fmt.Errorf("aggregate jobs: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	kindRows, err := tx.QueryContext(ctx,
		"SELECT error_kind, COUNT(*) FROM jobs WHERE error_kind != '' GROUP BY error_kind")
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var kind string
		var count int
		if err := kindRows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		stats.CountByKind[kind] = count
	}
	if err := kindRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kind counts: %w", err)
	}

	return stats, nil
}
