// Package journal records the terminal outcome of every job the worker
// processes, giving operators history and aggregates for a worker whose
// responses are otherwise fire-and-forget.
package journal

import (
	"context"
	"errors"
	"time"
)

// Job status constants.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a job record does not exist.
var ErrNotFound = errors.New("job not found")

// Job is one recorded job outcome.
type Job struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id,omitempty"`
	Status     string     `json:"status"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	ObjectPath string     `json:"object_path,omitempty"`
	DurationMS int        `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobStats holds aggregate outcome statistics.
type JobStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByKind   map[string]int `json:"count_by_kind"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Journal defines the persistence operations for job outcomes.
type Journal interface {
	RecordJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*Job, int, error)
	GetJobStats(ctx context.Context) (*JobStats, error)
	Close() error
}
