package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // Register postgres driver
)

const defaultRecentRuns = 50

// RunLogAdapter implements storage.RunRecorder on the state database.
// Only run history lives here; watermarks stay in memory.
type RunLogAdapter struct {
	db *sql.DB
}

// OpenStateDB opens and pings the state database that holds run history.
func OpenStateDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}
	return db, nil
}

// NewRunLogAdapter creates a RunLogAdapter sharing the given connection.
func NewRunLogAdapter(db *sql.DB) *RunLogAdapter {
	return &RunLogAdapter{db: db}
}

// Ping checks connectivity for health reporting.
func (a *RunLogAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// RecordRun inserts one run. A missing ID is generated.
func (a *RunLogAdapter) RecordRun(ctx context.Context, run storage.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}

	_, err := a.db.ExecContext(ctx, queryInsertRun,
		run.ID,
		run.Job,
		run.StartedAt,
		run.FinishedAt,
		run.FromTime,
		run.ToTime,
		run.TotalCount,
		run.Failed,
		run.Delivered,
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	slog.Debug("[Postgres] Recorded run", "id", run.ID, "job", run.Job, "total", run.TotalCount)
	return nil
}

// RecentRuns lists the latest runs, newest first. An empty job lists all jobs.
func (a *RunLogAdapter) RecentRuns(ctx context.Context, job string, limit int) ([]storage.Run, error) {
	if limit <= 0 {
		limit = defaultRecentRuns
	}

	rows, err := a.db.QueryContext(ctx, queryRecentRuns, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.Run
	for rows.Next() {
		var (
			r       storage.Run
			errText sql.NullString
		)
		if err := rows.Scan(
			&r.ID,
			&r.Job,
			&r.StartedAt,
			&r.FinishedAt,
			&r.FromTime,
			&r.ToTime,
			&r.TotalCount,
			&r.Failed,
			&r.Delivered,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

var _ storage.RunRecorder = (*RunLogAdapter)(nil)
