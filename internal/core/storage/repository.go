package storage

import (
	"context"
	"errors"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
	"github.com/deltawatch-lab/deltawatch/internal/core/watermark"
)

// ErrNotConfigured is returned by an Opener that has no reachable data source.
var ErrNotConfigured = errors.New("data source not configured")

// Opener hands out one Session per extraction pass.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Session is a query surface bound to a single connection. Identifiers come only from
// validated descriptors; window bounds and ids are always bound parameters.
type Session interface {
	// CountByGroup counts rows with date column in [w.From, w.To), grouped by the
	// descriptor's group column, ordered by descending count.
	CountByGroup(ctx context.Context, src source.Validated, w watermark.Window) ([]summary.GroupCount, error)

	// CountAfterID counts rows with id > lastID grouped by the group column and returns
	// the maximum id among the counted rows (lastID when there are none).
	CountAfterID(ctx context.Context, src source.Validated, lastID int64) ([]summary.GroupCount, int64, error)

	// MaxID returns the current maximum id, or 0 for an empty source.
	MaxID(ctx context.Context, src source.Validated) (int64, error)

	// CountClassified counts rows in [w.From, w.To) grouped by the group columns and by
	// whether the correlation column holds a non-empty value.
	CountClassified(ctx context.Context, src source.Validated, w watermark.Window) ([]summary.ClassifiedCount, error)

	Close() error
}

// Run is one recorded job invocation.
type Run struct {
	ID         string    `json:"id"`
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	FromTime   time.Time `json:"from_time"`
	ToTime     time.Time `json:"to_time"`
	TotalCount int64     `json:"total_count"`
	Failed     int       `json:"failed_sources"`
	Delivered  bool      `json:"delivered"`
	Error      string    `json:"error,omitempty"`
}

// RunRecorder stores job invocation history. It never holds watermarks.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, job string, limit int) ([]Run, error)
}
