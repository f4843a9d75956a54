// Package monitor glues extraction to delivery. Each job runs one pass, renders the
// result as a card, posts it and records the invocation.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/delivery/teams"
)

const recordTimeout = 5 * time.Second

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Notifier delivers a rendered card.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, p teams.Payload) error
}

// Deps are the collaborators shared by all jobs.
type Deps struct {
	Notifier Notifier
	Recorder storage.RunRecorder // optional
	Location *time.Location
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.Local
}

// deliver sends the payload and records run. The delivery error is returned to the
// caller; a recording failure is only logged.
func (d Deps) deliver(ctx context.Context, run storage.Run, p teams.Payload) error {
	err := d.Notifier.Send(ctx, p)
	run.FinishedAt = d.now()
	run.Delivered = err == nil && d.Notifier.Enabled()
	if err != nil {
		run.Error = err.Error()
	}
	d.record(ctx, run)
	return err
}

func (d Deps) record(ctx context.Context, run storage.Run) {
	if d.Recorder == nil {
		return
	}
	// The run is recorded even when the job's own context was cancelled.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := d.Recorder.RecordRun(recCtx, run); err != nil {
		slog.Warn("[Monitor] Failed to record run", "job", run.Job, "error", err)
	}
}
