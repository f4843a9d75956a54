package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/delivery/teams"
)

// HeartbeatJob posts a fixed "service alive" card.
type HeartbeatJob struct {
	name        string
	label       string
	environment string
	deps        Deps
}

func NewHeartbeatJob(name, label, environment string, deps Deps) *HeartbeatJob {
	if label == "" {
		label = "Notificación"
	}
	return &HeartbeatJob{name: name, label: label, environment: environment, deps: deps}
}

func (j *HeartbeatJob) Name() string { return j.name }

func (j *HeartbeatJob) Run(ctx context.Context) error {
	now := j.deps.now().In(j.deps.location())
	slog.Info("[Monitor] Executing heartbeat job", "job", j.name, "label", j.label)

	run := storage.Run{Job: j.name, StartedAt: now, FromTime: now, ToTime: now}
	if err := j.deps.deliver(ctx, run, teams.HeartbeatCard(j.label, now, j.environment)); err != nil {
		return fmt.Errorf("deliver heartbeat: %w", err)
	}
	return nil
}
