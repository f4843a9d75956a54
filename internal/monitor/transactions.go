package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
	"github.com/deltawatch-lab/deltawatch/internal/delivery/teams"
)

// Extractor is the grouped extraction surface used by TransactionJob.
type Extractor interface {
	Extract(ctx context.Context, sources []source.Descriptor) summary.OverallSummary
}

// ClassifiedExtractor is the pass/fail extraction surface used by PaymentLogJob.
type ClassifiedExtractor interface {
	ExtractClassified(ctx context.Context, d source.Descriptor) summary.ClassifiedSummary
}

// TransactionJob reports new rows across the transaction sources.
type TransactionJob struct {
	name      string
	extractor Extractor
	sources   []source.Descriptor
	deps      Deps
}

func NewTransactionJob(name string, extractor Extractor, sources []source.Descriptor, deps Deps) *TransactionJob {
	return &TransactionJob{name: name, extractor: extractor, sources: sources, deps: deps}
}

func (j *TransactionJob) Name() string { return j.name }

func (j *TransactionJob) Run(ctx context.Context) error {
	started := j.deps.now()
	slog.Info("[Monitor] Executing transaction monitor job", "job", j.name, "sources", len(j.sources))

	s := j.extractor.Extract(ctx, j.sources)

	failed := 0
	for _, t := range s.Sources {
		if t.Status != summary.StatusOK && t.Status != summary.StatusSeeded {
			failed++
		}
	}

	run := storage.Run{
		Job:        j.name,
		StartedAt:  started,
		FromTime:   s.FromTime,
		ToTime:     s.ToTime,
		TotalCount: s.TotalCount(),
		Failed:     failed,
	}
	if err := j.deps.deliver(ctx, run, teams.TransactionSummaryCard(s, j.deps.location())); err != nil {
		return fmt.Errorf("deliver transaction summary: %w", err)
	}
	return nil
}

// PaymentLogJob reports processed and unprocessed payment log entries.
type PaymentLogJob struct {
	name      string
	extractor ClassifiedExtractor
	source    source.Descriptor
	deps      Deps
}

func NewPaymentLogJob(name string, extractor ClassifiedExtractor, d source.Descriptor, deps Deps) *PaymentLogJob {
	return &PaymentLogJob{name: name, extractor: extractor, source: d, deps: deps}
}

func (j *PaymentLogJob) Name() string { return j.name }

func (j *PaymentLogJob) Run(ctx context.Context) error {
	started := j.deps.now()
	slog.Info("[Monitor] Executing payment log monitor job", "job", j.name, "source", j.source.Name)

	s := j.extractor.ExtractClassified(ctx, j.source)

	run := storage.Run{
		Job:        j.name,
		StartedAt:  started,
		FromTime:   s.FromTime,
		ToTime:     s.ToTime,
		TotalCount: s.ProcessedCount() + s.NotProcessedCount(),
	}
	switch s.Status {
	case summary.StatusOK, summary.StatusSeeded:
	default:
		run.Failed = 1
	}
	if err := j.deps.deliver(ctx, run, teams.PaymentLogCard(s, j.deps.location())); err != nil {
		return fmt.Errorf("deliver payment log summary: %w", err)
	}
	return nil
}
