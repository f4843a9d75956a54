// Package extraction runs bounded, incremental aggregation passes over a set of
// sources and turns them into summaries.
//
// Every source runs in its own failure scope: a rejected descriptor, a failing query or
// a lost watermark race only blanks that source. Watermarks advance strictly after the
// bounded read has completed.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
	"github.com/deltawatch-lab/deltawatch/internal/core/watermark"
)

// ErrSuperseded is recorded for a source whose watermark moved while it was being read.
var ErrSuperseded = errors.New("watermark advanced by another pass")

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithName sets the label used in log records.
func WithName(name string) Option {
	return func(e *Extractor) { e.name = name }
}

// Extractor owns the watermarks of one monitor. The store is never shared with
// other monitors.
type Extractor struct {
	name   string
	opener storage.Opener
	store  watermark.Store
	now    func() time.Time
}

// NewExtractor creates an extractor. A nil opener means no data source is configured.
func NewExtractor(opener storage.Opener, store watermark.Store, opts ...Option) *Extractor {
	e := &Extractor{
		name:   "extractor",
		opener: opener,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs one pass over sources, in order. It never fails: sources that could not
// be read contribute an empty entry, and an unreachable data source yields an empty
// summary spanning [now, now).
func (e *Extractor) Extract(ctx context.Context, sources []source.Descriptor) summary.OverallSummary {
	to := e.now()

	sess, ok := e.open(ctx)
	if !ok {
		return summary.Aggregate(to, to, nil)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("[Extractor] Failed to release session", "monitor", e.name, "error", err)
		}
	}()

	results := make([]summary.SourceResult, 0, len(sources))
	for i, d := range sources {
		if err := ctx.Err(); err != nil {
			slog.Info("[Extractor] Pass cancelled, skipping remaining sources",
				"monitor", e.name,
				"skipped", len(sources)-i,
			)
			for _, rest := range sources[i:] {
				results = append(results, summary.SourceResult{Source: rest, Status: summary.StatusCancelled, Err: err})
			}
			break
		}
		results = append(results, e.extractOne(ctx, sess, d, to))
	}

	from := earliestFrom(results, to)
	out := summary.Aggregate(from, to, results)

	slog.Info("[Extractor] Pass complete",
		"monitor", e.name,
		"from", from,
		"to", to,
		"sources", len(results),
		"total", out.TotalCount(),
		"failed", countNotOK(results),
	)
	return out
}

func (e *Extractor) open(ctx context.Context) (storage.Session, bool) {
	if e.opener == nil {
		slog.Warn("[Extractor] Data source is not configured, skipping query", "monitor", e.name)
		return nil, false
	}
	sess, err := e.opener.Open(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			slog.Warn("[Extractor] Data source is not configured, skipping query", "monitor", e.name)
		} else {
			slog.Error("[Extractor] Data source unreachable, skipping query", "monitor", e.name, "error", err)
		}
		return nil, false
	}
	return sess, true
}

func (e *Extractor) extractOne(ctx context.Context, sess storage.Session, d source.Descriptor, to time.Time) summary.SourceResult {
	v, err := source.Validate(d)
	if err != nil {
		slog.Error("[Extractor] Rejected source with unexpected table or column name",
			"monitor", e.name,
			"source", d.Name,
			"error", err,
		)
		return summary.SourceResult{Source: d, Status: summary.StatusRejected, Err: err}
	}

	switch v.Kind() {
	case source.TimeWindowed:
		return e.extractTimeWindowed(ctx, sess, v, to)
	case source.IDWindowed:
		return e.extractIDWindowed(ctx, sess, v)
	default:
		err := fmt.Errorf("source kind %q is not supported in a grouped pass", v.Kind())
		slog.Error("[Extractor] Rejected source", "monitor", e.name, "source", d.Name, "error", err)
		return summary.SourceResult{Source: d, Status: summary.StatusRejected, Err: err}
	}
}

func (e *Extractor) extractTimeWindowed(ctx context.Context, sess storage.Session, v source.Validated, to time.Time) summary.SourceResult {
	d := v.Descriptor()
	w := e.store.CurrentWindow(d.Key(), to)

	if w.FirstRun {
		if !e.store.Advance(d.Key(), w) {
			return e.superseded(d, w)
		}
		slog.Info("[Extractor] Baseline set", "monitor", e.name, "source", d.Name, "from", w.To)
		return summary.SourceResult{Source: d, Window: w, Status: summary.StatusSeeded}
	}

	groups, err := sess.CountByGroup(ctx, v, w)
	if err != nil {
		return e.failed(d, w, err)
	}

	if !e.store.Advance(d.Key(), w) {
		return e.superseded(d, w)
	}
	return summary.SourceResult{Source: d, Window: w, Groups: groups, Status: summary.StatusOK}
}

func (e *Extractor) extractIDWindowed(ctx context.Context, sess storage.Session, v source.Validated) summary.SourceResult {
	d := v.Descriptor()
	bound := e.store.CurrentIDBound(d.Key())

	if bound.FirstRun {
		maxID, err := sess.MaxID(ctx, v)
		if err != nil {
			return e.failed(d, watermark.Window{}, err)
		}
		if !e.store.AdvanceID(d.Key(), bound, maxID) {
			return e.superseded(d, watermark.Window{})
		}
		slog.Info("[Extractor] Baseline set", "monitor", e.name, "source", d.Name, "last_id", maxID)
		return summary.SourceResult{Source: d, Status: summary.StatusSeeded}
	}

	groups, maxID, err := sess.CountAfterID(ctx, v, bound.LastID)
	if err != nil {
		return e.failed(d, watermark.Window{}, err)
	}

	if !e.store.AdvanceID(d.Key(), bound, maxID) {
		return e.superseded(d, watermark.Window{})
	}
	slog.Debug("[Extractor] Id watermark advanced",
		"monitor", e.name,
		"source", d.Name,
		"cursor_advanced", fmt.Sprintf("%d -> %d", bound.LastID, maxID),
	)
	return summary.SourceResult{Source: d, Groups: groups, Status: summary.StatusOK}
}

func (e *Extractor) failed(d source.Descriptor, w watermark.Window, err error) summary.SourceResult {
	slog.Error("[Extractor] Error querying source", "monitor", e.name, "source", d.Name, "error", err)
	return summary.SourceResult{Source: d, Window: w, Status: summary.StatusFailed, Err: err}
}

func (e *Extractor) superseded(d source.Descriptor, w watermark.Window) summary.SourceResult {
	slog.Warn("[Extractor] Discarding result, watermark moved by an overlapping pass",
		"monitor", e.name,
		"source", d.Name,
	)
	return summary.SourceResult{Source: d, Window: w, Status: summary.StatusSuperseded, Err: ErrSuperseded}
}

// earliestFrom is the lower bound shared by the report: the oldest window start
// among time-windowed sources, or to when there is none.
func earliestFrom(results []summary.SourceResult, to time.Time) time.Time {
	from := to
	for _, r := range results {
		if r.Source.Kind != source.TimeWindowed || r.Window.To.IsZero() {
			continue
		}
		if r.Window.From.Before(from) {
			from = r.Window.From
		}
	}
	return from
}

func countNotOK(results []summary.SourceResult) int {
	n := 0
	for _, r := range results {
		switch r.Status {
		case summary.StatusOK, summary.StatusSeeded:
		default:
			n++
		}
	}
	return n
}
