package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
)

// ExtractClassified runs one pass of a pass/fail source. Same watermark lifecycle as a
// time-windowed source; failures produce empty buckets and leave the watermark alone.
func (e *Extractor) ExtractClassified(ctx context.Context, d source.Descriptor) summary.ClassifiedSummary {
	to := e.now()

	v, err := source.Validate(d)
	if err == nil && v.Kind() != source.Classified {
		err = fmt.Errorf("source %s is %q, not classified", d.Name, v.Kind())
	}
	if err != nil {
		slog.Error("[Extractor] Rejected classified source", "monitor", e.name, "source", d.Name, "error", err)
		return summary.EmptyClassified(to, to, summary.StatusRejected, err)
	}

	sess, ok := e.open(ctx)
	if !ok {
		return summary.EmptyClassified(to, to, summary.StatusFailed, storage.ErrNotConfigured)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("[Extractor] Failed to release session", "monitor", e.name, "error", err)
		}
	}()

	w := e.store.CurrentWindow(d.Key(), to)
	if w.FirstRun {
		if !e.store.Advance(d.Key(), w) {
			e.superseded(d, w)
			return summary.EmptyClassified(w.From, w.To, summary.StatusSuperseded, ErrSuperseded)
		}
		slog.Info("[Extractor] Baseline set", "monitor", e.name, "source", d.Name, "from", w.To)
		return summary.EmptyClassified(w.From, w.To, summary.StatusSeeded, nil)
	}

	rows, err := sess.CountClassified(ctx, v, w)
	if err != nil {
		e.failed(d, w, err)
		return summary.EmptyClassified(w.From, w.To, summary.StatusFailed, err)
	}

	if !e.store.Advance(d.Key(), w) {
		e.superseded(d, w)
		return summary.EmptyClassified(w.From, w.To, summary.StatusSuperseded, ErrSuperseded)
	}

	out := summary.Classify(w.From, w.To, rows)
	slog.Info("[Extractor] Classified pass complete",
		"monitor", e.name,
		"source", d.Name,
		"from", w.From,
		"to", w.To,
		"processed", out.ProcessedCount(),
		"not_processed", out.NotProcessedCount(),
	)
	return out
}
