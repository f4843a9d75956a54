package summary

import (
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/watermark"
)

// NullGroupKey is reported for rows whose group column is NULL.
const NullGroupKey = "N/A"

// Status tags the outcome of one source within a pass.
type Status string

const (
	StatusOK         Status = "ok"         // bounded query ran and completed
	StatusSeeded     Status = "seeded"     // first run; watermark seeded, nothing counted
	StatusFailed     Status = "failed"     // query error; watermark untouched
	StatusRejected   Status = "rejected"   // identifier outside the allow-list; no query built
	StatusCancelled  Status = "cancelled"  // pass aborted before this source ran
	StatusSuperseded Status = "superseded" // another pass advanced the watermark first
)

// GroupCount is one aggregation bucket.
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ClassifiedCount is one bucket of a pass/fail classification query.
type ClassifiedCount struct {
	Key       string `json:"key"`
	Processed bool   `json:"processed"`
	Count     int64  `json:"count"`
}

// SourceResult is the tagged outcome of extracting one source. The aggregator only
// ever consumes these, never raw errors.
type SourceResult struct {
	Source source.Descriptor
	Window watermark.Window
	Groups []GroupCount
	Status Status
	Err    error
}

// TableSummary is the per-source section of an OverallSummary.
type TableSummary struct {
	SourceName string       `json:"source_name"`
	Groups     []GroupCount `json:"groups"`
	Status     Status       `json:"status"`
	Error      string       `json:"error,omitempty"`
}

// TotalCount sums the counts of all groups.
func (t TableSummary) TotalCount() int64 {
	var total int64
	for _, g := range t.Groups {
		total += g.Count
	}
	return total
}

// OverallSummary is the time-windowed report of one extraction pass.
type OverallSummary struct {
	FromTime time.Time      `json:"from_time"`
	ToTime   time.Time      `json:"to_time"`
	Sources  []TableSummary `json:"sources"`
}

// HasData reports whether any source counted at least one row.
func (s OverallSummary) HasData() bool {
	for _, t := range s.Sources {
		if t.TotalCount() > 0 {
			return true
		}
	}
	return false
}

// TotalCount sums all sources.
func (s OverallSummary) TotalCount() int64 {
	var total int64
	for _, t := range s.Sources {
		total += t.TotalCount()
	}
	return total
}

// ClassifiedSummary is the pass/fail report.
type ClassifiedSummary struct {
	FromTime     time.Time    `json:"from_time"`
	ToTime       time.Time    `json:"to_time"`
	Processed    []GroupCount `json:"processed"`
	NotProcessed []GroupCount `json:"not_processed"`
	Status       Status       `json:"status"`
	Error        string       `json:"error,omitempty"`
}

// ProcessedCount sums the processed bucket.
func (s ClassifiedSummary) ProcessedCount() int64 { return sum(s.Processed) }

// NotProcessedCount sums the not-processed bucket.
func (s ClassifiedSummary) NotProcessedCount() int64 { return sum(s.NotProcessed) }

// HasData reports whether any row was counted.
func (s ClassifiedSummary) HasData() bool {
	return s.ProcessedCount()+s.NotProcessedCount() > 0
}

func sum(groups []GroupCount) int64 {
	var total int64
	for _, g := range groups {
		total += g.Count
	}
	return total
}
