package summary

import (
	"sort"
	"time"
)

// ZeroGroupKey is the key of the single zero-count entry emitted for a source whose
// bounded query returned no rows.
func ZeroGroupKey(sourceName string) string {
	return "Total " + sourceName
}

// Aggregate merges per-source results, in the given order, into one report.
// Only StatusOK results contribute groups; an OK result without groups becomes a
// single zero marker so that "nothing new" stays distinguishable from "not queried".
func Aggregate(from, to time.Time, results []SourceResult) OverallSummary {
	out := OverallSummary{
		FromTime: from,
		ToTime:   to,
		Sources:  make([]TableSummary, 0, len(results)),
	}
	for _, r := range results {
		out.Sources = append(out.Sources, tableFor(r))
	}
	return out
}

func tableFor(r SourceResult) TableSummary {
	t := TableSummary{
		SourceName: r.Source.Name,
		Groups:     []GroupCount{},
		Status:     r.Status,
	}
	if r.Err != nil {
		t.Error = r.Err.Error()
	}
	if r.Status != StatusOK {
		return t
	}

	t.Groups = SortByCount(r.Groups)
	if len(t.Groups) == 0 {
		t.Groups = []GroupCount{{Key: ZeroGroupKey(r.Source.Name), Count: 0}}
	}
	return t
}

// Classify splits classified rows into the processed and not-processed buckets,
// each ordered by descending count.
func Classify(from, to time.Time, rows []ClassifiedCount) ClassifiedSummary {
	out := ClassifiedSummary{
		FromTime:     from,
		ToTime:       to,
		Processed:    []GroupCount{},
		NotProcessed: []GroupCount{},
		Status:       StatusOK,
	}
	for _, r := range rows {
		g := GroupCount{Key: r.Key, Count: r.Count}
		if r.Processed {
			out.Processed = append(out.Processed, g)
		} else {
			out.NotProcessed = append(out.NotProcessed, g)
		}
	}
	out.Processed = SortByCount(out.Processed)
	out.NotProcessed = SortByCount(out.NotProcessed)
	return out
}

// EmptyClassified returns a classified report with no rows and the given status.
func EmptyClassified(from, to time.Time, status Status, err error) ClassifiedSummary {
	out := ClassifiedSummary{
		FromTime:     from,
		ToTime:       to,
		Processed:    []GroupCount{},
		NotProcessed: []GroupCount{},
		Status:       status,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// SortByCount returns a copy of groups ordered by descending count. Ties keep
// their arrival order.
func SortByCount(groups []GroupCount) []GroupCount {
	out := make([]GroupCount, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
