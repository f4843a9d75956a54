// Package watermark tracks, per source, the boundary up to which rows have already
// been accounted for.
//
// Reads hand out the current boundary; advances are compare-and-advance against the
// boundary that was read, so a pass working from a stale read cannot move the
// watermark a second time.
package watermark

import "time"

// Window is a half-open time interval [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	// FirstRun is set when no watermark existed for the key; From equals To.
	FirstRun bool `json:"first_run,omitempty"`
}

// Empty reports whether the window contains no instant.
func (w Window) Empty() bool {
	return !w.From.Before(w.To)
}

// IDBound is the last identifier already accounted for.
type IDBound struct {
	LastID   int64 `json:"last_id"`
	FirstRun bool  `json:"first_run,omitempty"`
}

// Store holds watermarks for a set of sources.
type Store interface {
	// CurrentWindow returns [previous to, now). For an unknown key it returns the
	// empty window [now, now) with FirstRun set.
	CurrentWindow(key string, now time.Time) Window

	// Advance records w.To as the new boundary for key, provided the boundary is still
	// w.From (or still absent for a first-run window). Returns false when the
	// watermark was moved by someone else since w was read.
	Advance(key string, w Window) bool

	// CurrentIDBound returns the last seen identifier for key.
	CurrentIDBound(key string) IDBound

	// AdvanceID records newMax for key, provided the bound is still prev. The stored
	// value never decreases.
	AdvanceID(key string, prev IDBound, newMax int64) bool
}
