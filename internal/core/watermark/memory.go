package watermark

import (
	"sync"
	"time"
)

// MemoryStore keeps watermarks in process memory. A single mutex guards every key;
// polling happens every few minutes so there is no contention worth splitting for.
// Watermarks are lost on restart and re-seeded on the next first run.
type MemoryStore struct {
	mu    sync.Mutex
	times map[string]time.Time
	ids   map[string]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		times: make(map[string]time.Time),
		ids:   make(map[string]int64),
	}
}

func (s *MemoryStore) CurrentWindow(key string, now time.Time) Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.times[key]
	if !ok {
		return Window{From: now, To: now, FirstRun: true}
	}
	if now.Before(from) {
		// Clock went backwards; keep the window empty rather than inverted.
		now = from
	}
	return Window{From: from, To: now}
}

func (s *MemoryStore) Advance(key string, w Window) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.times[key]
	switch {
	case w.FirstRun && ok:
		return false
	case !w.FirstRun && (!ok || !current.Equal(w.From)):
		return false
	}
	if w.To.Before(w.From) {
		return false
	}
	s.times[key] = w.To
	return true
}

func (s *MemoryStore) CurrentIDBound(key string) IDBound {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.ids[key]
	if !ok {
		return IDBound{FirstRun: true}
	}
	return IDBound{LastID: last}
}

func (s *MemoryStore) AdvanceID(key string, prev IDBound, newMax int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ids[key]
	switch {
	case prev.FirstRun && ok:
		return false
	case !prev.FirstRun && (!ok || current != prev.LastID):
		return false
	}
	if !prev.FirstRun && newMax < prev.LastID {
		newMax = prev.LastID
	}
	s.ids[key] = newMax
	return true
}

// Snapshot returns a copy of all time and id watermarks.
func (s *MemoryStore) Snapshot() (map[string]time.Time, map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := make(map[string]time.Time, len(s.times))
	for k, v := range s.times {
		times[k] = v
	}
	ids := make(map[string]int64, len(s.ids))
	for k, v := range s.ids {
		ids[k] = v
	}
	return times, ids
}

var _ Store = (*MemoryStore)(nil)
