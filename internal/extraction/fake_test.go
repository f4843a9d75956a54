package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/core/summary"
	"github.com/deltawatch-lab/deltawatch/internal/core/watermark"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeRow struct {
	ID          int64
	At          time.Time
	Group       string
	Method      string
	Correlation string
}

// fakeDB is a deterministic in-memory data source. It records which rows each query
// counted so tests can prove that passes partition the data set.
type fakeDB struct {
	mu      sync.Mutex
	tables  map[string][]fakeRow
	failing map[string]error
	openErr error
	queried []string
	counted map[string]map[int64]int
	opened  int
	closed  int
	onQuery func(table string)
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tables:  make(map[string][]fakeRow),
		failing: make(map[string]error),
		counted: make(map[string]map[int64]int),
	}
}

func (f *fakeDB) insert(table string, rows ...fakeRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], rows...)
}

func (f *fakeDB) fail(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, table)
		return
	}
	f.failing[table] = err
}

func (f *fakeDB) timesCounted(table string, id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counted[table][id]
}

func (f *fakeDB) Open(ctx context.Context) (storage.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &fakeSession{db: f}, nil
}

type fakeSession struct {
	db *fakeDB
}

// scan selects rows of table matching keep, records attribution and runs the hook.
func (s *fakeSession) scan(table string, keep func(fakeRow) bool) ([]fakeRow, error) {
	s.db.mu.Lock()
	s.db.queried = append(s.db.queried, table)
	if err, ok := s.db.failing[table]; ok {
		s.db.mu.Unlock()
		return nil, err
	}
	var out []fakeRow
	for _, r := range s.db.tables[table] {
		if keep(r) {
			out = append(out, r)
		}
	}
	hook := s.db.onQuery
	s.db.mu.Unlock()

	if hook != nil {
		hook(table)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.counted[table] == nil {
		s.db.counted[table] = make(map[int64]int)
	}
	for _, r := range out {
		s.db.counted[table][r.ID]++
	}
	return out, nil
}

func groupByArrival(rows []fakeRow, key func(fakeRow) string) []summary.GroupCount {
	index := make(map[string]int)
	var groups []summary.GroupCount
	for _, r := range rows {
		k := key(r)
		i, ok := index[k]
		if !ok {
			index[k] = len(groups)
			groups = append(groups, summary.GroupCount{Key: k})
			i = len(groups) - 1
		}
		groups[i].Count++
	}
	return summary.SortByCount(groups)
}

func groupKey(r fakeRow) string {
	if r.Group == "" {
		return summary.NullGroupKey
	}
	return r.Group
}

func (s *fakeSession) CountByGroup(ctx context.Context, src source.Validated, w watermark.Window) ([]summary.GroupCount, error) {
	rows, err := s.scan(src.Name(), func(r fakeRow) bool {
		return !r.At.Before(w.From) && r.At.Before(w.To)
	})
	if err != nil {
		return nil, err
	}
	return groupByArrival(rows, groupKey), nil
}

func (s *fakeSession) CountAfterID(ctx context.Context, src source.Validated, lastID int64) ([]summary.GroupCount, int64, error) {
	rows, err := s.scan(src.Name(), func(r fakeRow) bool { return r.ID > lastID })
	if err != nil {
		return nil, 0, err
	}
	maxID := lastID
	for _, r := range rows {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return groupByArrival(rows, groupKey), maxID, nil
}

func (s *fakeSession) MaxID(ctx context.Context, src source.Validated) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.queried = append(s.db.queried, src.Name())
	if err, ok := s.db.failing[src.Name()]; ok {
		return 0, err
	}
	var maxID int64
	for _, r := range s.db.tables[src.Name()] {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID, nil
}

func (s *fakeSession) CountClassified(ctx context.Context, src source.Validated, w watermark.Window) ([]summary.ClassifiedCount, error) {
	rows, err := s.scan(src.Name(), func(r fakeRow) bool {
		return !r.At.Before(w.From) && r.At.Before(w.To)
	})
	if err != nil {
		return nil, err
	}

	type bucket struct {
		key       string
		processed bool
	}
	var order []bucket
	counts := make(map[bucket]int64)
	for _, r := range rows {
		b := bucket{key: r.Method + " / " + groupKey(r), processed: r.Correlation != ""}
		if _, ok := counts[b]; !ok {
			order = append(order, b)
		}
		counts[b]++
	}
	out := make([]summary.ClassifiedCount, 0, len(order))
	for _, b := range order {
		out = append(out, summary.ClassifiedCount{Key: b.key, Processed: b.processed, Count: counts[b]})
	}
	return out, nil
}

func (s *fakeSession) Close() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.closed++
	return nil
}
