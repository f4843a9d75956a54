// Package scheduler triggers jobs on cron schedules and on demand. Every job is
// single-flight: an invocation that finds the same job still running is skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrAlreadyRunning = errors.New("job is already running")
	ErrUnknownJob     = errors.New("unknown job")
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule,omitempty"`
	Running  bool      `json:"running"`
	Next     time.Time `json:"next,omitempty"`
}

type entry struct {
	job     Job
	spec    string
	entryID cron.EntryID
	running atomic.Bool
}

// Scheduler owns one cron instance and the single-flight guard of every job.
type Scheduler struct {
	parser cron.Parser
	cron   *cron.Cron
	loc    *time.Location

	mu      sync.Mutex
	entries map[string]*entry
	baseCtx context.Context
	wg      sync.WaitGroup
}

// LoadLocation resolves tz, falling back to the local zone when it is unknown.
func LoadLocation(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("[Scheduler] Timezone not found, falling back to local timezone",
			"timezone", tz,
			"local", time.Local.String(),
			"error", err,
		)
		return time.Local
	}
	return loc
}

// New creates a scheduler evaluating cron specs in loc. Specs accept an optional
// leading seconds field and descriptors such as @every 5m.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	logger := cronLogger{}
	return &Scheduler{
		parser: parser,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		loc:     loc,
		entries: make(map[string]*entry),
		baseCtx: context.Background(),
	}
}

// Location returns the zone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Register adds a job. An empty spec registers a job that only runs on demand.
func (s *Scheduler) Register(job Job, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	e := &entry{job: job, spec: spec}
	if spec != "" {
		sched, err := s.parser.Parse(spec)
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
		}
		e.entryID = s.cron.Schedule(sched, cron.FuncJob(func() {
			if err := s.run(s.context(), e); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				slog.Error("[Scheduler] Job failed", "job", name, "error", err)
			}
		}))
	}
	s.entries[name] = e

	slog.Info("[Scheduler] Job registered", "job", name, "schedule", spec)
	return nil
}

// Start runs the cron loop until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	slog.Info("[Scheduler] Started", "timezone", s.loc.String(), "jobs", len(s.Jobs()))

	<-ctx.Done()
	slog.Info("[Scheduler] Stopping (context cancelled)")

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.wg.Wait()

	slog.Info("[Scheduler] Stopped")
	return nil
}

// RunNow runs the named job synchronously through the same guard as the cron trigger.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

// Jobs lists registered jobs by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		info := JobInfo{Name: name, Schedule: e.spec, Running: e.running.Load()}
		if e.spec != "" {
			info.Next = s.cron.Entry(e.entryID).Next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	name := e.job.Name()
	if !e.running.CompareAndSwap(false, true) {
		slog.Warn("[Scheduler] Skipping invocation, previous run still in progress", "job", name)
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	s.wg.Add(1)
	defer func() {
		e.running.Store(false)
		s.wg.Done()
	}()

	start := time.Now()
	err := e.job.Run(ctx)
	slog.Info("[Scheduler] Job finished", "job", name, "duration", time.Since(start), "ok", err == nil)
	return err
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("[Scheduler] cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("[Scheduler] cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
