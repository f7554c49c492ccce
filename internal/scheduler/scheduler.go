// Package scheduler runs the service's periodic background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTimeout bounds a job run when AddJob is given no timeout.
const DefaultTimeout = 5 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

type entry struct {
	id       cron.EntryID
	schedule string
	timeout  time.Duration
	job      Job
}

// Scheduler manages periodic tasks. A job whose previous run is still going
// is skipped rather than run concurrently with itself.
type Scheduler struct {
	cron     *cron.Cron
	timezone *time.Location

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a new scheduler with the given timezone. An empty timezone means UTC.
func New(timezone string) (*Scheduler, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	logger := cron.PrintfLogger(log.Default())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]entry),
		timezone: loc,
	}, nil
}

// AddJob adds a job with a cron schedule, e.g. "@every 1m" or "0 * * * *".
// Each run gets a context that expires after timeout.
func (s *Scheduler) AddJob(name, schedule string, timeout time.Duration, job Job) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.run(ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entry{id: entryID, schedule: schedule, timeout: timeout, job: job}
	log.Printf("[scheduler] Added job: %s (schedule: %s)", name, schedule)
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	start := time.Now()
	if err := job(ctx); err != nil {
		log.Printf("[scheduler] Job %s failed after %v: %v", name, time.Since(start), err)
		return err
	}
	if d := time.Since(start); d > time.Second {
		log.Printf("[scheduler] Job %s completed in %v", name, d)
	}
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.jobs[name]; ok {
		s.cron.Remove(e.id)
		delete(s.jobs, name)
		log.Printf("[scheduler] Removed job: %s", name)
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	log.Println("[scheduler] Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	log.Println("[scheduler] Stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a registered job with its configured timeout.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	log.Printf("[scheduler] Running job now: %s", name)
	return s.run(ctx, name, e.job)
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

// ListJobs returns the scheduled jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: e.schedule,
			NextRun:  ce.Next,
			LastRun:  ce.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
