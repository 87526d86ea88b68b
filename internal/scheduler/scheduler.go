// Package scheduler fires the daily pipeline on a cron schedule in the
// exchange's timezone.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobRecord is one execution in the history ring.
type JobRecord struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

const historyLimit = 50

// Scheduler wraps robfig/cron with job history and per-job timeouts.
type Scheduler struct {
	cron       *cron.Cron
	log        zerolog.Logger
	jobTimeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]Job
	history []JobRecord
}

// New creates a scheduler in the given timezone (e.g. America/New_York).
func New(log zerolog.Logger, timezone string, jobTimeout time.Duration) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Hour
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		log:        log,
		jobTimeout: jobTimeout,
		jobs:       make(map[string]Job),
	}, nil
}

// AddJob schedules a job with a standard 5-field cron spec.
func (s *Scheduler) AddJob(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already exists", job.Name())
	}
	if _, err := s.cron.AddFunc(spec, func() { s.runJob(job) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}
	s.jobs[job.Name()] = job
	s.log.Info().Str("job", job.Name()).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// Start begins firing jobs. Returns immediately.
func (s *Scheduler) Start() {
	s.log.Info().Msg("scheduler starting")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow triggers a job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	go s.runJob(job)
	return nil
}

// History returns recent job executions, newest first.
func (s *Scheduler) History() []JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobRecord, len(s.history))
	for i, rec := range s.history {
		out[len(s.history)-1-i] = rec
	}
	return out
}

func (s *Scheduler) runJob(job Job) {
	started := time.Now()
	s.log.Info().Str("job", job.Name()).Msg("job started")

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	err := job.Run(ctx)

	rec := JobRecord{
		Job:        job.Name(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
		s.log.Error().Err(err).Str("job", job.Name()).Dur("elapsed", time.Since(started)).Msg("job failed")
	} else {
		s.log.Info().Str("job", job.Name()).Dur("elapsed", time.Since(started)).Msg("job finished")
	}

	s.mu.Lock()
	s.history = append(s.history, rec)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.mu.Unlock()
}
