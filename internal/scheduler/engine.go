// Package scheduler repeats a job on a cron schedule. Runs never overlap: a run that
// overshoots its slot delays the next one rather than stacking.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	syncErrors "github.com/harunnryd/synccheck/internal/errors"

	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job

	mu      sync.RWMutex
	running bool
	runs    int

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// New parses spec in standard five-field cron syntax (descriptors such as "@every 6h"
// are accepted).
func New(spec string, job Job) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, syncErrors.InvalidInput("schedule is empty")
	}
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, syncErrors.InvalidInput(fmt.Sprintf("invalid schedule %q: %v", spec, err))
	}

	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		job:      job,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Upcoming lists the next n fire times after from.
func (s *Scheduler) Upcoming(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = s.schedule.Next(next)
		if next.IsZero() {
			break
		}
		out = append(out, next)
	}
	return out
}

// Run blocks until ctx is done, invoking the job at each fire time. Job errors are logged
// and do not stop the loop. When maxRuns is positive Run returns after that many runs.
func (s *Scheduler) Run(ctx context.Context, maxRuns int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	slog.Info("Scheduler started", "schedule", s.spec)
	for {
		next := s.schedule.Next(s.now())
		if next.IsZero() {
			return fmt.Errorf("schedule %q has no future fire time", s.spec)
		}
		slog.Info("Next scheduled run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return nil
		case <-s.after(time.Until(next)):
		}

		start := s.now()
		err := s.job(ctx)
		if err != nil {
			slog.Error("Scheduled run failed", "error", err, "duration", s.now().Sub(start))
		} else {
			slog.Info("Scheduled run finished", "duration", s.now().Sub(start))
		}

		s.mu.Lock()
		s.runs++
		done := maxRuns > 0 && s.runs >= maxRuns
		s.mu.Unlock()
		if done {
			return nil
		}
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}
