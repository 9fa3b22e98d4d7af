// Package scheduler wires up the cron job that periodically rebuilds the job
// snapshot from the configured sources.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
)

// Refresher rebuilds the snapshot. *store.Store satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (index.BuildReport, error)
}

// Scheduler wraps robfig/cron and owns the refresh loop.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	spec      string // cron spec, e.g. "@every 6h"
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler firing on spec. An empty spec yields a Scheduler
// whose Start is a no-op. Specs take an optional leading seconds field, and a
// tick that fires while the previous refresh is still running is skipped.
func New(refresher Refresher, spec string) *Scheduler {
	logger := slog.Default().With("component", "scheduler")
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		refresher: refresher,
		spec:      spec,
		logger:    logger,
	}
}

// Enabled reports whether a cron spec is configured.
func (s *Scheduler) Enabled() bool {
	return s.spec != ""
}

// Start registers the refresh job and starts the cron loop. Refreshes run
// with ctx, so cancelling it aborts an in-flight collection.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running refresh to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if !running {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs one refresh and logs the outcome. Errors never propagate:
// a failed refresh leaves the current snapshot serving.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	report, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Error("scheduled refresh failed", "error", err)
		return
	}
	s.logger.Info("scheduled refresh complete",
		"accepted", report.Accepted,
		"skipped", report.SkippedInvalid,
		"duplicates", report.Duplicates,
		"duration", time.Since(start),
	)
}
