// Package schedule wires up the cron entries that keep prices fresh: a
// full sweep of every retailer on the main interval, plus a tighter cycle
// for the high-volatility retailers.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"cardwatch/jobs"
	"cardwatch/store"
)

// Scheduler runs scrape cycles on a fixed cadence through the job runner.
type Scheduler struct {
	cron     *cron.Cron
	runner   *jobs.Runner
	parallel bool

	fullSpec     string // e.g. "@every 6h"
	prioritySpec string
	priority     []string // retailer slugs on the tighter cycle
}

// Options configures the scrape cadence.
type Options struct {
	IntervalHours         int
	PriorityIntervalHours int
	PriorityRetailers     []string
	Parallel              bool
}

// New builds a scheduler around the runner. Priority retailers are scraped
// on both cadences; the full sweep covers them anyway and duplicate quotes
// are harmless.
func New(runner *jobs.Runner, opts Options) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		runner:       runner,
		parallel:     opts.Parallel,
		fullSpec:     fmt.Sprintf("@every %dh", opts.IntervalHours),
		prioritySpec: fmt.Sprintf("@every %dh", opts.PriorityIntervalHours),
		priority:     opts.PriorityRetailers,
	}
}

// Start registers the cron entries and begins ticking. One full sweep runs
// immediately so a fresh deployment has prices without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.fullSpec, func() {
		s.runFull(ctx)
	}); err != nil {
		return fmt.Errorf("register full sweep: %w", err)
	}

	if len(s.priority) > 0 {
		if _, err := s.cron.AddFunc(s.prioritySpec, func() {
			s.runPriority(ctx)
		}); err != nil {
			return fmt.Errorf("register priority sweep: %w", err)
		}
	}

	s.cron.Start()
	slog.Info("scheduler started",
		slog.String("full", s.fullSpec),
		slog.String("priority", s.prioritySpec),
		slog.Int("priority_retailers", len(s.priority)),
	)

	go s.runFull(ctx)
	return nil
}

// Stop halts the cron loop. In-flight cycles finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runFull(ctx context.Context) {
	slog.Info("full scrape cycle started")
	report, err := s.runner.RunAll(ctx, store.ProductFilter{}, s.parallel)
	if err != nil {
		slog.Error("full scrape cycle aborted", slog.Any("error", err))
		return
	}
	slog.Info("full scrape cycle complete",
		slog.Int("jobs", len(report.Jobs)),
		slog.Int("scraped", report.TotalScraped()),
		slog.Int("failed", report.TotalFailed()),
		slog.Duration("took", report.EndTime.Sub(report.StartTime)),
	)
}

func (s *Scheduler) runPriority(ctx context.Context) {
	slog.Info("priority scrape cycle started", slog.Any("retailers", s.priority))
	for _, slug := range s.priority {
		if _, err := s.runner.RunRetailer(ctx, slug, store.ProductFilter{}); err != nil {
			slog.Error("priority scrape failed",
				slog.String("retailer", slug),
				slog.Any("error", err),
			)
		}
	}
	slog.Info("priority scrape cycle complete")
}
