// Package scheduler repeats the snow report on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stevenhcau/snowReport/internal/logging"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/report"
	"github.com/stevenhcau/snowReport/internal/resort"
)

const (
	DefaultInterval = time.Hour
	cleanupInterval = 24 * time.Hour
)

// Pruner drops archived payloads past their retention. *store.Store
// satisfies it.
type Pruner interface {
	CleanupOldRawPayloads(retentionDays int) (int64, error)
}

// Scheduler fetches the selected locations every interval and writes a snow
// report for each. Locations are resolved on every pass so registry edits
// take effect without a restart.
type Scheduler struct {
	runner    *resort.Runner
	locations func() ([]registry.Location, error)
	out       io.Writer
	interval  time.Duration
	logger    *zap.SugaredLogger

	pruner        Pruner
	retentionDays int
	publish       func([]resort.SnowReport)

	mu sync.Mutex // serializes writes to out
}

func New(runner *resort.Runner, locations func() ([]registry.Location, error), out io.Writer, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{
		runner:    runner,
		locations: locations,
		out:       out,
		interval:  interval,
		logger:    logger.Named("scheduler"),
	}
}

// SetPruner enables daily cleanup of archived payloads older than
// retentionDays.
func (s *Scheduler) SetPruner(p Pruner, retentionDays int) {
	s.pruner = p
	s.retentionDays = retentionDays
}

// OnReport registers a callback that receives every completed pass.
func (s *Scheduler) OnReport(fn func([]resort.SnowReport)) {
	s.publish = fn
}

// Run reports immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.report(ctx)
	s.prune()

	reportTicker := time.NewTicker(s.interval)
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer reportTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return
		case <-reportTicker.C:
			s.report(ctx)
		case <-cleanupTicker.C:
			s.prune()
		}
	}
}

func (s *Scheduler) report(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Errorw("snow report failed", "error", err)
	}
}

// RunOnce performs a single pass.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	locs, err := s.locations()
	if err != nil {
		return fmt.Errorf("resolve locations: %w", err)
	}

	start := time.Now()
	sessions := s.runner.Run(ctx, locs)

	s.mu.Lock()
	defer s.mu.Unlock()

	snowy, unavailable := 0, 0
	reports := make([]resort.SnowReport, 0, len(sessions))
	fmt.Fprintf(s.out, "== %s ==\n\n", start.Format("2006-01-02 15:04 MST"))
	for _, sess := range sessions {
		r, err := sess.SnowReport()
		if err != nil {
			s.logger.Warnw("bad forecast data", "location", sess.Location().Key, "error", err)
			unavailable++
			continue
		}
		switch {
		case !r.Available:
			unavailable++
		case r.Present:
			snowy++
		}
		reports = append(reports, r)
		if err := report.WriteSnow(s.out, r); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if s.publish != nil {
		s.publish(reports)
	}
	s.logger.Infow("snow report complete",
		"locations", len(sessions), "snow", snowy, "unavailable", unavailable, "elapsed", time.Since(start))
	return nil
}

func (s *Scheduler) prune() {
	if s.pruner == nil || s.retentionDays <= 0 {
		return
	}
	n, err := s.pruner.CleanupOldRawPayloads(s.retentionDays)
	if err != nil {
		s.logger.Warnw("prune payloads failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Infow("pruned payloads", "count", n, "retention_days", s.retentionDays)
	}
}
