package resort

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/logging"
	"github.com/stevenhcau/snowReport/internal/registry"
)

const DefaultConcurrency = 4

// Runner fetches many locations with bounded parallelism. Each location
// gets its own Session; one location failing never affects another.
type Runner struct {
	Fetcher     Fetcher
	Recorder    Recorder
	Logger      *zap.SugaredLogger
	Zone        *time.Location
	Concurrency int

	// Horizons limits which horizons are fetched. Empty means all three.
	Horizons []forecast.Horizon
}

// Run returns one session per location, in input order.
func (r *Runner) Run(ctx context.Context, locs []registry.Location) []*Session {
	logger := r.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	sessions := make([]*Session, len(locs))
	var g errgroup.Group
	g.SetLimit(limit)

	start := time.Now()
	for i, loc := range locs {
		sess := r.newSession(loc, logger)
		sessions[i] = sess
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r.fetch(ctx, sess)
			return nil
		})
	}
	g.Wait()

	logger.Named("runner").Debugw("fetched locations", "count", len(locs), "elapsed", time.Since(start))
	return sessions
}

func (r *Runner) newSession(loc registry.Location, logger *zap.SugaredLogger) *Session {
	opts := []Option{WithLogger(logger)}
	if r.Recorder != nil {
		opts = append(opts, WithRecorder(r.Recorder))
	}
	if r.Zone != nil {
		opts = append(opts, WithZone(r.Zone))
	}
	return NewSession(loc, r.Fetcher, opts...)
}

func (r *Runner) fetch(ctx context.Context, sess *Session) {
	if len(r.Horizons) == 0 {
		sess.FetchAll(ctx)
		return
	}
	for _, h := range r.Horizons {
		sess.Fetch(ctx, h)
	}
}
