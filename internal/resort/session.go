// Package resort holds per-location fetch sessions: the three horizon
// requests for one resort, their outcomes, and the signals derived from them.
package resort

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stevenhcau/snowReport/internal/climacell"
	"github.com/stevenhcau/snowReport/internal/forecast"
	"github.com/stevenhcau/snowReport/internal/logging"
	"github.com/stevenhcau/snowReport/internal/metrics"
	"github.com/stevenhcau/snowReport/internal/registry"
	"github.com/stevenhcau/snowReport/internal/store"
)

var ErrNoData = errors.New("no data for horizon")

// NoDataError means a horizon was never attempted or its fetch failed.
type NoDataError struct {
	Location string
	Horizon  forecast.Horizon
	Cause    error // nil when the horizon was never attempted
}

func (e *NoDataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: no %s data: %v", e.Location, e.Horizon, e.Cause)
	}
	return fmt.Sprintf("%s: no %s data: not fetched", e.Location, e.Horizon)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

func (e *NoDataError) Unwrap() error { return e.Cause }

// Fetcher issues a single horizon request. *climacell.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, h forecast.Horizon, lat, lon string) (*climacell.Result, error)
}

// Recorder archives fetch attempts. *store.Store satisfies it.
type Recorder interface {
	RecordFetch(run *store.FetchRun, body []byte) (int64, error)
}

type State int

const (
	Empty State = iota
	PartiallyFetched
	Fetched
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case PartiallyFetched:
		return "partially fetched"
	case Fetched:
		return "fetched"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type outcome struct {
	attempted bool
	samples   forecast.Sequence
	err       error
}

// SnowReport is the 4-day snow signal for a location. Available is false
// when the medium-range forecast could not be fetched; that is distinct from
// a forecast of no snow.
type SnowReport struct {
	Location    registry.Location
	Available   bool
	Reason      string
	Accumulated float64
	Present     bool
}

// Session is the fetch state for one location. It is owned by its creator;
// fetches on different horizons may run concurrently.
type Session struct {
	loc      registry.Location
	fetcher  Fetcher
	recorder Recorder
	logger   *zap.SugaredLogger
	zone     *time.Location

	mu       sync.Mutex
	horizons [forecast.NumHorizons]outcome

	snowComputed    bool
	accumulatedSnow float64
	hasSnow         bool
}

type Option func(*Session)

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) { s.logger = l }
}

// WithZone sets the zone that series timestamps are normalized into.
// The default is time.Local.
func WithZone(z *time.Location) Option {
	return func(s *Session) { s.zone = z }
}

func NewSession(loc registry.Location, fetcher Fetcher, opts ...Option) *Session {
	s := &Session{
		loc:     loc,
		fetcher: fetcher,
		logger:  logging.Nop(),
		zone:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("resort").With("location", loc.Key)
	return s
}

func (s *Session) Location() registry.Location { return s.loc }

// FetchAll requests every horizon in parallel. Failures are recorded per
// horizon and never returned.
func (s *Session) FetchAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, h := range forecast.Horizons {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Fetch(ctx, h)
		}()
	}
	wg.Wait()
}

// Fetch requests one horizon, replacing any earlier outcome for it, and
// returns the failure recorded for it (nil on success).
func (s *Session) Fetch(ctx context.Context, h forecast.Horizon) error {
	if int(h) < 0 || int(h) >= len(s.horizons) {
		return fmt.Errorf("unknown horizon %d", int(h))
	}

	res, err := s.fetcher.Fetch(ctx, h, s.loc.Lat, s.loc.Lon)
	if err == nil && res == nil {
		err = fmt.Errorf("fetch %s: no result", h)
	}
	s.record(h, res, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.horizons[h] = outcome{attempted: true, err: err}
		status := 0
		var f *climacell.Failure
		if errors.As(err, &f) {
			status = f.StatusCode
		}
		s.logger.Warnw("horizon fetch failed", "horizon", h, "status", status, "error", err)
	} else {
		s.horizons[h] = outcome{attempted: true, samples: res.Samples}
	}
	if h == forecast.MediumRange {
		s.snowComputed = false
	}
	return err
}

func (s *Session) record(h forecast.Horizon, res *climacell.Result, fetchErr error) {
	if s.recorder == nil || res == nil {
		return
	}
	run := &store.FetchRun{
		FetchedAt:         time.Now().UTC(),
		LocationKey:       s.loc.Key,
		Horizon:           h.String(),
		Endpoint:          res.Endpoint,
		ResponseSizeBytes: int64(len(res.Body)),
		SamplesParsed:     len(res.Samples),
		ElapsedMS:         res.Elapsed.Milliseconds(),
		Success:           fetchErr == nil,
	}
	if res.StatusCode != 0 {
		run.HTTPStatus = sql.NullInt64{Int64: int64(res.StatusCode), Valid: true}
	}
	if fetchErr != nil {
		run.ErrorMessage = sql.NullString{String: fetchErr.Error(), Valid: true}
	}
	if _, err := s.recorder.RecordFetch(run, res.Body); err != nil {
		s.logger.Warnw("record fetch failed", "horizon", h, "error", err)
	}
}

// State reports how many horizons have been attempted.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.horizons {
		if o.attempted {
			n++
		}
	}
	switch n {
	case 0:
		return Empty
	case len(s.horizons):
		return Fetched
	default:
		return PartiallyFetched
	}
}

// Succeeded reports whether the last fetch of h produced samples.
func (s *Session) Succeeded(h forecast.Horizon) bool {
	o, ok := s.outcome(h)
	return ok && o.attempted && o.err == nil
}

// Failure returns the error recorded for h, or nil.
func (s *Session) Failure(h forecast.Horizon) error {
	o, _ := s.outcome(h)
	return o.err
}

func (s *Session) outcome(h forecast.Horizon) (outcome, bool) {
	if int(h) < 0 || int(h) >= len(s.horizons) {
		return outcome{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.horizons[h], true
}

// Sequence returns the samples fetched for h.
func (s *Session) Sequence(h forecast.Horizon) (forecast.Sequence, error) {
	o, _ := s.outcome(h)
	if !o.attempted || o.err != nil {
		return nil, &NoDataError{Location: s.loc.Key, Horizon: h, Cause: o.err}
	}
	return o.samples, nil
}

// Now returns the realtime observation.
func (s *Session) Now() (forecast.Sample, error) {
	seq, err := s.Sequence(forecast.Now)
	if err != nil {
		return forecast.Sample{}, err
	}
	if len(seq) == 0 {
		return forecast.Sample{}, &NoDataError{Location: s.loc.Key, Horizon: forecast.Now}
	}
	return seq[0], nil
}

// SeriesFor extracts quantity q from horizon h in the session's zone.
func (s *Session) SeriesFor(h forecast.Horizon, q forecast.Quantity) (*forecast.Series, error) {
	seq, err := s.Sequence(h)
	if err != nil {
		return nil, err
	}
	series, err := forecast.Extract(seq, q, s.zone)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.loc.Key, h, err)
	}
	return series, nil
}

// SnowReport aggregates snow over the medium-range forecast. Only data
// errors in a fetched forecast are returned; an unavailable forecast is
// reported through the result.
func (s *Session) SnowReport() (SnowReport, error) {
	report := SnowReport{Location: s.loc}

	seq, err := s.Sequence(forecast.MediumRange)
	if err != nil {
		report.Reason = "not fetched"
		if cause := s.Failure(forecast.MediumRange); cause != nil {
			report.Reason = cause.Error()
		}
		metrics.SnowReports.WithLabelValues("unavailable").Inc()
		return report, nil
	}

	total, err := forecast.AggregateSnow(seq)
	if err != nil {
		return report, fmt.Errorf("%s: %w", s.loc.Key, err)
	}

	s.mu.Lock()
	s.accumulatedSnow = total.Accumulated
	s.hasSnow = total.Present
	s.snowComputed = true
	s.mu.Unlock()

	report.Available = true
	report.Accumulated = total.Accumulated
	report.Present = total.Present
	if total.Present {
		metrics.SnowReports.WithLabelValues("snow").Inc()
	} else {
		metrics.SnowReports.WithLabelValues("no_snow").Inc()
	}
	return report, nil
}

// AccumulatedSnow returns the last computed snow total. ok is false until
// SnowReport has succeeded on the current medium-range data.
func (s *Session) AccumulatedSnow() (total float64, present, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulatedSnow, s.hasSnow, s.snowComputed
}
