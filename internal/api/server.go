// Package api serves the watcher's status endpoints: Prometheus metrics,
// a health summary, and the latest snow reports as JSON.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stevenhcau/snowReport/internal/logging"
	"github.com/stevenhcau/snowReport/internal/resort"
	"github.com/stevenhcau/snowReport/internal/store"
)

// Archive is the subset of *store.Store the server reads from.
type Archive interface {
	RecentFailures(limit int) ([]store.FetchRun, error)
	FetchHealth(days int) ([]store.FetchHealth, error)
}

type Server struct {
	addr     string
	archive  Archive
	interval time.Duration
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	latest    []SnowResort
	updatedAt time.Time
}

// SnowResort is the JSON form of one snow report.
type SnowResort struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Country       string  `json:"country"`
	Available     bool    `json:"available"`
	Reason        string  `json:"reason,omitempty"`
	AccumulatedMM float64 `json:"accumulated_mm"`
	Snow          bool    `json:"snow"`
}

// FailedRun is the JSON form of one failed fetch from the archive.
type FailedRun struct {
	ID          int64     `json:"id"`
	FetchedAt   time.Time `json:"fetched_at"`
	LocationKey string    `json:"location_key"`
	Horizon     string    `json:"horizon"`
	Endpoint    string    `json:"endpoint"`
	HTTPStatus  *int      `json:"http_status"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Error       string    `json:"error,omitempty"`
}

func newFailedRun(r store.FetchRun) FailedRun {
	out := FailedRun{
		ID:          r.ID,
		FetchedAt:   r.FetchedAt.UTC(),
		LocationKey: r.LocationKey,
		Horizon:     r.Horizon,
		Endpoint:    r.Endpoint,
		ElapsedMS:   r.ElapsedMS,
		Error:       r.ErrorMessage.String,
	}
	if r.HTTPStatus.Valid {
		status := int(r.HTTPStatus.Int64)
		out.HTTPStatus = &status
	}
	return out
}

type HealthStatus struct {
	Status     string              `json:"status"`
	LastReport *time.Time          `json:"last_report,omitempty"`
	Locations  int                 `json:"locations"`
	Fetches    []store.FetchHealth `json:"fetches,omitempty"`
	Errors     []string            `json:"errors,omitempty"`
}

// NewServer creates a status server. archive may be nil when no fetch
// archive is configured; interval is the report period used to judge
// staleness.
func NewServer(addr string, archive Archive, interval time.Duration, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		addr:     addr,
		archive:  archive,
		interval: interval,
		logger:   logger.Named("api"),
	}
}

// Publish replaces the reports served by /api/snow.
func (s *Server) Publish(reports []resort.SnowReport) {
	out := make([]SnowResort, 0, len(reports))
	for _, r := range reports {
		out = append(out, SnowResort{
			Key:           r.Location.Key,
			Name:          r.Location.Name,
			Country:       r.Location.Country,
			Available:     r.Available,
			Reason:        r.Reason,
			AccumulatedMM: r.Accumulated,
			Snow:          r.Present,
		})
	}
	s.mu.Lock()
	s.latest = out
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/snow", s.handleSnow)
	mux.HandleFunc("/api/runs", s.handleRuns)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("serving status", "addr", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	updated := s.updatedAt
	count := len(s.latest)
	s.mu.RUnlock()

	health := HealthStatus{Status: "ok", Locations: count}
	switch {
	case updated.IsZero():
		health.Status = "starting"
	case s.interval > 0 && time.Since(updated) > 2*s.interval:
		health.Status = "stale"
		health.LastReport = &updated
	default:
		health.LastReport = &updated
	}

	if s.archive != nil {
		fetches, err := s.archive.FetchHealth(1)
		if err != nil {
			health.Errors = append(health.Errors, "fetch health: "+err.Error())
		}
		health.Fetches = fetches
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "stale" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleSnow(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		latest = []SnowResort{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(latest)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "fetch archive not configured", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.archive.RecentFailures(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]FailedRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, newFailedRun(run))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
