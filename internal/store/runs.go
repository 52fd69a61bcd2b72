package store

import (
	"database/sql"
	"fmt"
	"time"
)

// FetchRun is the audit record of one horizon request for one location.
type FetchRun struct {
	ID                int64
	FetchedAt         time.Time
	LocationKey       string
	Horizon           string // "now", "short", "medium"
	Endpoint          string // "/realtime", "/nowcast", "/forecast/hourly"
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes int64
	SamplesParsed     int
	ElapsedMS         int64
	Success           bool
	ErrorMessage      sql.NullString
}

// RecordFetch stores a fetch run and, when body is non-empty and the fetch
// succeeded, its payload. It returns the run ID.
func (s *Store) RecordFetch(run *FetchRun, body []byte) (int64, error) {
	if run == nil {
		return 0, nil
	}
	if run.FetchedAt.IsZero() {
		run.FetchedAt = time.Now().UTC()
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (fetched_at, location_key, horizon, endpoint, http_status,
			response_size_bytes, samples_parsed, elapsed_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.FetchedAt.UTC(), run.LocationKey, run.Horizon, run.Endpoint, run.HTTPStatus,
		run.ResponseSizeBytes, run.SamplesParsed, run.ElapsedMS, run.Success, run.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("insert fetch run: %w", err)
	}
	run.ID, err = result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if run.Success && len(body) > 0 {
		if _, err := s.StoreRawPayload(run.ID, run.LocationKey, run.Endpoint, body); err != nil {
			return run.ID, err
		}
	}
	return run.ID, nil
}

// FetchHealth is a per-day, per-horizon summary of fetch outcomes.
type FetchHealth struct {
	Date         string `json:"date"`
	Horizon      string `json:"horizon"`
	TotalRuns    int    `json:"total_runs"`
	SuccessRuns  int    `json:"success_runs"`
	FailedRuns   int    `json:"failed_runs"`
	TotalSamples int64  `json:"total_samples"`
}

// FetchHealth returns summaries for the last N days, newest first.
func (s *Store) FetchHealth(days int) ([]FetchHealth, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(fetched_at, 1, 19)) as date,
			horizon,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(samples_parsed), 0) as total_samples
		FROM fetch_runs
		WHERE SUBSTR(fetched_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, horizon
		ORDER BY date DESC, horizon
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchHealth
	for rows.Next() {
		var h FetchHealth
		if err := rows.Scan(&h.Date, &h.Horizon, &h.TotalRuns, &h.SuccessRuns,
			&h.FailedRuns, &h.TotalSamples); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// RecentFailures returns the most recent failed fetch runs.
func (s *Store) RecentFailures(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, fetched_at, location_key, horizon, endpoint, http_status,
		       response_size_bytes, samples_parsed, elapsed_ms, success, error_message
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.FetchedAt, &r.LocationKey, &r.Horizon, &r.Endpoint,
			&r.HTTPStatus, &r.ResponseSizeBytes, &r.SamplesParsed, &r.ElapsedMS,
			&r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
