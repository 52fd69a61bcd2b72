package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// StoreRawPayload stores a compressed provider response. It returns the
// payload ID, or 0 if an identical payload is already archived.
func (s *Store) StoreRawPayload(runID int64, locationKey, endpoint string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	var fetchRunID sql.NullInt64
	if runID > 0 {
		fetchRunID = sql.NullInt64{Int64: runID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads
		(fetch_run_id, fetched_at, location_key, endpoint, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, fetchRunID, time.Now().UTC(), locationKey, endpoint, buf.Bytes(), hex.EncodeToString(hash[:]))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// RawPayload retrieves and decompresses a stored payload by ID.
func (s *Store) RawPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("raw payload %d: not found", id)
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// RawPayloadForRun returns the payload archived for a fetch run.
func (s *Store) RawPayloadForRun(runID int64) ([]byte, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM raw_payloads WHERE fetch_run_id = ?`, runID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch run %d: no payload archived", runID)
	}
	if err != nil {
		return nil, err
	}
	return s.RawPayload(id)
}

// CleanupOldRawPayloads deletes payloads older than retentionDays and
// returns the number removed.
func (s *Store) CleanupOldRawPayloads(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM raw_payloads
		WHERE SUBSTR(fetched_at, 1, 19) < datetime('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
