// Package store is the optional sqlite archive of provider fetches. Every
// horizon attempt is logged to fetch_runs, and successful bodies are kept
// gzip-compressed in raw_payloads for later inspection.
package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/stevenhcau/snowReport/internal/logging"
)

type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func New(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{db: db, logger: logger.Named("store")}
}

// Open opens (creating if needed) the sqlite archive at path and applies
// pending migrations.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// sqlite allows one writer; sessions record concurrently.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure archive: %w", err)
	}

	s := New(db, logger)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
