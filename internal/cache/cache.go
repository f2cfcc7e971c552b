// Package cache persists fingerprint lookup results between runs in a
// small SQLite database. The cache is shared read/write across concurrent
// resolution runs; last write wins and staleness is tolerated.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tunetag/internal/metadata"
)

// Store is a fingerprint → candidate-set cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// WAL keeps reads from blocking on concurrent writers.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS fingerprint_results (
        digest     TEXT PRIMARY KEY,
        candidates TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached candidate set for a fingerprint, if present.
func (s *Store) Get(ctx context.Context, fingerprint string) ([]metadata.Candidate, bool, error) {
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT candidates FROM fingerprint_results WHERE digest = ?`,
		digest(fingerprint),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}

	var candidates []metadata.Candidate
	if err := json.Unmarshal([]byte(payload), &candidates); err != nil {
		return nil, false, fmt.Errorf("decode cached candidates: %w", err)
	}
	return candidates, true, nil
}

// Put stores the candidate set for a fingerprint, replacing any previous
// entry (last write wins).
func (s *Store) Put(ctx context.Context, fingerprint string, candidates []metadata.Candidate) error {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO fingerprint_results (digest, candidates, updated_at)
         VALUES (?, ?, ?)
         ON CONFLICT(digest) DO UPDATE SET
            candidates = excluded.candidates,
            updated_at = excluded.updated_at`,
		digest(fingerprint),
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// digest shortens the (long) chromaprint string into a fixed-size key.
func digest(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
