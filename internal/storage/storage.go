// Package storage persists sampler chains so that a run with an identical
// configuration can be reused instead of resampled.
//
// Chains live in a SQLite database keyed by the configuration fingerprint.
// The full configuration is stored next to the chain and compared on every
// read: a fingerprint hit whose stored configuration differs from the
// requested one is reported as a cache mismatch and never returned. Sample
// matrices are stored as zstd-compressed IEEE-754 bits, so reloaded chains
// are bit-identical to the ones written.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/spotfit/internal/models"
)

// ErrNotFound is returned when no chain is stored under a fingerprint.
var ErrNotFound = errors.New("chain not found")

// ErrCacheMismatch is returned when a stored chain was produced by a
// different configuration than the one requested.
var ErrCacheMismatch = errors.New("cache mismatch")

// CacheMismatchError carries both configurations for diagnosis.
type CacheMismatchError struct {
	Fingerprint string
	Stored      string
	Requested   string
}

func (e *CacheMismatchError) Error() string {
	return fmt.Sprintf("cached chain %s was built from a different configuration (stored %s, requested %s)",
		e.Fingerprint, e.Stored, e.Requested)
}

func (e *CacheMismatchError) Unwrap() error {
	return ErrCacheMismatch
}

const schema = `
CREATE TABLE IF NOT EXISTS chains (
	fingerprint   TEXT PRIMARY KEY,
	config        TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	param_names   TEXT NOT NULL,
	walkers       INTEGER NOT NULL,
	steps         INTEGER NOT NULL,
	acceptance    REAL NOT NULL,
	samples       BLOB NOT NULL,
	log_posterior BLOB NOT NULL,
	codec_version INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chains_created_at ON chains (created_at);
`

// Store is a SQLite-backed chain cache.
type Store struct {
	sqlDB      *sql.DB
	maxEntries int
}

// Entry describes a cached chain without its samples.
type Entry struct {
	Fingerprint string
	RunID       string
	Config      string
	Walkers     int
	Steps       int
	CreatedAt   time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the chain cache at path. ":memory:" gives
// a private in-memory cache. maxEntries bounds the number of cached chains;
// zero or less means unbounded.
func Open(path string, maxEntries int, dirPermissions os.FileMode) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		cleanPath := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(cleanPath), dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		dsn = cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, maxEntries: maxEntries}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads the chain stored under fingerprint. config is the canonical
// configuration the caller expects; it must match the stored one byte for
// byte.
func (s *Store) Get(ctx context.Context, fingerprint string, config []byte) (*models.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT config, run_id, param_names, walkers, steps, acceptance, samples, log_posterior, codec_version, created_at
		   FROM chains WHERE fingerprint = ?`, fingerprint)

	var (
		storedConfig, runID, names string
		walkers, steps, version    int
		acceptance                 float64
		samples, logPost           []byte
		createdAt                  int64
	)
	err := row.Scan(&storedConfig, &runID, &names, &walkers, &steps, &acceptance, &samples, &logPost, &version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chain %s: %w", fingerprint, err)
	}

	if !bytes.Equal([]byte(storedConfig), config) {
		return nil, &CacheMismatchError{Fingerprint: fingerprint, Stored: storedConfig, Requested: string(config)}
	}
	if version != codecVersion {
		return nil, &CacheMismatchError{
			Fingerprint: fingerprint,
			Stored:      fmt.Sprintf("codec v%d", version),
			Requested:   fmt.Sprintf("codec v%d", codecVersion),
		}
	}

	chain := &models.Chain{
		RunID:              runID,
		Fingerprint:        fingerprint,
		Walkers:            walkers,
		Steps:              steps,
		AcceptanceFraction: acceptance,
		CreatedAt:          fromMillis(createdAt),
	}
	if err := json.Unmarshal([]byte(names), &chain.ParamNames); err != nil {
		return nil, fmt.Errorf("failed to decode parameter names: %w", err)
	}
	n := walkers * steps
	width := len(chain.ParamNames)
	flat, err := decodeFloats(samples, n*width)
	if err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	chain.Samples = unflatten(flat, width)
	if chain.LogPosterior, err = decodeFloats(logPost, n); err != nil {
		return nil, fmt.Errorf("failed to decode log-posterior: %w", err)
	}
	if err := chain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cached chain: %w", err)
	}
	return chain, nil
}

// Put stores chain under fingerprint, replacing any previous entry, then
// drops the oldest entries beyond the configured maximum.
func (s *Store) Put(ctx context.Context, fingerprint string, config []byte, chain *models.Chain) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("invalid chain: %w", err)
	}
	names, err := json.Marshal(chain.ParamNames)
	if err != nil {
		return fmt.Errorf("failed to encode parameter names: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO chains (fingerprint, config, run_id, param_names, walkers, steps, acceptance, samples, log_posterior, codec_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   config = excluded.config,
		   run_id = excluded.run_id,
		   param_names = excluded.param_names,
		   walkers = excluded.walkers,
		   steps = excluded.steps,
		   acceptance = excluded.acceptance,
		   samples = excluded.samples,
		   log_posterior = excluded.log_posterior,
		   codec_version = excluded.codec_version,
		   created_at = excluded.created_at`,
		fingerprint,
		string(config),
		chain.RunID,
		string(names),
		chain.Walkers,
		chain.Steps,
		chain.AcceptanceFraction,
		encodeFloats(flatten(chain.Samples, len(chain.ParamNames))),
		encodeFloats(chain.LogPosterior),
		codecVersion,
		toMillis(chain.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write chain %s: %w", fingerprint, err)
	}
	return s.RotateChains(ctx)
}

// Delete removes a cached chain. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM chains WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("failed to delete chain %s: %w", fingerprint, err)
	}
	return nil
}

// List returns the cached entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT fingerprint, run_id, config, walkers, steps, created_at FROM chains ORDER BY created_at DESC, fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.Fingerprint, &e.RunID, &e.Config, &e.Walkers, &e.Steps, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chain entry: %w", err)
		}
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RotateChains removes the oldest chains exceeding the maximum entry count.
func (s *Store) RotateChains(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM chains WHERE fingerprint NOT IN (
		   SELECT fingerprint FROM chains ORDER BY created_at DESC, fingerprint LIMIT ?
		 )`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to rotate chains: %w", err)
	}
	return nil
}
