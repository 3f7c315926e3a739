// Package storage provides SQLite-backed persistence for cache entries and
// price history samples.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/tokenpulse/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "tokenpulse", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key     TEXT PRIMARY KEY,
			payload       BLOB NOT NULL,
			etag          TEXT NOT NULL DEFAULT '',
			last_modified TEXT NOT NULL DEFAULT '',
			expires_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS price_samples (
			id            TEXT PRIMARY KEY,
			token_address TEXT NOT NULL,
			price         REAL NOT NULL,
			volume_24h    REAL NOT NULL DEFAULT 0,
			market_cap    REAL NOT NULL DEFAULT 0,
			source        TEXT NOT NULL DEFAULT '',
			timestamp     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_token_ts ON price_samples(token_address, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetCacheEntry retrieves the entry for cacheKey, or ErrNotFound.
func (s *Storage) GetCacheEntry(ctx context.Context, cacheKey string) (*models.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cache_key, payload, etag, last_modified, expires_at, updated_at
		FROM cache_entries WHERE cache_key = ?`, cacheKey)

	var e models.CacheEntry
	var expiresAtNano, updatedAtNano int64
	err := row.Scan(&e.CacheKey, &e.Payload, &e.ETag, &e.LastModified, &expiresAtNano, &updatedAtNano)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	e.ExpiresAt = time.Unix(0, expiresAtNano)
	e.UpdatedAt = time.Unix(0, updatedAtNano)
	return &e, nil
}

// PutCacheEntry upserts the entry for its key. The payload, validators, and
// expiry land in a single statement, so readers never observe a partial write.
func (s *Storage) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid cache entry: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries
			(cache_key, payload, etag, last_modified, expires_at, updated_at)
		VALUES (?,?,?,?,?,?)`,
		entry.CacheKey, entry.Payload, entry.ETag, entry.LastModified,
		entry.ExpiresAt.UnixNano(), entry.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// AddSample appends one price history row.
func (s *Storage) AddSample(ctx context.Context, sample *models.PriceSample) error {
	if err := sample.Validate(); err != nil {
		return fmt.Errorf("invalid sample: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_samples
			(id, token_address, price, volume_24h, market_cap, source, timestamp)
		VALUES (?,?,?,?,?,?,?)`,
		sample.ID, sample.TokenAddress, sample.Price, sample.Volume24h,
		sample.MarketCap, sample.Source, sample.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// SamplesSince returns the most recent limit samples for the token strictly
// after since, ordered by timestamp ascending.
func (s *Storage) SamplesSince(ctx context.Context, tokenAddress string, since time.Time, limit int) ([]models.PriceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_address, price, volume_24h, market_cap, source, timestamp
		FROM (
			SELECT id, token_address, price, volume_24h, market_cap, source, timestamp
			FROM price_samples
			WHERE token_address = ? AND timestamp > ?
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`,
		tokenAddress, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// SamplesInRange returns all samples for the token within [from, to]
// (inclusive), ordered by timestamp ascending.
func (s *Storage) SamplesInRange(ctx context.Context, tokenAddress string, from, to time.Time) ([]models.PriceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_address, price, volume_24h, market_cap, source, timestamp
		FROM price_samples
		WHERE token_address = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`,
		tokenAddress, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// DeleteSamplesBefore removes samples older than cutoff, returning the number
// of rows removed. Safe to call repeatedly.
func (s *Storage) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_samples WHERE timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete samples: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteExpiredEntries removes cache entries whose expiry has already passed.
func (s *Storage) DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at < ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSamples(rows *sql.Rows) ([]models.PriceSample, error) {
	var samples []models.PriceSample
	for rows.Next() {
		var p models.PriceSample
		var timestampNano int64
		err := rows.Scan(&p.ID, &p.TokenAddress, &p.Price, &p.Volume24h,
			&p.MarketCap, &p.Source, &timestampNano)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		p.Timestamp = time.Unix(0, timestampNano)
		samples = append(samples, p)
	}
	return samples, rows.Err()
}
