// Package cache implements the adaptive metrics cache: cached upstream
// fetches with change detection, best-effort price history recording,
// volatility estimation, and the volatility-tiered poll interval policy.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/logger"
	"github.com/tokenpulse/tokenpulse/internal/models"
	"github.com/tokenpulse/tokenpulse/internal/storage"
	"github.com/tokenpulse/tokenpulse/internal/upstream"
)

// Config holds tunables for the cache: the token being tracked, the four
// poll tiers, the volatility thresholds that select between them, and the
// trailing window the volatility estimate is computed over.
type Config struct {
	TokenAddress string
	EndpointURL  string
	CacheKey     string
	Source       string

	HighVolatilityInterval   time.Duration
	MediumVolatilityInterval time.Duration
	LowVolatilityInterval    time.Duration
	StaleInterval            time.Duration

	HighVolatilityThreshold   float64
	MediumVolatilityThreshold float64
	LowVolatilityThreshold    float64

	VolatilityWindow time.Duration
	MaxWindowSamples int
}

// DefaultConfig returns the default tier and threshold settings.
func DefaultConfig() Config {
	return Config{
		Source:                    "dexscreener",
		HighVolatilityInterval:    15 * time.Second,
		MediumVolatilityInterval:  30 * time.Second,
		LowVolatilityInterval:     60 * time.Second,
		StaleInterval:             300 * time.Second,
		HighVolatilityThreshold:   10.0,
		MediumVolatilityThreshold: 5.0,
		LowVolatilityThreshold:    1.0,
		VolatilityWindow:          time.Hour,
		MaxWindowSamples:          100,
	}
}

// Cache ties storage and the upstream client together. It holds no mutable
// state of its own: concurrent fetches for the same key at worst perform
// redundant upstream calls and idempotent overwrites.
type Cache struct {
	storage *storage.Storage
	client  *upstream.Client
	config  Config
}

// New creates a cache over the given storage and upstream client.
func New(s *storage.Storage, client *upstream.Client, config Config) *Cache {
	return &Cache{storage: s, client: client, config: config}
}

// FetchResult is the outcome of one cached fetch.
type FetchResult struct {
	Payload   []byte
	Metrics   models.TokenMetrics
	FromCache bool
	Changed   bool
}

// FetchWithChangeDetection returns the current payload for cacheKey: served
// from cache while the entry is fresh, otherwise refetched conditionally from
// endpointURL. A 304 extends the cached entry; a 200 runs change detection
// against the previous payload and, when the critical fields moved, appends a
// price history sample. Any fetch failure degrades to the cached payload when
// one exists, however stale; the error propagates only when there is no
// cached data at all.
func (c *Cache) FetchWithChangeDetection(ctx context.Context, endpointURL, cacheKey string) (*FetchResult, error) {
	entry, err := c.storage.GetCacheEntry(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			// Read failures count as a miss; the fetch below repopulates.
			logger.Warn("Cache read failed for %s, treating as miss: %v", cacheKey, err)
		}
		entry = nil
	}

	now := time.Now()
	if entry != nil && !entry.Expired(now) {
		return cachedResult(entry), nil
	}

	var etag, lastModified string
	if entry != nil {
		etag = entry.ETag
		lastModified = entry.LastModified
	}

	resp, err := c.client.Fetch(ctx, endpointURL, etag, lastModified)
	if err != nil {
		if entry != nil {
			logger.Warn("Upstream fetch failed for %s, serving stale cache: %v", cacheKey, err)
			return cachedResult(entry), nil
		}
		return nil, fmt.Errorf("upstream fetch failed with no cached fallback: %w", err)
	}

	ttl := c.RecommendInterval(c.EstimateVolatility(ctx, c.config.TokenAddress))
	now = time.Now()

	if resp.NotModified {
		if entry == nil {
			return nil, fmt.Errorf("upstream returned 304 without a cached entry for %s", cacheKey)
		}
		entry.ExpiresAt = now.Add(ttl)
		entry.UpdatedAt = now
		if err := c.storage.PutCacheEntry(ctx, entry); err != nil {
			logger.Warn("Failed to extend cache entry %s: %v", cacheKey, err)
		}
		return cachedResult(entry), nil
	}

	newMetrics, err := models.ExtractMetrics(resp.Body)
	if err != nil {
		if entry != nil {
			logger.Warn("Malformed upstream payload for %s, serving stale cache: %v", cacheKey, err)
			return cachedResult(entry), nil
		}
		return nil, fmt.Errorf("malformed upstream payload with no cached fallback: %w", err)
	}

	changed := detectChange(previousMetrics(entry), newMetrics)

	newEntry := &models.CacheEntry{
		CacheKey:     cacheKey,
		Payload:      resp.Body,
		ETag:         resp.ETag,
		LastModified: resp.LastModified,
		ExpiresAt:    now.Add(ttl),
		UpdatedAt:    now,
	}
	if err := c.storage.PutCacheEntry(ctx, newEntry); err != nil {
		// The fresh payload still goes back to the caller.
		logger.Warn("Failed to write cache entry %s: %v", cacheKey, err)
	}

	if changed {
		c.record(ctx, c.config.TokenAddress, newMetrics, now)
	}

	return &FetchResult{
		Payload:   resp.Body,
		Metrics:   newMetrics,
		FromCache: false,
		Changed:   changed,
	}, nil
}

// FetchTokenMetrics fetches the configured token's metrics through the cache.
func (c *Cache) FetchTokenMetrics(ctx context.Context) (*FetchResult, error) {
	return c.FetchWithChangeDetection(ctx, c.config.EndpointURL, c.config.CacheKey)
}

// HistoricalPrices returns the token's samples over the trailing timeframe,
// ordered by timestamp ascending.
func (c *Cache) HistoricalPrices(ctx context.Context, tokenAddress string, timeframe time.Duration) ([]models.PriceSample, error) {
	now := time.Now()
	samples, err := c.storage.SamplesInRange(ctx, tokenAddress, now.Add(-timeframe), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}
	return samples, nil
}

// PollInterval recommends the polling cadence for the token from its
// recently observed volatility.
func (c *Cache) PollInterval(ctx context.Context, tokenAddress string) time.Duration {
	return c.RecommendInterval(c.EstimateVolatility(ctx, tokenAddress))
}

// CleanupOldData deletes samples older than the retention window and cache
// entries already past their expiry. Idempotent; intended for a fixed
// schedule.
func (c *Cache) CleanupOldData(ctx context.Context, retentionDays int) error {
	now := time.Now()
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	samples, err := c.storage.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to sweep samples: %w", err)
	}
	entries, err := c.storage.DeleteExpiredEntries(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to sweep cache entries: %w", err)
	}

	logger.Info("Retention sweep removed %d samples and %d cache entries", samples, entries)
	return nil
}

func cachedResult(entry *models.CacheEntry) *FetchResult {
	result := &FetchResult{Payload: entry.Payload, FromCache: true}
	if m, err := models.ExtractMetrics(entry.Payload); err == nil {
		result.Metrics = m
	}
	return result
}

// previousMetrics extracts the critical projection from the cached payload.
// A nil entry or an unreadable payload counts as no previous observation.
func previousMetrics(entry *models.CacheEntry) *models.TokenMetrics {
	if entry == nil {
		return nil
	}
	m, err := models.ExtractMetrics(entry.Payload)
	if err != nil {
		return nil
	}
	return &m
}
