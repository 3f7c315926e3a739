// Package models defines the core domain entities: cache entries, price
// samples, and the normalized token metrics projection.
package models

import (
	"errors"
	"time"
)

// CacheEntry holds the last-fetched raw upstream payload for a cache key,
// together with the HTTP validators needed for conditional refetches.
type CacheEntry struct {
	CacheKey     string    `json:"cache_key"`
	Payload      []byte    `json:"payload"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the entry is past its expiry at the given instant.
// An entry with a zero ExpiresAt is always expired.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt.IsZero() || !e.ExpiresAt.After(now)
}

// Validate checks cache entry field constraints.
func (e *CacheEntry) Validate() error {
	if e.CacheKey == "" {
		return errors.New("cache key must not be empty")
	}
	if len(e.Payload) == 0 {
		return errors.New("payload must not be empty")
	}
	if e.ExpiresAt.IsZero() {
		return errors.New("expires at must be set")
	}
	return nil
}

// PriceSample is one append-only row of token price history. Samples are
// written only when the critical metrics actually changed, so the series
// stays free of duplicate zero-delta points.
type PriceSample struct {
	ID           string    `json:"id"`
	TokenAddress string    `json:"token_address"`
	Price        float64   `json:"price"`
	Volume24h    float64   `json:"volume_24h"`
	MarketCap    float64   `json:"market_cap"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate checks price sample field constraints.
func (p *PriceSample) Validate() error {
	if p.ID == "" {
		return errors.New("sample ID must not be empty")
	}
	if p.TokenAddress == "" {
		return errors.New("token address must not be empty")
	}
	if p.Price <= 0 {
		return errors.New("price must be positive")
	}
	if p.Volume24h < 0 {
		return errors.New("volume 24h must not be negative")
	}
	if p.MarketCap < 0 {
		return errors.New("market cap must not be negative")
	}
	if p.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}

// TokenMetrics is the normalized projection of the economically significant
// upstream fields. Both change detection and history recording operate on
// this type rather than on the raw payload shape.
type TokenMetrics struct {
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume_24h"`
	MarketCap float64 `json:"market_cap"`
	Liquidity float64 `json:"liquidity"`
}

// Equal reports whether two projections agree on every critical field.
// Comparison is numeric, so formatting differences in the raw payloads
// ("0.50" vs "0.5") never register as a change.
func (m TokenMetrics) Equal(other TokenMetrics) bool {
	return m.Price == other.Price &&
		m.Volume24h == other.Volume24h &&
		m.MarketCap == other.MarketCap &&
		m.Liquidity == other.Liquidity
}
