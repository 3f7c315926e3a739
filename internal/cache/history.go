package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tokenpulse/tokenpulse/internal/logger"
	"github.com/tokenpulse/tokenpulse/internal/models"
)

// record appends one price history sample. A non-positive price is skipped
// outright: a malformed or empty upstream response must not be mistaken for
// a real zero-price event. Storage failures are logged and swallowed so the
// fetch path always returns data to its caller.
func (c *Cache) record(ctx context.Context, tokenAddress string, m models.TokenMetrics, now time.Time) {
	if m.Price <= 0 {
		logger.Debug("Skipping history sample for %s: non-positive price %v", tokenAddress, m.Price)
		return
	}

	sample := &models.PriceSample{
		ID:           uuid.New().String(),
		TokenAddress: tokenAddress,
		Price:        m.Price,
		Volume24h:    m.Volume24h,
		MarketCap:    m.MarketCap,
		Source:       c.config.Source,
		Timestamp:    now,
	}
	if err := c.storage.AddSample(ctx, sample); err != nil {
		logger.Warn("Failed to record history sample for %s: %v", tokenAddress, err)
	}
}
