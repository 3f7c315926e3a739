package cache

import (
	"context"
	"math"
	"time"

	"github.com/tokenpulse/tokenpulse/internal/logger"
)

// EstimateVolatility computes the mean absolute percentage price change over
// consecutive samples in the trailing window, capped at the most recent
// MaxWindowSamples. Fewer than two samples, pairs starting from a zero price,
// and storage read errors all resolve to 0: volatility is advisory, and 0
// maps to the most conservative polling tier.
func (c *Cache) EstimateVolatility(ctx context.Context, tokenAddress string) float64 {
	since := time.Now().Add(-c.config.VolatilityWindow)
	samples, err := c.storage.SamplesSince(ctx, tokenAddress, since, c.config.MaxWindowSamples)
	if err != nil {
		logger.Warn("Volatility read failed for %s, defaulting to 0: %v", tokenAddress, err)
		return 0
	}
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	var pairs int
	for i := 1; i < len(samples); i++ {
		prev := samples[i-1].Price
		if prev == 0 {
			continue
		}
		sum += math.Abs((samples[i].Price-prev)/prev) * 100
		pairs++
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}
