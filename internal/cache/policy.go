package cache

import "time"

// RecommendInterval maps a volatility score to one of the four configured
// poll tiers. Pure function: higher volatility, faster polling.
func (c *Cache) RecommendInterval(volatility float64) time.Duration {
	switch {
	case volatility > c.config.HighVolatilityThreshold:
		return c.config.HighVolatilityInterval
	case volatility > c.config.MediumVolatilityThreshold:
		return c.config.MediumVolatilityInterval
	case volatility > c.config.LowVolatilityThreshold:
		return c.config.LowVolatilityInterval
	default:
		return c.config.StaleInterval
	}
}
