package cache

import "github.com/tokenpulse/tokenpulse/internal/models"

// detectChange reports whether the economically significant fields moved
// between two observations. Upstreams are polled far more often than the
// underlying data changes; restricting the comparison to the critical
// projection keeps quiet polling cycles from writing duplicate history rows.
// A missing previous observation always counts as a change.
func detectChange(prev *models.TokenMetrics, next models.TokenMetrics) bool {
	if prev == nil {
		return true
	}
	return !prev.Equal(next)
}
