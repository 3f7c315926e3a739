package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ExtractMetrics parses the critical metrics projection out of a raw upstream
// payload. Upstream APIs disagree on field names ("priceUsd" vs "price",
// "marketCap" vs "fdv") and on whether numbers arrive as JSON numbers or
// strings, so every field resolves through a fallback chain and coerces to 0
// when missing or non-numeric. Only undecodable JSON is an error.
func ExtractMetrics(payload []byte) (TokenMetrics, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return TokenMetrics{}, fmt.Errorf("failed to decode payload: %w", err)
	}

	m := TokenMetrics{
		Price:     numberField(raw, "priceUsd", "price"),
		Volume24h: volumeField(raw),
		MarketCap: numberField(raw, "marketCap", "fdv"),
		Liquidity: liquidityField(raw),
	}
	return m, nil
}

// numberField returns the first key that resolves to a numeric value.
func numberField(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if f, ok := asFloat(v); ok {
				return f
			}
		}
	}
	return 0
}

// volumeField resolves the 24h volume: either a nested object
// ({"volume": {"h24": ...}}) or a flat field ("volume24h" / "volume").
func volumeField(raw map[string]any) float64 {
	if nested, ok := raw["volume"].(map[string]any); ok {
		if f, ok := asFloat(nested["h24"]); ok {
			return f
		}
		if f, ok := asFloat(nested["usd"]); ok {
			return f
		}
		return 0
	}
	return numberField(raw, "volume24h", "volume")
}

// liquidityField resolves liquidity: either {"liquidity": {"usd": ...}} or a
// flat numeric "liquidity".
func liquidityField(raw map[string]any) float64 {
	if nested, ok := raw["liquidity"].(map[string]any); ok {
		if f, ok := asFloat(nested["usd"]); ok {
			return f
		}
		return 0
	}
	return numberField(raw, "liquidity")
}

// asFloat coerces a decoded JSON value to float64. Numeric strings are
// accepted; anything else reports false.
func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
