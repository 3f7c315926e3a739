// Package upstream provides an HTTP client for the market-data API with
// conditional GET support.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fetches raw payloads from the upstream market-data API.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig tunes retry behavior.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Response is the outcome of one upstream fetch. On a 304, NotModified is
// true and Body is empty; the caller keeps serving its cached payload.
type Response struct {
	Status       int
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool
}

// NewClient creates a new upstream client. The timeout bounds each attempt;
// the caller's context bounds the fetch as a whole.
func NewClient(timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// Fetch performs a GET against endpointURL, attaching If-None-Match and
// If-Modified-Since when validators from a previous fetch are supplied.
// Transport errors and 5xx responses are retried with linear backoff;
// other non-2xx statuses fail immediately.
func (c *Client) Fetch(ctx context.Context, endpointURL, etag, lastModified string) (*Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelayBase):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		if lastModified != "" {
			req.Header.Set("If-Modified-Since", lastModified)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		result, err := readResponse(resp)
		if err != nil {
			lastErr = err
			if resp.StatusCode >= 500 {
				continue
			}
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Response{Status: resp.StatusCode, NotModified: true}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return &Response{
			Status:       resp.StatusCode,
			Body:         body,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, nil
	default:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}
