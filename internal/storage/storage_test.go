package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tokenpulse/tokenpulse/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSample(token string, price float64, ts time.Time) *models.PriceSample {
	return &models.PriceSample{
		ID:           uuid.New().String(),
		TokenAddress: token,
		Price:        price,
		Volume24h:    50000,
		MarketCap:    410000,
		Source:       "dexscreener",
		Timestamp:    ts,
	}
}

func TestStorage_PutAndGetCacheEntry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	entry := &models.CacheEntry{
		CacheKey:     "token_metrics_0xabc",
		Payload:      []byte(`{"price": 1.0}`),
		ETag:         `W/"abc123"`,
		LastModified: "Mon, 02 Jan 2006 15:04:05 GMT",
		ExpiresAt:    now.Add(30 * time.Second),
		UpdatedAt:    now,
	}
	if err := s.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("PutCacheEntry: %v", err)
	}

	got, err := s.GetCacheEntry(ctx, "token_metrics_0xabc")
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if string(got.Payload) != `{"price": 1.0}` {
		t.Errorf("got payload %s", got.Payload)
	}
	if got.ETag != `W/"abc123"` {
		t.Errorf("got etag %s", got.ETag)
	}
	if !got.ExpiresAt.Equal(entry.ExpiresAt) {
		t.Errorf("got expires_at %v, want %v", got.ExpiresAt, entry.ExpiresAt)
	}
}

func TestStorage_GetCacheEntry_NotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetCacheEntry(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStorage_PutCacheEntry_Upsert(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	first := &models.CacheEntry{
		CacheKey:  "k",
		Payload:   []byte(`{"price": 1.0}`),
		ETag:      "v1",
		ExpiresAt: now.Add(15 * time.Second),
		UpdatedAt: now,
	}
	if err := s.PutCacheEntry(ctx, first); err != nil {
		t.Fatalf("PutCacheEntry: %v", err)
	}

	second := &models.CacheEntry{
		CacheKey:  "k",
		Payload:   []byte(`{"price": 2.0}`),
		ETag:      "v2",
		ExpiresAt: now.Add(60 * time.Second),
		UpdatedAt: now.Add(15 * time.Second),
	}
	if err := s.PutCacheEntry(ctx, second); err != nil {
		t.Fatalf("PutCacheEntry overwrite: %v", err)
	}

	got, err := s.GetCacheEntry(ctx, "k")
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if got.ETag != "v2" {
		t.Errorf("upsert did not replace entry, got etag %s", got.ETag)
	}
	if string(got.Payload) != `{"price": 2.0}` {
		t.Errorf("upsert did not replace payload, got %s", got.Payload)
	}
}

func TestStorage_PutCacheEntry_Invalid(t *testing.T) {
	s := newTestStorage(t)
	entry := &models.CacheEntry{CacheKey: "", Payload: []byte(`{}`), ExpiresAt: time.Now()}
	if err := s.PutCacheEntry(context.Background(), entry); err == nil {
		t.Error("expected error for invalid entry")
	}
}

func TestStorage_AddSampleAndSamplesSince(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		sample := testSample("0xabc", 1.0+float64(i)*0.1, now.Add(time.Duration(i)*time.Minute))
		if err := s.AddSample(ctx, sample); err != nil {
			t.Fatalf("AddSample %d: %v", i, err)
		}
	}
	// Different token must not leak into results.
	if err := s.AddSample(ctx, testSample("0xother", 9.9, now.Add(2*time.Minute))); err != nil {
		t.Fatalf("AddSample other token: %v", err)
	}

	samples, err := s.SamplesSince(ctx, "0xabc", now.Add(90*time.Second), 100)
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Before(samples[i-1].Timestamp) {
			t.Error("samples not ordered ascending by timestamp")
		}
	}
}

func TestStorage_SamplesSince_LimitKeepsNewest(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 10; i++ {
		sample := testSample("0xabc", 1.0+float64(i), now.Add(time.Duration(i)*time.Second))
		if err := s.AddSample(ctx, sample); err != nil {
			t.Fatalf("AddSample %d: %v", i, err)
		}
	}

	samples, err := s.SamplesSince(ctx, "0xabc", now.Add(-time.Hour), 3)
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	// The cap keeps the newest rows, still returned ascending.
	if samples[0].Price != 8.0 || samples[2].Price != 10.0 {
		t.Errorf("unexpected window: first=%v last=%v", samples[0].Price, samples[2].Price)
	}
}

func TestStorage_SamplesInRange(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 4; i++ {
		sample := testSample("0xabc", 1.0, now.Add(time.Duration(i)*time.Hour))
		if err := s.AddSample(ctx, sample); err != nil {
			t.Fatalf("AddSample %d: %v", i, err)
		}
	}

	samples, err := s.SamplesInRange(ctx, "0xabc", now.Add(time.Hour), now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SamplesInRange: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("got %d samples in range, want 2", len(samples))
	}
}

func TestStorage_AddSample_RejectsZeroPrice(t *testing.T) {
	s := newTestStorage(t)
	sample := testSample("0xabc", 0, time.Now())
	if err := s.AddSample(context.Background(), sample); err == nil {
		t.Error("expected error for zero price")
	}
}

func TestStorage_DeleteSamplesBefore(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	old := testSample("0xabc", 1.0, now.Add(-31*24*time.Hour))
	recent := testSample("0xabc", 1.1, now.Add(-time.Hour))
	if err := s.AddSample(ctx, old); err != nil {
		t.Fatalf("AddSample old: %v", err)
	}
	if err := s.AddSample(ctx, recent); err != nil {
		t.Fatalf("AddSample recent: %v", err)
	}

	cutoff := now.Add(-30 * 24 * time.Hour)
	n, err := s.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteSamplesBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}

	// Idempotent: a second sweep removes nothing.
	n, err = s.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("second DeleteSamplesBefore: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep deleted %d rows, want 0", n)
	}

	samples, err := s.SamplesInRange(ctx, "0xabc", now.Add(-40*24*time.Hour), now)
	if err != nil {
		t.Fatalf("SamplesInRange: %v", err)
	}
	if len(samples) != 1 || samples[0].ID != recent.ID {
		t.Errorf("expected only the recent sample to survive, got %d", len(samples))
	}
}

func TestStorage_DeleteExpiredEntries(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	expired := &models.CacheEntry{
		CacheKey:  "expired",
		Payload:   []byte(`{}`),
		ExpiresAt: now.Add(-time.Minute),
		UpdatedAt: now.Add(-time.Hour),
	}
	live := &models.CacheEntry{
		CacheKey:  "live",
		Payload:   []byte(`{}`),
		ExpiresAt: now.Add(time.Minute),
		UpdatedAt: now,
	}
	if err := s.PutCacheEntry(ctx, expired); err != nil {
		t.Fatalf("PutCacheEntry expired: %v", err)
	}
	if err := s.PutCacheEntry(ctx, live); err != nil {
		t.Fatalf("PutCacheEntry live: %v", err)
	}

	n, err := s.DeleteExpiredEntries(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredEntries: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d entries, want 1", n)
	}

	if _, err := s.GetCacheEntry(ctx, "expired"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired entry gone, got %v", err)
	}
	if _, err := s.GetCacheEntry(ctx, "live"); err != nil {
		t.Errorf("live entry should survive sweep: %v", err)
	}
}
