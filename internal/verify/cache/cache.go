// Package cache is the read-through freshness layer over the record store.
// There is no separate in-memory tier: a record is "cached" when the durable
// row is younger than the freshness window, so eviction is implicit at read
// time rather than an explicit delete.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"afmcheck/internal/verify/models"
	"afmcheck/internal/verify/store"
)

// FreshnessWindow is how long a persisted record satisfies a lookup without
// consulting any external source.
const FreshnessWindow = 24 * time.Hour

// Cache wraps a RecordStore with freshness checks.
type Cache struct {
	records store.RecordStore
	window  time.Duration
	now     func() time.Time
}

type Option func(*Cache)

// WithWindow overrides the freshness window.
func WithWindow(window time.Duration) Option {
	return func(c *Cache) { c.window = window }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(records store.RecordStore, opts ...Option) (*Cache, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	c := &Cache{
		records: records,
		window:  FreshnessWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the stored record for afm and whether it is fresh enough to
// short-circuit a lookup. A stale record is still returned so callers can
// fall back to it if every source fails.
func (c *Cache) Get(ctx context.Context, afm string) (models.VerificationRecord, bool, error) {
	record, err := c.records.Find(ctx, afm)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.VerificationRecord{}, false, nil
		}
		return models.VerificationRecord{}, false, fmt.Errorf("cache read: %w", err)
	}
	fresh := c.now().Sub(record.UpdatedAt) < c.window
	return record, fresh, nil
}

// Put upserts the record with the current timestamp. The write path is the
// same whether or not the read was bypassed by forceRefresh.
func (c *Cache) Put(ctx context.Context, record models.VerificationRecord) error {
	record.UpdatedAt = c.now()
	if err := c.records.Upsert(ctx, record); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
