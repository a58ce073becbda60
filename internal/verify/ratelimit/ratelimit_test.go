package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afmcheck/internal/verify/models"
	"afmcheck/internal/verify/store"
)

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, models.AuditEntry) error { return nil }

func (failingAuditStore) CountByCallerSince(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("db down")
}

func (failingAuditStore) ListByAFM(context.Context, string, int) ([]models.AuditEntry, error) {
	return nil, nil
}

func TestAllowSlidingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	audits := store.NewMemoryAuditStore()
	limiter, err := New(audits, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	appendLookups := func(callerID string, n int, at time.Time) {
		for range n {
			require.NoError(t, audits.Append(ctx, models.AuditEntry{
				AFM:       "090000045",
				CallerID:  callerID,
				CreatedAt: at,
			}))
		}
	}

	t.Run("30th lookup allowed, 31st denied", func(t *testing.T) {
		appendLookups("caller-a", 29, now.Add(-10*time.Second))
		assert.True(t, limiter.Allow(ctx, "caller-a"))

		appendLookups("caller-a", 1, now.Add(-5*time.Second))
		assert.False(t, limiter.Allow(ctx, "caller-a"))
	})

	t.Run("entries outside the window do not count", func(t *testing.T) {
		appendLookups("caller-b", 30, now.Add(-61*time.Second))
		assert.True(t, limiter.Allow(ctx, "caller-b"))
	})

	t.Run("callers are counted independently", func(t *testing.T) {
		appendLookups("caller-c", 30, now.Add(-1*time.Second))
		assert.False(t, limiter.Allow(ctx, "caller-c"))
		assert.True(t, limiter.Allow(ctx, "caller-d"))
	})
}

func TestAllowFailsOpen(t *testing.T) {
	limiter, err := New(failingAuditStore{})
	require.NoError(t, err)

	assert.True(t, limiter.Allow(context.Background(), "caller-a"))
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
