//go:build integration

package scraper_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"afmcheck/internal/verify/scraper"
	"afmcheck/pkg/testutil/containers"
)

func TestCooldownRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	t.Run("inactive until tripped", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		cd := scraper.NewCooldown(rc.Client, logger)

		require.False(t, cd.Active(ctx))
		cd.Trip(ctx)
		require.True(t, cd.Active(ctx))
	})

	t.Run("trip sets a bounded TTL", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		cd := scraper.NewCooldown(rc.Client, logger)
		cd.Trip(ctx)

		ttl, err := rc.Client.TTL(ctx, "scraper:block_cooldown").Result()
		require.NoError(t, err)
		require.Greater(t, ttl.Seconds(), 0.0)
		require.LessOrEqual(t, ttl, scraper.DefaultCooldown)
	})

	t.Run("shared across instances", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		first := scraper.NewCooldown(rc.Client, logger)
		second := scraper.NewCooldown(rc.Client, logger)

		first.Trip(ctx)
		require.True(t, second.Active(ctx))
	})

	t.Run("nil client is a no-op", func(t *testing.T) {
		cd := scraper.NewCooldown(nil, logger)
		cd.Trip(ctx)
		require.False(t, cd.Active(ctx))
	})
}
