package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cooldownKey = "scraper:block_cooldown"

	// DefaultCooldown is how long the fallback stays disabled after the
	// registry page served a CAPTCHA. Hammering a bot-detection wall only
	// extends the block.
	DefaultCooldown = 15 * time.Minute
)

// Cooldown remembers a recent BLOCKED_OR_CAPTCHA outcome across instances so
// the fallback is skipped while the block is likely still in place. It is
// advisory: with no Redis configured every method is a no-op and the
// fallback always runs.
type Cooldown struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCooldown(client *redis.Client, logger *slog.Logger) *Cooldown {
	return &Cooldown{client: client, ttl: DefaultCooldown, logger: logger}
}

// Active reports whether a block cooldown is currently in effect. Errors
// fail open: an unreachable Redis must not disable the fallback.
func (c *Cooldown) Active(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, cooldownKey).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "cooldown check failed", "error", err)
		return false
	}
	return n > 0
}

// Trip records a block, starting the cooldown window.
func (c *Cooldown) Trip(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, cooldownKey, time.Now().UTC().Format(time.RFC3339), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cooldown trip failed", "error", err)
	}
}
