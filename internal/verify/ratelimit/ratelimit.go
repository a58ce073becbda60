// Package ratelimit bounds lookups per caller with a sliding window computed
// from the audit log: the window is derived, not stored, so there is no
// separate counter to keep consistent.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"afmcheck/internal/verify/store"
)

const (
	// DefaultLimit is the maximum lookups per caller per window.
	DefaultLimit = 30
	// DefaultWindow is the trailing interval counted against the limit.
	DefaultWindow = 60 * time.Second
)

// Limiter answers whether a caller may perform another lookup. The limiter
// itself consumes nothing; budget is consumed when the orchestrator appends
// an audit row.
type Limiter struct {
	audits store.AuditStore
	limit  int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Limiter)

func WithLimit(limit int) Option {
	return func(l *Limiter) { l.limit = limit }
}

func WithWindow(window time.Duration) Option {
	return func(l *Limiter) { l.window = window }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(audits store.AuditStore, opts ...Option) (*Limiter, error) {
	if audits == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	l := &Limiter{
		audits: audits,
		limit:  DefaultLimit,
		window: DefaultWindow,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow reports whether callerID is under the limit. It fails open: if the
// count query errors, the request is allowed and the error logged, since
// availability wins over strict enforcement for this control.
func (l *Limiter) Allow(ctx context.Context, callerID string) bool {
	since := l.now().Add(-l.window)
	count, err := l.audits.CountByCallerSince(ctx, callerID, since)
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit count failed, failing open",
			"caller_id", callerID,
			"error", err,
		)
		return true
	}
	return count < l.limit
}
