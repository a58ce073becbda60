// Package store persists verification records and the lookup audit log.
// Stores are interface-driven so the orchestrator stays testable and the
// in-memory implementation can stand in for Postgres in unit tests.
package store

import (
	"context"
	"errors"
	"time"

	"afmcheck/internal/verify/models"
)

// ErrNotFound keeps store-specific misses consistent across implementations.
var ErrNotFound = errors.New("record not found")

// RecordStore owns the clients table keyed by identifier. Upsert is
// last-write-wins; concurrent lookups for the same identifier are an
// accepted inefficiency, not a correctness problem.
type RecordStore interface {
	Find(ctx context.Context, afm string) (models.VerificationRecord, error)
	Upsert(ctx context.Context, record models.VerificationRecord) error
}

// AuditStore owns the append-only client_lookups table. CountByCallerSince
// backs the sliding-window rate limiter, so it must be efficient on
// (caller_id, created_at).
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	CountByCallerSince(ctx context.Context, callerID string, since time.Time) (int, error)
	ListByAFM(ctx context.Context, afm string, limit int) ([]models.AuditEntry, error)
}
