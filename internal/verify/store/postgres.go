package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"afmcheck/internal/verify/models"
)

// PostgresRecordStore persists verification records in the clients table.
// Pure I/O; freshness decisions belong to the cache layer.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) Find(ctx context.Context, afm string) (models.VerificationRecord, error) {
	query := `
		SELECT afm, entity_type, status, payload, updated_at
		FROM clients
		WHERE afm = $1
	`
	var (
		record  models.VerificationRecord
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, query, afm).Scan(
		&record.AFM,
		&record.EntityType,
		&record.Status,
		&payload,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.VerificationRecord{}, ErrNotFound
		}
		return models.VerificationRecord{}, fmt.Errorf("find client: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record.Payload); err != nil {
			return models.VerificationRecord{}, fmt.Errorf("decode client payload: %w", err)
		}
	}
	return record, nil
}

func (s *PostgresRecordStore) Upsert(ctx context.Context, record models.VerificationRecord) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("encode client payload: %w", err)
	}
	query := `
		INSERT INTO clients (afm, entity_type, status, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (afm) DO UPDATE SET
			entity_type = EXCLUDED.entity_type,
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		record.AFM,
		record.EntityType,
		record.Status,
		payload,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// PostgresAuditStore appends lookup audit rows to client_lookups. Rows are
// never updated or deleted.
type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

func (s *PostgresAuditStore) Append(ctx context.Context, entry models.AuditEntry) error {
	sources, err := json.Marshal(entry.Sources)
	if err != nil {
		return fmt.Errorf("encode audit sources: %w", err)
	}
	query := `
		INSERT INTO client_lookups (afm, caller_id, sources, fingerprint, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.AFM,
		entry.CallerID,
		sources,
		entry.Fingerprint,
		entry.ClientIP,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append lookup audit: %w", err)
	}
	return nil
}

// CountByCallerSince counts audit rows inside the trailing rate-limit
// window. Relies on an index over (caller_id, created_at).
func (s *PostgresAuditStore) CountByCallerSince(ctx context.Context, callerID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM client_lookups
		WHERE caller_id = $1 AND created_at >= $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, callerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lookups for caller: %w", err)
	}
	return count, nil
}

func (s *PostgresAuditStore) ListByAFM(ctx context.Context, afm string, limit int) ([]models.AuditEntry, error) {
	query := `
		SELECT afm, caller_id, sources, fingerprint, client_ip, user_agent, created_at
		FROM client_lookups
		WHERE afm = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, afm, limit)
	if err != nil {
		return nil, fmt.Errorf("list lookups: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			entry   models.AuditEntry
			sources []byte
		)
		if err := rows.Scan(
			&entry.AFM,
			&entry.CallerID,
			&sources,
			&entry.Fingerprint,
			&entry.ClientIP,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lookup row: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &entry.Sources); err != nil {
				return nil, fmt.Errorf("decode audit sources: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lookup rows: %w", err)
	}
	return entries, nil
}
