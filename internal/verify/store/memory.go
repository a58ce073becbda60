package store

import (
	"context"
	"sync"
	"time"

	"afmcheck/internal/verify/models"
)

// In-memory stores back unit tests and local development. They favor clarity
// over performance.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]models.VerificationRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]models.VerificationRecord)}
}

func (s *MemoryRecordStore) Find(_ context.Context, afm string) (models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[afm]; ok {
		return record, nil
	}
	return models.VerificationRecord{}, ErrNotFound
}

func (s *MemoryRecordStore) Upsert(_ context.Context, record models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.AFM] = record
	return nil
}

type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) CountByCallerSince(_ context.Context, callerID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.entries {
		if entry.CallerID == callerID && !entry.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryAuditStore) ListByAFM(_ context.Context, afm string, limit int) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.AuditEntry
	for i := len(s.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.entries[i].AFM == afm {
			entries = append(entries, s.entries[i])
		}
	}
	return entries, nil
}
