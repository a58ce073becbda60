// Package models holds the verification domain model shared by the store,
// cache, sources, and orchestrator.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EntityType classifies who an identifier belongs to.
type EntityType string

const (
	EntityCompany    EntityType = "company"
	EntityIndividual EntityType = "individual"
	EntityUnknown    EntityType = "unknown"
)

// Status is the terminal classification of a lookup.
type Status string

const (
	StatusVerified Status = "verified"
	StatusPartial  Status = "partial"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// ActivityStatus captures whether the entity is still trading.
type ActivityStatus string

const (
	ActivityActive   ActivityStatus = "active"
	ActivityInactive ActivityStatus = "inactive"
	ActivityUnknown  ActivityStatus = "unknown"
)

// SourceStatus is the per-source outcome recorded in audits and responses.
type SourceStatus string

const (
	SourceOK       SourceStatus = "ok"
	SourceNotFound SourceStatus = "not_found"
	SourceError    SourceStatus = "error"
	SourceTimeout  SourceStatus = "timeout"
	SourceSkipped  SourceStatus = "skipped"
)

// Address is the best-effort structured form of a registry address line.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Region     string `json:"region,omitempty"`
}

// Payload is the structured data recovered for an identifier. All fields are
// optional; an empty payload is still a meaningful record.
type Payload struct {
	LegalName     string         `json:"legalName,omitempty"`
	TradeName     string         `json:"tradeName,omitempty"`
	LegalForm     string         `json:"legalForm,omitempty"`
	TaxOfficeCode string         `json:"taxOfficeCode,omitempty"`
	Address       Address        `json:"address"`
	Activity      ActivityStatus `json:"activity"`
}

// VerificationRecord is the persisted result of a lookup, upserted by
// identifier. Records are never deleted by this subsystem; staleness is a
// cache-read concern.
type VerificationRecord struct {
	AFM        string
	EntityType EntityType
	Status     Status
	Payload    Payload
	UpdatedAt  time.Time
}

// SourceCheck pairs a per-source status with the time the source was asked.
type SourceCheck struct {
	Status    SourceStatus
	CheckedAt time.Time
}

// AuditEntry is one append-only row of the lookup audit log. It doubles as
// the rate-limit window source, so it must stay cheap to count by
// (caller, timestamp).
type AuditEntry struct {
	AFM         string
	CallerID    string
	Sources     map[string]SourceStatus
	Fingerprint string
	ClientIP    string
	UserAgent   string
	CreatedAt   time.Time
}

// Fingerprint derives an opaque digest of the payload for change detection
// between successive lookups of the same identifier.
func (p Payload) Fingerprint() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
