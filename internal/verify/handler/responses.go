package handler

import (
	"time"

	"afmcheck/internal/verify/models"
	"afmcheck/internal/verify/service"
)

// LookupResponse is the HTTP response for POST /api/v1/lookups.
type LookupResponse struct {
	AFM                string                   `json:"afm"`
	Formatted          string                   `json:"formatted"`
	EntityType         string                   `json:"entityType"`
	VerificationStatus string                   `json:"verificationStatus"`
	Sources            map[string]SourceDetail  `json:"sources"`
	Data               *PayloadResponse         `json:"data,omitempty"`
	FromCache          bool                     `json:"fromCache"`
}

// SourceDetail is the per-source status in the response.
type SourceDetail struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
}

// PayloadResponse is the structured data portion of the response.
type PayloadResponse struct {
	LegalName     string          `json:"legalName,omitempty"`
	TradeName     string          `json:"tradeName,omitempty"`
	LegalForm     string          `json:"legalForm,omitempty"`
	TaxOfficeCode string          `json:"taxOfficeCode,omitempty"`
	Address       AddressResponse `json:"address"`
	Activity      string          `json:"activity"`
}

// AddressResponse is the structured address portion of the response.
type AddressResponse struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Region     string `json:"region,omitempty"`
}

// FromResult converts a domain result to its HTTP response.
func FromResult(result *service.LookupResult) *LookupResponse {
	resp := &LookupResponse{
		AFM:                result.AFM,
		Formatted:          result.Formatted,
		EntityType:         string(result.EntityType),
		VerificationStatus: string(result.Status),
		Sources:            make(map[string]SourceDetail, len(result.Sources)),
		FromCache:          result.FromCache,
	}
	for name, check := range result.Sources {
		resp.Sources[name] = SourceDetail{
			Status:    string(check.Status),
			CheckedAt: check.CheckedAt,
		}
	}
	if !payloadEmpty(result.Payload) {
		resp.Data = &PayloadResponse{
			LegalName:     result.Payload.LegalName,
			TradeName:     result.Payload.TradeName,
			LegalForm:     result.Payload.LegalForm,
			TaxOfficeCode: result.Payload.TaxOfficeCode,
			Address: AddressResponse{
				Street:     result.Payload.Address.Street,
				City:       result.Payload.Address.City,
				PostalCode: result.Payload.Address.PostalCode,
				Region:     result.Payload.Address.Region,
			},
			Activity: string(result.Payload.Activity),
		}
	}
	return resp
}

// payloadEmpty ignores the activity default: a payload with no recovered
// fields yields no data object, even though activity always carries a value.
func payloadEmpty(p models.Payload) bool {
	return p.LegalName == "" &&
		p.TradeName == "" &&
		p.LegalForm == "" &&
		p.TaxOfficeCode == "" &&
		p.Address == (models.Address{})
}
