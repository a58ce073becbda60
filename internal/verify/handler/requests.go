package handler

import (
	"strings"

	"afmcheck/pkg/apierrors"
)

// LookupRequest is the HTTP request body for POST /api/v1/lookups.
type LookupRequest struct {
	AFM          string `json:"afm"`
	ForceRefresh bool   `json:"forceRefresh"`
}

// Validate rejects structurally empty requests. Format validation proper
// belongs to the pipeline's first stage, not the transport.
func (r *LookupRequest) Validate() error {
	if r == nil {
		return apierrors.New(apierrors.CodeMissingAFM, "request body is required")
	}
	r.AFM = strings.TrimSpace(r.AFM)
	if r.AFM == "" {
		return apierrors.New(apierrors.CodeMissingAFM, "afm is required")
	}
	return nil
}
