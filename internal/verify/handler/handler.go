// Package handler wires the lookup endpoint to the orchestrator. It stays
// thin: decode, validate emptiness, delegate, encode.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"afmcheck/internal/verify/service"
	"afmcheck/pkg/apierrors"
	"afmcheck/pkg/httputil"
	"afmcheck/pkg/requestcontext"
)

// Service is the orchestrator interface the handler depends on.
type Service interface {
	Lookup(ctx context.Context, req service.LookupRequest) (*service.LookupResult, error)
}

// Handler serves the verification endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/lookups", h.HandleLookup)
}

// HandleLookup handles POST /api/v1/lookups.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	callerID := requestcontext.CallerID(ctx)
	start := time.Now()

	if callerID == "" {
		httputil.WriteError(w, apierrors.New(apierrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apierrors.New(apierrors.CodeMissingAFM, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Lookup(ctx, service.LookupRequest{
		AFM:          req.AFM,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		apiErr := apierrors.AsError(err)
		if apiErr.Code == apierrors.CodeInternal {
			h.logger.ErrorContext(ctx, "lookup failed",
				"request_id", requestID,
				"caller_id", callerID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "lookup completed",
		"request_id", requestID,
		"caller_id", callerID,
		"afm", result.AFM,
		"status", result.Status,
		"from_cache", result.FromCache,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}
