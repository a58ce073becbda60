// Package service is the lookup orchestrator: it owns the order in which
// sources are consulted and how their outcomes merge into one verification
// result. Stages run strictly in sequence and short-circuit on terminal
// outcomes; persistence and audit are best-effort and never fail the caller.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"afmcheck/internal/afm"
	"afmcheck/internal/verify/cache"
	"afmcheck/internal/verify/metrics"
	"afmcheck/internal/verify/models"
	"afmcheck/internal/verify/ratelimit"
	"afmcheck/internal/verify/scraper"
	"afmcheck/internal/verify/store"
	"afmcheck/internal/verify/vies"
	"afmcheck/pkg/apierrors"
	"afmcheck/pkg/requestcontext"
)

// Source names used in audit rows and responses.
const (
	SourceRegistry         = "registry"
	SourceBusinessRegistry = "businessRegistry"
)

// RegistrySource is the authoritative VAT registry port.
type RegistrySource interface {
	Check(ctx context.Context, countryCode, number string) vies.Result
}

// FallbackSource is the scraping engine port.
type FallbackSource interface {
	Lookup(ctx context.Context, afm string) scraper.Result
}

// BlockCooldown gates the fallback after recent bot-detection hits.
type BlockCooldown interface {
	Active(ctx context.Context) bool
	Trip(ctx context.Context)
}

// EventPublisher fans audit entries out to the event stream.
type EventPublisher interface {
	PublishLookup(ctx context.Context, entry models.AuditEntry)
}

// LookupRequest is the orchestrator's input, already authenticated.
type LookupRequest struct {
	AFM          string
	ForceRefresh bool
}

// LookupResult is the caller-visible outcome of one lookup.
type LookupResult struct {
	AFM        string
	Formatted  string
	EntityType models.EntityType
	Status     models.Status
	Payload    models.Payload
	Sources    map[string]models.SourceCheck
	FromCache  bool
}

// Service composes the pipeline stages.
type Service struct {
	cache           *cache.Cache
	limiter         *ratelimit.Limiter
	registry        RegistrySource
	fallback        FallbackSource
	cooldown        BlockCooldown
	audits          store.AuditStore
	events          EventPublisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	tracer          trace.Tracer
	fallbackEnabled bool
	countryCode     string
	now             func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(events EventPublisher) Option {
	return func(s *Service) { s.events = events }
}

func WithCooldown(cooldown BlockCooldown) Option {
	return func(s *Service) { s.cooldown = cooldown }
}

// WithFallback wires the scraping engine. Absence disables the fallback
// entirely; the registry alone decides the outcome.
func WithFallback(fallback FallbackSource) Option {
	return func(s *Service) {
		s.fallback = fallback
		s.fallbackEnabled = fallback != nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(c *cache.Cache, limiter *ratelimit.Limiter, registry RegistrySource, audits store.AuditStore, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry source is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	s := &Service{
		cache:       c,
		limiter:     limiter,
		registry:    registry,
		audits:      audits,
		logger:      slog.Default(),
		tracer:      otel.Tracer("afmcheck/verify"),
		countryCode: "EL",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup runs the full pipeline for one identifier.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	start := s.now()

	// Stage 1: format validation. Rejection consumes nothing downstream.
	cleaned, ok, reason := afm.Validate(req.AFM)
	if !ok {
		return nil, apierrors.New(apierrors.CodeInvalidAFM, fmt.Sprintf("invalid AFM: %s", reason))
	}

	callerID := requestcontext.CallerID(ctx)

	// Stage 2: sliding-window rate limit. Denial is terminal and consumes
	// no source budget.
	if !s.limiter.Allow(ctx, callerID) {
		s.count(func(m *metrics.Metrics) { m.RateLimited.Inc() })
		return nil, apierrors.New(apierrors.CodeRateLimit, "lookup rate limit exceeded, retry later")
	}

	// Stage 3: cache. A fresh hit short-circuits everything: no external
	// calls, no upsert, and no audit row, so no window budget is consumed.
	if !req.ForceRefresh {
		record, fresh, err := s.cache.Get(ctx, cleaned)
		if err != nil {
			s.logger.ErrorContext(ctx, "cache read failed, continuing to sources",
				"afm", cleaned,
				"error", err,
			)
		} else if fresh {
			s.count(func(m *metrics.Metrics) { m.CacheHits.Inc() })
			return s.fromRecord(record), nil
		}
	}

	ctx, span := s.tracer.Start(ctx, "verify.lookup")
	defer span.End()

	result, sources := s.consultSources(ctx, cleaned)

	span.SetAttributes(
		attribute.String("verify.status", string(result.Status)),
		attribute.String("verify.registry_status", string(sources[SourceRegistry].Status)),
	)

	// Stage 6: persist and audit. Failures here are observability gaps,
	// never caller-visible errors.
	s.persist(ctx, result)
	s.audit(ctx, result, sources, callerID)

	s.count(func(m *metrics.Metrics) {
		m.Lookups.WithLabelValues(string(result.Status)).Inc()
		m.Duration.Observe(s.now().Sub(start).Seconds())
	})

	return result, nil
}

// consultSources runs stages 4-5: the authoritative registry, then the
// scraping fallback when the registry is inconclusive and policy allows.
func (s *Service) consultSources(ctx context.Context, cleaned string) (*LookupResult, map[string]models.SourceCheck) {
	sources := make(map[string]models.SourceCheck)

	result := &LookupResult{
		AFM:        cleaned,
		Formatted:  afm.Format(cleaned),
		EntityType: models.EntityUnknown,
		Payload:    models.Payload{Activity: models.ActivityUnknown},
	}

	registryResult := s.registry.Check(ctx, s.countryCode, cleaned)
	sources[SourceRegistry] = models.SourceCheck{Status: registryResult.Status, CheckedAt: registryResult.CheckedAt}
	s.count(func(m *metrics.Metrics) {
		m.SourceRequests.WithLabelValues(SourceRegistry, string(registryResult.Status)).Inc()
	})

	if registryResult.Status == models.SourceOK {
		// The VAT registry only covers companies; a hit is a full
		// confirmation.
		result.Status = models.StatusVerified
		result.EntityType = models.EntityCompany
		result.Payload.LegalName = registryResult.Name
		result.Payload.Address = registryResult.Address
		result.Payload.Activity = models.ActivityActive
		result.Sources = sources
		return result, sources
	}

	fallbackResult, attempted := s.consultFallback(ctx, cleaned)
	if attempted {
		sources[SourceBusinessRegistry] = models.SourceCheck{
			Status:    fallbackResult.SourceStatus(),
			CheckedAt: fallbackResult.CheckedAt,
		}
	}

	result.Status = mergeStatus(registryResult.Status, fallbackResult, attempted)
	if attempted && fallbackResult.Outcome == scraper.OutcomeFound {
		result.EntityType = models.EntityCompany
		result.Payload.LegalName = fallbackResult.LegalName
		result.Payload.TaxOfficeCode = fallbackResult.TaxOffice
		result.Payload.Activity = fallbackResult.Activity
	}
	result.Sources = sources
	return result, sources
}

// consultFallback applies the fallback policy: attempt unless disabled or in
// block cooldown. Returns whether an attempt was made.
func (s *Service) consultFallback(ctx context.Context, cleaned string) (scraper.Result, bool) {
	if !s.fallbackEnabled {
		return scraper.Result{}, false
	}
	if s.cooldown != nil && s.cooldown.Active(ctx) {
		s.logger.InfoContext(ctx, "fallback skipped, block cooldown active", "afm", cleaned)
		return scraper.Result{}, false
	}

	fallbackResult := s.fallback.Lookup(ctx, cleaned)
	s.count(func(m *metrics.Metrics) {
		m.ScraperOutcome.WithLabelValues(string(fallbackResult.Outcome)).Inc()
		m.SourceRequests.WithLabelValues(SourceBusinessRegistry, string(fallbackResult.SourceStatus())).Inc()
	})

	switch fallbackResult.Outcome {
	case scraper.OutcomeBlocked:
		if s.cooldown != nil {
			s.cooldown.Trip(ctx)
		}
	case scraper.OutcomePageChanged:
		// Structure drift means the selectors need maintenance; make it loud.
		s.logger.ErrorContext(ctx, "business registry page structure changed, scraper needs maintenance",
			"afm", cleaned,
		)
		s.count(func(m *metrics.Metrics) { m.PageChanged.Inc() })
	}

	return fallbackResult, true
}

// mergeStatus folds an inconclusive registry outcome and the fallback result
// into the terminal status. A scraper find without registry confirmation is
// partial; the registry's own not_found stays terminal when the fallback
// cannot improve on it.
func mergeStatus(registryStatus models.SourceStatus, fallbackResult scraper.Result, attempted bool) models.Status {
	if attempted {
		switch fallbackResult.Outcome {
		case scraper.OutcomeFound:
			return models.StatusPartial
		case scraper.OutcomeNoResults:
			return models.StatusNotFound
		}
	}
	if registryStatus == models.SourceNotFound {
		return models.StatusNotFound
	}
	return models.StatusError
}

func (s *Service) fromRecord(record models.VerificationRecord) *LookupResult {
	return &LookupResult{
		AFM:        record.AFM,
		Formatted:  afm.Format(record.AFM),
		EntityType: record.EntityType,
		Status:     record.Status,
		Payload:    record.Payload,
		Sources:    map[string]models.SourceCheck{},
		FromCache:  true,
	}
}

func (s *Service) persist(ctx context.Context, result *LookupResult) {
	err := s.cache.Put(ctx, models.VerificationRecord{
		AFM:        result.AFM,
		EntityType: result.EntityType,
		Status:     result.Status,
		Payload:    result.Payload,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "persist verification record failed",
			"afm", result.AFM,
			"error", err,
		)
	}
}

func (s *Service) audit(ctx context.Context, result *LookupResult, sources map[string]models.SourceCheck, callerID string) {
	statuses := make(map[string]models.SourceStatus, len(sources))
	for name, check := range sources {
		statuses[name] = check.Status
	}

	entry := models.AuditEntry{
		AFM:         result.AFM,
		CallerID:    callerID,
		Sources:     statuses,
		Fingerprint: result.Payload.Fingerprint(),
		ClientIP:    requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		CreatedAt:   s.now(),
	}

	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "append lookup audit failed",
			"afm", result.AFM,
			"caller_id", callerID,
			"error", err,
		)
	}

	if s.events != nil {
		s.events.PublishLookup(ctx, entry)
	}
}

func (s *Service) count(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
