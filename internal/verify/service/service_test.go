package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"afmcheck/internal/verify/cache"
	"afmcheck/internal/verify/models"
	"afmcheck/internal/verify/ratelimit"
	"afmcheck/internal/verify/scraper"
	"afmcheck/internal/verify/store"
	"afmcheck/internal/verify/vies"
	"afmcheck/pkg/apierrors"
	"afmcheck/pkg/requestcontext"
)

type fakeRegistry struct {
	result vies.Result
	calls  int
}

func (f *fakeRegistry) Check(context.Context, string, string) vies.Result {
	f.calls++
	return f.result
}

type fakeFallback struct {
	result scraper.Result
	calls  int
}

func (f *fakeFallback) Lookup(context.Context, string) scraper.Result {
	f.calls++
	return f.result
}

type fakeCooldown struct {
	active  bool
	tripped int
}

func (f *fakeCooldown) Active(context.Context) bool { return f.active }
func (f *fakeCooldown) Trip(context.Context)        { f.tripped++ }

type fakeEvents struct {
	published []models.AuditEntry
}

func (f *fakeEvents) PublishLookup(_ context.Context, entry models.AuditEntry) {
	f.published = append(f.published, entry)
}

// appendFailingAuditStore counts fine but cannot append, to prove audit
// failures stay invisible to the caller.
type appendFailingAuditStore struct {
	*store.MemoryAuditStore
}

func (s *appendFailingAuditStore) Append(context.Context, models.AuditEntry) error {
	return errors.New("audit table gone")
}

type ServiceSuite struct {
	suite.Suite
	now      time.Time
	records  *store.MemoryRecordStore
	memAudit *store.MemoryAuditStore
	registry *fakeRegistry
	fallback *fakeFallback
	cooldown *fakeCooldown
	events   *fakeEvents
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.records = store.NewMemoryRecordStore()
	s.memAudit = store.NewMemoryAuditStore()
	s.registry = &fakeRegistry{}
	s.fallback = &fakeFallback{}
	s.cooldown = &fakeCooldown{}
	s.events = &fakeEvents{}
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	clock := func() time.Time { return s.now }

	c, err := cache.New(s.records, cache.WithClock(clock))
	s.Require().NoError(err)

	limiter, err := ratelimit.New(s.memAudit, ratelimit.WithClock(clock))
	s.Require().NoError(err)

	base := []Option{
		WithFallback(s.fallback),
		WithCooldown(s.cooldown),
		WithEvents(s.events),
		WithClock(clock),
	}
	svc, err := New(c, limiter, s.registry, s.memAudit, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithCallerID(context.Background(), "caller-1")
	ctx = requestcontext.WithClientIP(ctx, "203.0.113.9")
	return requestcontext.WithUserAgent(ctx, "test-agent/1.0")
}

func (s *ServiceSuite) auditCount(callerID string) int {
	count, err := s.memAudit.CountByCallerSince(context.Background(), callerID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	return count
}

func (s *ServiceSuite) TestInvalidFormatShortCircuits() {
	svc := s.newService()

	for _, raw := range []string{"12345", "000000000", "123456789"} {
		_, err := svc.Lookup(s.ctx(), LookupRequest{AFM: raw})
		s.Require().Error(err)
		s.Equal(apierrors.CodeInvalidAFM, apierrors.AsError(err).Code)
	}

	s.Equal(0, s.registry.calls, "no source consulted for invalid input")
	s.Equal(0, s.auditCount("caller-1"), "invalid input consumes no window budget")
}

func (s *ServiceSuite) TestRateLimitDenial() {
	svc := s.newService()

	for range 30 {
		s.Require().NoError(s.memAudit.Append(context.Background(), models.AuditEntry{
			CallerID:  "caller-1",
			CreatedAt: s.now.Add(-10 * time.Second),
		}))
	}

	_, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().Error(err)
	s.Equal(apierrors.CodeRateLimit, apierrors.AsError(err).Code)
	s.Equal(0, s.registry.calls, "denial consumes no source budget")
}

func (s *ServiceSuite) TestRegistryHitIsVerified() {
	s.registry.result = vies.Result{
		Status:    models.SourceOK,
		Name:      "EXAMPLE TELECOM SA",
		Address:   models.Address{Street: "KIFISIAS 99", City: "ATHINA", PostalCode: "15124"},
		CheckedAt: s.now,
	}
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)

	s.Equal(models.StatusVerified, result.Status)
	s.Equal(models.EntityCompany, result.EntityType)
	s.Equal("EXAMPLE TELECOM SA", result.Payload.LegalName)
	s.Equal("090 000 045", result.Formatted)
	s.Equal(models.SourceOK, result.Sources[SourceRegistry].Status)
	s.Equal(0, s.fallback.calls, "no fallback after a registry hit")

	record, err := s.records.Find(context.Background(), "090000045")
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, record.Status)

	s.Equal(1, s.auditCount("caller-1"))
	s.Require().Len(s.events.published, 1)
	s.Equal(models.SourceOK, s.events.published[0].Sources[SourceRegistry])
}

func (s *ServiceSuite) TestCacheHitShortCircuits() {
	s.registry.result = vies.Result{Status: models.SourceOK, Name: "CACHED CO", CheckedAt: s.now}
	svc := s.newService()

	first, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)
	s.False(first.FromCache)

	second, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)

	s.True(second.FromCache)
	s.Equal(first.Payload, second.Payload, "cached payload is returned verbatim")
	s.Equal(1, s.registry.calls, "cache hit makes no external call")
	s.Equal(1, s.auditCount("caller-1"), "cache hit appends no audit row")
}

func (s *ServiceSuite) TestForceRefreshBypassesCacheRead() {
	s.registry.result = vies.Result{Status: models.SourceOK, Name: "FRESH CO", CheckedAt: s.now}
	svc := s.newService()

	_, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)

	_, err = svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045", ForceRefresh: true})
	s.Require().NoError(err)

	s.Equal(2, s.registry.calls, "forceRefresh skips the cache read")
	s.Equal(2, s.auditCount("caller-1"))
}

func (s *ServiceSuite) TestStaleRecordTriggersFreshLookup() {
	s.Require().NoError(s.records.Upsert(context.Background(), models.VerificationRecord{
		AFM:       "090000045",
		Status:    models.StatusVerified,
		UpdatedAt: s.now.Add(-25 * time.Hour),
	}))
	s.registry.result = vies.Result{Status: models.SourceOK, Name: "REFRESHED CO", CheckedAt: s.now}
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)
	s.False(result.FromCache)
	s.Equal(1, s.registry.calls)
}

func (s *ServiceSuite) TestNotFoundBothSources() {
	s.registry.result = vies.Result{Status: models.SourceNotFound, CheckedAt: s.now}
	s.fallback.result = scraper.Result{Outcome: scraper.OutcomeNoResults, CheckedAt: s.now}
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "123456783"})
	s.Require().NoError(err)

	s.Equal(models.StatusNotFound, result.Status)
	s.Equal(models.SourceNotFound, result.Sources[SourceRegistry].Status)
	s.Equal(models.SourceNotFound, result.Sources[SourceBusinessRegistry].Status)
}

func (s *ServiceSuite) TestRegistryErrorWithScraperFindIsPartial() {
	s.registry.result = vies.Result{Status: models.SourceError, CheckedAt: s.now}
	s.fallback.result = scraper.Result{
		Outcome:   scraper.OutcomeFound,
		LegalName: "GAMMA AE",
		TaxOffice: "Α' ΑΘΗΝΩΝ",
		Activity:  models.ActivityActive,
		CheckedAt: s.now,
	}
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "094014201"})
	s.Require().NoError(err)

	s.Equal(models.StatusPartial, result.Status, "a scraper find must not be masked by a registry error")
	s.Equal(models.EntityCompany, result.EntityType)
	s.Equal("GAMMA AE", result.Payload.LegalName)
	s.Equal("Α' ΑΘΗΝΩΝ", result.Payload.TaxOfficeCode)
	s.Equal(models.ActivityActive, result.Payload.Activity)
}

func (s *ServiceSuite) TestRegistryNotFoundScraperBlocked() {
	s.registry.result = vies.Result{Status: models.SourceNotFound, CheckedAt: s.now}
	s.fallback.result = scraper.Result{Outcome: scraper.OutcomeBlocked, CheckedAt: s.now}
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "123456783"})
	s.Require().NoError(err)

	s.Equal(models.StatusNotFound, result.Status, "registry negative stays terminal")
	s.Equal(1, s.cooldown.tripped, "block trips the cooldown")
	s.Equal(models.SourceError, result.Sources[SourceBusinessRegistry].Status)
}

func (s *ServiceSuite) TestBothSourcesErrored() {
	s.registry.result = vies.Result{Status: models.SourceTimeout, CheckedAt: s.now}
	s.fallback.result = scraper.Result{Outcome: scraper.OutcomePageChanged, CheckedAt: s.now}
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "094014201"})
	s.Require().NoError(err)
	s.Equal(models.StatusError, result.Status)
}

func (s *ServiceSuite) TestCooldownSkipsFallback() {
	s.registry.result = vies.Result{Status: models.SourceNotFound, CheckedAt: s.now}
	s.cooldown.active = true
	svc := s.newService()

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "123456783"})
	s.Require().NoError(err)

	s.Equal(0, s.fallback.calls)
	s.Equal(models.StatusNotFound, result.Status)
	_, attempted := result.Sources[SourceBusinessRegistry]
	s.False(attempted, "skipped fallback leaves no source entry")
}

func (s *ServiceSuite) TestFallbackDisabled() {
	s.registry.result = vies.Result{Status: models.SourceError, CheckedAt: s.now}

	clock := func() time.Time { return s.now }
	c, err := cache.New(s.records, cache.WithClock(clock))
	s.Require().NoError(err)
	limiter, err := ratelimit.New(s.memAudit, ratelimit.WithClock(clock))
	s.Require().NoError(err)
	svc, err := New(c, limiter, s.registry, s.memAudit, WithClock(clock))
	s.Require().NoError(err)

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "094014201"})
	s.Require().NoError(err)
	s.Equal(models.StatusError, result.Status)
	s.Equal(0, s.fallback.calls)
}

func (s *ServiceSuite) TestAuditFailureIsInvisibleToCaller() {
	s.registry.result = vies.Result{Status: models.SourceOK, Name: "RESILIENT CO", CheckedAt: s.now}

	failing := &appendFailingAuditStore{MemoryAuditStore: s.memAudit}
	clock := func() time.Time { return s.now }
	c, err := cache.New(s.records, cache.WithClock(clock))
	s.Require().NoError(err)
	limiter, err := ratelimit.New(failing, ratelimit.WithClock(clock))
	s.Require().NoError(err)
	svc, err := New(c, limiter, s.registry, failing, WithClock(clock))
	s.Require().NoError(err)

	result, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, result.Status)
}

func (s *ServiceSuite) TestAuditEntryCapturesCallerMetadata() {
	s.registry.result = vies.Result{Status: models.SourceOK, Name: "META CO", CheckedAt: s.now}
	svc := s.newService()

	_, err := svc.Lookup(s.ctx(), LookupRequest{AFM: "090000045"})
	s.Require().NoError(err)

	entries, err := s.memAudit.ListByAFM(context.Background(), "090000045", 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("caller-1", entries[0].CallerID)
	s.Equal("203.0.113.9", entries[0].ClientIP)
	s.Equal("test-agent/1.0", entries[0].UserAgent)
	s.NotEmpty(entries[0].Fingerprint)
}

func (s *ServiceSuite) TestNewValidation() {
	clock := func() time.Time { return s.now }
	c, err := cache.New(s.records, cache.WithClock(clock))
	s.Require().NoError(err)
	limiter, err := ratelimit.New(s.memAudit, ratelimit.WithClock(clock))
	s.Require().NoError(err)

	_, err = New(nil, limiter, s.registry, s.memAudit)
	s.Error(err)
	_, err = New(c, nil, s.registry, s.memAudit)
	s.Error(err)
	_, err = New(c, limiter, nil, s.memAudit)
	s.Error(err)
	_, err = New(c, limiter, s.registry, nil)
	s.Error(err)
}
