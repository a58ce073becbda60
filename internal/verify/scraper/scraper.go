// Package scraper is the fallback source: scripted interaction with the
// public business-registry search page. The integration is inherently
// best-effort — the page has no API and its markup drifts — so every step is
// defensive and every failure maps to a typed outcome.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"afmcheck/internal/verify/models"
)

// Outcome classifies one fallback attempt. Raw transport errors are
// classified exactly once, at the attempt boundary; callers switch on this
// enum and never inspect error strings.
type Outcome string

const (
	OutcomeFound       Outcome = "FOUND"
	OutcomeNoResults   Outcome = "NO_RESULTS"
	OutcomeBlocked     Outcome = "BLOCKED_OR_CAPTCHA"
	OutcomePageChanged Outcome = "PAGE_CHANGED"
	OutcomeTimeout     Outcome = "TIMEOUT"
	OutcomeUnknown     Outcome = "UNKNOWN_ERROR"
)

// Result is the scraper's contribution to a lookup. Structured fields are
// only meaningful when Outcome is OutcomeFound.
type Result struct {
	Outcome   Outcome
	LegalName string
	TaxOffice string
	Activity  models.ActivityStatus
	CheckedAt time.Time
}

// SourceStatus maps the outcome onto the shared per-source status taxonomy.
func (r Result) SourceStatus() models.SourceStatus {
	switch r.Outcome {
	case OutcomeFound:
		return models.SourceOK
	case OutcomeNoResults:
		return models.SourceNotFound
	case OutcomeTimeout:
		return models.SourceTimeout
	default:
		return models.SourceError
	}
}

const (
	pageLoadTimeout  = 30 * time.Second
	submitNavTimeout = 15 * time.Second
	settleDelay      = 3 * time.Second

	// maxAttempts bounds the whole engine: one try plus one retry with a
	// fresh session, transient failures only.
	maxAttempts = 2
)

// inputSelectors are tried in order for the identifier field; first match
// wins. The bare text input is a last resort.
var inputSelectors = []string{
	`input[name="afm"]`,
	`input[name="vat"]`,
	`input[placeholder*="ΑΦΜ"]`,
	`input[placeholder*="Α.Φ.Μ"]`,
	`#afm`,
	`input[type="search"]`,
	`input[type="text"]`,
}

// submitSelectors are tried in order for the search button. If none match,
// the engine falls back to an Enter keypress in the input field.
var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button.search`,
	`button[id*="search"]`,
	`button[class*="search"]`,
}

// Terminal attempt failures. These burn the session and must not be retried.
var (
	errBlocked     = errors.New("blocked by captcha or bot detection")
	errPageChanged = errors.New("page structure changed, no input selector matched")
)

// Engine drives browser sessions against the registry search page.
type Engine struct {
	launcher  Launcher
	searchURL string
	logger    *slog.Logger
	sessions  *semaphore.Weighted
	sleep     func(context.Context, time.Duration) error
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMaxSessions bounds concurrent browser sessions across requests.
func WithMaxSessions(n int64) Option {
	return func(e *Engine) { e.sessions = semaphore.NewWeighted(n) }
}

// WithSleep injects the settle/retry sleep for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

func New(launcher Launcher, searchURL string, opts ...Option) (*Engine, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if searchURL == "" {
		return nil, fmt.Errorf("search URL is required")
	}
	e := &Engine{
		launcher:  launcher,
		searchURL: searchURL,
		logger:    slog.Default(),
		sessions:  semaphore.NewWeighted(2),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Lookup runs the fallback for one identifier: at most two attempts, each
// with its own browser session, retrying only transient failures. Blocked
// and structure-drift outcomes are terminal immediately.
func (e *Engine) Lookup(ctx context.Context, afm string) Result {
	result := Result{Outcome: OutcomeUnknown, Activity: models.ActivityUnknown, CheckedAt: time.Now()}

	if err := e.sessions.Acquire(ctx, 1); err != nil {
		result.Outcome = OutcomeTimeout
		return result
	}
	defer e.sessions.Release(1)

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		findings, err := e.attempt(ctx, afm)
		if err == nil {
			result.CheckedAt = time.Now()
			result.Activity = findings.Activity
			result.LegalName = findings.LegalName
			result.TaxOffice = findings.TaxOffice
			if findings.Found {
				result.Outcome = OutcomeFound
			} else {
				result.Outcome = OutcomeNoResults
			}
			return result
		}

		if errors.Is(err, errBlocked) {
			result.Outcome = OutcomeBlocked
			result.CheckedAt = time.Now()
			return result
		}
		if errors.Is(err, errPageChanged) {
			result.Outcome = OutcomePageChanged
			result.CheckedAt = time.Now()
			return result
		}

		lastErr = err
		e.logger.WarnContext(ctx, "fallback attempt failed",
			"afm", afm,
			"attempt", i+1,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	result.Outcome = classifyFailure(lastErr)
	result.CheckedAt = time.Now()
	return result
}

// attempt runs the full state machine in one session. The deferred Close
// guarantees session release on every exit path, panics included.
func (e *Engine) attempt(ctx context.Context, afm string) (findings, error) {
	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return findings{}, fmt.Errorf("launch session: %w", err)
	}
	defer session.Close()

	if err := session.Navigate(e.searchURL, pageLoadTimeout); err != nil {
		return findings{}, fmt.Errorf("navigate search page: %w", err)
	}

	pageText, err := session.VisibleText()
	if err != nil {
		return findings{}, fmt.Errorf("read page text: %w", err)
	}
	if isBlocked(pageText) {
		return findings{}, errBlocked
	}

	inputSel, err := e.locateInput(session)
	if err != nil {
		return findings{}, err
	}

	if err := session.Fill(inputSel, afm); err != nil {
		return findings{}, fmt.Errorf("fill identifier input: %w", err)
	}

	if err := e.submit(ctx, session, inputSel); err != nil {
		return findings{}, err
	}

	resultText, err := session.VisibleText()
	if err != nil {
		return findings{}, fmt.Errorf("read result text: %w", err)
	}
	html, err := session.HTML()
	if err != nil {
		return findings{}, fmt.Errorf("read result markup: %w", err)
	}

	return extract(resultText, html), nil
}

// locateInput walks the input-selector candidates in order. No match is a
// structure-drift signal, not a transient failure.
func (e *Engine) locateInput(session Session) (string, error) {
	for _, selector := range inputSelectors {
		count, err := session.CountMatches(selector)
		if err != nil {
			return "", fmt.Errorf("probe selector %q: %w", selector, err)
		}
		if count > 0 {
			return selector, nil
		}
	}
	return "", errPageChanged
}

// submit clicks the first matching button and waits for navigation; when no
// button matches it falls back to an Enter keypress plus a settle delay.
func (e *Engine) submit(ctx context.Context, session Session, inputSel string) error {
	for _, selector := range submitSelectors {
		count, err := session.CountMatches(selector)
		if err != nil {
			return fmt.Errorf("probe submit selector %q: %w", selector, err)
		}
		if count > 0 {
			if err := session.Click(selector, submitNavTimeout); err != nil {
				return fmt.Errorf("click submit: %w", err)
			}
			return nil
		}
	}

	if err := session.PressEnter(inputSel); err != nil {
		return fmt.Errorf("submit via enter key: %w", err)
	}
	return e.sleep(ctx, settleDelay)
}

// classifyFailure maps a transient failure that survived the retry budget to
// its outcome. Timeout signatures become TIMEOUT, everything else
// UNKNOWN_ERROR.
func classifyFailure(err error) Outcome {
	if err == nil {
		return OutcomeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return OutcomeTimeout
	}
	return OutcomeUnknown
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
