// Package vies is the client for the EU VAT exchange system, the
// authoritative source for company identifiers. The source sits on the
// synchronous request path, so total latency is bounded: one call with a
// short timeout and exactly one retry with an extended timeout.
package vies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"afmcheck/internal/verify/models"
)

const (
	// DefaultBaseURL is the VIES REST endpoint for VAT number checks.
	DefaultBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api/check-vat-number"

	firstAttemptTimeout = 8 * time.Second
	retryAttemptTimeout = 10 * time.Second
	retryDelay          = 2 * time.Second
)

// Result is the classified outcome of one registry check. A not_found is a
// terminal negative from this source, distinct from an error.
type Result struct {
	Status    models.SourceStatus
	Name      string
	Address   models.Address
	CheckedAt time.Time
}

// Client checks VAT numbers against the VIES REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
	timeouts   [2]time.Duration
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetryDelay overrides the delay before the retry attempt (tests).
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithTimeouts overrides the per-attempt timeouts (tests).
func WithTimeouts(first, retry time.Duration) Option {
	return func(c *Client) { c.timeouts = [2]time.Duration{first, retry} }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		retryDelay: retryDelay,
		timeouts:   [2]time.Duration{firstAttemptTimeout, retryAttemptTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type checkRequest struct {
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
}

type checkResponse struct {
	Valid       bool   `json:"valid"`
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
	RequestDate string `json:"requestDate"`
	Name        string `json:"name"`
	Address     string `json:"address"`
}

// attempt is the per-try classification. Raw transport errors are classified
// here, once, so call sites never match on error strings.
type attempt struct {
	status    models.SourceStatus
	retryable bool
	name      string
	address   string
}

// Check queries the registry for countryCode+number. Timeouts and
// transport/server errors get one retry after a short delay; not_found and
// malformed responses are terminal.
func (c *Client) Check(ctx context.Context, countryCode, number string) Result {
	result := Result{Status: models.SourceError, CheckedAt: time.Now()}

	for i := 0; i < 2; i++ {
		if i > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				result.Status = models.SourceTimeout
				return result
			}
		}

		a := c.attempt(ctx, countryCode, number, c.timeouts[i])
		result.Status = a.status
		result.Name = a.name
		result.Address = parseAddress(a.address)
		result.CheckedAt = time.Now()

		if !a.retryable {
			return result
		}
		c.logger.WarnContext(ctx, "registry check failed, retrying once",
			"country_code", countryCode,
			"status", a.status,
			"attempt", i+1,
		)
	}
	return result
}

func (c *Client) attempt(ctx context.Context, countryCode, number string, timeout time.Duration) attempt {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(checkRequest{CountryCode: countryCode, VATNumber: number})
	if err != nil {
		return attempt{status: models.SourceError}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return attempt{status: models.SourceError}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return attempt{status: models.SourceTimeout, retryable: true}
		}
		return attempt{status: models.SourceError, retryable: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return attempt{status: models.SourceError, retryable: true}
	case resp.StatusCode != http.StatusOK:
		// Unexpected status is an error, never a silent not_found.
		return attempt{status: models.SourceError}
	}

	var decoded checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return attempt{status: models.SourceError}
	}

	if !decoded.Valid {
		return attempt{status: models.SourceNotFound}
	}
	return attempt{status: models.SourceOK, name: decoded.Name, address: decoded.Address}
}

// parseAddress splits a free-text registry address on comma boundaries.
// Failure to parse yields empty fields, never an error: the structured
// address is best-effort decoration on an already-confirmed result.
func parseAddress(raw string) models.Address {
	parts := splitTrimmed(raw, ",")
	switch len(parts) {
	case 0:
		return models.Address{}
	case 1:
		return models.Address{Street: parts[0]}
	default:
		addr := models.Address{Street: parts[0]}
		addr.PostalCode, addr.City = splitPostalCity(parts[len(parts)-1])
		if len(parts) > 2 && addr.City != "" {
			addr.Region = parts[len(parts)-2]
		}
		return addr
	}
}

func splitTrimmed(s, sep string) []string {
	var parts []string
	for _, p := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// splitPostalCity recognizes the "12345 CITY" tail VIES uses for Greek
// addresses. Anything else becomes the city as-is.
func splitPostalCity(s string) (postal, city string) {
	if len(s) > 6 && isDigits(s[:5]) && s[5] == ' ' {
		return s[:5], strings.TrimSpace(s[6:])
	}
	return "", s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
