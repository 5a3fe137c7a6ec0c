// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

/*
fetcher.go - Shared HTTP Transport for Upstream Sources

Every outbound request goes through Fetcher.Get, which applies the same
policy to all sources:

  - realistic User-Agent and Accept-Language headers
  - fixed per-request timeout
  - bounded retry loop with a fixed, context-aware delay
  - per-source circuit breaker (sony/gobreaker), fed one outcome per
    request once its retries are spent

Outcomes:
  - 200: body returned
  - 404, exhausted transient failures: (nil, nil), "no content"
  - 400, 401, 403, 429: *SourceError, returned without retrying
  - open circuit: ErrSourceUnavailable, the source is down for this run
  - context cancellation: the context error
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

const (
	// maxErrorBodySize limits how much of a rejected response is kept for diagnostics.
	maxErrorBodySize = 2 * 1024

	// maxBodySize bounds successful responses; index pages are well below this.
	maxBodySize = 16 * 1024 * 1024
)

var (
	errNotFound    = errors.New("not found")
	errCircuitOpen = errors.New("circuit open")
)

// transientError wraps failures worth retrying.
type transientError struct {
	status int
	err    error
}

func (e *transientError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("transient status %d", e.status)
	}
	return fmt.Sprintf("transient: %v", e.err)
}

func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// readBodyForError reads a bounded prefix of a response body for error reporting.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}

// Fetcher performs GET requests for one source.
type Fetcher struct {
	source  models.Source
	client  *http.Client
	cfg     config.HTTPConfig
	breaker *sourceBreaker
}

// NewFetcher builds a Fetcher for src. Each Fetcher owns its circuit breaker.
func NewFetcher(src models.Source, cfg config.HTTPConfig) *Fetcher {
	return newFetcherWithBreaker(src, cfg, defaultBreakerSettings)
}

func newFetcherWithBreaker(src models.Source, cfg config.HTTPConfig, bs breakerSettings) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	return &Fetcher{
		source:  src,
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: newSourceBreaker(src.Key(), bs),
	}
}

// Get fetches rawURL with query appended. A nil body with a nil error means
// the resource should be treated as absent. An open circuit is reported as
// ErrSourceUnavailable so the caller stops querying a source that is down.
func (f *Fetcher) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	reqURL := rawURL
	if len(query) > 0 {
		reqURL = rawURL + "?" + query.Encode()
	}

	start := time.Now()
	// one breaker outcome per request, after its retries are spent
	body, err := f.breaker.execute(func() ([]byte, error) {
		return f.attempt(ctx, reqURL)
	})
	switch {
	case err == nil:
		metrics.RecordSourceRequest(f.source.Key(), "ok", time.Since(start))
		return body, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, errNotFound):
		metrics.RecordSourceRequest(f.source.Key(), "not_found", time.Since(start))
		return nil, nil
	case errors.Is(err, errCircuitOpen):
		metrics.RecordSourceRequest(f.source.Key(), "circuit_open", time.Since(start))
		logging.Warn().Str("source", f.source.Key()).Str("url", redactURL(reqURL)).Msg("Circuit open, source unavailable")
		return nil, fmt.Errorf("%s: %w: circuit open after repeated transient failures", f.source, ErrSourceUnavailable)
	case isTransient(err):
		metrics.RecordSourceRequest(f.source.Key(), "transient", time.Since(start))
		logging.Warn().Str("source", f.source.Key()).Str("url", redactURL(reqURL)).Err(err).Int("attempts", f.cfg.RetryLimit+1).Msg("Giving up on request")
		return nil, nil
	default:
		metrics.RecordSourceRequest(f.source.Key(), "rejected", time.Since(start))
		return nil, err
	}
}

// attempt runs the bounded retry loop. It returns the last transient error
// once every attempt has failed.
func (f *Fetcher) attempt(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for n := 0; n <= f.cfg.RetryLimit; n++ {
		if n > 0 {
			logging.Debug().Str("source", f.source.Key()).Int("attempt", n+1).Dur("delay", f.cfg.RetryDelay).Err(lastErr).Msg("Retrying request")
			if err := sleepCtx(ctx, f.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
		body, err := f.do(ctx, reqURL)
		if err == nil || !isTransient(err) {
			return body, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetJSON fetches and decodes a JSON document into out. found is false when
// the document is absent or could not be decoded; decode failures are
// logged and counted rather than returned.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, query url.Values, out interface{}) (found bool, err error) {
	body, err := f.Get(ctx, rawURL, query)
	if err != nil || body == nil {
		return false, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordEventSkipped(f.source.Key(), "parse")
		logging.Warn().Str("source", f.source.Key()).Err(err).Msg("Failed to decode response")
		return false, nil
	}
	return true, nil
}

func (f *Fetcher) do(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, &transientError{err: err}
		}
		return body, nil
	case code == http.StatusBadRequest, code == http.StatusUnauthorized,
		code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return nil, &SourceError{
			Source: f.source,
			Status: code,
			URL:    redactURL(reqURL),
			Body:   readBodyForError(resp.Body),
		}
	case code == http.StatusRequestTimeout, code >= 500:
		return nil, &transientError{status: code}
	default:
		// 404 and anything else unexpected carries no usable content.
		return nil, errNotFound
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// redactURL strips credential query parameters before a URL is logged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"apikey", "client_id", "client_secret"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
