// Package provider contains metadata provider clients (AcoustID,
// MusicBrainz, Last.fm, Discogs, Spotify).
//
// The contracts the clients implement are defined in internal/metadata,
// following the Go convention of defining interfaces where they are
// consumed. Each sub-package implements them for one external catalog.
// This package itself holds the transport glue they share: request pacing
// and bounded retry against one provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tunetag/internal/metadata"
	"tunetag/internal/ratelimit"
)

// Transient failures get this many additional attempts.
const defaultRetries = 2

// Delay before the first retry; doubles per attempt. Throttle responses
// (429/503) back off through the limiter penalty instead, which honors
// Retry-After.
const retryBaseDelay = 500 * time.Millisecond

// Doer executes requests against one provider with rate-limit pacing and
// bounded retry with backoff. Transient failures (network errors, 429,
// 5xx) are retried; auth rejections are not, surfacing ErrProviderAuth so
// the caller disables the provider for the remainder of the run.
type Doer struct {
	HTTP    *http.Client
	Limiter *ratelimit.Limiter
	Retries int

	// Overridable for testing.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDoer creates a Doer with the given per-request timeout and limiter.
func NewDoer(timeout time.Duration, limiter *ratelimit.Limiter) *Doer {
	return &Doer{
		HTTP:    &http.Client{Timeout: timeout},
		Limiter: limiter,
		Retries: defaultRetries,
		sleep:   sleepCtx,
	}
}

// Do executes the request. A returned response may still carry a non-2xx
// status for cases the caller treats as data (e.g. artwork 404); auth and
// availability failures come back as wrapped sentinel errors.
func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= d.Retries; attempt++ {
		if d.Limiter != nil {
			if err := d.Limiter.Acquire(req.Context()); err != nil {
				return nil, err
			}
		}

		attemptReq, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}

		resp, err := d.HTTP.Do(attemptReq)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			lastErr = err
			if err := d.backoff(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, fmt.Errorf("%s returned %d: %w", req.URL.Host, resp.StatusCode, metadata.ErrProviderAuth)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			if d.Limiter != nil {
				d.Limiter.RecordThrottle(retryAfter)
			}
			lastErr = fmt.Errorf("%s returned %d", req.URL.Host, resp.StatusCode)
			continue

		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%s returned %d", req.URL.Host, resp.StatusCode)
			if err := d.backoff(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if d.Limiter != nil {
			d.Limiter.RecordSuccess()
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, fmt.Errorf("%v: %w", lastErr, metadata.ErrProviderUnavailable)
}

// backoff sleeps before the next retry, doubling the delay per attempt.
// The final failed attempt returns immediately.
func (d *Doer) backoff(ctx context.Context, attempt int) error {
	if attempt >= d.Retries {
		return nil
	}
	return d.sleep(ctx, retryBaseDelay<<attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cloneRequest rewinds the body for retried requests.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
