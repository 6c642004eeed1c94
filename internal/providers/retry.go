package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingCredential is returned when a provider has no API key.
var ErrMissingCredential = errors.New("missing API credential")

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// statusCode extracts an HTTP status from provider errors.
func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// IsAuthError reports whether err is an authentication or authorization
// failure, including a missing credential.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrMissingCredential) {
		return true
	}
	code := statusCode(err)
	return code == 401 || code == 403
}

// IsTransient reports whether err is worth retrying: rate limiting, server
// errors and network failures. Caller cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch code := statusCode(err); {
	case code == 429, code == 408:
		return true
	case code >= 500:
		return true
	case code != 0:
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Policy bounds retries with capped exponential backoff.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy retries three times starting at one second.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Delay returns the wait before retry number attempt (zero based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && (p.MaxDelay <= 0 || d < p.MaxDelay); i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// RetryFunc is notified before each retry.
type RetryFunc func(attempt int, err error, wait time.Duration)

// Do calls fn until it succeeds, returns a non-transient error, or the
// retry budget is spent. A Retry-After hint longer than the computed delay
// is honored up to MaxDelay.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry RetryFunc) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == p.MaxRetries {
			return lastErr
		}

		wait := p.Delay(attempt)
		var se *StatusError
		if errors.As(lastErr, &se) && se.RetryAfter > wait {
			wait = se.RetryAfter
			if p.MaxDelay > 0 {
				wait = min(wait, p.MaxDelay)
			}
		}
		if onRetry != nil {
			onRetry(attempt+1, lastErr, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return lastErr
}
