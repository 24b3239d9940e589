// Package providers defines the shared error shape and retry policy
// used by every external provider client (registrar, DNS, host,
// scraper, AI vendor).
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrorKind classifies a provider failure so callers can decide whether
// to retry, surface to the user, or treat as a bug.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindTimeout        ErrorKind = "timeout"
	KindAuth           ErrorKind = "auth"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindRateLimited    ErrorKind = "rate_limited"
	KindQuotaExceeded  ErrorKind = "quota_exceeded"
	KindModelNotAllowed ErrorKind = "model_not_allowed"
	KindUpstreamInvalid ErrorKind = "upstream_invalid"
	KindUpstreamFailure ErrorKind = "upstream_failure"
)

// Error is the uniform shape every provider client returns on failure.
type Error struct {
	Kind          ErrorKind
	HTTPStatus    int
	VendorMessage string
	Retryable     bool
	Cause         error

	// Used, Limit are populated on KindQuotaExceeded so callers can
	// surface a usage snapshot alongside the error.
	Used  int64
	Limit int64
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.VendorMessage, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.VendorMessage)
}

func (e *Error) Unwrap() error { return e.Cause }

// retryableKinds are the kinds eligible for the backoff retry policy.
// Auth, NotFound, Conflict, QuotaExceeded, and UpstreamInvalid are
// never retried: retrying them can't change the outcome.
var retryableKinds = map[ErrorKind]bool{
	KindNetwork:         true,
	KindTimeout:         true,
	KindRateLimited:     true,
	KindUpstreamFailure: true,
}

// IsRetryable reports whether err (if it is, or wraps, a *Error) should
// be retried by Retry.
func IsRetryable(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Retryable {
		return true
	}
	return retryableKinds[pe.Kind]
}

// Retry runs fn with a capped exponential backoff: 500ms initial
// interval, factor 2, +/-20% jitter, at most 4 attempts, never
// exceeding 30s of total elapsed time. fn's error is only retried when
// IsRetryable reports true; any other error returns immediately.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 30 * time.Second

	bctx := backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)

	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bctx)
}
