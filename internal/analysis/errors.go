package analysis

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrEmptyContent is returned when an entry has no analyzable content.
	ErrEmptyContent = errors.New("entry content is empty")

	// ErrMalformedAnalysis is returned when a provider payload fails
	// structural or semantic validation.
	ErrMalformedAnalysis = errors.New("malformed analysis payload")

	// ErrAnalysisDeferred signals that a fallback result was returned and the
	// entry should be queued for a later remote attempt. Callers receive it
	// alongside a usable AnalysisResult, similar to io.EOF with data.
	ErrAnalysisDeferred = errors.New("analysis deferred for remote retry")

	// ErrRemoteDisabled is returned by remote-only paths while the remote
	// backend is switched off.
	ErrRemoteDisabled = errors.New("remote analysis disabled")
)

// TransientError wraps a provider failure that is safe to retry.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitError signals provider throttling with an optional retry-after hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limited (retry after %s)", e.RetryAfter)
}

// IsTransient reports whether err should follow the retry path.
// Malformed payloads are treated identically to transient provider failures
// so the evolution engine never sees bad data.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, ErrMalformedAnalysis)
}

// AsRateLimit extracts a RateLimitError if err is one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// transientStatus reports whether an HTTP status from the provider is
// retryable.
func transientStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusRequestTimeout:
		return true
	}
	return false
}
