// Package fetch is the single choke point for outbound network access. It
// wraps HTTP calls with a bounded exponential-backoff retry policy and a
// persistent response cache, and provides HTML-to-text extraction for job
// posting pages.
package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; gitcv/1.0)"

// Options configures request behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Result holds the response from a fetch, either fresh or cached.
type Result struct {
	URL         string
	Body        []byte
	Text        string
	ContentType string
	StatusCode  int
	Header      http.Header
	FromCache   bool
}

// HTML returns the body as a string.
func (r *Result) HTML() string {
	return string(r.Body)
}

// RateLimit reports the upstream rate-limit budget advertised on the
// response, when present. Cached results carry no headers and report ok=false.
func (r *Result) RateLimit() (remaining int, reset time.Time, ok bool) {
	if r.Header == nil {
		return 0, time.Time{}, false
	}
	rem := r.Header.Get("X-RateLimit-Remaining")
	if rem == "" {
		return 0, time.Time{}, false
	}
	remaining, err := strconv.Atoi(rem)
	if err != nil {
		return 0, time.Time{}, false
	}
	if ts, err := strconv.ParseInt(r.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		reset = time.Unix(ts, 0)
	}
	return remaining, reset, true
}

// Error represents a failed fetch. Network-level failures and 429/5xx
// statuses are transient; other statuses are permanent.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		// Network-level failure, no response received.
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RateLimitError signals an exhausted upstream quota. It carries the
// upstream hint for when the budget recovers so callers can surface it
// instead of silently truncating work.
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
	Remaining  int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited on %s: retry after %s", e.URL, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("rate limited on %s", e.URL)
}

// IsRateLimited reports whether err is (or wraps) a rate-limit failure.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Transient is the retryable-predicate used with Policy for network calls.
// Exhausted-quota errors are not transient; they propagate with their
// recovery hint.
func Transient(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}

// parseRetryAfter interprets a Retry-After header value, either delta
// seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// retryAfterHint derives a recovery hint from rate-limit response headers.
func retryAfterHint(h http.Header) time.Duration {
	if d := parseRetryAfter(h.Get("Retry-After")); d > 0 {
		return d
	}
	if ts, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if d := time.Until(time.Unix(ts, 0)); d > 0 {
			return d
		}
	}
	return 0
}
