package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// retryableStatusCodes are the HTTP statuses worth retrying: rate limiting
// and gateway-class failures.
var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// Header alias tables. External APIs spell rate-limit headers inconsistently;
// lookups go through these explicit tables so the accepted spellings stay
// auditable.
var (
	retryAfterHeaderAliases = []string{
		"Retry-After",
		"X-Retry-After",
		"X-RateLimit-Retry-After",
		"RateLimit-Retry-After",
	}

	rateLimitRemainingHeaderAliases = []string{
		"X-RateLimit-Remaining",
		"X-Rate-Limit-Remaining",
		"RateLimit-Remaining",
	}

	rateLimitResetHeaderAliases = []string{
		"X-RateLimit-Reset",
		"X-Rate-Limit-Reset",
		"RateLimit-Reset",
	}
)

var statusCodeMessagePattern = regexp.MustCompile(`(?i)status(?:\s*code)?[:\s]+([1-5]\d{2})`)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatusCode() int
}

// HeaderCarrier is implemented by errors that retain the response headers of
// the failed request.
type HeaderCarrier interface {
	ResponseHeaders() http.Header
}

// Directive tells an external resumable-job scheduler how to continue a
// retryable operation.
type Directive struct {
	DelaySeconds int               `json:"delay_seconds"`
	Metadata     DirectiveMetadata `json:"metadata"`
	MaxRetry     int               `json:"max_retry"`
}

type DirectiveMetadata struct {
	RetryTracker TrackerModel `json:"retry_tracker"`
}

// RequestError classifies a failed network attempt and carries the retry
// budget tracker that produced it.
type RequestError struct {
	err     error
	tracker *Tracker
	backoff BackoffConfig

	now func() time.Time
}

// NewRequestError wraps an underlying transport or HTTP error.
func NewRequestError(err error, tracker *Tracker) *RequestError {
	return &RequestError{
		err:     err,
		tracker: tracker,
		now:     time.Now,
	}
}

func (e *RequestError) Error() string {
	return e.err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.err
}

func (e *RequestError) Tracker() *Tracker {
	return e.tracker
}

// StatusCode extracts an HTTP status code from the underlying error,
// best-effort across the shapes errors arrive in. Returns 0 when no code can
// be derived.
func (e *RequestError) StatusCode() int {
	var coder StatusCoder
	if errors.As(e.err, &coder) {
		return coder.HTTPStatusCode()
	}

	if match := statusCodeMessagePattern.FindStringSubmatch(e.err.Error()); match != nil {
		code, err := strconv.Atoi(match[1])
		if err == nil {
			return code
		}
	}

	return 0
}

func (e *RequestError) responseHeaders() http.Header {
	var carrier HeaderCarrier
	if errors.As(e.err, &carrier) {
		return carrier.ResponseHeaders()
	}

	return nil
}

// CanRetry reports whether the failure is worth another attempt: a retryable
// HTTP status, rate-limit phrasing in the message, or a known transient
// transport failure. Cancellation is never retryable.
func (e *RequestError) CanRetry() bool {
	if retryableStatusCodes[e.StatusCode()] {
		return true
	}

	if strings.Contains(strings.ToLower(e.err.Error()), "rate limit") {
		return true
	}

	return isTransientTransportError(e.err)
}

func isTransientTransportError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// ComputeRetry decides how long to wait before the next attempt. The explicit
// retry-after header wins, then rate-limit reset arithmetic, then jittered
// exponential backoff seeded by the tracker's try count. Failures that are not
// retryable return the original error unmodified.
func (e *RequestError) ComputeRetry() (*Directive, error) {
	headers := e.responseHeaders()

	if retryAfter, ok := retryAfterSeconds(headers, e.now()); ok {
		return e.directive(retryAfter + e.backoff.Delay(1)), nil
	}

	if remaining, ok := lookupHeaderInt(headers, rateLimitRemainingHeaderAliases); ok && remaining <= 0 {
		if reset, ok := lookupHeaderInt(headers, rateLimitResetHeaderAliases); ok {
			delay := reset - e.now().Unix()
			if delay < 0 {
				delay = 0
			}
			return e.directive(int(delay)), nil
		}
	}

	if e.CanRetry() {
		return e.directive(e.backoff.Delay(e.tracker.TotalTries())), nil
	}

	log.Error().
		Err(e.err).
		Int("status_code", e.StatusCode()).
		Int("total_tries", e.tracker.TotalTries()).
		Msg("request failure is not retryable")

	return nil, e.err
}

func (e *RequestError) directive(delaySeconds int) *Directive {
	return &Directive{
		DelaySeconds: delaySeconds,
		Metadata: DirectiveMetadata{
			RetryTracker: e.tracker.Model(),
		},
		MaxRetry: e.tracker.MaxTries(),
	}
}

// retryAfterSeconds resolves an explicit retry-after value, accepting both
// delta-seconds and HTTP-date forms.
func retryAfterSeconds(headers http.Header, now time.Time) (int, bool) {
	value, ok := lookupHeader(headers, retryAfterHeaderAliases)
	if !ok {
		return 0, false
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return seconds, true
	}

	if at, err := http.ParseTime(value); err == nil {
		seconds := int(math.Ceil(at.Sub(now).Seconds()))
		if seconds < 0 {
			seconds = 0
		}
		return seconds, true
	}

	return 0, false
}

func lookupHeaderInt(headers http.Header, aliases []string) (int64, bool) {
	value, ok := lookupHeader(headers, aliases)
	if !ok {
		return 0, false
	}

	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, false
	}

	return parsed, true
}

// lookupHeader checks each alias spelling, falling back to a case-insensitive
// scan for headers stored under non-canonical keys.
func lookupHeader(headers http.Header, aliases []string) (string, bool) {
	if headers == nil {
		return "", false
	}

	for _, alias := range aliases {
		if value := headers.Get(alias); value != "" {
			return value, true
		}
	}

	for key, values := range headers {
		for _, alias := range aliases {
			if strings.EqualFold(key, alias) && len(values) > 0 && values[0] != "" {
				return values[0], true
			}
		}
	}

	return "", false
}
