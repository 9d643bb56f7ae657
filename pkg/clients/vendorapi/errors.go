package vendorapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse marks a successful HTTP response whose body is not
// valid JSON. That is a contract violation on the vendor side, not a
// transient fault, so it is never retried.
var ErrMalformedResponse = errors.New("malformed response body")

// Error represents an error response from an external vendor API
type Error struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Body       string      `json:"body,omitempty"`
	URL        string      `json:"url,omitempty"`
	Headers    http.Header `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("vendorapi: %s (status: %d, url: %s)", e.Message, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("vendorapi: %s (status: %d)", e.Message, e.StatusCode)
}

// HTTPStatusCode exposes the status code for failure classification
func (e *Error) HTTPStatusCode() int {
	return e.StatusCode
}

// ResponseHeaders exposes the response headers for retry-after inspection
func (e *Error) ResponseHeaders() http.Header {
	return e.Headers
}

// IsRetryable returns true if the error might be resolved by retrying
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsClientError returns true if the error is due to client input
func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError returns true if the error is due to server issues
func (e *Error) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsAuthError returns true if the error is related to authentication
func (e *Error) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsRateLimited returns true if the error is due to rate limiting
func (e *Error) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsNotFound returns true if the resource was not found
func (e *Error) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsVendorAPIError checks if an error is a vendor API error
func IsVendorAPIError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if e, ok := IsVendorAPIError(err); ok {
		return e.IsAuthError()
	}
	return false
}

// IsMalformedResponse checks if an error is a malformed-response error
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
