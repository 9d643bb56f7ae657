package vendorapi

import (
	"context"
	"net/http"
	"time"
)

// TokenProvider hands out a bearer token for outgoing requests. Wired to the
// token lifecycle manager so every call carries a valid credential.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a plain function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// ClientOption represents an option for configuring the vendor API client
type ClientOption func(*ClientConfig)

// ClientConfig holds the configuration for the vendor API client
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	UserAgent      string
	TokenProvider  TokenProvider
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout: 30 * time.Second,
		DefaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		UserAgent: "connectry-go-sdk/1.0.0",
	}
}

// WithBaseURL sets the base URL of the external API
func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithHeader adds a default header to all requests
func WithHeader(key, value string) ClientOption {
	return func(c *ClientConfig) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(map[string]string)
		}
		c.DefaultHeaders[key] = value
	}
}

// WithHeaders sets multiple default headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *ClientConfig) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(map[string]string)
		}
		for key, value := range headers {
			c.DefaultHeaders[key] = value
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = httpClient
	}
}

// WithUserAgent sets a custom user agent
func WithUserAgent(userAgent string) ClientOption {
	return func(c *ClientConfig) {
		c.UserAgent = userAgent
	}
}

// WithTokenProvider sets the bearer token source for outgoing requests
func WithTokenProvider(provider TokenProvider) ClientOption {
	return func(c *ClientConfig) {
		c.TokenProvider = provider
	}
}
