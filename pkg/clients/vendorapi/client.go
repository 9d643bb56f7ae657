package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/connectry/connectry/pkg/retry"
)

// Client issues JSON HTTP calls against one external API base URL with a
// fixed ambient header set. Every network attempt goes through the resilient
// request engine, so failures come back classified and budget-aware.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	retriever  *retry.Retriever[*Request, *http.Response]
}

// Request describes one outbound call.
type Request struct {
	Method string
	Path   string
	Body   interface{}
}

// NewClient creates a new vendor API client with the given options. The
// tracker bounds the retry budget shared by all calls of this invocation.
func NewClient(tracker *retry.Tracker, options ...ClientOption) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	client := &Client{
		config:     config,
		httpClient: httpClient,
	}

	client.retriever = retry.NewRetriever(tracker, client.send)

	return client
}

// Do performs a request and returns the raw response. The caller owns the
// response body. Non-success statuses surface as a classified failure
// wrapping *Error.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	return c.retriever.Retrieve(ctx, req)
}

// GetJSON performs a GET request and decodes the JSON response into result
func (c *Client) GetJSON(ctx context.Context, path string, result interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// PostJSON performs a POST request with a JSON body and decodes the response
func (c *Client) PostJSON(ctx context.Context, path string, body, result interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// PatchJSON performs a PATCH request with a JSON body and decodes the response
func (c *Client) PatchJSON(ctx context.Context, path string, body, result interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, result)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	resp, err := c.Do(ctx, &Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if result == nil || len(responseBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(responseBody, result); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}

	return nil
}

// send performs one network attempt. Non-2xx responses are converted into
// *Error carrying status, headers, and URL so the engine can classify them.
func (c *Client) send(ctx context.Context, req *Request) (*http.Response, error) {
	var requestBody io.Reader

	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		requestBody = bytes.NewBuffer(bodyBytes)
	}

	url := c.config.BaseURL + req.Path

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	if c.config.TokenProvider != nil {
		token, err := c.config.TokenProvider.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			Body:       string(body),
			URL:        url,
			Headers:    resp.Header,
		}
	}

	return resp, nil
}
