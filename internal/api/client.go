// Package api calls the business API on behalf of the signed-in user.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int) *APIError {
	return &APIError{Status: status, Message: "API Error: " + http.StatusText(status)}
}

// TokenSource supplies the bearer credential. auth.Authenticator satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, bool)
}

// IsDemoMode reports whether no business API is configured.
func IsDemoMode(baseURL string) bool {
	return strings.TrimSpace(baseURL) == ""
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource attaches "Authorization: Bearer" to requests when a token is available.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DemoMode reports whether the client has no base URL.
func (c *Client) DemoMode() bool {
	return IsDemoMode(c.baseURL)
}

// Request customizes a FetchJSON call. A nil Request is a plain GET.
type Request struct {
	Method string
	// Body is encoded as JSON when non-nil.
	Body   any
	Header http.Header
}

// FetchJSON performs the request and decodes the JSON response into T.
// Paths are appended to the base URL; with no base URL they are used as given.
func FetchJSON[T any](ctx context.Context, c *Client, path string, req *Request) (T, error) {
	var out T

	if req == nil {
		req = &Request{}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return out, fmt.Errorf("api: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return out, fmt.Errorf("api: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token, ok := c.tokens.AccessToken(ctx); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	// Caller headers win, including over the bearer.
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return out, newAPIError(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("api: decode response: %w", err)
	}
	return out, nil
}

func (c *Client) url(path string) string {
	if c.baseURL == "" {
		return path
	}
	return c.baseURL + path
}
