// Package client is a typed Go client for the problem administration API.
//
// A RequestClient performs the HTTP round trips. It is constructed
// explicitly and handed to the resource APIs, so a process may talk to
// several backends at once:
//
//	rc, err := client.NewRequestClient("http://127.0.0.1:8000", client.WithHeader("Authorization", "Bearer "+token))
//	problems := client.NewProblemAPI(rc)
//	list, err := problems.GetProblemList(ctx)
//
// Errors are never handled here. Transport failures, non-2xx responses and
// decoding failures are returned to the caller unchanged.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	contentTypeJSON = "application/json"
	maxErrorBody    = 64 << 10
)

// ErrNotFound matches a *ResponseError with status 404 via errors.Is.
var ErrNotFound = errors.New("resource not found")

// Requester is the request layer used by the resource APIs. Out must be a
// pointer the response body is decoded into, or nil to discard it.
type Requester interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body any, out any, opts ...RequestOption) error
}

// RequestClient is the default Requester backed by net/http.
// It is safe for concurrent use.
type RequestClient struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// Option configures a RequestClient.
type Option func(*RequestClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RequestClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the overall timeout of each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *RequestClient) {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
}

// WithHeader adds a static header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *RequestClient) {
		c.headers.Add(key, value)
	}
}

// NewRequestClient constructs a client for the API rooted at baseURL.
// The base URL may carry a path prefix, e.g. the dev proxy's /basic-api.
func NewRequestClient(baseURL string, opts ...Option) (*RequestClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", baseURL)
	}

	c := &RequestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestOption adjusts a single request.
type RequestOption func(*http.Request)

// WithContentType overrides the Content-Type of a request body.
func WithContentType(contentType string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Content-Type", contentType)
	}
}

// Get issues a GET request without a body.
func (c *RequestClient) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request. An io.Reader body is streamed as is and
// should come with WithContentType; any other body is encoded as JSON.
func (c *RequestClient) Post(ctx context.Context, path string, body any, out any, opts ...RequestOption) error {
	var reader io.Reader
	contentType := contentTypeJSON
	switch b := body.(type) {
	case nil:
		contentType = ""
	case io.Reader:
		reader = b
		contentType = ""
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	return c.do(ctx, http.MethodPost, path, reader, out, func(req *http.Request) {
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for _, opt := range opts {
			opt(req)
		}
	})
}

func (c *RequestClient) do(ctx context.Context, method, path string, body io.Reader, out any, opts ...RequestOption) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", contentTypeJSON)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ResponseError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// ResponseError is returned for any response with a non-2xx status.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *ResponseError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
}

// Is reports whether the error matches ErrNotFound.
func (e *ResponseError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Message extracts the server supplied message from an {"error": ...} or
// {"detail": ...} body, falling back to the raw body text.
func (e *ResponseError) Message() string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(e.Body))
}
