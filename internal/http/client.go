// Package http provides the HTTP dispatch layer shared by all API
// operations: authentication header injection, retry handling, status
// classification logging, and extraction of field access requests from
// permission-denied responses.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/schaubda/psdatahelper/internal/auth"
	"github.com/schaubda/psdatahelper/internal/constants"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// Request describes a single API call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string

	// ReadOnly marks the call as a read, so that access requests extracted
	// from a 403 response ask for ViewOnly rather than FullAccess.
	ReadOnly bool

	// SuppressLog skips per-request error logging. Bulk operations set it
	// after the first failing row so a thousand-row import does not produce
	// a thousand identical log lines.
	SuppressLog bool
}

// Response is the outcome of a dispatched request. Error statuses are not
// turned into Go errors here; callers inspect StatusCode. Do returns an
// error only when no response was obtained at all.
type Response struct {
	StatusCode     int
	Body           []byte
	AccessRequests []string
}

// Success reports whether the response carries a 2xx status.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client dispatches requests against a single API server.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	httpClient   *retryablehttp.Client
	logger       psdata.Logger
	userAgent    string
	debug        bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for status classification and debug output.
func WithLogger(logger psdata.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig configures the retry behavior.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// NewClient creates a new HTTP client for the given base URL. The token
// manager may be nil, in which case requests go out unauthenticated.
//
// Retries are disabled by default; use WithRetryConfig to opt in.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenManager: tokenManager,
		httpClient:   retryClient,
		userAgent:    "psdatahelper/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// CloseIdleConnections closes any idle connections held by the transport.
func (c *Client) CloseIdleConnections() {
	c.httpClient.HTTPClient.CloseIdleConnections()
}

// Do executes a request and returns the response. An error is returned only
// when the request could not be dispatched or no response was received;
// HTTP error statuses come back as a Response with the status logged and,
// for 403, any field access requests extracted from the body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader

	var bodyBytes []byte

	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		bodyBytes = data
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get access token: %w", err)
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
			"body":   string(bodyBytes),
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status": httpResp.StatusCode,
			"body":   string(respBody),
		})
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
	}

	if httpResp.StatusCode == http.StatusForbidden {
		resp.AccessRequests = c.extractAccessRequests(req, respBody)
	} else {
		c.logStatus(req, resp)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query, ReadOnly: true})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// statusMessages maps the error statuses the API is known to return to the
// log line describing them.
var statusMessages = map[int]string{
	http.StatusBadRequest:           "Bad request, check your query for errors",
	http.StatusUnauthorized:         "Unauthorized, check your plugin credentials",
	http.StatusNotFound:             "Resource not found",
	http.StatusMethodNotAllowed:     "Method not allowed for this resource",
	http.StatusConflict:             "Conflict with the current state of the resource",
	http.StatusUnsupportedMediaType: "Unsupported media type",
	http.StatusInternalServerError:  "Internal server error",
	509:                             "Request throttled, resource limit exceeded",
}

func (c *Client) logStatus(req *Request, resp *Response) {
	if c.logger == nil || resp.Success() || req.SuppressLog {
		return
	}

	message, ok := statusMessages[resp.StatusCode]
	if !ok {
		message = "Unexpected response status"
	}

	c.logger.Error(message, map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
		"status": resp.StatusCode,
		"body":   string(resp.Body),
	})
}

type jsonAccessError struct {
	Errors []struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
	} `json:"errors"`
}

type xmlAccessError struct {
	XMLName xml.Name `xml:"errors"`
	Fields  []string `xml:"field"`
}

// extractAccessRequests parses a 403 response body into the sorted, deduped
// list of <field .../> directives an administrator must add to the plugin's
// access definition. A body that cannot be parsed yields an empty list.
func (c *Client) extractAccessRequests(req *Request, body []byte) []string {
	access := psdata.AccessFullAccess
	if req.ReadOnly {
		access = psdata.AccessViewOnly
	}

	var pairs []psdata.AccessRequest

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		var parsed xmlAccessError

		if err := xml.Unmarshal(trimmed, &parsed); err != nil {
			c.logParseFailure(req, err)

			return []string{}
		}

		for _, field := range parsed.Fields {
			table, column, found := strings.Cut(field, ".")
			if !found {
				continue
			}

			pairs = append(pairs, psdata.AccessRequest{Table: table, Field: column, Access: access})
		}
	} else {
		var parsed jsonAccessError

		if err := json.Unmarshal(trimmed, &parsed); err != nil {
			c.logParseFailure(req, err)

			return []string{}
		}

		for _, entry := range parsed.Errors {
			if entry.Resource == "" || entry.Field == "" {
				continue
			}

			pairs = append(pairs, psdata.AccessRequest{Table: entry.Resource, Field: entry.Field, Access: access})
		}
	}

	seen := make(map[string]struct{}, len(pairs))
	requests := make([]string, 0, len(pairs))

	for _, pair := range pairs {
		directive := pair.String()
		if _, dup := seen[directive]; dup {
			continue
		}

		seen[directive] = struct{}{}

		requests = append(requests, directive)
	}

	sort.Strings(requests)

	if len(requests) > 0 && c.logger != nil && !req.SuppressLog {
		c.logger.Error("Access denied, add the following to your plugin's access request definition",
			map[string]interface{}{
				"path":   req.Path,
				"fields": strings.Join(requests, "\n"),
			})
	}

	return requests
}

func (c *Client) logParseFailure(req *Request, err error) {
	if c.logger == nil || req.SuppressLog {
		return
	}

	c.logger.Error("Access denied, and the response could not be parsed for field access requests",
		map[string]interface{}{
			"path":  req.Path,
			"error": err.Error(),
		})
}
