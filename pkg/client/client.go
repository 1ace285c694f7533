// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client for the EasyRAG host's command API.
//
// The host listens on a loopback address and protects every command with a
// bearer token that it writes to its data directory on first start.
//
//	c := client.New("http://127.0.0.1:8765", client.WithToken(token))
//
//	cfg, err := c.Config.Get(ctx)
//	st, err := c.Backend.Restart(ctx)
//
// API errors are returned as *APIError values:
//
//	_, err := c.Config.Update(ctx, map[string]interface{}{"apiPort": "x"})
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == client.CodeValidation {
//	    ...
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an EasyRAG host API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// Config reads and saves the persisted configuration.
	Config *ConfigClient

	// Dialog opens native dialogs on the host.
	Dialog *DialogClient

	// Backend inspects and restarts the backend process.
	Backend *BackendClient

	// Events reads the host's event history.
	Events *EventClient

	// Session issues and redeems UI launch tickets.
	Session *SessionClient
}

// Option configures a [Client].
type Option func(*Client)

// New creates a client for the host at baseURL. A trailing slash is removed.
// The default HTTP timeout is 30 seconds.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Config = &ConfigClient{c: c}
	c.Dialog = &DialogClient{c: c}
	c.Backend = &BackendClient{c: c}
	c.Events = &EventClient{c: c}
	c.Session = &SessionClient{c: c}

	return c
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests. Directory
// selection waits on the user, so callers using it may want a longer one.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Capabilities returns the commands this client is allowed to invoke.
func (c *Client) Capabilities(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, "/api/v1/capabilities")
	if err != nil {
		return nil, err
	}

	var commands []string
	if err := json.Unmarshal(data, &commands); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities: %w", err)
	}
	return commands, nil
}

// Invoke runs a named command with an optional JSON argument and returns the
// raw result.
func (c *Client) Invoke(ctx context.Context, command string, arg interface{}) (json.RawMessage, error) {
	path := "/api/v1/invoke/" + url.PathEscape(command)
	if arg == nil {
		return c.post(ctx, path)
	}
	return c.sendJSON(ctx, http.MethodPost, path, arg)
}

// Error codes returned by the host.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeBadRequest     = "BAD_REQUEST"
	CodeValidation     = "VALIDATION_ERROR"
	CodeLaunch         = "LAUNCH_ERROR"
	CodeForbidden      = "FORBIDDEN"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeUnavailable    = "UNAVAILABLE"
)

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the host.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`

	// Code is a machine-readable error code such as [CodeValidation].
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	// Validation errors list the offending fields under "fields".
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Fields returns the rejected fields of a validation error, mapped to the
// reason each was rejected.
func (e *APIError) Fields() map[string]string {
	raw, ok := e.Details["fields"].(map[string]interface{})
	if !ok {
		return nil
	}
	fields := make(map[string]string, len(raw))
	for name, msg := range raw {
		fields[name], _ = msg.(string)
	}
	return fields
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data))
}

// do performs an HTTP request and parses the response. When the host
// reports an error alongside data, both are returned.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	if apiResp.Error != nil {
		apiResp.Error.StatusCode = resp.StatusCode
		return apiResp.Data, apiResp.Error
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return apiResp.Data, nil
}

// isNull reports whether data is absent or a JSON null.
func isNull(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
