// Package spiral is a Go client for the Spiral journal service API.
package spiral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// APIError is a decoded RFC 7807 problem response from the service.
type APIError struct {
	Status int          `json:"status"`
	Title  string       `json:"title"`
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%s (%d): %s (%d field errors)", e.Title, e.Status, e.Detail, len(e.Errors))
	}
	return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
}

// Client is the Spiral API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a Spiral client for the given base URL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks service connectivity and reports its status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit submits a journal entry for analysis.
func (c *Client) Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	var out SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEntry fetches one journal entry by ID.
func (c *Client) GetEntry(ctx context.Context, id string) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodGet, "/api/v1/entries/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEntries fetches entries newest first. limit <= 0 uses the server default.
func (c *Client) ListEntries(ctx context.Context, limit int) ([]Entry, error) {
	path := "/api/v1/entries"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out struct {
		Entries []Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ListCores fetches every emotional core.
func (c *Client) ListCores(ctx context.Context) ([]Core, error) {
	var out struct {
		Cores []Core `json:"cores"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/cores", nil, &out); err != nil {
		return nil, err
	}
	return out.Cores, nil
}

// GetCore fetches one core by ID.
func (c *Client) GetCore(ctx context.Context, id string) (*Core, error) {
	var out Core
	if err := c.do(ctx, http.MethodGet, "/api/v1/cores/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenMetrics fetches the analyzer usage counters.
func (c *Client) TokenMetrics(ctx context.Context) (*TokenMetrics, error) {
	var out TokenMetrics
	if err := c.do(ctx, http.MethodGet, "/api/v1/metrics/tokens", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAnalysisEnabled toggles the service's remote analysis backend.
func (c *Client) SetAnalysisEnabled(ctx context.Context, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.do(ctx, http.MethodPut, "/api/v1/settings/analysis", body, nil)
}

// ListQueue fetches the offline queue, abandoned items included.
func (c *Client) ListQueue(ctx context.Context) ([]QueueItem, error) {
	var out struct {
		Queue []QueueItem `json:"queue"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/queue", nil, &out); err != nil {
		return nil, err
	}
	return out.Queue, nil
}

// DrainQueue triggers a manual queue drain cycle.
func (c *Client) DrainQueue(ctx context.Context) (*DrainResult, error) {
	var out DrainResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/queue/drain", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends an authenticated request and decodes the response into out.
// Non-2xx responses decode the problem body into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &reqBody)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
