package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Response is a raw API response with its decoded body on success.
type Response[T any] struct {
	StatusCode int
	Body       []byte
	JSON       *T
}

// Client talks to the countdown HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL, e.g. http://localhost:8080/api/v1.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host are required", baseURL)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// ListTimers returns every timer.
func (c *Client) ListTimers(ctx context.Context) (*Response[[]Timer], error) {
	return do[[]Timer](ctx, c, http.MethodGet, "/timers", nil)
}

// GetTimer returns one timer by name.
func (c *Client) GetTimer(ctx context.Context, name string) (*Response[Timer], error) {
	return do[Timer](ctx, c, http.MethodGet, "/timers/"+url.PathEscape(name), nil)
}

// CreateTimer adds a timer.
func (c *Client) CreateTimer(ctx context.Context, body NewTimer) (*Response[Timer], error) {
	return do[Timer](ctx, c, http.MethodPost, "/timers", body)
}

// SetLoop changes the loop flag of a timer.
func (c *Client) SetLoop(ctx context.Context, name string, loop bool) (*Response[Timer], error) {
	return do[Timer](ctx, c, http.MethodPut, "/timers/"+url.PathEscape(name)+"/loop", LoopUpdate{Loop: &loop})
}

// DeleteTimer removes a timer. Deleting an unknown timer succeeds.
func (c *Client) DeleteTimer(ctx context.Context, name string) (*Response[struct{}], error) {
	return do[struct{}](ctx, c, http.MethodDelete, "/timers/"+url.PathEscape(name), nil)
}

// ListEvents returns up to limit recent expiries, newest first.
func (c *Client) ListEvents(ctx context.Context, limit int) (*Response[[]Expiry], error) {
	path := "/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return do[[]Expiry](ctx, c, http.MethodGet, path, nil)
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (*Response[T], error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &Response[T]{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && len(respBody) > 0 {
		var v T
		err = json.Unmarshal(respBody, &v)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		out.JSON = &v
	}

	return out, nil
}
