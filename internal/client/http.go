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

	"github.com/google/uuid"

	"github.com/realtime-sync/syncdemo/internal/livesync"
)

// RequestIDHeader carries a per-request id the server echoes in its logs.
const RequestIDHeader = "X-Request-ID"

// APIError is a non-2xx reply.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 reply.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// HTTPClient makes REST calls to the demo server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8000").
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server base URL.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// CreateJob sends POST /jobs.
func (c *HTTPClient) CreateJob(ctx context.Context, items []string) (*JobCreated, error) {
	if items == nil {
		items = []string{}
	}
	var out JobCreated
	if err := c.post(ctx, "/jobs", JobRequest{Items: items}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobStatus fetches /jobs/{id}/status.
func (c *HTTPClient) JobStatus(ctx context.Context, jobID string) (livesync.StatusUpdate, error) {
	var st livesync.StatusUpdate
	err := c.get(ctx, "/jobs/"+url.PathEscape(jobID)+"/status", &st)
	return st, err
}

// FetchStatus implements livesync.StatusFetcher.
func (c *HTTPClient) FetchStatus(ctx context.Context, jobID string) (livesync.StatusUpdate, error) {
	return c.JobStatus(ctx, jobID)
}

// ListJobs fetches /jobs.
func (c *HTTPClient) ListJobs(ctx context.Context) (map[string]livesync.StatusUpdate, error) {
	var out JobList
	if err := c.get(ctx, "/jobs", &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Dashboard fetches /dashboard.
func (c *HTTPClient) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.get(ctx, "/dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LogStreamURL is the URL of the log feed.
func (c *HTTPClient) LogStreamURL() string { return c.baseURL + "/logs/stream" }

// MetricStreamURL is the URL of the monitoring feed.
func (c *HTTPClient) MetricStreamURL() string { return c.baseURL + "/monitoring/stream" }

// ChatURL is the websocket URL of the chat room for clientID.
func (c *HTTPClient) ChatURL(clientID string) string {
	return WebsocketBase(c.baseURL) + "/ws/chat/" + url.PathEscape(clientID)
}

// WebsocketBase swaps an http(s) base URL for its ws(s) equivalent.
func WebsocketBase(httpBase string) string {
	switch {
	case strings.HasPrefix(httpBase, "https://"):
		return "wss://" + strings.TrimPrefix(httpBase, "https://")
	case strings.HasPrefix(httpBase, "http://"):
		return "ws://" + strings.TrimPrefix(httpBase, "http://")
	}
	return httpBase
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTPClient) do(req *http.Request, path string, out interface{}) error {
	req.Header.Set(RequestIDHeader, uuid.NewString())
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Method: req.Method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", req.Method, path, err)
	}
	return nil
}
