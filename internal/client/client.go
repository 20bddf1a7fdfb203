package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joescharf/pir/internal/models"
)

// DefaultBaseURL is where the backend listens unless configured otherwise.
const DefaultBaseURL = "http://localhost:8000"

// HTTPClient is the subset of *http.Client used here (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Health is the backend health check payload.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks to the issue REST API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
}

// New creates a client for baseURL. A nil httpClient uses a plain
// *http.Client with no timeout.
func New(baseURL string, httpClient HTTPClient) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ListIssues fetches every issue in backend order.
func (c *Client) ListIssues(ctx context.Context) ([]models.Issue, error) {
	var issues []models.Issue
	if err := c.do(ctx, http.MethodGet, "/api/issues", nil, &issues); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	var issue models.Issue
	if err := c.do(ctx, http.MethodGet, issuePath(id), nil, &issue); err != nil {
		return nil, fmt.Errorf("get issue %d: %w", id, err)
	}
	return &issue, nil
}

// CreateIssue posts a new issue. Any id on the input is dropped.
func (c *Client) CreateIssue(ctx context.Context, issue models.Issue) (*models.Issue, error) {
	issue.ID = nil
	var created models.Issue
	if err := c.do(ctx, http.MethodPost, "/api/issues", issue, &created); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return &created, nil
}

// UpdateIssue replaces the issue stored under id with the full record.
func (c *Client) UpdateIssue(ctx context.Context, id int64, issue models.Issue) (*models.Issue, error) {
	var updated models.Issue
	if err := c.do(ctx, http.MethodPut, issuePath(id), issue, &updated); err != nil {
		return nil, fmt.Errorf("update issue %d: %w", id, err)
	}
	return &updated, nil
}

// DeleteIssue removes an issue.
func (c *Client) DeleteIssue(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, issuePath(id), nil, nil); err != nil {
		return fmt.Errorf("delete issue %d: %w", id, err)
	}
	return nil
}

// Health calls the backend health check.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return &h, nil
}

func issuePath(id int64) string {
	return fmt.Sprintf("/api/issues/%d", id)
}

// do performs one request. body is JSON-encoded when non-nil; result is
// decoded from the response when non-nil. Any 2xx status is success.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// Writes may answer 2xx with no body; reads must carry one.
	err = json.NewDecoder(resp.Body).Decode(result)
	if errors.Is(err, io.EOF) && method != http.MethodGet {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
