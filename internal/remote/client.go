package remote

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

	"github.com/dnguyen/tasktick/internal/model"
)

// Client is a thin HTTP client for the tasktick REST backend. It
// handles Bearer token authentication, JSON marshaling, and automatic
// retry with exponential backoff on HTTP 429 and 5xx responses.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a backend client. The baseURL should be the root
// URL of the API (e.g., https://api.tasktick.example.com). The token is
// an access token used for Bearer authentication. An empty baseURL
// produces an unconfigured client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// Configured reports whether the client has a backend to talk to.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

// FetchAll retrieves every task belonging to ownerID.
func (c *Client) FetchAll(ctx context.Context, ownerID string) ([]model.Task, error) {
	path := "/v1/tasks?owner_id=" + url.QueryEscape(ownerID)

	var payload struct {
		Tasks []wireTask `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(payload.Tasks))
	for _, w := range payload.Tasks {
		tasks = append(tasks, fromWire(w))
	}
	return tasks, nil
}

// Create pushes a new task and returns the stored copy.
func (c *Client) Create(ctx context.Context, ownerID string, t model.Task) (*model.Task, error) {
	var echoed wireTask
	if err := c.do(ctx, http.MethodPost, "/v1/tasks", toWire(t, ownerID), &echoed); err != nil {
		return nil, fmt.Errorf("creating task %s: %w", t.ID, err)
	}
	stored := fromWire(echoed)
	return &stored, nil
}

// Update pushes local edits to an existing task and returns the stored copy.
func (c *Client) Update(ctx context.Context, t model.Task) (*model.Task, error) {
	path := "/v1/tasks/" + url.PathEscape(t.ID)

	var echoed wireTask
	if err := c.do(ctx, http.MethodPut, path, toWire(t, ""), &echoed); err != nil {
		return nil, fmt.Errorf("updating task %s: %w", t.ID, err)
	}
	stored := fromWire(echoed)
	return &stored, nil
}

// Delete removes a task remotely. A 404 counts as success: the task is
// gone either way.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/v1/tasks/" + url.PathEscape(id)

	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// statusError carries an unexpected HTTP status and response body.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Rebuild the body reader on retries since it was consumed.
		if attempt > 0 && body != nil {
			data, _ := json.Marshal(body)
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return &AuthError{Message: "access token rejected"}

		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= 500:
			lastErr = &statusError{
				status: resp.StatusCode,
				body:   truncate(string(respBody), 200),
			}
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return err
				}
				continue
			}
			return lastErr

		case resp.StatusCode >= 400:
			return &statusError{
				status: resp.StatusCode,
				body:   truncate(string(respBody), 200),
			}
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshaling response: %w", err)
			}
		}
		return nil
	}

	return lastErr
}

// backoff returns the delay before retry attempt n: 1s, 2s, 4s, ...
func backoff(attempt int) time.Duration {
	return time.Second << attempt
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
