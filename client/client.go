// Package client is a typed HTTP client for the task ledger REST API.
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
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/taskledger/comms"
	"github.com/GoCodeAlone/taskledger/server/api"
	"github.com/GoCodeAlone/taskledger/task"
)

// DefaultServer is the address taskledgerd listens on by default.
const DefaultServer = "http://localhost:9090"

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the error code onto the task package's error kinds so
// callers can use errors.Is(err, task.ErrTaskNotFound) and friends.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case api.CodeInvalidContent:
		switch e.Reason {
		case api.ReasonEmpty:
			return task.ErrEmptyContent
		case api.ReasonTooLong:
			return task.ErrContentTooLong
		}
		return task.ErrInvalidContent
	case api.CodeTaskNotFound:
		return task.ErrTaskNotFound
	case api.CodeTaskDeleted:
		return task.ErrTaskDeleted
	case api.CodeAlreadyDeleted:
		return task.ErrAlreadyDeleted
	case api.CodeInvalidOwner:
		return task.ErrInvalidOwner
	}
	return nil
}

// Client holds HTTP client state.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New returns a Client for baseURL authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// do sends a JSON request and decodes a JSON response into out (may be nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		var er api.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Code != "" {
			apiErr.Code, apiErr.Reason, apiErr.Message = er.Code, er.Reason, er.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func taskPath(id uint64) string {
	return "/api/tasks/" + strconv.FormatUint(id, 10)
}

// --- Auth ---

// Login exchanges an owner's API key for a token and stores it on c.
func (c *Client) Login(ctx context.Context, owner, key string) (api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", api.TokenRequest{Owner: owner, APIKey: key}, &resp); err != nil {
		return api.TokenResponse{}, err
	}
	c.Token = resp.Token
	return resp, nil
}

// Me returns the owner the current token authenticates.
func (c *Client) Me(ctx context.Context) (string, error) {
	var resp map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return "", err
	}
	return resp["owner"], nil
}

// Status returns the server's status document.
func (c *Client) Status(ctx context.Context) (map[string]string, error) {
	var resp map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Mutations ---

// CreateTask appends a task to the caller's ledger.
func (c *Client) CreateTask(ctx context.Context, content string) (task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", api.ContentRequest{Content: content}, &t)
	return t, err
}

// ToggleTask flips a task's completion flag.
func (c *Client) ToggleTask(ctx context.Context, id uint64) (task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodPost, taskPath(id)+"/toggle", nil, &t)
	return t, err
}

// UpdateTask replaces a task's content.
func (c *Client) UpdateTask(ctx context.Context, id uint64, content string) (task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodPatch, taskPath(id), api.ContentRequest{Content: content}, &t)
	return t, err
}

// DeleteTask soft-deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// --- Queries ---

// GetTask returns the slot at id, which may be a tombstone.
func (c *Client) GetTask(ctx context.Context, id uint64) (task.Task, error) {
	var t task.Task
	err := c.do(ctx, http.MethodGet, taskPath(id), nil, &t)
	return t, err
}

// GetAllTasks returns every slot including tombstones. Use task.Live to
// drop them.
func (c *Client) GetAllTasks(ctx context.Context) ([]task.Task, error) {
	return c.list(ctx, "/api/tasks")
}

// GetCompletedTasks returns live completed tasks.
func (c *Client) GetCompletedTasks(ctx context.Context) ([]task.Task, error) {
	return c.list(ctx, "/api/tasks/completed")
}

// GetPendingTasks returns live pending tasks.
func (c *Client) GetPendingTasks(ctx context.Context) ([]task.Task, error) {
	return c.list(ctx, "/api/tasks/pending")
}

func (c *Client) list(ctx context.Context, path string) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetActiveTaskCount returns the caller's live task count.
func (c *Client) GetActiveTaskCount(ctx context.Context) (uint64, error) {
	var resp api.CountResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks/count", nil, &resp)
	return resp.Count, err
}

// GetTaskCountForUser returns another owner's live task count.
func (c *Client) GetTaskCountForUser(ctx context.Context, owner string) (uint64, error) {
	if strings.TrimSpace(owner) == "" {
		return 0, task.ErrInvalidOwner
	}
	var resp api.CountResponse
	err := c.do(ctx, http.MethodGet, "/api/owners/"+url.PathEscape(owner)+"/count", nil, &resp)
	return resp.Count, err
}

// Events returns up to limit of the caller's most recent events. A
// non-positive limit leaves the choice to the server.
func (c *Client) Events(ctx context.Context, limit int) ([]comms.Event, error) {
	var events []comms.Event
	path := "/api/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
