package client

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

	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/worker"
)

// Client is a minimal HTTP client for the task queue wire API (§6),
// authenticating every call with the queue's own Basic-auth credentials.
// It is the SDK a worker binary (cmd/worker) or any other out-of-process
// caller uses instead of talking to Redis directly.
type Client struct {
	baseURL    string
	queueName  string
	password   string
	httpClient *http.Client
	headers    map[string]string
}

// New builds a Client bound to one queue's credentials.
func New(baseURL, queueName, password string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		queueName:  queueName,
		password:   password,
		httpClient: o.httpClient,
		headers:    o.headers,
	}
}

// APIError is returned for any non-2xx response, carrying the {detail}
// body the server always sends (respond.go's errorBody).
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("task queue API: %d: %s", e.StatusCode, e.Detail)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.queueName, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Detail: errBody.Detail}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// RegisterWorker registers a worker identity against the queue (§6 "POST
// /queues/me/workers").
func (c *Client) RegisterWorker(ctx context.Context, req *worker.RegisterRequest) (*worker.Worker, error) {
	var w worker.Worker
	if err := c.do(ctx, http.MethodPost, "/api/v1/queues/me/workers", req, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SubmitTask submits a new task, returning its assigned task_id.
func (c *Client) SubmitTask(ctx context.Context, req *task.SubmitRequest) (string, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/queues/me/tasks", req, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// GetTask retrieves one task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/queues/me/tasks/"+url.PathEscape(taskID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask cancels a PENDING task (§4.2).
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/queues/me/tasks/"+url.PathEscape(taskID), nil, nil)
}

// FetchOptions carries the optional §4.3 fetch parameters.
type FetchOptions struct {
	WorkerID       string
	StartHeartbeat bool
	RequiredFields []string
	ExtraFilter    map[string]interface{}
}

// FetchResult mirrors dispatch.FetchResult over the wire.
type FetchResult struct {
	Found bool       `json:"found"`
	Task  *task.Task `json:"task,omitempty"`
}

// FetchTask claims the next eligible PENDING task (§6 "POST
// /queues/me/tasks/next").
func (c *Client) FetchTask(ctx context.Context, opts *FetchOptions) (*FetchResult, error) {
	body := struct {
		WorkerID       string                 `json:"worker_id,omitempty"`
		StartHeartbeat bool                   `json:"start_heartbeat,omitempty"`
		RequiredFields []string               `json:"required_fields,omitempty"`
		ExtraFilter    map[string]interface{} `json:"extra_filter,omitempty"`
	}{}
	if opts != nil {
		body.WorkerID = opts.WorkerID
		body.StartHeartbeat = opts.StartHeartbeat
		body.RequiredFields = opts.RequiredFields
		body.ExtraFilter = opts.ExtraFilter
	}

	var result FetchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/queues/me/tasks/next", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReportStatus reports a terminal outcome for a RUNNING task (§4.5).
func (c *Client) ReportStatus(ctx context.Context, taskID string, status task.ReportableStatus, summaryUpdate map[string]interface{}) (*task.Task, error) {
	body := struct {
		Status        task.ReportableStatus  `json:"status"`
		SummaryUpdate map[string]interface{} `json:"summary_update,omitempty"`
	}{Status: status, SummaryUpdate: summaryUpdate}

	var t task.Task
	path := "/api/v1/queues/me/tasks/" + url.PathEscape(taskID) + "/status"
	if err := c.do(ctx, http.MethodPost, path, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SendHeartbeat refreshes a RUNNING task's heartbeat (§4.5).
func (c *Client) SendHeartbeat(ctx context.Context, taskID string) (bool, error) {
	var resp struct {
		OK bool `json:"ok"`
	}
	path := "/api/v1/queues/me/tasks/" + url.PathEscape(taskID) + "/heartbeat"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// ListTasksOptions carries the §6 list query parameters.
type ListTasksOptions struct {
	Offset      int
	Limit       int
	TaskID      string
	TaskName    string
	ExtraFilter map[string]interface{}
}

// ListTasksResult is one page of a task listing.
type ListTasksResult struct {
	Items []*task.Task `json:"items"`
	Total int          `json:"total"`
}

// ListTasks lists tasks in the authenticated queue.
func (c *Client) ListTasks(ctx context.Context, opts *ListTasksOptions) (*ListTasksResult, error) {
	q := url.Values{}
	if opts != nil {
		if opts.Offset != 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
		if opts.Limit != 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.TaskID != "" {
			q.Set("task_id", opts.TaskID)
		}
		if opts.TaskName != "" {
			q.Set("task_name", opts.TaskName)
		}
		if opts.ExtraFilter != nil {
			data, err := json.Marshal(opts.ExtraFilter)
			if err != nil {
				return nil, fmt.Errorf("encode extra_filter: %w", err)
			}
			q.Set("extra_filter", string(data))
		}
	}

	path := "/api/v1/queues/me/tasks"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result ListTasksResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResetWorker brings a CRASHED/FAILED worker back to ACTIVE (supplemented
// admin operation, see SPEC_FULL.md).
func (c *Client) ResetWorker(ctx context.Context, workerID string) (*worker.Worker, error) {
	var w worker.Worker
	path := "/api/v1/queues/me/workers/" + url.PathEscape(workerID) + "/reset"
	if err := c.do(ctx, http.MethodPost, path, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWorkerStatus drives the admin ACTIVE/SUSPENDED/FAILED transitions
// (§4.6).
func (c *Client) UpdateWorkerStatus(ctx context.Context, workerID string, status worker.AdminStatus) (*worker.Worker, error) {
	var w worker.Worker
	path := "/api/v1/queues/me/workers/" + url.PathEscape(workerID) + "/status"
	body := map[string]interface{}{"status": status}
	if err := c.do(ctx, http.MethodPost, path, body, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
