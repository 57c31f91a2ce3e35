package enviroplansdk

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

// Client is a minimal EnviroPlan HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Timeout:     10 * time.Second,
	}
}

// Audit is the supervisory review attached to evidence.
type Audit struct {
	Status    string  `json:"status"`
	Comment   string  `json:"comment,omitempty"`
	AuditedBy *string `json:"audited_by,omitempty"`
	AuditedAt *string `json:"audited_at,omitempty"`
}

// Activity represents the API activity model.
type Activity struct {
	ID                string  `json:"id"`
	Date              string  `json:"date"`
	ProcessID         string  `json:"process_id"`
	TaskID            string  `json:"task_id"`
	Resources         string  `json:"resources,omitempty"`
	PersonCount       int     `json:"person_count"`
	AssignedPersonnel string  `json:"assigned_personnel,omitempty"`
	Status            string  `json:"status"`
	Evidence          *string `json:"evidence,omitempty"`
	Audit             *Audit  `json:"audit,omitempty"`
	CreatedBy         string  `json:"created_by"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// ProcessRate is per-process compliance.
type ProcessRate struct {
	ProcessID string  `json:"process_id"`
	Name      string  `json:"name"`
	Total     int     `json:"total"`
	Executed  int     `json:"executed"`
	Rate      float64 `json:"rate"`
}

// Report is the dashboard aggregate. Compliance is nil when no
// activities exist.
type Report struct {
	Total      int           `json:"total"`
	Executed   int           `json:"executed"`
	Compliance *float64      `json:"compliance"`
	PerProcess []ProcessRate `json:"per_process"`
	Summary    string        `json:"summary,omitempty"`
}

// Notification is one derived notification row.
type Notification struct {
	ID           string `json:"id"`
	ActivityID   string `json:"activity_id"`
	ActivityName string `json:"activity_name"`
	TS           string `json:"ts"`
	Status       string `json:"status"`
	Read         bool   `json:"read"`
	User         string `json:"user"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PlanActivityOptions are parameters for PlanActivity.
type PlanActivityOptions struct {
	Date              string `json:"date"`
	ProcessID         string `json:"process_id"`
	TaskID            string `json:"task_id"`
	Resources         string `json:"resources,omitempty"`
	PersonCount       int    `json:"person_count,omitempty"`
	AssignedPersonnel string `json:"assigned_personnel,omitempty"`
}

// PlanActivity creates a planned activity.
func (c *Client) PlanActivity(ctx context.Context, opts PlanActivityOptions) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodPost, "v0/activities", opts, &resp)
	return resp, err
}

// ListActivities returns activities, optionally filtered by date,
// process, and status.
func (c *Client) ListActivities(ctx context.Context, date, processID, status string) ([]Activity, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if processID != "" {
		q.Set("process_id", processID)
	}
	if status != "" {
		q.Set("status", status)
	}
	endpoint := "v0/activities"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetActivity fetches one activity by id.
func (c *Client) GetActivity(ctx context.Context, id string) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodGet, "v0/activities/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetStatus changes the execution status.
func (c *Client) SetStatus(ctx context.Context, id, status string) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/activities/%s/status", url.PathEscape(id)),
		map[string]any{"status": status}, &resp)
	return resp, err
}

// RecordEvidence attaches evidence, forcing executed status and a
// pending audit on the server.
func (c *Client) RecordEvidence(ctx context.Context, id, payload string) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/activities/%s/evidence", url.PathEscape(id)),
		map[string]any{"payload": payload}, &resp)
	return resp, err
}

// SubmitAudit records a supervisory decision.
func (c *Client) SubmitAudit(ctx context.Context, id, status, comment string) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/activities/%s/audit", url.PathEscape(id)),
		map[string]any{"status": status, "comment": comment}, &resp)
	return resp, err
}

// DeleteActivity removes an activity.
func (c *Client) DeleteActivity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/activities/"+url.PathEscape(id), nil, nil)
}

// Report fetches the compliance report, optionally with the AI
// executive summary.
func (c *Client) Report(ctx context.Context, date string, summary bool) (Report, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if summary {
		q.Set("summary", "true")
	}
	endpoint := "v0/report"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp Report
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Notifications returns notification rows.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "v0/notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp []Notification
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
