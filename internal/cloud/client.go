package cloud

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

// Client talks to the remote persistence service. Records are stored
// as JSON rows keyed by (table, id); writes are whole-row upserts.
type Client struct {
	BaseURL     string
	AccessKey   string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, accessKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		AccessKey: accessKey,
		Timeout:   10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Upsert writes a full record to a table. The record replaces any
// existing row with the same id.
func (c *Client) Upsert(ctx context.Context, table, id string, record any) error {
	endpoint := fmt.Sprintf("rest/v1/%s/%s", url.PathEscape(table), url.PathEscape(id))
	return c.do(ctx, http.MethodPut, endpoint, record, nil)
}

// UpsertRaw writes an already-encoded JSON record.
func (c *Client) UpsertRaw(ctx context.Context, table, id string, payload []byte) error {
	endpoint := fmt.Sprintf("rest/v1/%s/%s", url.PathEscape(table), url.PathEscape(id))
	return c.doRaw(ctx, http.MethodPut, endpoint, payload, nil)
}

// Fetch returns all rows of a table as raw JSON records.
func (c *Client) Fetch(ctx context.Context, table string) ([]json.RawMessage, error) {
	var resp struct {
		Items []json.RawMessage `json:"items"`
	}
	endpoint := fmt.Sprintf("rest/v1/%s", url.PathEscape(table))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	return c.doRaw(ctx, method, endpoint, payload, out)
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AccessKey != "" {
		req.Header.Set("X-Access-Key", c.AccessKey)
	}
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
