package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is the outcome of a single HTTP request.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
	Err      error
}

// Client issues requests against a base URL and records the built-in HTTP
// metrics for each of them.
type Client struct {
	baseURL string
	http    *http.Client

	duration *Trend
	reqs     *Counter
	failed   *Rate
}

// NewClient creates a client for baseURL. A zero timeout leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration, registry *Registry) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		duration: registry.Trend(MetricHTTPReqDuration),
		reqs:     registry.Counter(MetricHTTPReqs),
		failed:   registry.Rate(MetricHTTPReqFailed),
	}
}

// Get issues a GET request for path. name tags the recorded samples.
func (c *Client) Get(ctx context.Context, name, path string) *Response {
	return c.do(ctx, name, http.MethodGet, path, nil)
}

// PostJSON issues a POST request with body encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, name, path string, body any) *Response {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Response{Err: fmt.Errorf("failed to encode request body: %w", err)}
	}
	return c.do(ctx, name, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, name, method, path string, payload []byte) *Response {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Response{Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tags := map[string]string{"name": name, "method": method}
	resp := &Response{}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err == nil {
		resp.Status = httpResp.StatusCode
		resp.Body, err = io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
	}
	resp.Duration = time.Since(start)
	resp.Err = err

	c.reqs.Add(1, tags)
	if err == nil {
		c.duration.AddDuration(resp.Duration, tags)
	}
	c.failed.add(err != nil || resp.Status < 200 || resp.Status >= 400, tags)

	return resp
}
