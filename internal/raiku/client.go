package raiku

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

const (
	DefaultJITEndpoint    = "https://api.raiku.io/v1/jit"
	DefaultStatusEndpoint = "https://api.raiku.io/v1/status"

	defaultMaxRetries = 3
)

// Client is the production Provider backed by the Raiku HTTP API.
type Client struct {
	JITEndpoint    string
	StatusEndpoint string
	HTTP           *http.Client
}

func NewClient(jitEndpoint, statusEndpoint string, timeout time.Duration) *Client {
	jitEndpoint = strings.TrimRight(strings.TrimSpace(jitEndpoint), "/")
	if jitEndpoint == "" {
		jitEndpoint = DefaultJITEndpoint
	}
	statusEndpoint = strings.TrimRight(strings.TrimSpace(statusEndpoint), "/")
	if statusEndpoint == "" {
		statusEndpoint = DefaultStatusEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		JITEndpoint:    jitEndpoint,
		StatusEndpoint: statusEndpoint,
		HTTP:           &http.Client{Timeout: timeout},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("raiku http %d", e.StatusCode)
	}
	return fmt.Sprintf("raiku http %d: %s", e.StatusCode, b)
}

// Submit defaults the priority to high and retries to 3 when unset.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if strings.TrimSpace(req.Transaction) == "" {
		return nil, fmt.Errorf("transaction is required")
	}
	if req.PriorityLevel == "" {
		req.PriorityLevel = PriorityHigh
	}
	if !req.PriorityLevel.Valid() {
		return nil, fmt.Errorf("invalid priority level %q", req.PriorityLevel)
	}
	if req.MaxRetries == nil {
		n := defaultMaxRetries
		req.MaxRetries = &n
	}
	if req.SkipPreflight == nil {
		skip := false
		req.SkipPreflight = &skip
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.JITEndpoint+"/submit", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")

	var out SubmitResponse
	if err := c.doJSON(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, id string) (*TransactionStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("pre-confirmation id is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StatusEndpoint+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var out TransactionStatus
	if err := c.doJSON(httpReq, &out); err != nil {
		return nil, err
	}
	if !out.Status.Valid() {
		return nil, fmt.Errorf("raiku returned unknown status %q", out.Status)
	}
	return &out, nil
}

func (c *Client) EstimateLatency(ctx context.Context) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.JITEndpoint+"/latency", nil)
	if err != nil {
		return 0, err
	}
	var out LatencyResponse
	if err := c.doJSON(httpReq, &out); err != nil {
		return 0, err
	}
	return out.EstimatedMs, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	req.Header.Set("accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read raiku response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode raiku response: %w", err)
	}
	return nil
}
