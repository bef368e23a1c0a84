package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tripweaver/tripweaver/internal/travel"
)

const maxResponseSize int64 = 10 * 1024 * 1024 // 10MB

// HTTPWorker runs a search by POSTing the task parameters to a search
// service and parsing its JSON response.
type HTTPWorker struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// HTTPWorkerOption configures an HTTPWorker.
type HTTPWorkerOption func(*HTTPWorker)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) HTTPWorkerOption {
	return func(w *HTTPWorker) { w.client = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPWorkerOption {
	return func(w *HTTPWorker) { w.headers[key] = value }
}

// NewHTTPWorker creates a worker that POSTs to url.
func NewHTTPWorker(url string, opts ...HTTPWorkerOption) *HTTPWorker {
	w := &HTTPWorker{
		url:     url,
		headers: make(map[string]string),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Search POSTs the task parameters and parses the item list. Rate limiting
// and access denial map to ErrBlocked since retrying would only dig the
// hole deeper.
func (w *HTTPWorker) Search(ctx context.Context, task travel.Task) ([]travel.Item, error) {
	body, err := json.Marshal(task.Params)
	if err != nil {
		return nil, fmt.Errorf("%s worker: marshal params: %w", task.Domain, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s worker: create request: %w", task.Domain, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s worker: request failed: %w", task.Domain, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s worker: read response: %w", task.Domain, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s worker: status %d: %w", task.Domain, resp.StatusCode, ErrBlocked)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s worker: status %d", task.Domain, resp.StatusCode)
	}

	items, err := parseItems(data)
	if err != nil {
		return nil, fmt.Errorf("%s worker: %w: %v", task.Domain, ErrInvalidResponse, err)
	}
	for i := range items {
		items[i].Domain = task.Domain
	}
	return items, nil
}
