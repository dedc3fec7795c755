package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mailshop-bot/internal/model"
)

// RowAPI is the raw row-level surface of the remote spreadsheet store. The
// queue layer builds FIFO semantics on top of it; implementations do no rate
// limiting of their own.
type RowAPI interface {
	// RowCount returns the number of data rows currently stored.
	RowCount(ctx context.Context) (int, error)
	// ReadRows returns up to limit rows starting at offset (zero-based).
	ReadRows(ctx context.Context, offset, limit int) ([]model.InventoryItem, error)
	// AppendRows appends items after the last data row.
	AppendRows(ctx context.Context, items []model.InventoryItem) error
	// DeleteRow removes the data row at index (zero-based); rows below shift up.
	DeleteRow(ctx context.Context, index int) error
}

// HTTPClient talks to the spreadsheet gateway over HTTP. A 429 response is
// surfaced as *QuotaError so the limiter can back off; other failures wrap
// ErrUnavailable.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for the gateway at baseURL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type countResponse struct {
	Count int `json:"count"`
}

type rowsResponse struct {
	Rows [][]string `json:"rows"`
}

type appendRequest struct {
	Rows [][]string `json:"rows"`
}

// RowCount returns the number of data rows currently stored.
func (c *HTTPClient) RowCount(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.do(ctx, http.MethodGet, "/rows/count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ReadRows returns up to limit rows starting at offset.
func (c *HTTPClient) ReadRows(ctx context.Context, offset, limit int) ([]model.InventoryItem, error) {
	path := fmt.Sprintf("/rows?offset=%d&limit=%d", offset, limit)

	var resp rowsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	items := make([]model.InventoryItem, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		item := model.InventoryItem{}
		if len(row) > 0 {
			item.Identifier = row[0]
		}
		if len(row) > 1 {
			item.Secret = row[1]
		}
		items = append(items, item)
	}
	return items, nil
}

// AppendRows appends items after the last data row.
func (c *HTTPClient) AppendRows(ctx context.Context, items []model.InventoryItem) error {
	req := appendRequest{Rows: make([][]string, 0, len(items))}
	for _, item := range items {
		req.Rows = append(req.Rows, []string{item.Identifier, item.Secret})
	}
	return c.do(ctx, http.MethodPost, "/rows:append", req, nil)
}

// DeleteRow removes the data row at index.
func (c *HTTPClient) DeleteRow(ctx context.Context, index int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/rows/%d", index), nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &QuotaError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Ensure HTTPClient implements RowAPI
var _ RowAPI = (*HTTPClient)(nil)
