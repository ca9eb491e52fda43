package stock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMissingDate is returned when the response carries no usable Date header.
	ErrMissingDate = errors.New("missing or invalid Date header")
)

// Client fetches stock snapshots from the shop endpoint. One Client (and
// its underlying connection pool) is shared for the whole run.
type Client struct {
	httpClient *http.Client
	url        string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a shop client. minInterval spaces consecutive fetches
// apart; zero disables pacing.
func NewClient(url string, timeout, minInterval time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// Fetch performs one paced GET and decodes the snapshot.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: shop returned %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body, 200))
	}

	serverTime, err := ParseServerTime(resp.Header.Get("Date"))
	if err != nil {
		return nil, err
	}

	categories, err := DecodeCategories(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("Stock fetched", "server_time", serverTime, "categories", len(categories), "bytes", len(body))
	return &Snapshot{Categories: categories, ServerTime: serverTime}, nil
}

// ParseServerTime parses an RFC 1123 GMT Date header value into UTC.
func ParseServerTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, ErrMissingDate
	}
	t, err := time.Parse(http.TimeFormat, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrMissingDate, v, err)
	}
	return t.UTC(), nil
}

// DecodeCategories decodes the top-level feed object. Every array-valued
// key is a category; other keys are ignored.
func DecodeCategories(body []byte) (map[string][]Item, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	categories := make(map[string][]Item, len(raw))
	for key, val := range raw {
		val = bytes.TrimSpace(val)
		if len(val) == 0 || val[0] != '[' {
			continue
		}
		var items []Item
		if err := json.Unmarshal(val, &items); err != nil {
			return nil, fmt.Errorf("category %s: %w", key, err)
		}
		categories[key] = items
	}
	return categories, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
