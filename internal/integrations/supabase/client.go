package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"broker-agent/internal/domain"
)

const defaultTable = "kb_chunks"

// HTTPStatusError captures non-2xx PostgREST responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("supabase: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client reads knowledge-base rows through the Supabase REST (PostgREST) API.
type Client struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

type Option func(*Client)

func WithTable(table string) Option {
	return func(c *Client) {
		c.table = strings.TrimSpace(table)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Client for the project at baseURL authenticated with the anon key.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("supabase: url must not be empty")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("supabase: api key must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		table:      defaultTable,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.table == "" {
		return nil, errors.New("supabase: table name must not be empty")
	}
	return c, nil
}

func (c *Client) rowsURL(limit int) string {
	q := url.Values{}
	q.Set("select", "text")
	q.Set("limit", strconv.Itoa(limit))
	return c.baseURL + "/rest/v1/" + url.PathEscape(c.table) + "?" + q.Encode()
}

// TopChunks returns the text column of the first limit rows, unfiltered.
// Rows without a string text value yield an empty fragment.
func (c *Client) TopChunks(ctx context.Context, limit int) ([]domain.ContextFragment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("supabase: limit must be positive, got %d", limit)
	}
	u := c.rowsURL(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("supabase: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.doJSONRequest(req, u)
	if err != nil {
		return nil, fmt.Errorf("supabase: request failed: %w", err)
	}
	return parseRows(raw)
}

func parseRows(raw []byte) ([]domain.ContextFragment, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("supabase: decode rows: invalid JSON")
	}
	rows := gjson.ParseBytes(raw)
	if !rows.IsArray() {
		return nil, errors.New("supabase: decode rows: expected a JSON array")
	}

	out := make([]domain.ContextFragment, 0, len(rows.Array()))
	rows.ForEach(func(_, row gjson.Result) bool {
		text := row.Get("text")
		if text.Type == gjson.String {
			out = append(out, domain.ContextFragment(text.Str))
		} else {
			out = append(out, "")
		}
		return true
	})
	return out, nil
}

func (c *Client) doJSONRequest(req *http.Request, target string) ([]byte, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
