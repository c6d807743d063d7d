package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"broker-agent/internal/domain"
)

const defaultBaseURL = "https://api.perplexity.ai"

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %v", e.StatusCode, e.URL, e.Err)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client is a focused client for OpenAI-compatible chat completion endpoints.
// SDK retries are disabled: every Complete call is exactly one round trip.
type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
	sdk        openaisdk.Client

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client that authenticates with the key returned by keys.
// The key is resolved on the first successful call and reused afterwards.
func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("openai: key source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		keys:       keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.sdk = openaisdk.NewClient(
		option.WithBaseURL(normalizeBaseURL(c.baseURL)),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	)
	return c, nil
}

// Complete sends one chat completion request and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("openai: model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(req.Model),
		Messages:    toSDKMessages(req.Messages),
		Temperature: openaisdk.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(req.MaxTokens))
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params, option.WithAPIKey(apiKey))
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

// normalizeBaseURL returns the base with exactly one trailing slash; the SDK
// resolves "chat/completions" relative to it.
func normalizeBaseURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/"
}

func toSDKMessages(messages []domain.ChatMessage) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openaisdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openaisdk.AssistantMessage(m.Content))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}

func mapError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		url := ""
		if apiErr.Request != nil && apiErr.Request.URL != nil {
			url = apiErr.Request.URL.String()
		}
		return &HTTPStatusError{StatusCode: apiErr.StatusCode, URL: url, Err: err}
	}
	return fmt.Errorf("openai: request failed: %w", err)
}
