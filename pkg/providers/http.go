package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures a single OpenAI-compatible upstream.
type HTTPConfig struct {
	// Name is the provider name as referenced by catalog candidates.
	Name string `yaml:"name"`

	// BaseURL is the API root (e.g. "https://api.openai.com/v1").
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a non-streaming request end to end and the response
	// headers of a streaming request. Zero means DefaultHTTPTimeout.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultHTTPTimeout bounds requests when HTTPConfig.Timeout is zero.
const DefaultHTTPTimeout = 60 * time.Second

// HTTPClient is a Client for OpenAI-compatible chat completion APIs.
//
// It makes exactly one attempt per call: retries and failover are routing
// decisions, not transport ones. Failures are classified into *SendError so
// the router can tell retryable upstream trouble from caller mistakes.
type HTTPClient struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient builds an HTTPClient with a pooled transport.
func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	return &HTTPClient{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		client:  &http.Client{Transport: transport},
		logger:  logger.With("provider", cfg.Name),
	}
}

// Name returns the configured provider name.
func (c *HTTPClient) Name() string {
	return c.name
}

// OpenAI chat completion wire types. Only the fields Meridian reads or
// writes are declared.

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// Send performs a non-streaming chat completion call.
func (c *HTTPClient) Send(ctx context.Context, providerModelID string, req *Request) (*Response, *SendError) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, sendErr := c.post(ctx, &chatRequest{
		Model:       providerModelID,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if sendErr != nil {
		return nil, sendErr
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewTransportError(c.name, fmt.Errorf("decoding response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, NewTransportError(c.name, fmt.Errorf("response contained no choices"))
	}

	choice := parsed.Choices[0]
	return &Response{
		Content: choice.Message.Content,
		Model:   parsed.Model,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
		FinishReason: choice.FinishReason,
	}, nil
}

// SendStream opens a streaming chat completion call. The per-call timeout
// covers only stream establishment; once headers arrive the stream lives
// until the caller's context ends or the upstream closes it.
func (c *HTTPClient) SendStream(ctx context.Context, providerModelID string, req *Request) (Stream, *SendError) {
	resp, sendErr := c.post(ctx, &chatRequest{
		Model:         providerModelID,
		Messages:      req.Messages,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if sendErr != nil {
		return nil, sendErr
	}

	return newSSEStream(c.name, resp.Body), nil
}

func (c *HTTPClient) post(ctx context.Context, body *chatRequest) (*http.Response, *SendError) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewTransportError(c.name, fmt.Errorf("encoding request: %w", err))
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, NewTransportError(c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("dispatching upstream request",
		"model", body.Model,
		"stream", body.Stream,
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, NewTransportError(c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorBody(resp.Body)
		resp.Body.Close()
		return nil, NewStatusError(c.name, resp.StatusCode, detail)
	}

	return resp, nil
}

// readErrorBody extracts a short diagnostic from an upstream error response.
func readErrorBody(r io.Reader) string {
	const maxErrorBody = 4 << 10
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "upstream error"
	}

	// OpenAI-style {"error": {"message": ...}} envelopes carry the useful
	// part in the message field.
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
