// Package anthropic implements the engram.Provider capability for Claude
// models via the Anthropic Messages API. The system prompt is a top-level
// field and there is no native JSON mode; the prompts carry the format
// instruction.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nevindra/engram"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// Client implements engram.Provider for Anthropic.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ engram.Provider = (*Client)(nil)

// New creates an Anthropic chat provider.
func New(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns "anthropic".
func (c *Client) Name() string { return "anthropic" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends one Messages API call and returns the raw content string.
func (c *Client) Chat(ctx context.Context, req engram.ChatRequest) (engram.ChatResponse, error) {
	if c.apiKey == "" {
		return engram.ChatResponse{}, c.wrapErr("ANTHROPIC_API_KEY is not set")
	}

	body := map[string]any{
		"model":       c.model,
		"max_tokens":  req.MaxTokens,
		"temperature": 0,
		"system":      req.System,
		"messages": []map[string]string{
			{"role": "user", "content": req.User},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("marshal body: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", strings.NewReader(string(payload)))
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("read response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engram.ChatResponse{}, &engram.ErrHTTP{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return engram.ChatResponse{}, c.wrapErr("parse response: " + err.Error())
	}
	if len(parsed.Content) == 0 {
		return engram.ChatResponse{}, c.wrapErr(fmt.Sprintf("unexpected response structure: %.300s", string(respBody)))
	}

	return engram.ChatResponse{
		Text: strings.TrimSpace(parsed.Content[0].Text),
		Usage: engram.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
		},
	}, nil
}

func (c *Client) wrapErr(msg string) error {
	return &engram.ErrLLM{Provider: "anthropic", Message: msg}
}
