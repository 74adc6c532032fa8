// Package xai implements the engram.Provider capability for xAI Grok
// models via the OpenAI-compatible chat completions endpoint.
package xai

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

const defaultBaseURL = "https://api.x.ai/v1"

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// Client implements engram.Provider for xAI.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ engram.Provider = (*Client)(nil)

// New creates an xAI chat provider.
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

// Name returns "xai".
func (c *Client) Name() string { return "xai" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

// Chat sends one chat completion and returns the raw content string.
func (c *Client) Chat(ctx context.Context, req engram.ChatRequest) (engram.ChatResponse, error) {
	if c.apiKey == "" {
		return engram.ChatResponse{}, c.wrapErr("XAI_API_KEY is not set")
	}

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": 0,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("marshal body: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", strings.NewReader(string(payload)))
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
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

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return engram.ChatResponse{}, c.wrapErr("parse response: " + err.Error())
	}
	if len(parsed.Choices) == 0 {
		return engram.ChatResponse{}, c.wrapErr(fmt.Sprintf("unexpected response structure: %.300s", string(respBody)))
	}

	return engram.ChatResponse{
		Text: strings.TrimSpace(parsed.Choices[0].Message.Content),
		Usage: engram.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CachedTokens:     parsed.Usage.PromptTokensDetails.CachedTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

func (c *Client) wrapErr(msg string) error {
	return &engram.ErrLLM{Provider: "xai", Message: msg}
}
