// Package google implements the engram.Provider capability for Gemini
// models via the native generateContent REST API (no OpenAI compatibility
// layer), which supports a real JSON response mode.
package google

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// Client implements engram.Provider for Gemini.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ engram.Provider = (*Client)(nil)

// New creates a Gemini chat provider.
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

// Name returns "google".
func (c *Client) Name() string { return "google" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Chat sends one generateContent call and returns the raw content string.
func (c *Client) Chat(ctx context.Context, req engram.ChatRequest) (engram.ChatResponse, error) {
	if c.apiKey == "" {
		return engram.ChatResponse{}, c.wrapErr("GOOGLE_API_KEY is not set")
	}

	body := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": req.System}},
		},
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": req.User}}},
		},
		"generationConfig": map[string]any{
			"temperature":      0,
			"maxOutputTokens":  req.MaxTokens,
			"responseMimeType": "application/json",
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("marshal body: " + err.Error())
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return engram.ChatResponse{}, c.wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
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

	var parsed generateContentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return engram.ChatResponse{}, c.wrapErr("parse response: " + err.Error())
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return engram.ChatResponse{}, c.wrapErr(fmt.Sprintf("unexpected response structure: %.300s", string(respBody)))
	}

	return engram.ChatResponse{
		Text: strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text),
		Usage: engram.Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func (c *Client) wrapErr(msg string) error {
	return &engram.ErrLLM{Provider: "google", Message: msg}
}
