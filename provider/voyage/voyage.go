// Package voyage implements the engram.EmbeddingProvider capability via the
// Voyage AI embeddings API. Role-aware embeddings (document vs query) come
// from the input_type field; vectors are unit-normalized so cosine math can
// assume unit length.
package voyage

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

const defaultBaseURL = "https://api.voyageai.com/v1"

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// Client implements engram.EmbeddingProvider for Voyage AI.
type Client struct {
	apiKey     string
	model      string
	dims       int
	baseURL    string
	httpClient *http.Client
}

var _ engram.EmbeddingProvider = (*Client)(nil)

// New creates a Voyage embedding provider producing dims-dimensional vectors.
func New(apiKey, model string, dims int, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns "voyage".
func (c *Client) Name() string { return "voyage" }

// Dimensions returns the configured output dimensionality.
func (c *Client) Dimensions() int { return c.dims }

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed returns one vector per input text, in input order. Role maps to
// Voyage's input_type so documents and queries land in compatible but
// asymmetric embedding spaces.
func (c *Client) Embed(ctx context.Context, texts []string, role string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, c.wrapErr("VOYAGE_API_KEY is not set")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputType := "document"
	if role == engram.RoleQuery {
		inputType = "query"
	}
	body := map[string]any{
		"input":            texts,
		"model":            c.model,
		"input_type":       inputType,
		"output_dimension": c.dims,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, c.wrapErr("marshal body: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/embeddings", strings.NewReader(string(payload)))
	if err != nil {
		return nil, c.wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.wrapErr("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.wrapErr("read response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &engram.ErrHTTP{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, c.wrapErr("parse response: " + err.Error())
	}
	if len(parsed.Data) != len(texts) {
		return nil, c.wrapErr(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)))
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = engram.Normalize(d.Embedding)
	}
	return vectors, nil
}

func (c *Client) wrapErr(msg string) error {
	return &engram.ErrLLM{Provider: "voyage", Message: msg}
}
