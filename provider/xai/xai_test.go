package xai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nevindra/engram"
)

func TestChat(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  [\"fact\"]  "}},
			},
			"usage": map[string]any{
				"prompt_tokens":     100,
				"completion_tokens": 20,
				"prompt_tokens_details": map[string]int{
					"cached_tokens": 40,
				},
			},
		})
	}))
	defer ts.Close()

	c := New("test-key", "grok-4-1-fast-non-reasoning", WithBaseURL(ts.URL))
	resp, err := c.Chat(context.Background(), engram.ChatRequest{System: "sys", User: "usr", MaxTokens: 2000})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["temperature"] != 0.0 {
		t.Errorf("temperature = %v, want 0", gotBody["temperature"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}

	if resp.Text != `["fact"]` {
		t.Errorf("text = %q, want trimmed content", resp.Text)
	}
	if resp.Usage.PromptTokens != 100 || resp.Usage.CachedTokens != 40 || resp.Usage.CompletionTokens != 20 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatMissingKey(t *testing.T) {
	c := New("", "model")
	_, err := c.Chat(context.Background(), engram.ChatRequest{User: "hi"})
	var llmErr *engram.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("err = %v, want *ErrLLM", err)
	}
}

func TestChatHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := New("k", "model", WithBaseURL(ts.URL))
	_, err := c.Chat(context.Background(), engram.ChatRequest{User: "hi"})
	var httpErr *engram.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *ErrHTTP", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d", httpErr.Status)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	c := New("k", "model", WithBaseURL(ts.URL))
	if _, err := c.Chat(context.Background(), engram.ChatRequest{User: "hi"}); err == nil {
		t.Fatal("empty choices should error")
	}
}
