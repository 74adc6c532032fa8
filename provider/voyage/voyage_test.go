package voyage

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nevindra/engram"
)

func TestEmbed(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{3, 4, 0}},
				{"embedding": []float32{0, 1, 0}},
			},
		})
	}))
	defer ts.Close()

	c := New("k", "voyage-3.5", 3, WithBaseURL(ts.URL))
	vecs, err := c.Embed(context.Background(), []string{"doc one", "doc two"}, engram.RoleDocument)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if gotBody["input_type"] != "document" {
		t.Errorf("input_type = %v", gotBody["input_type"])
	}
	if gotBody["output_dimension"] != 3.0 {
		t.Errorf("output_dimension = %v", gotBody["output_dimension"])
	}

	if len(vecs) != 2 {
		t.Fatalf("vectors = %d", len(vecs))
	}
	// Vectors come back unit-normalized.
	norm := math.Sqrt(float64(vecs[0][0]*vecs[0][0] + vecs[0][1]*vecs[0][1]))
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("norm = %v, want 1", norm)
	}
}

func TestEmbedQueryRole(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}}},
		})
	}))
	defer ts.Close()

	c := New("k", "voyage-3.5", 1, WithBaseURL(ts.URL))
	if _, err := c.Embed(context.Background(), []string{"q"}, engram.RoleQuery); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotBody["input_type"] != "query" {
		t.Errorf("input_type = %v, want query", gotBody["input_type"])
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}}},
		})
	}))
	defer ts.Close()

	c := New("k", "voyage-3.5", 1, WithBaseURL(ts.URL))
	if _, err := c.Embed(context.Background(), []string{"a", "b"}, engram.RoleDocument); err == nil {
		t.Fatal("count mismatch should error")
	}
}

func TestEmbedMissingKey(t *testing.T) {
	c := New("", "voyage-3.5", 1024)
	_, err := c.Embed(context.Background(), []string{"x"}, engram.RoleDocument)
	var llmErr *engram.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("err = %v, want *ErrLLM", err)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := New("k", "voyage-3.5", 1024)
	vecs, err := c.Embed(context.Background(), nil, engram.RoleDocument)
	if err != nil || vecs != nil {
		t.Errorf("empty input = %v, %v, want nil, nil", vecs, err)
	}
}
