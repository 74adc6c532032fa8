package engram

import "context"

// ChatRequest is a single system+user prompt pair sent to the extraction
// LLM. Extraction calls are deterministic (temperature 0) and bounded.
type ChatRequest struct {
	System    string
	User      string
	MaxTokens int
}

// Usage holds token counts reported by a provider for one call.
type Usage struct {
	PromptTokens     int
	CachedTokens     int
	CompletionTokens int
}

// ChatResponse is the raw text a provider returned plus its usage stats.
type ChatResponse struct {
	Text  string
	Usage Usage
}

// Provider abstracts the extraction LLM backend. The extraction layer
// consumes only this capability; provider response shapes never leak past
// it.
type Provider interface {
	// Chat sends a request and returns the complete response text.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Model returns the model identifier used for pricing and logging.
	Model() string
	// Name returns the provider name (e.g. "xai", "google", "anthropic").
	Name() string
}

// Embedding roles select the provider-side input type for asymmetric
// embedding models.
const (
	RoleDocument = "document"
	RoleQuery    = "query"
)

// EmbeddingProvider abstracts text embedding. Implementations return
// unit-norm vectors of Dimensions() length.
type EmbeddingProvider interface {
	// Embed returns one vector per input text. role is RoleDocument or
	// RoleQuery.
	Embed(ctx context.Context, texts []string, role string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}
