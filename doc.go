// Package engram is a per-user long-term memory service for AI coding
// assistants.
//
// It extracts atomic typed facts from conversation transcripts and project
// files using an LLM, embeds each fact into a dense vector, and maintains a
// deduplicated, versioned corpus retrievable by semantic similarity.
//
// The root package defines the data model, the type taxonomy and its
// lifecycle thresholds, and the capability interfaces (Provider,
// EmbeddingProvider, VectorStore) the pipeline consumes. The pipeline itself
// lives in the engine package; concrete providers and stores live under
// provider/ and store/.
package engram
