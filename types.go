package engram

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// EmbeddingDims is the fixed dimensionality of all stored vectors.
const EmbeddingDims = 1024

// Memory type taxonomy. Every stored fact carries exactly one of these in
// its metadata; the type drives deduplication width, versioning, and aging.
const (
	TypeProjectBrief   = "project-brief"
	TypeArchitecture   = "architecture"
	TypeTechContext    = "tech-context"
	TypeProductContext = "product-context"
	TypeProjectConfig  = "project-config"
	TypeSessionSummary = "session-summary"
	TypeProgress       = "progress"
	TypeErrorSolution  = "error-solution"
	TypePreference     = "preference"
	TypeLearnedPattern = "learned-pattern"
)

// StructuralTypes denote durable project-level knowledge. They use the wider
// dedup and contradiction radii and never accumulate copies.
var StructuralTypes = map[string]bool{
	TypeProjectBrief:   true,
	TypeArchitecture:   true,
	TypeTechContext:    true,
	TypeProductContext: true,
	TypeProjectConfig:  true,
}

// VersioningSkipTypes bypass contradiction detection because they have
// dedicated aging rules.
var VersioningSkipTypes = map[string]bool{
	TypeSessionSummary: true,
	TypeProgress:       true,
}

// Cosine-distance thresholds (smaller = more similar).
const (
	// DedupDistance is the distance below which a new fact updates an
	// existing row instead of inserting (~88% similarity).
	DedupDistance = 0.12

	// StructuralDedupDistance is the wider dedup threshold for structural
	// types, which evolve across sessions and rephrase heavily (~75%).
	StructuralDedupDistance = 0.25

	// ContradictionCandidateDistance bounds the versioner's candidate
	// search. Broader than dedup to catch topic-related contradictions
	// like ORM migrations.
	ContradictionCandidateDistance = 0.5

	// StructuralContradictionDistance is the candidate radius for
	// structural types.
	StructuralContradictionDistance = 0.65
)

// ContradictionCandidateLimit caps how many existing memories are sent to
// the contradiction-detection LLM call per new memory.
const ContradictionCandidateLimit = 15

// MaxSessionSummaries is the rolling cap on live session-summary rows per
// user. When exceeded, the oldest is condensed into a learned-pattern.
const MaxSessionSummaries = 3

// Memory is one stored fact: a row in the vector table.
type Memory struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Memory       string    `json:"memory"`
	Vector       []float32 `json:"-"`
	MetadataJSON string    `json:"-"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
	Hash         string    `json:"-"`
	// Chunk is the raw source text the fact was extracted from, surfaced
	// verbatim at query time so callers can read exact values (config
	// numbers, error strings).
	Chunk string `json:"chunk,omitempty"`
	// SupersededBy holds the id of the newer memory that retired this one,
	// or "" while the row is live.
	SupersededBy string `json:"superseded_by,omitempty"`
}

// Live reports whether the memory has not been retired by versioning.
func (m *Memory) Live() bool { return m.SupersededBy == "" }

// Metadata returns the parsed metadata object, or an empty one on malformed
// JSON.
func (m *Memory) Metadata() Metadata { return ParseMetadata(m.MetadataJSON) }

// Type returns the taxonomy type from metadata, or "".
func (m *Memory) Type() string { return m.Metadata().Type() }

// Fact is an extraction candidate: one atomic statement plus its type and
// the raw source text it came from.
type Fact struct {
	Memory string `json:"memory"`
	Type   string `json:"type"`
	Chunk  string `json:"-"`
}

// Metadata is the free-form metadata object stored with each memory. Three
// well-known keys (type, date, condensed_from) have typed accessors; the
// rest of the object is passed through untouched.
type Metadata map[string]any

// ParseMetadata parses a metadata JSON string, returning an empty Metadata
// on failure.
func ParseMetadata(raw string) Metadata {
	if raw == "" {
		return Metadata{}
	}
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Metadata{}
	}
	if m == nil {
		return Metadata{}
	}
	return m
}

// Encode serializes the metadata to its stored JSON form.
func (m Metadata) Encode() string {
	if m == nil {
		m = Metadata{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (m Metadata) str(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Type returns the taxonomy type, or "".
func (m Metadata) Type() string { return m.str("type") }

// Date returns the ISO session date (yyyy-mm-dd), or "".
func (m Metadata) Date() string { return m.str("date") }

// CondensedFrom returns the id of the session-summary this memory was
// condensed from, or "".
func (m Metadata) CondensedFrom() string { return m.str("condensed_from") }

// Message is one turn of a conversation transcript. Content is either a
// JSON string or an array of {"type":"text","text":...} parts.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// HashMemory returns the hex MD5 digest of a fact's text. Diagnostic only.
func HashMemory(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
