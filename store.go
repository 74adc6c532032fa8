package engram

import "context"

// FactUpdate is the set of columns overwritten by a dedup UPDATE. The
// stored vector, id, user_id, and created_at are kept.
type FactUpdate struct {
	Memory       string
	UpdatedAt    string
	Hash         string
	MetadataJSON string
	Chunk        string
}

// SearchSpec parameterizes a cosine top-k search.
type SearchSpec struct {
	UserID string
	Vector []float32
	Limit  int
	// ExcludeID removes one row (typically the freshly inserted one) from
	// the result set.
	ExcludeID string
	// LiveOnly restricts the search to rows with superseded_by = "".
	LiveOnly bool
}

// Match is one search hit with its cosine distance to the query vector.
type Match struct {
	Memory
	Distance float64
}

// UserCount is the number of live memories stored for one user.
type UserCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// VectorStore abstracts the vector-enabled memories table. Implementations
// guarantee single-row atomicity; the pipeline composes its lifecycle rules
// on top of that.
type VectorStore interface {
	// Init creates the table and applies idempotent schema migrations.
	Init(ctx context.Context) error

	// Insert appends one row.
	Insert(ctx context.Context, m Memory) error
	// UpdateFact overwrites the dedup-updatable columns of one row.
	UpdateFact(ctx context.Context, id string, up FactUpdate) error
	// MarkSuperseded retires a row by pointing its superseded_by at newID.
	MarkSuperseded(ctx context.Context, oldID, newID, updatedAt string) error
	// Delete removes one row unconditionally.
	Delete(ctx context.Context, id string) error
	// Get returns one row by id, or nil when absent.
	Get(ctx context.Context, id string) (*Memory, error)

	// Search returns the nearest rows by cosine distance, closest first.
	Search(ctx context.Context, spec SearchSpec) ([]Match, error)
	// ListByUser returns a user's rows sorted by updated_at descending,
	// excluding retired rows unless includeSuperseded is set.
	ListByUser(ctx context.Context, userID string, includeSuperseded bool) ([]Memory, error)
	// ListByTypes returns a user's live rows of the given types, sorted by
	// created_at ascending.
	ListByTypes(ctx context.Context, userID string, types []string) ([]Memory, error)
	// Users returns live-row counts grouped by user.
	Users(ctx context.Context) ([]UserCount, error)
	// Count returns the total number of rows in the table.
	Count(ctx context.Context) (int, error)

	Close() error
}
