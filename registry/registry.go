// Package registry keeps a small persistent mapping from user ids to
// display names, so dashboards can label per-project memory stores.
package registry

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/nevindra/engram"
)

// Entry pairs a user id with its display name.
type Entry struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Registry is a JSON-file-backed name store. Safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	path  string
	names map[string]string
}

// Open loads the registry at path, starting empty if the file does not
// exist or does not parse.
func Open(path string) *Registry {
	r := &Registry{path: path, names: make(map[string]string)}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &r.names)
	}
	return r
}

// Set assigns a display name to a user id and persists.
func (r *Registry) Set(userID, name string) error {
	if err := engram.ValidateID(userID, "user_id"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names[userID] = name
	return r.save()
}

// Get returns the display name for a user id, or "" when unset.
func (r *Registry) Get(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[userID]
}

// All returns every entry sorted by user id.
func (r *Registry) All() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.names))
	for id, name := range r.names {
		out = append(out, Entry{UserID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.names, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
