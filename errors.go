package engram

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrLLM reports a provider-level failure (request construction, transport,
// or malformed response body).
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from an upstream provider.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrUnconfigured reports that required credentials were absent at startup.
// Missing holds environment variable names, never their values.
type ErrUnconfigured struct {
	Missing []string
}

func (e *ErrUnconfigured) Error() string {
	return "memory server not configured: missing " + strings.Join(e.Missing, ", ")
}

// ErrInvalidID reports an identifier that failed the charset check.
type ErrInvalidID struct {
	Field string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("invalid %s: must be non-empty and contain only alphanumeric characters, hyphens, underscores, or dots", e.Field)
}

// safeIDRe matches identifiers that are safe to interpolate into store
// predicates. Anything else is rejected before touching the store.
var safeIDRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateID checks that value is a safe identifier. field names the
// parameter in the returned error.
func ValidateID(value, field string) error {
	if value == "" || !safeIDRe.MatchString(value) {
		return &ErrInvalidID{Field: field}
	}
	return nil
}
