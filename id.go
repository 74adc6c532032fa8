package engram

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a random UUIDv4 for a memory row.
func NewID() string {
	return uuid.NewString()
}

// TimeFormat is the RFC3339 layout used for all stored timestamps. The
// fractional part is fixed-width so timestamp strings sort correctly under
// plain lexicographic comparison.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// NowRFC3339 returns the current UTC time formatted with TimeFormat.
func NowRFC3339() string {
	return time.Now().UTC().Format(TimeFormat)
}
