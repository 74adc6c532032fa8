package observer

import (
	"sync"
	"time"
)

// activityCap bounds the in-memory feed; older events fall off.
const activityCap = 50

// Event is one entry in the activity feed.
type Event struct {
	Time   string `json:"time"`
	Kind   string `json:"kind"`
	UserID string `json:"user_id,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Activity is a fixed-capacity ring of recent pipeline events, newest first
// on read. Safe for concurrent use.
type Activity struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewActivity creates an empty feed.
func NewActivity() *Activity {
	return &Activity{events: make([]Event, activityCap)}
}

// Add records one event, stamped with the current UTC time.
func (a *Activity) Add(kind, userID, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events[a.next] = Event{
		Time:   time.Now().UTC().Format(time.RFC3339),
		Kind:   kind,
		UserID: userID,
		Detail: detail,
	}
	a.next = (a.next + 1) % activityCap
	if a.next == 0 {
		a.full = true
	}
}

// Recent returns the stored events, newest first.
func (a *Activity) Recent() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.next
	if a.full {
		n = activityCap
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (a.next - i + activityCap) % activityCap
		out = append(out, a.events[idx])
	}
	return out
}
