package observer

import (
	"encoding/json"
	"os"
	"sync"
)

// Bucket accumulates token usage and spend for one provider.
type Bucket struct {
	InputTokens  int     `json:"input_tokens"`
	CachedTokens int     `json:"cached_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Requests     int     `json:"requests"`
	CostUSD      float64 `json:"cost_usd"`
}

// Ledger is a persistent running total of LLM spend, bucketed per provider.
// It survives restarts via a JSON file next to the database. All methods are
// safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	path    string
	cost    *CostCalculator
	buckets map[string]Bucket
}

// OpenLedger loads the ledger at path, starting empty if the file does not
// exist or does not parse.
func OpenLedger(path string, cost *CostCalculator) *Ledger {
	l := &Ledger{
		path:    path,
		cost:    cost,
		buckets: make(map[string]Bucket),
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &l.buckets)
	}
	return l
}

// Record adds one call's usage to the provider's bucket and persists.
func (l *Ledger) Record(provider, model string, inputTokens, cachedTokens, outputTokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[provider]
	b.InputTokens += inputTokens
	b.CachedTokens += cachedTokens
	b.OutputTokens += outputTokens
	b.Requests++
	b.CostUSD += l.cost.Calculate(model, inputTokens, cachedTokens, outputTokens)
	l.buckets[provider] = b

	l.save()
}

// Snapshot returns a copy of all buckets plus the combined total.
func (l *Ledger) Snapshot() (map[string]Bucket, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Bucket, len(l.buckets))
	total := 0.0
	for k, v := range l.buckets {
		out[k] = v
		total += v.CostUSD
	}
	return out, total
}

// save writes under the held lock. Write errors are ignored; the in-memory
// totals stay correct and the next record retries.
func (l *Ledger) save() {
	data, err := json.MarshalIndent(l.buckets, "", "  ")
	if err != nil {
		return
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, l.path)
}
