package extract

import (
	"encoding/json"
	"strings"

	"github.com/nevindra/engram"
)

// ParseFactArray robustly parses a JSON array of facts from a raw LLM
// response. It strips markdown fences, coerces legacy plain-string items to
// learned-pattern facts, unwraps single-object envelopes like
// {"memories": [...]}, and drops items with an empty memory. Any parse
// failure yields an empty slice, never an error.
func ParseFactArray(raw string) []engram.Fact {
	raw = stripFences(raw)
	if raw == "" {
		return nil
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil
	}
	return coerceFacts(value, 0)
}

func coerceFacts(value any, depth int) []engram.Fact {
	if depth > 2 {
		return nil
	}

	switch v := value.(type) {
	case []any:
		var facts []engram.Fact
		for _, item := range v {
			switch it := item.(type) {
			case string:
				// Legacy plain-string format.
				text := strings.TrimSpace(it)
				if text != "" {
					facts = append(facts, engram.Fact{Memory: text, Type: engram.TypeLearnedPattern})
				}
			case map[string]any:
				text, _ := it["memory"].(string)
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				typ, _ := it["type"].(string)
				if typ == "" {
					typ = engram.TypeLearnedPattern
				}
				facts = append(facts, engram.Fact{Memory: text, Type: typ})
			}
		}
		return facts

	case map[string]any:
		// Model wrapped the array, e.g. {"memories": [...]}.
		for _, field := range v {
			if arr, ok := field.([]any); ok {
				return coerceFacts(arr, depth+1)
			}
		}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence and a leading json
// language tag, then trims whitespace.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		parts := strings.Split(raw, "```")
		if len(parts) > 1 {
			raw = parts[1]
		}
		raw = strings.TrimPrefix(raw, "json")
		raw = strings.TrimSpace(raw)
	}
	return raw
}

// parseIDArray parses a JSON array of id strings, tolerating fences. Non
// string or empty elements are dropped; failures yield nil.
func parseIDArray(raw string) []string {
	raw = stripFences(raw)
	if raw == "" {
		return nil
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	var ids []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}
