package extract

import (
	"testing"

	"github.com/nevindra/engram"
)

func TestParseFactArrayObjects(t *testing.T) {
	raw := `[{"memory":"uses pnpm","type":"tech-context"},{"memory":"prefers tabs","type":"preference"}]`
	facts := ParseFactArray(raw)
	if len(facts) != 2 {
		t.Fatalf("got %d facts, want 2", len(facts))
	}
	if facts[0].Memory != "uses pnpm" || facts[0].Type != engram.TypeTechContext {
		t.Errorf("fact[0] = %+v", facts[0])
	}
	if facts[1].Type != engram.TypePreference {
		t.Errorf("fact[1].Type = %q", facts[1].Type)
	}
}

func TestParseFactArrayStripsFences(t *testing.T) {
	raw := "```json\n[{\"memory\":\"fact\",\"type\":\"progress\"}]\n```"
	facts := ParseFactArray(raw)
	if len(facts) != 1 || facts[0].Memory != "fact" {
		t.Fatalf("fenced parse failed: %+v", facts)
	}
}

func TestParseFactArrayLegacyStrings(t *testing.T) {
	facts := ParseFactArray(`["plain fact one", "  ", "plain fact two"]`)
	if len(facts) != 2 {
		t.Fatalf("got %d facts, want 2", len(facts))
	}
	for _, f := range facts {
		if f.Type != engram.TypeLearnedPattern {
			t.Errorf("legacy string type = %q, want learned-pattern", f.Type)
		}
	}
}

func TestParseFactArrayWrappedObject(t *testing.T) {
	raw := `{"memories":[{"memory":"wrapped","type":"progress"}]}`
	facts := ParseFactArray(raw)
	if len(facts) != 1 || facts[0].Memory != "wrapped" {
		t.Fatalf("wrapped parse failed: %+v", facts)
	}
}

func TestParseFactArrayDefaultsType(t *testing.T) {
	facts := ParseFactArray(`[{"memory":"untyped"}]`)
	if len(facts) != 1 || facts[0].Type != engram.TypeLearnedPattern {
		t.Fatalf("missing type should default to learned-pattern: %+v", facts)
	}
}

func TestParseFactArrayDropsEmptyMemory(t *testing.T) {
	facts := ParseFactArray(`[{"memory":"","type":"progress"},{"memory":"  "},{"memory":"kept"}]`)
	if len(facts) != 1 || facts[0].Memory != "kept" {
		t.Fatalf("empty memories should be dropped: %+v", facts)
	}
}

func TestParseFactArrayGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json at all", `{"a":"b"}`, "42"} {
		if facts := ParseFactArray(raw); len(facts) != 0 {
			t.Errorf("ParseFactArray(%q) = %+v, want empty", raw, facts)
		}
	}
}

func TestParseIDArray(t *testing.T) {
	ids := parseIDArray("```json\n[\"a\", \"b\", \"\"]\n```")
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
	if ids := parseIDArray("nope"); ids != nil {
		t.Errorf("garbage should yield nil, got %v", ids)
	}
	if ids := parseIDArray(`[1, 2]`); len(ids) != 0 {
		t.Errorf("non-strings should be dropped, got %v", ids)
	}
}

func TestStripFences(t *testing.T) {
	if got := stripFences("```json\n[]\n```"); got != "[]" {
		t.Errorf("stripFences = %q, want []", got)
	}
	if got := stripFences("  [] "); got != "[]" {
		t.Errorf("stripFences plain = %q", got)
	}
}
