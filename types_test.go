package engram

import (
	"errors"
	"math"
	"testing"
)

func TestValidateID(t *testing.T) {
	valid := []string{"user-1", "proj_alpha", "a.b.c", "ABC123", "x"}
	for _, v := range valid {
		if err := ValidateID(v, "user_id"); err != nil {
			t.Errorf("ValidateID(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "a b", "x;drop", "semi'quote", "slash/id", "tab\tid", "ünïcode"}
	for _, v := range invalid {
		err := ValidateID(v, "memory_id")
		if err == nil {
			t.Errorf("ValidateID(%q) = nil, want error", v)
			continue
		}
		var invalidErr *ErrInvalidID
		if !errors.As(err, &invalidErr) {
			t.Errorf("ValidateID(%q) error type = %T, want *ErrInvalidID", v, err)
		} else if invalidErr.Field != "memory_id" {
			t.Errorf("field = %q, want memory_id", invalidErr.Field)
		}
	}
}

func TestParseMetadata(t *testing.T) {
	m := ParseMetadata(`{"type":"progress","date":"2025-06-01","condensed_from":"abc"}`)
	if m.Type() != "progress" {
		t.Errorf("Type = %q, want progress", m.Type())
	}
	if m.Date() != "2025-06-01" {
		t.Errorf("Date = %q, want 2025-06-01", m.Date())
	}
	if m.CondensedFrom() != "abc" {
		t.Errorf("CondensedFrom = %q, want abc", m.CondensedFrom())
	}
}

func TestParseMetadataMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", "[1,2]", "null"} {
		m := ParseMetadata(raw)
		if m == nil {
			t.Errorf("ParseMetadata(%q) = nil, want empty", raw)
		}
		if m.Type() != "" {
			t.Errorf("ParseMetadata(%q).Type() = %q, want empty", raw, m.Type())
		}
	}
}

func TestMetadataEncodeRoundTrip(t *testing.T) {
	m := Metadata{"type": "preference", "source": "cli"}
	got := ParseMetadata(m.Encode())
	if got.Type() != "preference" {
		t.Errorf("Type after round trip = %q", got.Type())
	}
	if got["source"] != "cli" {
		t.Errorf("source after round trip = %v", got["source"])
	}

	var nilMeta Metadata
	if nilMeta.Encode() != "{}" {
		t.Errorf("nil Encode = %q, want {}", nilMeta.Encode())
	}
}

func TestMemoryLive(t *testing.T) {
	m := Memory{ID: "a"}
	if !m.Live() {
		t.Error("fresh memory should be live")
	}
	m.SupersededBy = "b"
	if m.Live() {
		t.Error("superseded memory should not be live")
	}
}

func TestMemoryTypeWhenMetadataBroken(t *testing.T) {
	m := Memory{MetadataJSON: "{{"}
	if m.Type() != "" {
		t.Errorf("Type = %q, want empty on broken metadata", m.Type())
	}
}

func TestHashMemoryStable(t *testing.T) {
	a := HashMemory("user prefers tabs")
	b := HashMemory("user prefers tabs")
	if a != b {
		t.Error("hash not deterministic")
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(a))
	}
	if a == HashMemory("user prefers spaces") {
		t.Error("different texts should hash differently")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	if got := CosineSimilarity(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical vectors similarity = %v, want 1", got)
	}
	b := []float32{0, 1, 0}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal similarity = %v, want 0", got)
	}
	if got := CosineDistance(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("orthogonal distance = %v, want 1", got)
	}
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector similarity = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched length similarity = %v, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	norm := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("norm = %v, want 1", norm)
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should stay zero, got %v", zero)
	}
}

func TestTimeFormatSortable(t *testing.T) {
	// Fixed-width microseconds keep lexicographic order equal to time order.
	a := "2025-06-01T10:00:00.000100Z"
	b := "2025-06-01T10:00:00.000099Z"
	if !(b < a) {
		t.Error("timestamps should sort lexicographically")
	}
}
