package resolve

import (
	"testing"

	"github.com/nevindra/engram/internal/config"
)

func TestChatKnownProviders(t *testing.T) {
	for _, name := range []string{"xai", "google", "anthropic"} {
		cfg := config.Default()
		cfg.Extraction.Provider = name
		p, err := Chat(&cfg)
		if err != nil {
			t.Fatalf("Chat(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("provider name = %q, want %q", p.Name(), name)
		}
	}
}

func TestChatUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.Provider = "openai"
	if _, err := Chat(&cfg); err == nil {
		t.Fatal("unknown provider should error")
	}
}
