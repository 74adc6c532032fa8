// Package resolve maps provider names from configuration to concrete
// provider clients.
package resolve

import (
	"fmt"

	"github.com/nevindra/engram"
	"github.com/nevindra/engram/internal/config"
	"github.com/nevindra/engram/provider/anthropic"
	"github.com/nevindra/engram/provider/google"
	"github.com/nevindra/engram/provider/xai"
)

// Chat returns the chat provider selected by cfg.Extraction.Provider.
func Chat(cfg *config.Config) (engram.Provider, error) {
	switch cfg.Extraction.Provider {
	case "xai":
		return xai.New(cfg.XAI.APIKey, cfg.XAI.Model), nil
	case "google":
		return google.New(cfg.Google.APIKey, cfg.Google.Model), nil
	case "anthropic":
		return anthropic.New(cfg.Anthropic.APIKey, cfg.Anthropic.Model), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q (want xai, google, or anthropic)", cfg.Extraction.Provider)
	}
}
