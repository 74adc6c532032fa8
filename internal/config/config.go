package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Data       DataConfig       `toml:"data"`
	Extraction ExtractionConfig `toml:"extraction"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	XAI        ProviderConfig   `toml:"xai"`
	Google     ProviderConfig   `toml:"google"`
	Anthropic  ProviderConfig   `toml:"anthropic"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Observer   ObserverConfig   `toml:"observer"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DataConfig struct {
	// Dir holds the sqlite database, the cost ledger, and the name registry.
	Dir string `toml:"dir"`
}

type ExtractionConfig struct {
	Provider string `toml:"provider"`
}

type EmbeddingConfig struct {
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
}

type ProviderConfig struct {
	Model  string `toml:"model"`
	APIKey string `toml:"api_key"`
}

type PostgresConfig struct {
	// URL enables the pgvector backend instead of sqlite when set.
	URL string `toml:"url"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return Config{
		Server:     ServerConfig{Addr: ":8020"},
		Data:       DataConfig{Dir: filepath.Join(home, ".engram")},
		Extraction: ExtractionConfig{Provider: "xai"},
		Embedding:  EmbeddingConfig{Model: "voyage-3.5", Dimensions: 1024},
		XAI:        ProviderConfig{Model: "grok-4-1-fast-non-reasoning"},
		Google:     ProviderConfig{Model: "gemini-2.5-flash"},
		Anthropic:  ProviderConfig{Model: "claude-haiku-4-5"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "engram.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("ENGRAM_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("EXTRACTION_PROVIDER"); v != "" {
		cfg.Extraction.Provider = v
	}
	if v := os.Getenv("XAI_API_KEY"); v != "" {
		cfg.XAI.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Google.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("VOYAGE_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("ENGRAM_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if os.Getenv("ENGRAM_OBSERVER_ENABLED") == "true" || os.Getenv("ENGRAM_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}

// extractionKeyEnv names the env var carrying the API key for the active
// extraction provider.
func (c *Config) extractionKeyEnv() (key, env string) {
	switch c.Extraction.Provider {
	case "google":
		return c.Google.APIKey, "GOOGLE_API_KEY"
	case "anthropic":
		return c.Anthropic.APIKey, "ANTHROPIC_API_KEY"
	default:
		return c.XAI.APIKey, "XAI_API_KEY"
	}
}

// Missing lists the env var names for credentials the active configuration
// needs but does not have. Empty means the service is fully configured.
func (c *Config) Missing() []string {
	var missing []string
	if key, env := c.extractionKeyEnv(); key == "" {
		missing = append(missing, env)
	}
	if c.Embedding.APIKey == "" {
		missing = append(missing, "VOYAGE_API_KEY")
	}
	return missing
}
