package engine

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"Folium/utils"
)

// Config holds the runtime settings the engine is constructed with.
// Values come from the environment; the CLI's global flags override them.
type Config struct {
	// Translator backend selection: "paid" (DeepL, usage-accounted) or
	// "free" (no usage signal). The API key is required for "paid".
	TranslatorBackend string `env:"TRANSLATOR_BACKEND" envDefault:"free"`
	TranslatorAPIKey  string `env:"TRANSLATOR_API_KEY"`
	TargetLanguage    string `env:"TARGET_LANGUAGE" envDefault:"ES"`

	// Root directory of the content store.
	StoreRoot string `env:"STORE_ROOT" envDefault:"./storage"`

	// Fetcher defaults, overridable per source configuration.
	FetchTimeoutSeconds int `env:"FETCH_TIMEOUT_SECONDS" envDefault:"10"`
	FetchRetries        int `env:"FETCH_RETRIES" envDefault:"3"`
}

// LoadConfig parses FOLIUM_-prefixed environment variables into a Config.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "FOLIUM_"}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints before the engine starts.
func (c *Config) Validate() error {
	switch c.TranslatorBackend {
	case "paid":
		if c.TranslatorAPIKey == "" {
			return fmt.Errorf("config: translator backend %q requires an API key", c.TranslatorBackend)
		}
	case "free":
	default:
		return fmt.Errorf("config: unknown translator backend %q (want paid or free)", c.TranslatorBackend)
	}

	if _, err := utils.NormalizeLanguage(c.TargetLanguage); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("config: fetch timeout must be positive, got %d", c.FetchTimeoutSeconds)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("config: fetch retries must not be negative, got %d", c.FetchRetries)
	}

	return nil
}
