package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderNone   LLMProvider = ""
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

const (
	AssetSourceTelegram = "telegram"
	AssetSourceHTTP     = "http"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"data/history.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// History and export
	MessageLimit  int           `env:"MESSAGE_LIMIT" envDefault:"4000"`
	ExportTimeout time.Duration `env:"EXPORT_TIMEOUT" envDefault:"2m"`
	PDFFontPath   string        `env:"PDF_FONT_PATH"`

	// Assets
	AssetWorkers      int           `env:"ASSET_WORKERS" envDefault:"4"`
	AssetSource       string        `env:"ASSET_SOURCE" envDefault:"telegram"`
	AssetBaseURL      string        `env:"ASSET_BASE_URL"`
	AssetAuthToken    string        `env:"ASSET_AUTH_TOKEN"`
	AssetFetchTimeout time.Duration `env:"ASSET_FETCH_TIMEOUT" envDefault:"30s"`

	// Tombstone compaction
	CompactSchedule    string        `env:"COMPACT_SCHEDULE" envDefault:"0 3 * * *"`
	TombstoneRetention time.Duration `env:"TOMBSTONE_RETENTION" envDefault:"720h"`

	// LLM summaries (optional)
	SummaryEnabled   bool        `env:"SUMMARY_ENABLED" envDefault:"false"`
	LLMProvider      LLMProvider `env:"LLM_PROVIDER"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`
}

// Parse reads the environment without validating, for callers that
// override values before calling Validate.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.AssetSource {
	case AssetSourceTelegram:
	case AssetSourceHTTP:
		if c.AssetBaseURL == "" {
			return fmt.Errorf("ASSET_BASE_URL is required for the http asset source")
		}
	default:
		return fmt.Errorf("unknown ASSET_SOURCE %q", c.AssetSource)
	}
	if c.MessageLimit <= 0 || c.MessageLimit > 4096 {
		return fmt.Errorf("MESSAGE_LIMIT must be in 1..4096, got %d", c.MessageLimit)
	}
	if c.AssetWorkers <= 0 {
		return fmt.Errorf("ASSET_WORKERS must be positive, got %d", c.AssetWorkers)
	}
	if c.SummaryEnabled {
		switch c.LLMProvider {
		case ProviderOpenAI, ProviderYandex:
		default:
			return fmt.Errorf("SUMMARY_ENABLED requires LLM_PROVIDER openai or yandex, got %q", c.LLMProvider)
		}
	}
	return nil
}

// DSN returns the data source for the configured store driver.
func (c *Config) DSN() string {
	if c.StoreDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}
