package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/history")
	t.Setenv("MESSAGE_LIMIT", "1000")
	t.Setenv("EXPORT_TIMEOUT", "30s")
	t.Setenv("ASSET_SOURCE", "http")
	t.Setenv("ASSET_BASE_URL", "https://assets.example.com")
	t.Setenv("ASSET_WORKERS", "8")
	t.Setenv("SUMMARY_ENABLED", "true")
	t.Setenv("LLM_PROVIDER", "yandex")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DSN() != "postgres://localhost/history" {
		t.Errorf("unexpected dsn %q", cfg.DSN())
	}
	if cfg.MessageLimit != 1000 || cfg.ExportTimeout != 30*time.Second || cfg.AssetWorkers != 8 {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.TombstoneRetention != 720*time.Hour || cfg.CompactSchedule != "0 3 * * *" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.LLMProvider != ProviderYandex || !cfg.SummaryEnabled {
		t.Errorf("llm settings not parsed: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := Config{StoreDriver: "sqlite", DBPath: "x.db", AssetSource: AssetSourceTelegram, MessageLimit: 4000, AssetWorkers: 4}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config rejected: %v", err)
	}
	if base.DSN() != "x.db" {
		t.Errorf("unexpected dsn %q", base.DSN())
	}

	cases := map[string]func(c *Config){
		"unknown driver":  func(c *Config) { c.StoreDriver = "mysql" },
		"postgres no url": func(c *Config) { c.StoreDriver = "postgres" },
		"http no base":    func(c *Config) { c.AssetSource = AssetSourceHTTP },
		"unknown source":  func(c *Config) { c.AssetSource = "s3" },
		"limit too large": func(c *Config) { c.MessageLimit = 5000 },
		"no workers":      func(c *Config) { c.AssetWorkers = 0 },
		"summary no llm":  func(c *Config) { c.SummaryEnabled = true },
		"summary bad llm": func(c *Config) { c.SummaryEnabled, c.LLMProvider = true, "gigachat" },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
