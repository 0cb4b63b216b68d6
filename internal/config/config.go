package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/kalambet/smartnotes/internal/gateway"
)

type Config struct {
	Backend BackendConfig
	Query   QueryConfig
	Upload  UploadConfig
	Watch   WatchConfig
	Stub    StubConfig
	Log     LogConfig
}

type BackendConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

type QueryConfig struct {
	DefaultProvider gateway.Provider
}

// UploadConfig holds upload settings. The success banner lifetime is not
// configurable; it is always ingestion.DefaultMessageTTL.
type UploadConfig struct {
	TextName    string
	RecentLimit int
}

type WatchConfig struct {
	Dir           string
	RetryInterval time.Duration
}

type StubConfig struct {
	Port int
}

type LogConfig struct {
	Level string
	File  string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:5000",
		},
		Query: QueryConfig{
			DefaultProvider: gateway.ProviderOpenAI,
		},
		Upload: UploadConfig{
			TextName: "Pasted text",
		},
		Watch: WatchConfig{
			RetryInterval: 2 * time.Second,
		},
		Stub: StubConfig{
			Port: 5000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/smartnotes/config.json, then applies SMARTNOTES_*
// environment variables on top. A .env file in the working directory is
// loaded first; it never overrides variables already set.
//
// Secrets (the backend API token) are read from the environment only.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(openConfigFile(FilePath()))
}

func loadWith(f *configFile) (Config, error) {
	cfg := defaults()

	if err := applyFile(&cfg, f); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	p, err := gateway.ParseProvider(string(c.Query.DefaultProvider))
	if err != nil {
		return fmt.Errorf("invalid query.default_provider: %w", err)
	}
	c.Query.DefaultProvider = p

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("missing required config: backend.base_url")
	}
	if c.Upload.RecentLimit < 0 {
		return fmt.Errorf("invalid upload.recent_limit %d: must be >= 0", c.Upload.RecentLimit)
	}
	if c.Stub.Port <= 0 || c.Stub.Port > 65535 {
		return fmt.Errorf("invalid stub.port %d", c.Stub.Port)
	}
	return nil
}
