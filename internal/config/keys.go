package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/kalambet/smartnotes/internal/gateway"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "backend.base_url", typ: kString, env: "SMARTNOTES_BACKEND_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.BaseURL },
	},
	{
		key: "backend.api_token", typ: kString, env: "SMARTNOTES_BACKEND_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Backend.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.APIToken },
	},
	{
		key: "backend.timeout", typ: kDuration, env: "SMARTNOTES_BACKEND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Backend.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Backend.Timeout },
	},
	{
		key: "query.default_provider", typ: kString, env: "SMARTNOTES_QUERY_DEFAULT_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Query.DefaultProvider = gateway.Provider(v.(string)) },
		extract: func(cfg Config) any { return cfg.Query.DefaultProvider },
	},
	{
		key: "upload.text_name", typ: kString, env: "SMARTNOTES_UPLOAD_TEXT_NAME",
		apply:   func(cfg *Config, v any) { cfg.Upload.TextName = v.(string) },
		extract: func(cfg Config) any { return cfg.Upload.TextName },
	},
	{
		key: "upload.recent_limit", typ: kInt, env: "SMARTNOTES_UPLOAD_RECENT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Upload.RecentLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Upload.RecentLimit },
	},
	{
		key: "watch.dir", typ: kString, env: "SMARTNOTES_WATCH_DIR",
		apply:   func(cfg *Config, v any) { cfg.Watch.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Watch.Dir },
	},
	{
		key: "watch.retry_interval", typ: kDuration, env: "SMARTNOTES_WATCH_RETRY_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Watch.RetryInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Watch.RetryInterval },
	},
	{
		key: "stub.port", typ: kInt, env: "SMARTNOTES_STUB_PORT",
		apply:   func(cfg *Config, v any) { cfg.Stub.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Stub.Port },
	},
	{
		key: "log.level", typ: kString, env: "SMARTNOTES_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "SMARTNOTES_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

// decode converts a value read from the config file to the key's type.
// Numbers in a duration field are milliseconds.
func (s keySpec) decode(raw any) (any, error) {
	switch s.typ {
	case kInt:
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("%v is not an integer", v)
			}
			return int(v), nil
		case string:
			return strconv.Atoi(v)
		}
	case kDuration:
		switch v := raw.(type) {
		case float64:
			return parseDuration(strconv.FormatFloat(v, 'f', -1, 64))
		case string:
			return parseDuration(v)
		}
	default:
		if v, ok := raw.(string); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unexpected %T", raw)
}

// applyFile copies file values onto cfg. Secrets in the file are ignored.
// A bad duration falls back to the default; any other bad value is an
// error.
func applyFile(cfg *Config, f *configFile) error {
	for _, s := range specs {
		raw, ok := f.values[s.key]
		if !ok || s.secret {
			continue
		}
		v, err := s.decode(raw)
		if err != nil {
			if s.typ == kDuration {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%v: %v. Using default value.\n", s.key, raw, err)
				continue
			}
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// parse converts a command-line or environment string to the key's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kDuration:
		return parseDuration(raw)
	}
	return raw, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// parseDuration accepts Go duration strings and bare integers as
// milliseconds.
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration")
	}
	return d, nil
}
