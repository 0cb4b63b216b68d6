package config

import (
	"fmt"

	"github.com/kalambet/smartnotes/internal/gateway"
)

// KeyInfo is one config key as shown by `config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists the effective value of every non-secret key in cfg.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if !s.secret {
			result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
		}
	}
	return result
}

// SetKey validates value for key and persists it to the config file.
// Secrets are refused; they come from the environment only.
func SetKey(key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}

	v, err := s.parse(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	switch key {
	case "query.default_provider":
		p, err := gateway.ParseProvider(value)
		if err != nil {
			return err
		}
		v = string(p)
	default:
		// Durations are stored as written so the file stays readable.
		if s.typ == kDuration {
			v = value
		}
	}
	return openConfigFile(FilePath()).set(key, v)
}

// ValidKeys returns the names SetKey accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}
