package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// configFile is the flat JSON object persisted at FilePath, keyed by the
// dotted names in specs. Values keep their JSON types until applyFile
// decodes them.
type configFile struct {
	path   string
	values map[string]any
}

// FilePath returns the location of the config file.
func FilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "smartnotes", "config.json")
}

// openConfigFile reads path. A missing file is empty; an unreadable one is
// reported and treated as empty so defaults apply.
func openConfigFile(path string) *configFile {
	f := &configFile{path: path, values: make(map[string]any)}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(data, &f.values); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			f.values = make(map[string]any)
		}
	}
	return f
}

// set stores v under key and rewrites the whole file.
func (f *configFile) set(key string, v any) error {
	f.values[key] = v
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}
