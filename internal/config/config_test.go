package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/smartnotes/internal/gateway"
)

// clearEnv blanks every SMARTNOTES_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
		os.Unsetenv(s.env)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when no config file exists.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(openConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend.BaseURL != "http://127.0.0.1:5000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 0 {
		t.Errorf("Backend.Timeout = %v, want 0", cfg.Backend.Timeout)
	}
	if cfg.Query.DefaultProvider != gateway.ProviderOpenAI {
		t.Errorf("Query.DefaultProvider = %q", cfg.Query.DefaultProvider)
	}
	if cfg.Upload.TextName != "Pasted text" {
		t.Errorf("Upload.TextName = %q", cfg.Upload.TextName)
	}
	if cfg.Upload.RecentLimit != 0 {
		t.Errorf("Upload.RecentLimit = %d, want 0", cfg.Upload.RecentLimit)
	}
	if cfg.Watch.RetryInterval != 2*time.Second {
		t.Errorf("Watch.RetryInterval = %v, want 2s", cfg.Watch.RetryInterval)
	}
	if cfg.Stub.Port != 5000 {
		t.Errorf("Stub.Port = %d, want 5000", cfg.Stub.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "backend.base_url": "http://notes.internal:8080",
  "backend.timeout": "30s",
  "query.default_provider": "anthropic",
  "upload.recent_limit": 10,
  "stub.port": 5050,
  "watch.retry_interval": 1500
}`)

	cfg, err := loadWith(openConfigFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://notes.internal:8080" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Backend.Timeout = %v", cfg.Backend.Timeout)
	}
	if cfg.Query.DefaultProvider != gateway.ProviderAnthropic {
		t.Errorf("Query.DefaultProvider = %q", cfg.Query.DefaultProvider)
	}
	if cfg.Upload.RecentLimit != 10 {
		t.Errorf("Upload.RecentLimit = %d", cfg.Upload.RecentLimit)
	}
	if cfg.Stub.Port != 5050 {
		t.Errorf("Stub.Port = %d", cfg.Stub.Port)
	}
	if cfg.Watch.RetryInterval != 1500*time.Millisecond {
		t.Errorf("Watch.RetryInterval = %v, want 1.5s from a bare millisecond count", cfg.Watch.RetryInterval)
	}
}

func TestFileBadValues(t *testing.T) {
	clearEnv(t)

	for _, content := range []string{
		`{"stub.port": 50.5}`,
		`{"upload.recent_limit": "lots"}`,
		`{"watch.dir": 7}`,
	} {
		if _, err := loadWith(openConfigFile(writeTempConfig(t, content))); err == nil {
			t.Errorf("%s: expected error", content)
		}
	}

	cfg, err := loadWith(openConfigFile(writeTempConfig(t, `{"watch.retry_interval": "whenever", "stub.port": "6000"}`)))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.RetryInterval != 2*time.Second {
		t.Errorf("Watch.RetryInterval = %v, want default", cfg.Watch.RetryInterval)
	}
	if cfg.Stub.Port != 6000 {
		t.Errorf("Stub.Port = %d, want 6000 from a quoted number", cfg.Stub.Port)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"backend.base_url": "http://from-file:1"}`)

	t.Setenv("SMARTNOTES_BACKEND_BASE_URL", "http://from-env:2")
	t.Setenv("SMARTNOTES_BACKEND_API_TOKEN", "secret")
	t.Setenv("SMARTNOTES_WATCH_RETRY_INTERVAL", "250ms")

	cfg, err := loadWith(openConfigFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://from-env:2" {
		t.Errorf("Backend.BaseURL = %q, want env value", cfg.Backend.BaseURL)
	}
	if cfg.Backend.APIToken != "secret" {
		t.Errorf("Backend.APIToken = %q", cfg.Backend.APIToken)
	}
	if cfg.Watch.RetryInterval != 250*time.Millisecond {
		t.Errorf("Watch.RetryInterval = %v", cfg.Watch.RetryInterval)
	}
}

func TestSecretIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"backend.api_token": "leaked"}`)

	cfg, err := loadWith(openConfigFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.APIToken != "" {
		t.Errorf("Backend.APIToken = %q, want secrets read from env only", cfg.Backend.APIToken)
	}
}

func TestInvalidProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTNOTES_QUERY_DEFAULT_PROVIDER", "gemini")

	_, err := loadWith(openConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	if err == nil || !strings.Contains(err.Error(), "query.default_provider") {
		t.Fatalf("err = %v, want provider error", err)
	}
}

func TestProviderNormalized(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTNOTES_QUERY_DEFAULT_PROVIDER", "  Anthropic ")

	cfg, err := loadWith(openConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Query.DefaultProvider != gateway.ProviderAnthropic {
		t.Errorf("Query.DefaultProvider = %q", cfg.Query.DefaultProvider)
	}
}

func TestBadDurationFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTNOTES_BACKEND_TIMEOUT", "soon")
	t.Setenv("SMARTNOTES_STUB_PORT", "not-a-port")

	cfg, err := loadWith(openConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Timeout != 0 {
		t.Errorf("Backend.Timeout = %v, want default", cfg.Backend.Timeout)
	}
	if cfg.Stub.Port != 5000 {
		t.Errorf("Stub.Port = %d, want default", cfg.Stub.Port)
	}
}

func TestNegativeRecentLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTNOTES_UPLOAD_RECENT_LIMIT", "-1")

	if _, err := loadWith(openConfigFile(filepath.Join(t.TempDir(), "missing.json"))); err == nil {
		t.Fatal("expected error for negative recent limit")
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("upload.recent_limit", "5"); err != nil {
		t.Fatal(err)
	}
	if err := SetKey("watch.retry_interval", "3s"); err != nil {
		t.Fatal(err)
	}
	if err := SetKey("query.default_provider", "ANTHROPIC"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(FilePath())
	if err != nil {
		t.Fatal(err)
	}
	var stored map[string]any
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatal(err)
	}
	if stored["query.default_provider"] != "anthropic" {
		t.Errorf("stored provider = %v", stored["query.default_provider"])
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upload.RecentLimit != 5 || cfg.Watch.RetryInterval != 3*time.Second {
		t.Errorf("loaded %+v", cfg.Upload)
	}
}

func TestSetKeyRejects(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		key, value, want string
	}{
		{"backend.api_token", "x", "secret"},
		{"nope.key", "x", "unknown config key"},
		{"stub.port", "many", "invalid value for stub.port"},
		{"watch.retry_interval", "later", "invalid value for watch.retry_interval"},
		{"upload.message_ttl", "10s", "unknown config key"},
		{"query.default_provider", "gemini", "unknown provider"},
	}
	for _, tt := range tests {
		err := SetKey(tt.key, tt.value)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("SetKey(%q, %q) = %v, want error containing %q", tt.key, tt.value, err, tt.want)
		}
	}
	if _, err := os.Stat(FilePath()); !os.IsNotExist(err) {
		t.Error("rejected values must not create the config file")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Backend.APIToken = "secret"

	for _, ki := range ShowAll(cfg) {
		if ki.Key == "backend.api_token" || ki.Value == "secret" {
			t.Errorf("ShowAll exposed %s", ki.Key)
		}
	}
	if len(ShowAll(cfg)) != len(ValidKeys()) {
		t.Errorf("ShowAll and ValidKeys disagree")
	}
}

func TestDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)

	env := "SMARTNOTES_BACKEND_API_TOKEN=from-dotenv\nSMARTNOTES_LOG_LEVEL=debug\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SMARTNOTES_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.APIToken != "from-dotenv" {
		t.Errorf("Backend.APIToken = %q", cfg.Backend.APIToken)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, .env must not override the environment", cfg.Log.Level)
	}
}
