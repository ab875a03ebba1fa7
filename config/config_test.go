package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 8317 {
		t.Errorf("Port = %d, want 8317", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.StoreBackend != "file" {
		t.Errorf("StoreBackend = %q, want file", cfg.StoreBackend)
	}
	if cfg.DBType != "sqlite" || cfg.DSN != "modelgate.db" {
		t.Errorf("db defaults = %q / %q", cfg.DBType, cfg.DSN)
	}
	if cfg.RequestRetry != 3 || cfg.MaxRetryInterval != 30 {
		t.Errorf("retry defaults = %d / %d", cfg.RequestRetry, cfg.MaxRetryInterval)
	}
	if !cfg.QuotaExceeded.SwitchProject || !cfg.QuotaExceeded.SwitchPreviewModel {
		t.Errorf("quota defaults = %+v", cfg.QuotaExceeded)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_BACKEND", "redis")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9000 || cfg.LogLevel != "debug" || cfg.StoreBackend != "redis" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 9100
secret_key: s3cret
providers:
  gemini:
    - api_key: AIza-one
      priority: 1
    - api_key: AIza-two
      enabled: false
  claude:
    - api_key: sk-ant-test
      base_url: https://api.anthropic.com
oauth_clients:
  gemini:
    client_id: client-1
    client_secret: shh
    redirect_url: http://localhost:9100/callback
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Port != 9100 || cfg.SecretKey != "s3cret" {
		t.Fatalf("file values not applied: %+v", cfg)
	}

	keys := cfg.ProviderKeys("Gemini")
	if len(keys) != 2 {
		t.Fatalf("gemini keys = %d, want 2", len(keys))
	}
	if keys[0].APIKey != "AIza-one" || !keys[0].IsEnabled() {
		t.Fatalf("first key = %+v", keys[0])
	}
	if keys[1].IsEnabled() {
		t.Fatal("explicitly disabled key reported enabled")
	}
	if claude := cfg.ProviderKeys("claude"); len(claude) != 1 || claude[0].BaseURL != "https://api.anthropic.com" {
		t.Fatalf("claude keys = %+v", claude)
	}

	oc := cfg.OAuthClientFor("gemini")
	if oc == nil || oc.ClientID != "client-1" {
		t.Fatalf("oauth client = %+v", oc)
	}
	if cfg.OAuthClientFor("openai") != nil {
		t.Fatal("unconfigured oauth client must be nil")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/.modelgate"); got != filepath.Join(home, ".modelgate") {
		t.Fatalf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path changed: %q", got)
	}
}
