// Package config provides configuration for the modelgate service.
//
// Configuration is loaded from an optional YAML file plus environment
// variables using Viper, with sensible defaults for development. This package
// handles the HTTP port, credential storage settings, upstream vendor keys,
// and OAuth client registrations.
//
// # Environment Variables
//
//   - PORT: HTTP server port. Default: 8317
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - AUTH_DIR: Directory for the file token store. Default: ~/.modelgate
//   - STORE_BACKEND: Token store backend (file, gorm, redis). Default: file
//   - DB_TYPE / DSN: Database settings for the gorm backend
//   - REDIS_ADDR: Address for the redis backend
//   - SECRET_KEY: HMAC secret for management API tokens
//
// # YAML File
//
// A config file may be supplied via LoadConfigFile. Vendor key lists and
// OAuth clients are normally configured there:
//
//	providers:
//	  gemini:
//	    - api_key: AIza...
//	  claude:
//	    - api_key: sk-ant-...
//	      base_url: https://api.anthropic.com
//	oauth_clients:
//	  gemini:
//	    client_id: ...
//	    client_secret: ...
//	    redirect_url: http://localhost:8317/v1/auth/gemini/callback
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port     int    `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Credential storage.
	AuthDir      string `mapstructure:"AUTH_DIR"`
	StoreBackend string `mapstructure:"STORE_BACKEND"` // file, gorm, redis
	DBType       string `mapstructure:"DB_TYPE"`       // sqlite, postgres, mysql
	DSN          string `mapstructure:"DSN"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`

	// Management API.
	SecretKey string `mapstructure:"SECRET_KEY"`

	// Outbound HTTP.
	ProxyURL         string `mapstructure:"PROXY_URL"`
	RequestRetry     int    `mapstructure:"REQUEST_RETRY"`
	MaxRetryInterval int    `mapstructure:"MAX_RETRY_INTERVAL"` // seconds

	QuotaExceeded QuotaExceeded `mapstructure:"QUOTA_EXCEEDED"`

	// Upstream vendor API keys, keyed by provider name.
	Providers map[string][]UpstreamKey `mapstructure:"PROVIDERS"`

	// OAuth client registrations, keyed by provider name.
	OAuthClients map[string]OAuthClient `mapstructure:"OAUTH_CLIENTS"`
}

// QuotaExceeded controls behavior when an upstream reports quota exhaustion.
type QuotaExceeded struct {
	// SwitchProject retries the request under the next configured key.
	SwitchProject bool `mapstructure:"switch_project"`
	// SwitchPreviewModel falls back to the preview variant of the model.
	SwitchPreviewModel bool `mapstructure:"switch_preview_model"`
}

// UpstreamKey is one configured credential for an upstream vendor.
type UpstreamKey struct {
	APIKey   string            `mapstructure:"api_key"`
	BaseURL  string            `mapstructure:"base_url"`
	Priority int               `mapstructure:"priority"`
	Enabled  *bool             `mapstructure:"enabled"`
	Headers  map[string]string `mapstructure:"headers"`
}

// IsEnabled reports whether the key participates in upstream selection.
// Keys are enabled unless explicitly disabled.
func (k UpstreamKey) IsEnabled() bool {
	return k.Enabled == nil || *k.Enabled
}

// OAuthClient holds OAuth2 client settings for a provider that supports
// browser-based authorization.
type OAuthClient struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", 8317)
	v.SetDefault("AUTH_DIR", "~/.modelgate")
	v.SetDefault("STORE_BACKEND", "file")
	v.SetDefault("DB_TYPE", "sqlite")
	v.SetDefault("DSN", "modelgate.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REQUEST_RETRY", 3)
	v.SetDefault("MAX_RETRY_INTERVAL", 30)
	v.SetDefault("QUOTA_EXCEEDED.switch_project", true)
	v.SetDefault("QUOTA_EXCEEDED.switch_preview_model", true)
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

// LoadConfigFile loads configuration from a YAML file, with environment
// variables taking precedence over file values.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.AuthDir = expandHome(cfg.AuthDir)
	return &cfg, nil
}

// ProviderKeys returns the configured keys for a provider, or nil.
func (c *Config) ProviderKeys(provider string) []UpstreamKey {
	return c.Providers[strings.ToLower(provider)]
}

// OAuthClientFor returns the OAuth client settings for a provider, or nil if
// none are configured.
func (c *Config) OAuthClientFor(provider string) *OAuthClient {
	if oc, ok := c.OAuthClients[strings.ToLower(provider)]; ok {
		return &oc
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
