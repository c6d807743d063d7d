// Package config reads process configuration from the environment once at startup.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Backend selects where knowledge-base context is read from.
type Backend string

const (
	BackendAuto     Backend = ""
	BackendNone     Backend = "none"
	BackendSupabase Backend = "supabase"
	BackendDynamoDB Backend = "dynamodb"
	BackendSQLite   Backend = "sqlite"
)

// Config holds everything cmd/main.go needs to wire the service.
type Config struct {
	APIKey            string `mapstructure:"perplexity_api_key"`
	ParamPrefix       string `mapstructure:"param_prefix"`
	CompletionBaseURL string `mapstructure:"completion_base_url"`
	CompletionModel   string `mapstructure:"completion_model"`
	ContextBackend    string `mapstructure:"context_backend"`
	SupabaseURL       string `mapstructure:"supabase_url"`
	SupabaseAnonKey   string `mapstructure:"supabase_anon_key"`
	KBTable           string `mapstructure:"kb_table"`
	KBSQLitePath      string `mapstructure:"kb_sqlite_path"`
	LogLevel          string `mapstructure:"log_level"`
}

var keys = []string{
	"perplexity_api_key",
	"param_prefix",
	"completion_base_url",
	"completion_model",
	"context_backend",
	"supabase_url",
	"supabase_anon_key",
	"kb_table",
	"kb_sqlite_path",
	"log_level",
}

// Load reads configuration from environment variables (PERPLEXITY_API_KEY,
// SUPABASE_URL, ...) over built-in defaults.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("completion_base_url", "https://api.perplexity.ai")
	v.SetDefault("completion_model", "sonar")
	v.SetDefault("kb_table", "kb_chunks")
	v.SetDefault("log_level", "info")

	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if _, err := cfg.Backend(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Backend resolves the knowledge-base backend. In auto mode Supabase is used
// when both URL and key are present; otherwise context fetching is off.
// An explicitly chosen backend must have its settings.
func (c *Config) Backend() (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(c.ContextBackend))); b {
	case BackendAuto:
		if c.SupabaseURL != "" && c.SupabaseAnonKey != "" {
			return BackendSupabase, nil
		}
		return BackendNone, nil
	case BackendNone:
		return BackendNone, nil
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return "", fmt.Errorf("config: %s backend requires SUPABASE_URL and SUPABASE_ANON_KEY", b)
		}
		return b, nil
	case BackendDynamoDB:
		if strings.TrimSpace(c.KBTable) == "" {
			return "", fmt.Errorf("config: %s backend requires KB_TABLE", b)
		}
		return b, nil
	case BackendSQLite:
		if c.KBSQLitePath == "" {
			return "", fmt.Errorf("config: %s backend requires KB_SQLITE_PATH", b)
		}
		return b, nil
	default:
		return "", fmt.Errorf("config: unknown CONTEXT_BACKEND %q", c.ContextBackend)
	}
}

// UsesParamStore reports whether the completion key must be read from SSM.
func (c *Config) UsesParamStore() bool {
	return strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.ParamPrefix) != ""
}

// SlogLevel parses LOG_LEVEL, defaulting to info for unknown values.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
