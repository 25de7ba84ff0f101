// Package config loads runtime configuration from an optional config file
// and REFLEX_-prefixed environment variables, env winning.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DatabaseURL selects the store backend: "sqlite:..." or a postgres DSN.
	DatabaseURL string `mapstructure:"database_url"`
	// Provider names the registered completion provider.
	Provider string `mapstructure:"provider"`
	// Model is the provider-specific model identifier.
	Model string `mapstructure:"model"`
	// Workspace is the directory file tools are sandboxed to.
	Workspace string `mapstructure:"workspace"`

	MaxIterations      int           `mapstructure:"max_iterations"`
	ErrorThreshold     int           `mapstructure:"error_threshold"`
	CheckpointInterval int           `mapstructure:"checkpoint_interval"`
	ProviderTimeout    time.Duration `mapstructure:"provider_timeout"`
	ToolTimeout        time.Duration `mapstructure:"tool_timeout"`
	FrameBudget        int           `mapstructure:"frame_budget"`

	// LogLevel is a zap level string: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// TraceStdout enables the stdout trace exporter.
	TraceStdout bool `mapstructure:"trace_stdout"`
}

// Load reads configuration. path may name a config file directly; empty
// path falls back to ./reflex.yaml if present. Environment variables use
// the REFLEX_ prefix with underscores, e.g. REFLEX_DATABASE_URL.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "sqlite:file:reflex.sqlite?cache=shared&_pragma=busy_timeout(5000)")
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "")
	v.SetDefault("workspace", ".")
	v.SetDefault("max_iterations", 0)
	v.SetDefault("error_threshold", 0)
	v.SetDefault("checkpoint_interval", 0)
	v.SetDefault("provider_timeout", time.Duration(0))
	v.SetDefault("tool_timeout", time.Duration(0))
	v.SetDefault("frame_budget", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("trace_stdout", false)

	v.SetEnvPrefix("REFLEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("reflex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database_url is empty")
	}
	return cfg, nil
}
