package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables use the SENTIQ_ prefix with
// underscores for nesting (e.g. SENTIQ_SERVER_PORT) and take precedence
// over file values. Returns a populated Config or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sentiq")

	v.SetEnvPrefix("SENTIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly so Unmarshal sees
	// their environment values.
	for _, key := range []string{
		"database.url",
		"redis.addr",
		"redis.password",
		"redis.db",
		"analyzer.gemini_api_key",
		"analyzer.model_name",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values so a bare environment still yields
// a runnable local configuration (aside from the database URL).
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("worker.poll_interval", 1)
	v.SetDefault("worker.error_backoff", 5)
	v.SetDefault("worker.dwell_seconds", 5)
	v.SetDefault("worker.batch_size", 100)

	v.SetDefault("analyzer.provider", "lexicon")
	v.SetDefault("analyzer.max_retries", 3)
	v.SetDefault("analyzer.retry_delay_seconds", 2)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", 10*1024*1024)
}
