package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables with the NOVAQ_ prefix.
// Environment variables take precedence over file values. Nested keys
// use underscores, e.g. NOVAQ_WORKER_MAX_CONCURRENT.
// Returns a populated Config or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NOVAQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from the
		// environment. Any other read error is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values so a minimal environment only
// needs the database URL and the auth secret.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8085)

	// Registering empty defaults makes env-only keys visible to
	// Unmarshal; validation still rejects them when left unset.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("droid.gemini_api_key", "")
	v.SetDefault("notifier.nsqd_addr", "")

	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("worker.poll_interval_ms", 1000)
	v.SetDefault("worker.max_concurrent", 2)
	v.SetDefault("worker.job_types", []string{})
	v.SetDefault("worker.shutdown_grace_seconds", 30)
	v.SetDefault("worker.verbose", false)
	v.SetDefault("worker.max_conversation_locks", 10)

	v.SetDefault("notifier.progress_interval_ms", 30000)
	v.SetDefault("notifier.progress_percent_step", 10)
	v.SetDefault("notifier.nsq_topic", "nova.outbound")

	v.SetDefault("droid.model_name", "gemini-2.0-flash")
}
