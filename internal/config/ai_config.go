package config

import (
	"errors"
	"fmt"
	"time"
)

type AIConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Key                  string        `mapstructure:"key"`
	Model                string        `mapstructure:"model"`
	MaxRequestsPerMinute float32       `mapstructure:"max_requests_per_minute"`
	MaxRequestsPerDay    float32       `mapstructure:"max_requests_per_day"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryBackoff         time.Duration `mapstructure:"retry_backoff"`
}

func defaultAIConfig() AIConfig {
	return AIConfig{
		Model:                "gemini-1.5-flash",
		MaxRequestsPerMinute: 15,
		MaxRequestsPerDay:    1500,
		RequestTimeout:       15 * time.Second,
		MaxRetries:           3,
		RetryBackoff:         500 * time.Millisecond,
	}
}

func (config AIConfig) validate() error {
	var errs []error

	if config.Enabled && config.Key == "" {
		errs = append(errs, fmt.Errorf("missing variable: key"))
	}
	if config.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive"))
	}
	if config.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max_retries must be at least 1"))
	}
	if config.Enabled && (config.MaxRequestsPerMinute <= 0 || config.MaxRequestsPerDay <= 0) {
		errs = append(errs, fmt.Errorf("rate limits must be positive"))
	}

	return errors.Join(errs...)
}

func (config AIConfig) bindEnvironmentVariables() error {
	return bindAll(map[string]string{
		"ai.enabled":                 "AI_ENABLED",
		"ai.key":                     "AI_KEY",
		"ai.model":                   "AI_MODEL",
		"ai.max_requests_per_minute": "AI_MAX_REQUESTS_PER_MINUTE",
		"ai.max_requests_per_day":    "AI_MAX_REQUESTS_PER_DAY",
		"ai.request_timeout":         "AI_REQUEST_TIMEOUT",
	})
}
