// Package config loads the task engine's environment-driven configuration
// using struct tags, env and envDefault.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/schoolbot/lockbox/pkg/db"
	"github.com/schoolbot/lockbox/pkg/logger"
)

// Config is the full process configuration, assembled from environment
// variables at startup.
type Config struct {
	// Credential vault master key, used to derive the AES and HMAC keys.
	CredentialKey     string `env:"LOCKBOX_CREDENTIAL_KEY"`
	CredentialKeyFile string `env:"LOCKBOX_CREDENTIAL_KEY_FILE"`

	// School filter; 0 means "no filter, require exactly one school".
	School int `env:"LOCKBOX_SCHOOL" envDefault:"0"`

	// Base URL of the school portal's HTTP API.
	PortalBaseURL string `env:"LOCKBOX_PORTAL_BASE_URL,required"`

	// Local-time windows, "HH:MM:SS-HH:MM:SS".
	CheckDayRunTime string `env:"LOCKBOX_CHECK_DAY_RUN_TIME" envDefault:"04:00:00-04:00:00"`
	FillFormRunTime string `env:"LOCKBOX_FILL_FORM_RUN_TIME" envDefault:"07:00:00-09:00:00"`

	// Cron expression for the check-day periodic safety-net seed; fires
	// regardless of whether the self-rescheduling chain is still alive.
	CheckDayCronSchedule string `env:"LOCKBOX_CHECK_DAY_CRON_SCHEDULE" envDefault:"0 3 * * *"`

	FillFormRetryLimit int `env:"LOCKBOX_FILL_FORM_RETRY_LIMIT" envDefault:"3"`
	FillFormRetryIn    int `env:"LOCKBOX_FILL_FORM_RETRY_IN" envDefault:"1800"`

	FillFormSubmitEnabled bool `env:"LOCKBOX_FILL_FORM_SUBMIT_ENABLED" envDefault:"false"`

	UpdateCoursesBatchSize int `env:"LOCKBOX_UPDATE_COURSES_BATCH_SIZE" envDefault:"3"`
	UpdateCoursesInterval  int `env:"LOCKBOX_UPDATE_COURSES_INTERVAL" envDefault:"60"` // seconds

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	PrivateDB db.Config `envPrefix:"PRIVATE_"`
	SharedDB  db.Config `envPrefix:"SHARED_"`

	RedisConnURL string `env:"REDIS_CONN_URL" envDefault:"redis://localhost:6379/0"`

	StorageBucket    string `env:"STORAGE_BUCKET"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY"`
	StorageEndpoint  string `env:"STORAGE_ENDPOINT"`
	StorageRegion    string `env:"STORAGE_REGION" envDefault:"us-east-1"`

	SentryConfig logger.SentryConfig
}

// Load parses environment variables into Config and validates that a
// credential key source is present; absence of both is a fatal
// configuration error.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if cfg.CredentialKey == "" && cfg.CredentialKeyFile == "" {
		return nil, fmt.Errorf("config: one of LOCKBOX_CREDENTIAL_KEY or LOCKBOX_CREDENTIAL_KEY_FILE is required")
	}

	return &cfg, nil
}
