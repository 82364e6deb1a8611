// Package config provides application configuration loading and management.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultJWTSecret     = "your-secret-key-change-in-production"
	defaultJobSecret     = "local-job-trigger-secret"
	defaultCredentialKey = "ZGV2ZWxvcG1lbnQta2V5LWRvLW5vdC11c2UtaW4tcHI="
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath             string `mapstructure:"DB_SQLITE_PATH"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JobTriggerSecret        string `mapstructure:"JOB_TRIGGER_SECRET"`
	CredentialEncryptionKey string `mapstructure:"CREDENTIAL_ENCRYPTION_KEY"`

	PublisherBaseURL        string  `mapstructure:"PUBLISHER_BASE_URL"`
	PublisherTimeoutSeconds int     `mapstructure:"PUBLISHER_TIMEOUT_SECONDS"`
	PublisherRatePerSecond  float64 `mapstructure:"PUBLISHER_RATE_PER_SECOND"`

	LLMURL            string  `mapstructure:"LLM_URL"`
	LLMAPIKey         string  `mapstructure:"LLM_API_KEY"`
	LLMModel          string  `mapstructure:"LLM_MODEL"`
	LLMMaxConcurrency int     `mapstructure:"LLM_MAX_CONCURRENCY"`
	LLMTemperature    float64 `mapstructure:"LLM_TEMPERATURE"`

	DispatchBatchSize       int  `mapstructure:"DISPATCH_BATCH_SIZE"`
	DispatchConcurrency     int  `mapstructure:"DISPATCH_CONCURRENCY"`
	DispatchLeaseEnabled    bool `mapstructure:"DISPATCH_LEASE_ENABLED"`
	DispatchLeaseTTLSeconds int  `mapstructure:"DISPATCH_LEASE_TTL_SECONDS"`

	FollowerConcurrency                int `mapstructure:"FOLLOWER_CONCURRENCY"`
	FollowerSnapshotMinIntervalMinutes int `mapstructure:"FOLLOWER_SNAPSHOT_MIN_INTERVAL_MINUTES"`

	SchedulerFallbackIntervalMinutes int `mapstructure:"SCHEDULER_FALLBACK_INTERVAL_MINUTES"`

	CronDispatchSchedule string `mapstructure:"CRON_DISPATCH_SCHEDULE"`
	CronFollowerSchedule string `mapstructure:"CRON_FOLLOWER_SCHEDULE"`

	// FeatureFlags is a comma separated name=value list, e.g. "content_generation=25%".
	FeatureFlags string `mapstructure:"FEATURE_FLAGS"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "follower_maker")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "follower_maker.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("JOB_TRIGGER_SECRET", defaultJobSecret)
	viper.SetDefault("CREDENTIAL_ENCRYPTION_KEY", defaultCredentialKey)

	viper.SetDefault("PUBLISHER_BASE_URL", "https://api.x.com")
	viper.SetDefault("PUBLISHER_TIMEOUT_SECONDS", 15)
	viper.SetDefault("PUBLISHER_RATE_PER_SECOND", 5)

	viper.SetDefault("LLM_URL", "")
	viper.SetDefault("LLM_API_KEY", "")
	viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
	viper.SetDefault("LLM_MAX_CONCURRENCY", 4)
	viper.SetDefault("LLM_TEMPERATURE", 0.8)

	viper.SetDefault("DISPATCH_BATCH_SIZE", 50)
	viper.SetDefault("DISPATCH_CONCURRENCY", 10)
	viper.SetDefault("DISPATCH_LEASE_ENABLED", false)
	viper.SetDefault("DISPATCH_LEASE_TTL_SECONDS", 120)

	viper.SetDefault("FOLLOWER_CONCURRENCY", 10)
	viper.SetDefault("FOLLOWER_SNAPSHOT_MIN_INTERVAL_MINUTES", 0)

	viper.SetDefault("SCHEDULER_FALLBACK_INTERVAL_MINUTES", 60)

	viper.SetDefault("CRON_DISPATCH_SCHEDULE", "0 */5 * * * *")
	viper.SetDefault("CRON_FOLLOWER_SCHEDULE", "0 0 0 * * *")

	viper.SetDefault("FEATURE_FLAGS", "content_generation=on")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.Env = strings.TrimSpace(c.Env)
}

// IsProduction reports whether the production hardening rules apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JobTriggerSecret == "" {
		return errors.New("JOB_TRIGGER_SECRET is required")
	}
	switch c.DBDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if _, err := c.CredentialKey(); err != nil {
		return err
	}
	if c.DispatchBatchSize < 0 || c.DispatchConcurrency < 0 || c.FollowerConcurrency < 0 {
		return errors.New("dispatch and follower sizes must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.JobTriggerSecret == defaultJobSecret || len(c.JobTriggerSecret) < 32 {
			return errors.New("JOB_TRIGGER_SECRET must be a non-default value of at least 32 characters in production")
		}
		if c.CredentialEncryptionKey == defaultCredentialKey {
			return errors.New("CREDENTIAL_ENCRYPTION_KEY must be changed from the default value in production")
		}
		if c.DBDriver == "sqlite" {
			return errors.New("DB_DRIVER sqlite is not supported in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// CredentialKey decodes CREDENTIAL_ENCRYPTION_KEY, a base64 encoded 32 byte key.
func (c *Config) CredentialKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.CredentialEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// PublisherTimeout is the per-request bound on publishing platform calls.
func (c *Config) PublisherTimeout() time.Duration {
	return secondsOr(c.PublisherTimeoutSeconds, 15)
}

// DispatchLeaseTTL is how long a dispatch lease is held before it expires.
func (c *Config) DispatchLeaseTTL() time.Duration {
	return secondsOr(c.DispatchLeaseTTLSeconds, 120)
}

// FollowerSnapshotMinInterval is the minimum age of the latest snapshot before
// another is recorded. Zero disables the check.
func (c *Config) FollowerSnapshotMinInterval() time.Duration {
	if c.FollowerSnapshotMinIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.FollowerSnapshotMinIntervalMinutes) * time.Minute
}

// SchedulerFallbackInterval spaces assignments for owners without slots.
func (c *Config) SchedulerFallbackInterval() time.Duration {
	if c.SchedulerFallbackIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.SchedulerFallbackIntervalMinutes) * time.Minute
}

// DBConnMaxLifetime is the maximum lifetime of a pooled connection.
func (c *Config) DBConnMaxLifetime() time.Duration {
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.DBConnMaxLifetimeMinutes) * time.Minute
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
