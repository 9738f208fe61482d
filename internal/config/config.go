// Package config loads process configuration from layered sources: compiled-in
// defaults, an optional YAML file, then environment variables, which win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "OBS_"
	configEnvVar = "CONFIG_PATH"
)

// Config is the fully resolved process configuration.
type Config struct {
	NodeEnv string `koanf:"node_env"`
	Port    int    `koanf:"port"`
	LogLevel string `koanf:"log_level"`

	DatabaseURL string `koanf:"database_url"`

	JWTSecret               string        `koanf:"jwt_secret"`
	JWTAccessExpiresIn      time.Duration `koanf:"jwt_access_expires_in"`
	JWTRefreshExpiresInDays int           `koanf:"jwt_refresh_expires_in_days"`

	WorkerURL         string `koanf:"worker_url"`
	SQSQueueURL       string `koanf:"sqs_queue_url"`
	Region            string `koanf:"region"`
	ConsoleFrontendURL string `koanf:"console_frontend_url"`

	JobFabricMode       string        `koanf:"job_fabric_mode"`
	NatsURL             string        `koanf:"nats_url"`
	NatsStream          string        `koanf:"nats_stream"`
	RedisURL            string        `koanf:"redis_url"`
	WorkerPoolSize      int           `koanf:"worker_pool_size"`
	MetricWindowSeconds int           `koanf:"metric_window_seconds"`
	MetricBatchSize     int           `koanf:"metric_batch_size"`
	MetricFlushInterval time.Duration `koanf:"metric_flush_interval"`
	ReplayBaseURL       string        `koanf:"replay_base_url"`
	DLQRingSize         int           `koanf:"dlq_ring_size"`
}

// IsProduction reports whether the process is running in production or staging.
func (c *Config) IsProduction() bool {
	return c.NodeEnv == "production" || c.NodeEnv == "staging"
}

// Validate enforces the cross-field rules the environment-variable table requires.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.IsProduction() {
		if c.Region == "" {
			return fmt.Errorf("REGION is required in production/staging")
		}
		if c.JobFabricMode == "remote" && c.SQSQueueURL == "" && c.NatsURL == "" {
			return fmt.Errorf("a broker URL is required in production/staging when JOB_FABRIC_MODE=remote")
		}
	}
	if c.JobFabricMode == "remote" && c.NatsURL == "" {
		return fmt.Errorf("OBS_NATS_URL is required when OBS_JOB_FABRIC_MODE=remote")
	}
	return nil
}

// Loader composes the default/file/env layers into a Config.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
}

// NewLoader constructs a Loader with the conventional config file search paths.
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/observability/config.yaml",
		},
	}
}

// Load resolves defaults, then an optional file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	l.loadConfigFile() // optional; absence is not an error

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"node_env":  "development",
		"port":      3000,
		"log_level": "info",

		"jwt_access_expires_in":      15 * time.Minute,
		"jwt_refresh_expires_in_days": 7,

		"job_fabric_mode":       "local",
		"nats_stream":           "OBS_JOBS",
		"worker_pool_size":      4,
		"metric_window_seconds": 60,
		"metric_batch_size":     50,
		"metric_flush_interval": 5 * time.Second,
		"dlq_ring_size":         200,
	}
	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() {
	if path := os.Getenv(configEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			_ = l.k.Load(file.Provider(path), yaml.Parser())
			return
		}
	}
	for _, path := range l.configPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			_ = l.k.Load(file.Provider(abs), yaml.Parser())
			return
		}
	}
}

func (l *Loader) loadEnv() error {
	// Map both the spec's bare env vars (DATABASE_URL, PORT, ...) and the
	// OBS_-prefixed extensions (§6.1) onto the same dotted key space.
	aliases := map[string]string{
		"NODE_ENV":                    "node_env",
		"PORT":                        "port",
		"LOG_LEVEL":                   "log_level",
		"DATABASE_URL":                "database_url",
		"JWT_SECRET":                  "jwt_secret",
		"JWT_ACCESS_EXPIRES_IN":       "jwt_access_expires_in",
		"JWT_REFRESH_EXPIRES_IN_DAYS": "jwt_refresh_expires_in_days",
		"WORKER_URL":                  "worker_url",
		"SQS_QUEUE_URL":               "sqs_queue_url",
		"REGION":                      "region",
		"CONSOLE_FRONTEND_URL":        "console_frontend_url",
	}
	if err := l.k.Load(env.ProviderWithValue("", ".", func(s, v string) (string, any) {
		if key, ok := aliases[s]; ok {
			return key, v
		}
		if strings.HasPrefix(s, envPrefix) {
			key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
			return key, v
		}
		return "", nil
	}), nil); err != nil {
		return err
	}
	return nil
}

// Load is a convenience wrapper around NewLoader().Load().
func Load() (*Config, error) {
	return NewLoader().Load()
}
