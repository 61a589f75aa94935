// Package config loads the federation configuration from environment
// variables (prefix TRUEWATCH_), optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvPrefix is the prefix for all environment variables.
const DefaultEnvPrefix = "TRUEWATCH_"

// Defaults.
const (
	DefaultMaxMessagesPerMinute = 60
	DefaultRetentionDays        = 30
	DefaultEvictionBatchSize    = 50
)

// Config holds settings for both the node-side client and the aggregator.
type Config struct {
	// Bus connection
	Servers        []string
	Username       string
	Password       string
	Token          string
	CredsFile      string
	TLS            bool
	AllowReconnect bool
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration

	// Publish policy
	MaxMessagesPerMinute int
	PrivacyChecks        bool

	// Node-side telemetry
	HeartbeatInterval time.Duration
	CredentialPath    string
	Version           string
	Continent         string

	// Aggregator
	DatabaseURL        string
	PublishInterval    time.Duration
	CleanupInterval    time.Duration
	RetentionDays      int
	EvictionInterval   time.Duration
	StaleThreshold     time.Duration
	EvictionBatchSize  int
	EvictionBatchDelay time.Duration
	MetricsAddr        string

	// Logging
	LogLevel string
}

// Load builds the configuration: defaults, then the optional YAML file named
// by TRUEWATCH_CONFIG_FILE, then environment variable overrides.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	loader := NewEnvLoader(DefaultEnvPrefix)
	loader.LoadAll()

	cfg := defaults()

	if path := loader.GetString("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	var err error

	cfg.Servers = loader.GetStringSlice("SERVERS", cfg.Servers)
	cfg.Username = loader.GetString("USERNAME", cfg.Username)
	cfg.Password = loader.GetString("PASSWORD", cfg.Password)
	cfg.Token = loader.GetString("TOKEN", cfg.Token)
	cfg.CredsFile = loader.GetString("CREDS_FILE", cfg.CredsFile)
	cfg.TLS = loader.GetBool("TLS", cfg.TLS)
	cfg.AllowReconnect = loader.GetBool("ALLOW_RECONNECT", cfg.AllowReconnect)

	if cfg.MaxReconnects, err = loader.GetInt("MAX_RECONNECTS", cfg.MaxReconnects); err != nil {
		return nil, err
	}
	if cfg.ReconnectWait, err = loader.GetDuration("RECONNECT_WAIT", cfg.ReconnectWait); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = loader.GetDuration("CONNECT_TIMEOUT", cfg.ConnectTimeout); err != nil {
		return nil, err
	}

	if cfg.MaxMessagesPerMinute, err = loader.GetInt("MAX_MESSAGES_PER_MINUTE", cfg.MaxMessagesPerMinute); err != nil {
		return nil, err
	}
	cfg.PrivacyChecks = loader.GetBool("PRIVACY_CHECKS", cfg.PrivacyChecks)

	if cfg.HeartbeatInterval, err = loader.GetDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval); err != nil {
		return nil, err
	}
	cfg.CredentialPath = loader.GetString("CREDENTIAL_PATH", cfg.CredentialPath)
	cfg.Version = loader.GetString("VERSION", cfg.Version)
	cfg.Continent = loader.GetString("CONTINENT", cfg.Continent)

	cfg.DatabaseURL = loader.GetString("DATABASE_URL", cfg.DatabaseURL)
	if cfg.PublishInterval, err = loader.GetDuration("PUBLISH_INTERVAL", cfg.PublishInterval); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = loader.GetDuration("CLEANUP_INTERVAL", cfg.CleanupInterval); err != nil {
		return nil, err
	}
	if cfg.RetentionDays, err = loader.GetInt("RETENTION_DAYS", cfg.RetentionDays); err != nil {
		return nil, err
	}
	if cfg.EvictionInterval, err = loader.GetDuration("EVICTION_INTERVAL", cfg.EvictionInterval); err != nil {
		return nil, err
	}
	if cfg.StaleThreshold, err = loader.GetDuration("STALE_THRESHOLD", cfg.StaleThreshold); err != nil {
		return nil, err
	}
	if cfg.EvictionBatchSize, err = loader.GetInt("EVICTION_BATCH_SIZE", cfg.EvictionBatchSize); err != nil {
		return nil, err
	}
	if cfg.EvictionBatchDelay, err = loader.GetDuration("EVICTION_BATCH_DELAY", cfg.EvictionBatchDelay); err != nil {
		return nil, err
	}
	cfg.MetricsAddr = loader.GetString("METRICS_ADDR", cfg.MetricsAddr)

	cfg.LogLevel = loader.GetString("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Servers:              []string{"tls://connect.ngs.global"},
		TLS:                  true,
		AllowReconnect:       true,
		MaxReconnects:        -1,
		ReconnectWait:        2 * time.Second,
		ConnectTimeout:       10 * time.Second,
		MaxMessagesPerMinute: DefaultMaxMessagesPerMinute,
		PrivacyChecks:        true,
		HeartbeatInterval:    time.Minute,
		Version:              "1.0.0",
		PublishInterval:      30 * time.Second,
		CleanupInterval:      24 * time.Hour,
		RetentionDays:        DefaultRetentionDays,
		EvictionInterval:     5 * time.Minute,
		StaleThreshold:       5 * time.Minute,
		EvictionBatchSize:    DefaultEvictionBatchSize,
		EvictionBatchDelay:   25 * time.Millisecond,
		MetricsAddr:          ":9100",
		LogLevel:             "info",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server is required")
	}
	if c.MaxMessagesPerMinute <= 0 {
		return fmt.Errorf("max messages per minute must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.PublishInterval <= 0 {
		return fmt.Errorf("publish interval must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive")
	}
	if c.EvictionInterval <= 0 {
		return fmt.Errorf("eviction interval must be positive")
	}
	if c.StaleThreshold <= 0 {
		return fmt.Errorf("stale threshold must be positive")
	}
	if c.EvictionBatchSize <= 0 {
		return fmt.Errorf("eviction batch size must be positive")
	}
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// RetentionWindow returns the retention period as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
