package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay shape. Durations are strings in Go
// duration syntax. Only set fields override the running defaults;
// environment variables still win over the file.
type fileConfig struct {
	Servers              []string `yaml:"servers"`
	Username             string   `yaml:"username"`
	Password             string   `yaml:"password"`
	Token                string   `yaml:"token"`
	CredsFile            string   `yaml:"creds_file"`
	TLS                  *bool    `yaml:"tls"`
	AllowReconnect       *bool    `yaml:"allow_reconnect"`
	MaxReconnects        *int     `yaml:"max_reconnects"`
	ReconnectWait        string   `yaml:"reconnect_wait"`
	ConnectTimeout       string   `yaml:"connect_timeout"`
	MaxMessagesPerMinute int      `yaml:"max_messages_per_minute"`
	PrivacyChecks        *bool    `yaml:"privacy_checks"`
	HeartbeatInterval    string   `yaml:"heartbeat_interval"`
	CredentialPath       string   `yaml:"credential_path"`
	Version              string   `yaml:"version"`
	Continent            string   `yaml:"continent"`
	DatabaseURL          string   `yaml:"database_url"`
	PublishInterval      string   `yaml:"publish_interval"`
	CleanupInterval      string   `yaml:"cleanup_interval"`
	RetentionDays        int      `yaml:"retention_days"`
	EvictionInterval     string   `yaml:"eviction_interval"`
	StaleThreshold       string   `yaml:"stale_threshold"`
	EvictionBatchSize    int      `yaml:"eviction_batch_size"`
	EvictionBatchDelay   string   `yaml:"eviction_batch_delay"`
	MetricsAddr          string   `yaml:"metrics_addr"`
	LogLevel             string   `yaml:"log_level"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(fc.Servers) > 0 {
		c.Servers = fc.Servers
	}
	if fc.Username != "" {
		c.Username = fc.Username
	}
	if fc.Password != "" {
		c.Password = fc.Password
	}
	if fc.Token != "" {
		c.Token = fc.Token
	}
	if fc.CredsFile != "" {
		c.CredsFile = fc.CredsFile
	}
	if fc.TLS != nil {
		c.TLS = *fc.TLS
	}
	if fc.AllowReconnect != nil {
		c.AllowReconnect = *fc.AllowReconnect
	}
	if fc.MaxReconnects != nil {
		c.MaxReconnects = *fc.MaxReconnects
	}
	if fc.MaxMessagesPerMinute > 0 {
		c.MaxMessagesPerMinute = fc.MaxMessagesPerMinute
	}
	if fc.PrivacyChecks != nil {
		c.PrivacyChecks = *fc.PrivacyChecks
	}
	if fc.CredentialPath != "" {
		c.CredentialPath = fc.CredentialPath
	}
	if fc.Version != "" {
		c.Version = fc.Version
	}
	if fc.Continent != "" {
		c.Continent = fc.Continent
	}
	if fc.DatabaseURL != "" {
		c.DatabaseURL = fc.DatabaseURL
	}
	if fc.RetentionDays > 0 {
		c.RetentionDays = fc.RetentionDays
	}
	if fc.EvictionBatchSize > 0 {
		c.EvictionBatchSize = fc.EvictionBatchSize
	}
	if fc.MetricsAddr != "" {
		c.MetricsAddr = fc.MetricsAddr
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}

	for _, d := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{fc.ReconnectWait, &c.ReconnectWait, "reconnect_wait"},
		{fc.ConnectTimeout, &c.ConnectTimeout, "connect_timeout"},
		{fc.HeartbeatInterval, &c.HeartbeatInterval, "heartbeat_interval"},
		{fc.PublishInterval, &c.PublishInterval, "publish_interval"},
		{fc.CleanupInterval, &c.CleanupInterval, "cleanup_interval"},
		{fc.EvictionInterval, &c.EvictionInterval, "eviction_interval"},
		{fc.StaleThreshold, &c.StaleThreshold, "stale_threshold"},
		{fc.EvictionBatchDelay, &c.EvictionBatchDelay, "eviction_batch_delay"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}
