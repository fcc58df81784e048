// Package config loads configuration from a TOML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all monk-fuse configuration. Precedence is defaults, then
// the TOML file, then MONK_FTP_* environment variables; command-line flags
// are applied last by the caller.
type Config struct {
	// FTP endpoint
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Passphrase string `toml:"passphrase"`

	// Transport: "ftp" (structured client) or "plain" (raw listing)
	Transport string `toml:"transport"`

	DialTimeout time.Duration `toml:"dial_timeout"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Metrics endpoint; empty disables it
	MetricsAddr string `toml:"metrics_addr"`

	// Mount target, from the positional argument; created if absent
	MountPoint string `toml:"-"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Host:        "127.0.0.1",
		Port:        2121,
		User:        "anonymous",
		Transport:   "ftp",
		DialTimeout: 30 * time.Second,
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

// Load builds a Config from defaults, an optional TOML file, and the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Host = envOr("MONK_FTP_HOST", c.Host)
	c.Port = envInt("MONK_FTP_PORT", c.Port)
	c.User = envOr("MONK_FTP_USER", c.User)
	c.Passphrase = envOr("MONK_FTP_PASSPHRASE", c.Passphrase)
	c.Transport = envOr("MONK_FTP_TRANSPORT", c.Transport)
	c.LogLevel = envOr("MONK_FTP_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("MONK_FTP_LOG_FORMAT", c.LogFormat)
	c.MetricsAddr = envOr("MONK_FTP_METRICS_ADDR", c.MetricsAddr)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
