// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"reviewpulse.yaml",
	"reviewpulse.yml",
	"/etc/reviewpulse/config.yaml",
	"/etc/reviewpulse/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "REVIEWPULSE_CONFIG"

// Config is the daemon's process-level configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Bridge  BridgeConfig  `koanf:"bridge"`
	Gateway GatewayConfig `koanf:"gateway"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the admin/debug HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StorageConfig configures the embedded BadgerDB layer.
type StorageConfig struct {
	Path       string        `koanf:"path"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// BridgeConfig configures the localhost connection to the mobile shell.
type BridgeConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// GatewayConfig tunes the review invocation gateway.
type GatewayConfig struct {
	StoreURL            string        `koanf:"store_url"`
	MaxRetries          int           `koanf:"max_retries"`
	RetryDelay          time.Duration `koanf:"retry_delay"`
	AvailabilityTTL     time.Duration `koanf:"availability_ttl"`
	RatePerMinute       int           `koanf:"rate_per_minute"`
	FallbackOnAllErrors bool          `koanf:"fallback_on_all_errors"`
	FallbackAlert       bool          `koanf:"fallback_alert"`
}

// LoggingConfig configures the zerolog layer.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultDaemonConfig returns the built-in defaults. They are applied
// first, then overridden by config file and env vars.
func defaultDaemonConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            7433,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Storage: StorageConfig{
			Path:       "/data/reviewpulse",
			GCInterval: 10 * time.Minute,
		},
		Bridge: BridgeConfig{
			URL:     "http://127.0.0.1:7434",
			Timeout: 10 * time.Second,
		},
		Gateway: GatewayConfig{
			StoreURL:            "",
			MaxRetries:          3,
			RetryDelay:          time.Second,
			AvailabilityTTL:     5 * time.Minute,
			RatePerMinute:       6,
			FallbackOnAllErrors: false,
			FallbackAlert:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads the daemon configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultDaemonConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks structural sanity of the daemon configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Bridge.URL == "" {
		return fmt.Errorf("bridge.url must not be empty")
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway.max_retries must be >= 0, got %d", c.Gateway.MaxRetries)
	}
	if c.Gateway.RatePerMinute < 1 {
		return fmt.Errorf("gateway.rate_per_minute must be >= 1, got %d", c.Gateway.RatePerMinute)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

// findConfigFile searches the env override and then the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists the config paths that accept comma-separated
// strings from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices
// for the known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped so random environment noise cannot
// leak into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"cors_origins":          "server.cors_origins",
		"rate_limit_requests":   "server.rate_limit_reqs",
		"rate_limit_window":     "server.rate_limit_window",

		"storage_path":        "storage.path",
		"storage_gc_interval": "storage.gc_interval",

		"bridge_url":     "bridge.url",
		"bridge_timeout": "bridge.timeout",

		"store_url":                      "gateway.store_url",
		"gateway_max_retries":            "gateway.max_retries",
		"gateway_retry_delay":            "gateway.retry_delay",
		"gateway_availability_ttl":       "gateway.availability_ttl",
		"gateway_rate_per_minute":        "gateway.rate_per_minute",
		"gateway_fallback_on_all_errors": "gateway.fallback_on_all_errors",
		"gateway_fallback_alert_enabled": "gateway.fallback_alert",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
