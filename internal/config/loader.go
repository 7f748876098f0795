// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for companion.hjson first, then companion.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"companion.hjson",
		"companion.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for companion.hjson, companion.json)")
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Session lifecycle defaults, per the timeout tiers this server enforces.
	if cfg.Sessions.MaxSessions == 0 {
		cfg.Sessions.MaxSessions = 20
	}
	if cfg.Sessions.MaxConcurrentSessions == 0 {
		cfg.Sessions.MaxConcurrentSessions = cfg.Sessions.MaxSessions
	}
	if cfg.Sessions.SessionTimeout == "" {
		cfg.Sessions.SessionTimeout = "30m"
	}
	if cfg.Sessions.BackgroundedSessionTimeout == "" {
		cfg.Sessions.BackgroundedSessionTimeout = "24h"
	}
	if cfg.Sessions.SessionWarningTime == "" {
		cfg.Sessions.SessionWarningTime = "5m"
	}
	if cfg.Sessions.MinTimeoutCheckInterval == "" {
		cfg.Sessions.MinTimeoutCheckInterval = "30s"
	}
	if cfg.Sessions.HealthCheckInterval == "" {
		cfg.Sessions.HealthCheckInterval = "1m"
	}
	if cfg.Sessions.MaxMemoryPerSessionMB == 0 {
		cfg.Sessions.MaxMemoryPerSessionMB = 512
	}
	if cfg.Sessions.MaxTotalMemoryMB == 0 {
		cfg.Sessions.MaxTotalMemoryMB = 4096
	}

	// Connection defaults
	if cfg.Connection.HealthCheckInterval == "" {
		cfg.Connection.HealthCheckInterval = "30s"
	}
	if cfg.Connection.ReconnectionWindow == "" {
		cfg.Connection.ReconnectionWindow = "2m"
	}

	// Security defaults
	if cfg.Security.Preset == "" {
		cfg.Security.Preset = "standard"
	}
	if cfg.Security.AuditCapacity == 0 {
		cfg.Security.AuditCapacity = 1000
	}
	if cfg.Security.MaxFileSizeBytes == 0 {
		cfg.Security.MaxFileSizeBytes = 10 * 1024 * 1024
	}

	// Assistant defaults
	if cfg.Assistant.Binary == "" {
		cfg.Assistant.Binary = "claude"
	}
	if cfg.Assistant.PermissionMode == "" {
		cfg.Assistant.PermissionMode = "default"
	}

	// Events defaults
	if cfg.Events.HistoryMaxEvents == 0 {
		cfg.Events.HistoryMaxEvents = 10000
	}
	if cfg.Events.HistoryMaxAge == "" {
		cfg.Events.HistoryMaxAge = "1h"
	}
}
