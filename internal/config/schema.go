// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the companion server.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Version    string           `json:"version"`
	Server     ServerConfig     `json:"server"`
	Sessions   SessionsConfig   `json:"sessions"`
	Connection ConnectionConfig `json:"connection"`
	Security   SecurityConfig   `json:"security"`
	Assistant  AssistantConfig  `json:"assistant"`
	Worktree   WorktreeConfig   `json:"worktree"`
	Events     EventsConfig     `json:"events"`
	Logging    LoggingConfig    `json:"logging"`
	Push       PushConfig       `json:"push"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"` // with TLSKey set, the listener serves HTTPS
	TLSKey  string `json:"tls_key"`
}

// SessionsConfig configures session lifecycle limits and timeouts.
type SessionsConfig struct {
	MaxSessions                int    `json:"max_sessions"`
	SessionTimeout              string `json:"session_timeout"`
	BackgroundedSessionTimeout  string `json:"backgrounded_session_timeout"`
	SessionWarningTime          string `json:"session_warning_time"`
	MinTimeoutCheckInterval     string `json:"min_timeout_check_interval"`
	MaxConcurrentSessions       int    `json:"max_concurrent_sessions"`
	MaxMemoryPerSessionMB       int    `json:"max_memory_per_session_mb"`
	MaxTotalMemoryMB            int    `json:"max_total_memory_mb"`
	HealthCheckInterval         string `json:"health_check_interval"`
}

// ConnectionConfig configures client connection/reconnection behavior.
type ConnectionConfig struct {
	HealthCheckInterval string `json:"health_check_interval"`
	ReconnectionWindow  string `json:"reconnection_window"`
}

// SecurityConfig configures the command-security policy.
type SecurityConfig struct {
	Preset             string   `json:"preset"` // unrestricted, standard, restricted
	SafeDirectories    []string `json:"safe_directories"`
	BlockedCommands    []string `json:"blocked_commands"` // literal or "re:<pattern>"
	ReadOnlyMode       bool     `json:"read_only_mode"`
	RequireConfirmation bool    `json:"require_confirmation"`
	EnableAudit        bool     `json:"enable_audit"`
	MaxFileSizeBytes   int64    `json:"max_file_size_bytes"`
	AuditCapacity      int      `json:"audit_capacity"`
}

// AssistantConfig configures the locally installed AI coding assistant binary.
type AssistantConfig struct {
	Binary           string   `json:"binary"`
	PermissionMode   string   `json:"permission_mode"`
	AllowedTools     []string `json:"allowed_tools"`
	DisallowedTools  []string `json:"disallowed_tools"`
	SkipPermissions  bool     `json:"skip_permissions"`
	UsePTY           bool     `json:"use_pty"`
}

// WorktreeConfig restricts where sessions are allowed to run.
type WorktreeConfig struct {
	SafeRoot string `json:"safe_root"`
}

// EventsConfig configures the internal event bus's history retention.
type EventsConfig struct {
	HistoryMaxEvents int    `json:"history_max_events"`
	HistoryMaxAge    string `json:"history_max_age"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "json", "text"
}

// PushConfig configures the push-notification collaborator.
type PushConfig struct {
	Enabled bool `json:"enabled"`
}

// ParseDuration parses a duration string, returning a default if empty or invalid.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := parseDurationWithDays(s)
	if err != nil {
		return defaultVal
	}
	return d
}
