// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateSessions(cfg, errs)
	v.validateSecurity(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port != 0 {
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			errs.Add("server.port", "must be between 0 and 65535")
		}
	}
	hasCertKey := cfg.Server.TLSCert != "" || cfg.Server.TLSKey != ""
	if hasCertKey && (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server", "both tls_cert and tls_key must be specified together")
	}
}

func (v *Validator) validateSessions(cfg *Config, errs *ValidationError) {
	if cfg.Sessions.MaxSessions < 0 {
		errs.Add("sessions.max_sessions", "must not be negative")
	}
	if cfg.Sessions.MaxConcurrentSessions < 0 {
		errs.Add("sessions.max_concurrent_sessions", "must not be negative")
	}
}

func (v *Validator) validateSecurity(cfg *Config, errs *ValidationError) {
	validPresets := map[string]bool{"unrestricted": true, "standard": true, "restricted": true}
	if cfg.Security.Preset != "" && !validPresets[cfg.Security.Preset] {
		errs.Add("security.preset", fmt.Sprintf("invalid preset '%s', must be one of: unrestricted, standard, restricted", cfg.Security.Preset))
	}
	for i, pattern := range cfg.Security.BlockedCommands {
		if strings.HasPrefix(pattern, "re:") {
			if _, err := regexp.Compile(strings.TrimPrefix(pattern, "re:")); err != nil {
				errs.Add(fmt.Sprintf("security.blocked_commands[%d]", i), fmt.Sprintf("invalid regex: %s", err))
			}
		}
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.Logging.Level] {
			errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
		}
	}
	if cfg.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[cfg.Logging.Format] {
			errs.Add("logging.format", fmt.Sprintf("invalid format '%s', must be one of: json, text", cfg.Logging.Format))
		}
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	durations := map[string]string{
		"sessions.session_timeout":               cfg.Sessions.SessionTimeout,
		"sessions.backgrounded_session_timeout":  cfg.Sessions.BackgroundedSessionTimeout,
		"sessions.session_warning_time":          cfg.Sessions.SessionWarningTime,
		"sessions.min_timeout_check_interval":    cfg.Sessions.MinTimeoutCheckInterval,
		"sessions.health_check_interval":         cfg.Sessions.HealthCheckInterval,
		"connection.health_check_interval":       cfg.Connection.HealthCheckInterval,
		"connection.reconnection_window":         cfg.Connection.ReconnectionWindow,
		"events.history_max_age":                 cfg.Events.HistoryMaxAge,
	}
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		d, err := parseDurationWithDays(raw)
		if err != nil {
			errs.Add(field, fmt.Sprintf("invalid duration format: %s", err))
		} else if d < 0 {
			errs.Add(field, "must be positive")
		}
	}
}

// parseDurationWithDays parses a duration string that may include days (e.g., "7d").
func parseDurationWithDays(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
