// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net/url"
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
	v.validateBackend(cfg, errs)
	v.validateBridge(cfg, errs)
	v.validateUI(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 1 and 65535")
	}
}

func (v *Validator) validateBackend(cfg *Config, errs *ValidationError) {
	switch cfg.Backend.Mode {
	case ModeAuto, ModePackaged, ModeDevelopment:
	default:
		errs.Add("backend.mode", fmt.Sprintf("invalid mode '%s', must be one of: auto, packaged, development", cfg.Backend.Mode))
	}

	switch cfg.Backend.StopSignal {
	case "SIGTERM", "SIGINT", "SIGKILL":
	default:
		errs.Add("backend.stop_signal", fmt.Sprintf("invalid signal '%s', must be one of: SIGTERM, SIGINT, SIGKILL", cfg.Backend.StopSignal))
	}

	if cfg.Backend.LogBuffer < 0 {
		errs.Add("backend.log_buffer", "must not be negative")
	}
}

func (v *Validator) validateBridge(cfg *Config, errs *ValidationError) {
	known := make(map[string]bool, len(DefaultCapabilities))
	for _, c := range DefaultCapabilities {
		known[c] = true
	}
	for i, c := range cfg.Bridge.Capabilities {
		if !known[c] {
			errs.Add(fmt.Sprintf("bridge.capabilities[%d]", i), fmt.Sprintf("unknown command '%s'", c))
		}
	}
}

func (v *Validator) validateUI(cfg *Config, errs *ValidationError) {
	switch cfg.UI.Open {
	case OpenBrowser, OpenNone:
	default:
		errs.Add("ui.open", fmt.Sprintf("invalid value '%s', must be one of: browser, none", cfg.UI.Open))
	}

	if cfg.UI.DevServerURL != "" {
		u, err := url.Parse(cfg.UI.DevServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("ui.dev_server_url", fmt.Sprintf("invalid URL '%s', must be an absolute http or https URL", cfg.UI.DevServerURL))
		}
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		errs.Add("logging.format", fmt.Sprintf("invalid format '%s', must be one of: text, json", cfg.Logging.Format))
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	durations := map[string]string{
		"backend.stop_timeout": cfg.Backend.StopTimeout,
		"backend.debounce":     cfg.Backend.Debounce,
		"events.max_age":       cfg.Events.MaxAge,
		"ui.ticket_ttl":        cfg.UI.TicketTTL,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs.Add(field, fmt.Sprintf("invalid duration '%s'", value))
		}
	}
}
