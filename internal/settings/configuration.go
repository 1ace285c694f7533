// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package settings owns the user's persisted backend configuration.
//
// The record is small (two credentials, a knowledge-base root and a port),
// always stored in normalized form, and encrypted at rest with a key derived
// from the local user and host name. See DeriveKey for the threat model.
package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hjson/hjson-go/v4"
)

// DefaultPort is used whenever the port is missing or not a number.
const DefaultPort = 8000

// Field names of the persisted record.
const (
	FieldDeepseekAPIKey = "deepseekApiKey"
	FieldQwenAPIKey     = "qwenApiKey"
	FieldKBRootPath     = "kbRootPath"
	FieldAPIPort        = "apiPort"
)

// Configuration is the persisted backend configuration.
type Configuration struct {
	DeepseekAPIKey string `json:"deepseekApiKey"`
	QwenAPIKey     string `json:"qwenApiKey"`
	KBRootPath     string `json:"kbRootPath"` // empty means the application-managed default
	APIPort        int    `json:"apiPort"`
}

// Defaults returns the configuration used before anything is saved.
func Defaults() Configuration {
	return Configuration{APIPort: DefaultPort}
}

// Redacted returns a copy with credentials masked, suitable for logs.
func (c Configuration) Redacted() Configuration {
	if c.DeepseekAPIKey != "" {
		c.DeepseekAPIKey = "***"
	}
	if c.QwenAPIKey != "" {
		c.QwenAPIKey = "***"
	}
	return c
}

// Partial is an unnormalized configuration as sent by the UI. Values keep
// whatever JSON type the caller used, so the port may arrive as a number, a
// numeric string, an empty string or not at all.
type Partial map[string]interface{}

// ParsePartial decodes a JSON or HJSON object into a Partial.
func ParsePartial(data []byte) (Partial, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Partial{}, nil
	}
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return Partial(raw), nil
}

// ValidationError contains every field that could not be normalized.
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
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Normalize trims strings and coerces the port. A missing, empty, zero or
// non-numeric port becomes DefaultPort; a numeric port outside [1, 65535]
// is rejected.
func Normalize(raw Partial) (Configuration, error) {
	errs := &ValidationError{}
	cfg := Configuration{
		DeepseekAPIKey: normalizeString(raw, FieldDeepseekAPIKey, errs),
		QwenAPIKey:     normalizeString(raw, FieldQwenAPIKey, errs),
		KBRootPath:     normalizeString(raw, FieldKBRootPath, errs),
		APIPort:        normalizePort(raw[FieldAPIPort], errs),
	}
	if len(errs.Errors) > 0 {
		return Configuration{}, errs
	}
	return cfg, nil
}

func normalizeString(raw Partial, field string, errs *ValidationError) string {
	switch v := raw[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		errs.Add(field, fmt.Sprintf("must be a string, got %T", v))
		return ""
	}
}

func normalizePort(v interface{}, errs *ValidationError) int {
	var f float64
	switch p := v.(type) {
	case nil:
		return DefaultPort
	case float64:
		f = p
	case int:
		f = float64(p)
	case int64:
		f = float64(p)
	case json.Number:
		n, err := p.Float64()
		if err != nil {
			return DefaultPort
		}
		f = n
	case string:
		s := strings.TrimSpace(p)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return DefaultPort
		}
		f = n
	default:
		return DefaultPort
	}

	if f == 0 || math.IsNaN(f) {
		return DefaultPort
	}
	if f != math.Trunc(f) {
		errs.Add(FieldAPIPort, fmt.Sprintf("must be an integer, got %v", f))
		return 0
	}
	if f < 1 || f > 65535 {
		errs.Add(FieldAPIPort, fmt.Sprintf("must be between 1 and 65535, got %v", f))
		return 0
	}
	return int(f)
}
