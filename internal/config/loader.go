// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
	"github.com/joho/godotenv"
)

// Environment variables that override the options file.
const (
	EnvPython       = "EASYRAG_PYTHON"
	EnvBackendMode  = "EASYRAG_BACKEND_MODE"
	EnvResourcesDir = "EASYRAG_RESOURCES_DIR"
	EnvDataDir      = "EASYRAG_DATA_DIR"
	EnvDevServerURL = "EASYRAG_DEV_SERVER_URL"
)

// DefaultCapabilities lists every command the bridge can expose.
var DefaultCapabilities = []string{
	"config:get",
	"config:save",
	"dialog:select-directory",
	"backend:status",
	"backend:restart",
	"backend:logs",
}

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

// LoadWithDefaults loads config with .env overrides and default values applied.
// An empty path yields a default configuration.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg := &Config{}
	envFile := ".env"
	if path != "" {
		loaded, err := l.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}

	// Real environment wins over .env
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for easyrag.hjson first, then easyrag.json. A missing file is not
// an error; an empty path is returned.
func (l *Loader) FindConfig() string {
	candidates := []string{
		"easyrag.hjson",
		"easyrag.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path
			}
			return abs
		}
	}
	return ""
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPython); v != "" {
		cfg.Backend.Interpreter = v
	}
	if v := os.Getenv(EnvBackendMode); v != "" {
		cfg.Backend.Mode = v
	}
	if v := os.Getenv(EnvResourcesDir); v != "" {
		cfg.Backend.ResourcesDir = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvDevServerURL); v != "" {
		cfg.UI.DevServerURL = v
	}
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "EasyRAG"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir(cfg.AppName)
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}

	// Backend defaults
	if cfg.Backend.Mode == "" {
		cfg.Backend.Mode = ModeAuto
	}
	if cfg.Backend.ResourcesDir == "" {
		if exe, err := os.Executable(); err == nil {
			cfg.Backend.ResourcesDir = filepath.Join(filepath.Dir(exe), "resources")
		}
	}
	if cfg.Backend.Executable == "" {
		cfg.Backend.Executable = defaultExecutable()
	}
	if cfg.Backend.Interpreter == "" {
		cfg.Backend.Interpreter = "python"
	}
	if cfg.Backend.Module == "" {
		cfg.Backend.Module = "uvicorn"
	}
	if cfg.Backend.App == "" {
		cfg.Backend.App = "main:app"
	}
	if cfg.Backend.SourceDir == "" {
		cfg.Backend.SourceDir = "backend"
	}
	if cfg.Backend.ListenHost == "" {
		cfg.Backend.ListenHost = "127.0.0.1"
	}
	if cfg.Backend.StopTimeout == "" {
		cfg.Backend.StopTimeout = "10s"
	}
	if cfg.Backend.StopSignal == "" {
		cfg.Backend.StopSignal = "SIGTERM"
	}
	if cfg.Backend.LogBuffer == 0 {
		cfg.Backend.LogBuffer = 1000
	}

	// Events defaults
	if cfg.Events.MaxEvents == 0 {
		cfg.Events.MaxEvents = 1000
	}
	if cfg.Events.MaxAge == "" {
		cfg.Events.MaxAge = "1h"
	}

	// Bridge defaults
	if cfg.Bridge.Capabilities == nil {
		cfg.Bridge.Capabilities = append([]string(nil), DefaultCapabilities...)
	}

	// UI defaults
	if cfg.UI.DistDir == "" && cfg.Backend.ResourcesDir != "" {
		cfg.UI.DistDir = filepath.Join(cfg.Backend.ResourcesDir, "frontend-dist")
	}
	if cfg.UI.Open == "" {
		cfg.UI.Open = OpenBrowser
	}
	if cfg.UI.TicketTTL == "" {
		cfg.UI.TicketTTL = "2m"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
