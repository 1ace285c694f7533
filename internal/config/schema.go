// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles the host's own HJSON options file.
//
// These options describe how the host runs (where it keeps its data, how the
// backend is launched, which commands the UI may call). The user-editable
// backend configuration lives in the settings package instead.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Launch modes for the backend process.
const (
	ModeAuto        = "auto"
	ModePackaged    = "packaged"
	ModeDevelopment = "development"
)

// UI open behaviours.
const (
	OpenBrowser = "browser"
	OpenNone    = "none"
)

// Config is the root configuration structure for the host.
type Config struct {
	AppName string        `json:"app_name"`
	DataDir string        `json:"data_dir"`
	Server  ServerConfig  `json:"server"`
	Backend BackendConfig `json:"backend"`
	Events  EventsConfig  `json:"events"`
	Bridge  BridgeConfig  `json:"bridge"`
	UI      UIConfig      `json:"ui"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig configures the command channel listener.
type ServerConfig struct {
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	UIOrigins []string `json:"ui_origins"` // Origins allowed to call the command channel from a browser
}

// BackendConfig configures how the backend service is launched and stopped.
type BackendConfig struct {
	Mode         string `json:"mode"`          // "auto", "packaged" or "development"
	ResourcesDir string `json:"resources_dir"` // Base directory for the packaged executable
	Executable   string `json:"executable"`    // Packaged executable, relative to resources_dir
	Interpreter  string `json:"interpreter"`   // Development interpreter (EASYRAG_PYTHON)
	Module       string `json:"module"`        // Module run with -m
	App          string `json:"app"`           // ASGI application passed to the module
	SourceDir    string `json:"source_dir"`    // Working directory in development mode
	ListenHost   string `json:"listen_host"`
	StopTimeout  string `json:"stop_timeout"`
	StopSignal   string `json:"stop_signal"`
	LogBuffer    int    `json:"log_buffer"`
	WatchBinary  bool   `json:"watch_binary"` // Restart when the packaged executable is replaced
	Debounce     string `json:"debounce"`
}

// EventsConfig configures the in-memory event history.
type EventsConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// BridgeConfig configures the command bridge.
type BridgeConfig struct {
	Capabilities []string `json:"capabilities"`
	TokenFile    string   `json:"token_file"` // Defaults to <data_dir>/bridge.token
}

// UIConfig configures where the UI is loaded from and how it is opened.
type UIConfig struct {
	DevServerURL string `json:"dev_server_url"` // Load the UI from a dev server (EASYRAG_DEV_SERVER_URL)
	DistDir      string `json:"dist_dir"`       // Built UI, defaults to <resources_dir>/frontend-dist
	Open         string `json:"open"`           // "browser" or "none"
	TicketTTL    string `json:"ticket_ttl"`     // How long a launch ticket can be redeemed
}

// TicketTTLDuration returns the launch ticket lifetime.
func (u *UIConfig) TicketTTLDuration() time.Duration {
	return ParseDuration(u.TicketTTL, 2*time.Minute)
}

// DevServerOrigin returns the scheme and host of DevServerURL, or "".
func (u *UIConfig) DevServerOrigin() string {
	if u.DevServerURL == "" {
		return ""
	}
	parsed, err := url.Parse(u.DevServerURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// LoggingConfig configures host logging.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

// ExecutablePath returns the absolute path of the packaged backend executable.
func (b *BackendConfig) ExecutablePath() string {
	if filepath.IsAbs(b.Executable) {
		return b.Executable
	}
	return filepath.Join(b.ResourcesDir, b.Executable)
}

// StopTimeoutDuration returns the graceful stop window.
func (b *BackendConfig) StopTimeoutDuration() time.Duration {
	return ParseDuration(b.StopTimeout, 10*time.Second)
}

// DebounceDuration returns the executable watch debounce.
func (b *BackendConfig) DebounceDuration() time.Duration {
	return ParseDuration(b.Debounce, 500*time.Millisecond)
}

// KBDefaultRoot returns the application-managed knowledge-base root used
// when the user has not chosen one.
func (c *Config) KBDefaultRoot() string {
	return filepath.Join(c.DataDir, "kb")
}

// SettingsPath returns the path of the encrypted settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "config.enc")
}

// PIDFile returns the path where the backend pid is recorded.
func (c *Config) PIDFile() string {
	return filepath.Join(c.DataDir, "backend.pid")
}

// TokenPath returns where the command channel's bearer token is kept.
func (c *Config) TokenPath() string {
	if c.Bridge.TokenFile != "" {
		return c.Bridge.TokenFile
	}
	return filepath.Join(c.DataDir, "bridge.token")
}

// ParseDuration parses a duration string, returning defaultVal on error.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// DefaultDataDir returns the per-user application data directory.
func DefaultDataDir(appName string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, appName)
}

func defaultExecutable() string {
	if runtime.GOOS == "windows" {
		return filepath.Join("backend", "backend.exe")
	}
	return filepath.Join("backend", "backend")
}
