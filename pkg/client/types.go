// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Configuration is the host's persisted settings record.
type Configuration struct {
	DeepseekAPIKey string `json:"deepseekApiKey"`
	QwenAPIKey     string `json:"qwenApiKey"`

	// KBRootPath is empty when the host manages the knowledge base location.
	KBRootPath string `json:"kbRootPath"`

	APIPort int `json:"apiPort"`
}

// Backend process states.
const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateCrashed  = "crashed"
)

// BackendStatus describes the backend process.
type BackendStatus struct {
	State     string    `json:"state"`
	PID       int       `json:"pid,omitempty"`
	Port      int       `json:"port,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`

	// ExitCode and Error describe the last exit or failed launch.
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

// Running reports whether the backend process is up.
func (s BackendStatus) Running() bool {
	return s.State == StateRunning
}

// Event is an entry in the host's event history.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
