// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package service supervises the backend process.
package service

import (
	"fmt"
	"time"
)

// ProcessState represents the state of the backend process.
type ProcessState int

const (
	StatusStopped ProcessState = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusCrashed
)

func (s ProcessState) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s ProcessState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts the string representation.
func (s *ProcessState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"stopped"`:
		*s = StatusStopped
	case `"starting"`:
		*s = StatusStarting
	case `"running"`:
		*s = StatusRunning
	case `"stopping"`:
		*s = StatusStopping
	case `"crashed"`:
		*s = StatusCrashed
	default:
		return fmt.Errorf("unknown process state %s", data)
	}
	return nil
}

// Status is a snapshot of the supervised backend.
type Status struct {
	State     ProcessState `json:"state"`
	PID       int          `json:"pid,omitempty"`
	Port      int          `json:"port,omitempty"`
	Mode      string       `json:"mode,omitempty"`
	StartedAt time.Time    `json:"started_at,omitempty"`
	StoppedAt time.Time    `json:"stopped_at,omitempty"`
	ExitCode  int          `json:"exit_code"`
	Error     string       `json:"error,omitempty"`
}

// LaunchError reports that the backend could not be spawned.
type LaunchError struct {
	Mode string
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s backend %s: %v", e.Mode, e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
