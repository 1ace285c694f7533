// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/wingedpig/easyrag/internal/config"
)

// Launch describes how the backend is spawned. The set of strategies is
// closed: PackagedLaunch and DevelopmentLaunch.
type Launch interface {
	// Mode returns config.ModePackaged or config.ModeDevelopment.
	Mode() string
	// Executable returns the program that is executed.
	Executable() string

	command(port int) (args []string, dir string)
}

// PackagedLaunch runs a bundled backend executable with no arguments.
// The executable reads its port from the environment.
type PackagedLaunch struct {
	ExecutablePath string
}

func (l PackagedLaunch) Mode() string       { return config.ModePackaged }
func (l PackagedLaunch) Executable() string { return l.ExecutablePath }

func (l PackagedLaunch) command(port int) ([]string, string) {
	return []string{l.ExecutablePath}, ""
}

// DevelopmentLaunch runs the backend from source through an interpreter:
// <interpreter> -m <module> <app> --host <host> --port <port>.
type DevelopmentLaunch struct {
	Interpreter string
	Module      string
	App         string
	Host        string
	Cwd         string
}

func (l DevelopmentLaunch) Mode() string       { return config.ModeDevelopment }
func (l DevelopmentLaunch) Executable() string { return l.Interpreter }

func (l DevelopmentLaunch) command(port int) ([]string, string) {
	return []string{
		l.Interpreter, "-m", l.Module, l.App,
		"--host", l.Host,
		"--port", strconv.Itoa(port),
	}, l.Cwd
}

// NewLaunch picks the launch strategy for the backend options. In auto mode
// the packaged executable is used when it exists.
func NewLaunch(cfg config.BackendConfig) Launch {
	packaged := PackagedLaunch{ExecutablePath: cfg.ExecutablePath()}
	dev := DevelopmentLaunch{
		Interpreter: cfg.Interpreter,
		Module:      cfg.Module,
		App:         cfg.App,
		Host:        cfg.ListenHost,
		Cwd:         cfg.SourceDir,
	}
	if abs, err := filepath.Abs(dev.Cwd); err == nil {
		dev.Cwd = abs
	}

	switch cfg.Mode {
	case config.ModePackaged:
		return packaged
	case config.ModeDevelopment:
		return dev
	}

	if info, err := os.Stat(packaged.ExecutablePath); err == nil && !info.IsDir() {
		return packaged
	}
	return dev
}
