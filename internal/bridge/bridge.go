// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the fixed set of privileged commands the UI may call.
//
// The UI has no file system, process or dialog access of its own. Every
// command it needs is a method here, and each one is checked against the
// capabilities granted to the bridge before it runs.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hjson/hjson-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/wingedpig/easyrag/internal/dialog"
	"github.com/wingedpig/easyrag/internal/events"
	"github.com/wingedpig/easyrag/internal/service"
	"github.com/wingedpig/easyrag/internal/settings"
)

// Command names.
const (
	CmdConfigGet       = "config:get"
	CmdConfigSave      = "config:save"
	CmdSelectDirectory = "dialog:select-directory"
	CmdBackendStatus   = "backend:status"
	CmdBackendRestart  = "backend:restart"
	CmdBackendLogs     = "backend:logs"
)

// DefaultLogLines is the number of output lines BackendLogs returns when
// the caller does not ask for a count.
const DefaultLogLines = 100

// Commands lists every command the bridge implements.
var Commands = []string{
	CmdConfigGet,
	CmdConfigSave,
	CmdSelectDirectory,
	CmdBackendStatus,
	CmdBackendRestart,
	CmdBackendLogs,
}

var (
	// ErrForbidden is returned for a command the bridge was not granted.
	ErrForbidden = errors.New("command not permitted")
	// ErrUnknownCommand is returned by Invoke for a name not in Commands.
	ErrUnknownCommand = errors.New("unknown command")
)

// ConfigStore persists the configuration.
type ConfigStore interface {
	Get() settings.Configuration
	Set(raw settings.Partial) (settings.Configuration, error)
}

// Backend runs the backend process.
type Backend interface {
	Start(ctx context.Context, cfg settings.Configuration) error
	Restart(ctx context.Context) error
	Status() service.Status
	Logs(n int) []string
}

// Config holds a Bridge's collaborators.
type Config struct {
	Store        ConfigStore
	Backend      Backend
	Picker       dialog.Picker
	Bus          events.EventBus
	Capabilities []string // nil grants every command
	Log          logrus.FieldLogger
}

// Bridge executes UI commands.
type Bridge struct {
	store   ConfigStore
	backend Backend
	picker  dialog.Picker
	bus     events.EventBus
	caps    map[string]bool
	log     logrus.FieldLogger

	// mu orders configuration changes with the backend starts that apply
	// them, so the running backend always reflects the stored configuration.
	mu sync.Mutex
}

// New creates a bridge.
func New(cfg Config) *Bridge {
	caps := cfg.Capabilities
	if caps == nil {
		caps = Commands
	}
	granted := make(map[string]bool, len(caps))
	for _, c := range caps {
		granted[c] = true
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{
		store:   cfg.Store,
		backend: cfg.Backend,
		picker:  cfg.Picker,
		bus:     cfg.Bus,
		caps:    granted,
		log:     log.WithField("component", "bridge"),
	}
}

// Can reports whether command is granted.
func (b *Bridge) Can(command string) bool {
	return b.caps[command]
}

// Capabilities returns the granted commands, sorted.
func (b *Bridge) Capabilities() []string {
	caps := make([]string, 0, len(b.caps))
	for c := range b.caps {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

func (b *Bridge) check(command string) error {
	if !b.Can(command) {
		b.log.WithField("command", command).Warn("Denied command")
		return fmt.Errorf("%s: %w", command, ErrForbidden)
	}
	return nil
}

// GetConfig returns the current configuration.
func (b *Bridge) GetConfig(ctx context.Context) (settings.Configuration, error) {
	if err := b.check(CmdConfigGet); err != nil {
		return settings.Configuration{}, err
	}
	return b.store.Get(), nil
}

// SaveConfig persists raw and restarts the backend with the result. If the
// backend fails to launch, the saved configuration is returned along with
// the *service.LaunchError.
func (b *Bridge) SaveConfig(ctx context.Context, raw settings.Partial) (settings.Configuration, error) {
	if err := b.check(CmdConfigSave); err != nil {
		return settings.Configuration{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cfg, err := b.store.Set(raw)
	if err != nil {
		return settings.Configuration{}, err
	}
	b.publish(ctx, events.EventConfigSaved, map[string]interface{}{
		settings.FieldKBRootPath: cfg.KBRootPath,
		settings.FieldAPIPort:    cfg.APIPort,
	})

	if err := b.backend.Start(ctx, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SelectDirectory asks the user for a directory. It returns nil when the
// user cancels.
func (b *Bridge) SelectDirectory(ctx context.Context) (*string, error) {
	if err := b.check(CmdSelectDirectory); err != nil {
		return nil, err
	}

	path, ok, err := b.picker.SelectDirectory(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &path, nil
}

// BackendStatus returns the backend's state.
func (b *Bridge) BackendStatus(ctx context.Context) (service.Status, error) {
	if err := b.check(CmdBackendStatus); err != nil {
		return service.Status{}, err
	}
	return b.backend.Status(), nil
}

// RestartBackend restarts the backend with its last configuration, or with
// the stored one if it was never started.
func (b *Bridge) RestartBackend(ctx context.Context) (service.Status, error) {
	if err := b.check(CmdBackendRestart); err != nil {
		return service.Status{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.backend.Restart(ctx)
	if errors.Is(err, service.ErrNotConfigured) {
		err = b.backend.Start(ctx, b.store.Get())
	}
	return b.backend.Status(), err
}

// BackendLogs returns the last n lines of backend output, oldest first.
// n <= 0 selects DefaultLogLines.
func (b *Bridge) BackendLogs(ctx context.Context, n int) ([]string, error) {
	if err := b.check(CmdBackendLogs); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultLogLines
	}
	return b.backend.Logs(n), nil
}

// Invoke runs a command by name. payload is the command's argument, if any.
//
// On error the result is nil unless the command changed state before
// failing: a saved configuration whose backend did not start, or the
// backend status after a failed restart.
func (b *Bridge) Invoke(ctx context.Context, command string, payload []byte) (interface{}, error) {
	switch command {
	case CmdConfigGet:
		cfg, err := b.GetConfig(ctx)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	case CmdConfigSave:
		raw, err := settings.ParsePartial(payload)
		if err != nil {
			return nil, payloadError(err)
		}
		cfg, err := b.SaveConfig(ctx, raw)
		if err != nil && cfg == (settings.Configuration{}) {
			return nil, err
		}
		return cfg, err
	case CmdSelectDirectory:
		path, err := b.SelectDirectory(ctx)
		if err != nil {
			return nil, err
		}
		return path, nil
	case CmdBackendStatus:
		st, err := b.BackendStatus(ctx)
		if err != nil {
			return nil, err
		}
		return st, nil
	case CmdBackendRestart:
		st, err := b.RestartBackend(ctx)
		if errors.Is(err, ErrForbidden) {
			return nil, err
		}
		return st, err
	case CmdBackendLogs:
		var arg struct {
			Lines int `json:"lines"`
		}
		if len(payload) > 0 {
			if err := hjson.Unmarshal(payload, &arg); err != nil {
				return nil, payloadError(err)
			}
		}
		lines, err := b.BackendLogs(ctx, arg.Lines)
		if err != nil {
			return nil, err
		}
		return lines, nil
	}
	return nil, fmt.Errorf("%s: %w", command, ErrUnknownCommand)
}

func payloadError(err error) error {
	verr := &settings.ValidationError{}
	verr.Add("payload", err.Error())
	return verr
}

func (b *Bridge) publish(ctx context.Context, typ string, payload map[string]interface{}) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(ctx, events.Event{Type: typ, Timestamp: time.Now(), Payload: payload}); err != nil {
		b.log.WithError(err).Debug("Failed to publish event")
	}
}
