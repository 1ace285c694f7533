// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wingedpig/easyrag/internal/events"
	"github.com/wingedpig/easyrag/internal/settings"
)

var (
	// ErrNotConfigured is returned by Restart before any Start.
	ErrNotConfigured = errors.New("backend has not been started yet")
	// ErrClosed is returned by Start and Restart after Close.
	ErrClosed = errors.New("supervisor is closed")
)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Launch        Launch
	KBDefaultRoot string // knowledge-base root used when the configuration leaves it empty
	PIDFile       string
	StopSignal    string
	StopTimeout   time.Duration
	LogBuffer     int
	Bus           events.EventBus
	Log           logrus.FieldLogger
}

// Supervisor keeps at most one backend process alive, built from the most
// recent configuration.
//
// Events are published while the supervisor lock is held so that they arrive
// in order; synchronous bus handlers must not call back into the Supervisor.
type Supervisor struct {
	cfg  SupervisorConfig
	log  logrus.FieldLogger
	logs *LogBuffer

	// mu serializes Start, Stop, Close and exit handling.
	mu      sync.Mutex
	proc    *Process
	lastCfg *settings.Configuration
	closed  bool

	statusMu sync.RWMutex
	status   Status
}

// NewSupervisor creates a supervisor. Nothing is spawned until Start.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Supervisor{
		cfg:    cfg,
		log:    log.WithField("component", "supervisor"),
		logs:   NewLogBuffer(cfg.LogBuffer),
		status: Status{State: StatusStopped, Mode: cfg.Launch.Mode()},
	}
}

// Start replaces any running backend with one built from cfg. A spawn
// failure is returned as *LaunchError and leaves the supervisor stopped.
func (s *Supervisor) Start(ctx context.Context, cfg settings.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	evts, err := s.startLocked(ctx, cfg)
	s.publish(ctx, evts)
	return err
}

// Restart starts the backend again with the configuration of the last Start.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.lastCfg == nil {
		return ErrNotConfigured
	}
	evts, err := s.startLocked(ctx, *s.lastCfg)
	s.publish(ctx, evts)
	return err
}

// Stop terminates the backend if one is running. It is idempotent.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(ctx, s.stopLocked(ctx))
	return nil
}

// Close stops the backend. Start and Restart fail with ErrClosed afterwards.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.publish(ctx, s.stopLocked(ctx))
	return nil
}

// Status returns a snapshot of the backend state.
func (s *Supervisor) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Logs returns the last n lines of backend output.
func (s *Supervisor) Logs(n int) []string {
	return s.logs.Lines(n)
}

func (s *Supervisor) startLocked(ctx context.Context, cfg settings.Configuration) ([]events.Event, error) {
	evts := s.stopLocked(ctx)
	s.lastCfg = &cfg

	launch := s.cfg.Launch
	mode := launch.Mode()
	fail := func(err error) ([]events.Event, error) {
		lerr := &LaunchError{Mode: mode, Path: launch.Executable(), Err: err}
		s.setStatus(Status{State: StatusStopped, Mode: mode, StoppedAt: time.Now(), Error: lerr.Error()})
		s.log.WithError(err).WithField("mode", mode).Error("Backend launch failed")
		return append(evts, event(events.EventBackendLaunchFailed, map[string]interface{}{
			"mode":  mode,
			"path":  launch.Executable(),
			"error": err.Error(),
		})), lerr
	}

	dirs, err := ResolveDataDirs(cfg.KBRootPath, s.cfg.KBDefaultRoot)
	if err != nil {
		return fail(err)
	}
	env := BuildEnv(cfg, dirs)
	port, _ := strconv.Atoi(env[EnvPort])

	args, dir := launch.command(port)
	proc := NewProcess(ProcessSpec{
		Args:        args,
		Dir:         dir,
		Env:         Environ(os.Environ(), env),
		StopSignal:  s.cfg.StopSignal,
		StopTimeout: s.cfg.StopTimeout,
	}, s.logs)
	proc.OnExit(func(exitCode int, err error) {
		s.handleExit(proc, exitCode, err)
	})

	s.setStatus(Status{State: StatusStarting, Port: port, Mode: mode})
	evts = append(evts, event(events.EventBackendStarting, map[string]interface{}{"mode": mode, "port": port}))

	if err := proc.Start(); err != nil {
		return fail(err)
	}

	s.proc = proc
	pid := proc.PID()
	if err := WritePIDFile(s.cfg.PIDFile, pid, launch.Executable()); err != nil {
		s.log.WithError(err).Warn("Failed to write pid file")
	}

	s.setStatus(Status{State: StatusRunning, PID: pid, Port: port, Mode: mode, StartedAt: proc.Status().StartedAt})
	s.log.WithFields(logrus.Fields{"pid": pid, "port": port, "mode": mode}).Info("Backend started")
	evts = append(evts, event(events.EventBackendStarted, map[string]interface{}{"pid": pid, "port": port, "mode": mode}))
	return evts, nil
}

func (s *Supervisor) stopLocked(ctx context.Context) []events.Event {
	proc := s.proc
	if proc == nil {
		return nil
	}

	prev := s.Status()
	prev.State = StatusStopping
	s.setStatus(prev)
	s.log.WithField("pid", prev.PID).Info("Stopping backend")

	proc.Stop(ctx)
	s.proc = nil
	if err := RemovePIDFile(s.cfg.PIDFile); err != nil {
		s.log.WithError(err).Warn("Failed to remove pid file")
	}

	ps := proc.Status()
	s.setStatus(Status{
		State:     StatusStopped,
		Port:      prev.Port,
		Mode:      prev.Mode,
		StartedAt: ps.StartedAt,
		StoppedAt: ps.StoppedAt,
		ExitCode:  ps.ExitCode,
	})
	s.log.WithField("pid", prev.PID).Info("Backend stopped")
	return []events.Event{event(events.EventBackendStopped, map[string]interface{}{
		"pid":       prev.PID,
		"exit_code": ps.ExitCode,
		"requested": true,
	})}
}

// handleExit runs when the backend exits without being asked to.
func (s *Supervisor) handleExit(proc *Process, exitCode int, exitErr error) {
	s.mu.Lock()
	if s.proc != proc {
		// Already replaced or stopped.
		s.mu.Unlock()
		return
	}
	s.proc = nil
	RemovePIDFile(s.cfg.PIDFile)

	prev := s.Status()
	ps := proc.Status()
	var evts []events.Event
	fields := logrus.Fields{"pid": prev.PID, "exit_code": exitCode}

	if exitErr != nil {
		s.setStatus(Status{
			State:     StatusCrashed,
			Port:      prev.Port,
			Mode:      prev.Mode,
			StartedAt: ps.StartedAt,
			StoppedAt: ps.StoppedAt,
			ExitCode:  exitCode,
			Error:     exitErr.Error(),
		})
		s.log.WithFields(fields).WithError(exitErr).Error("Backend crashed")
		evts = append(evts, event(events.EventBackendCrashed, map[string]interface{}{
			"pid":       prev.PID,
			"exit_code": exitCode,
			"error":     exitErr.Error(),
			"output":    s.logs.Lines(20),
		}))
		// A retry/backoff policy would restart from s.lastCfg here.
	} else {
		s.log.WithFields(fields).Warn("Backend exited")
	}

	st := s.Status()
	st.State = StatusStopped
	st.StartedAt = ps.StartedAt
	st.StoppedAt = ps.StoppedAt
	st.PID = 0
	st.ExitCode = exitCode
	s.setStatus(st)
	evts = append(evts, event(events.EventBackendStopped, map[string]interface{}{
		"pid":       prev.PID,
		"exit_code": exitCode,
		"requested": false,
	}))
	s.publish(context.Background(), evts)
	s.mu.Unlock()
}

func (s *Supervisor) setStatus(st Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

func (s *Supervisor) publish(ctx context.Context, evts []events.Event) {
	if s.cfg.Bus == nil {
		return
	}
	for _, e := range evts {
		if err := s.cfg.Bus.Publish(ctx, e); err != nil {
			s.log.WithError(err).WithField("type", e.Type).Debug("Failed to publish event")
		}
	}
}

func event(typ string, payload map[string]interface{}) events.Event {
	return events.Event{Type: typ, Timestamp: time.Now(), Payload: payload}
}
