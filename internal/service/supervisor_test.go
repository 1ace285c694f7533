// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/easyrag/internal/config"
	"github.com/wingedpig/easyrag/internal/events"
	"github.com/wingedpig/easyrag/internal/settings"
)

func newTestSupervisor(t *testing.T, launch Launch) (*Supervisor, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	dir := t.TempDir()
	s := NewSupervisor(SupervisorConfig{
		Launch:        launch,
		KBDefaultRoot: filepath.Join(dir, "kb"),
		PIDFile:       filepath.Join(dir, "backend.pid"),
		StopTimeout:   2 * time.Second,
		LogBuffer:     100,
		Bus:           bus,
		Log:           quietLogger(),
	})
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s, bus
}

// alive reports whether pid exists and is not a zombie.
func alive(pid int) bool {
	if syscall.Kill(pid, 0) != nil {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	return !strings.Contains(string(stat), ") Z ")
}

func TestSupervisor_StartRunsBackend(t *testing.T) {
	skipOnWindows(t)
	s, bus := newTestSupervisor(t, scriptLaunch{script: "sleep 60"})

	require.NoError(t, s.Start(context.Background(), settings.Defaults()))

	st := s.Status()
	assert.Equal(t, StatusRunning, st.State)
	assert.NotZero(t, st.PID)
	assert.Equal(t, 8000, st.Port)
	assert.Equal(t, "test", st.Mode)
	assert.True(t, alive(st.PID))
	assert.Equal(t, []string{events.EventBackendStarting, events.EventBackendStarted}, bus.Types())

	pid, _, err := ReadPIDFile(s.cfg.PIDFile)
	require.NoError(t, err)
	assert.Equal(t, st.PID, pid)
}

func TestSupervisor_PassesEnvironment(t *testing.T) {
	skipOnWindows(t)
	out := filepath.Join(t.TempDir(), "env.txt")
	s, _ := newTestSupervisor(t, scriptLaunch{
		script: `printf '%s\n%s\n%s\n%s\n%s\n' "$DEEPSEEK_API_KEY" "$QWEN_API_KEY" "$RAW_DIR" "$INDEX_DIR" "$EASYRAG_PORT" > ` + out + `; sleep 60`,
	})

	kb := filepath.Join(t.TempDir(), "kb")
	cfg := settings.Configuration{DeepseekAPIKey: "sk-d", QwenAPIKey: "sk-q", KBRootPath: kb, APIPort: 9100}
	require.NoError(t, s.Start(context.Background(), cfg))

	var lines []string
	waitFor(t, func() bool {
		data, err := os.ReadFile(out)
		if err != nil {
			return false
		}
		lines = strings.Split(strings.TrimSpace(string(data)), "\n")
		return len(lines) == 5
	})
	assert.Equal(t, []string{"sk-d", "sk-q", filepath.Join(kb, "raw"), filepath.Join(kb, "index"), "9100"}, lines)
	assert.DirExists(t, filepath.Join(kb, "raw"))
	assert.DirExists(t, filepath.Join(kb, "index"))
}

func TestSupervisor_DefaultKBRoot(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestSupervisor(t, scriptLaunch{script: "sleep 60"})

	require.NoError(t, s.Start(context.Background(), settings.Defaults()))
	assert.DirExists(t, filepath.Join(s.cfg.KBDefaultRoot, "raw"))
	assert.DirExists(t, filepath.Join(s.cfg.KBDefaultRoot, "index"))
}

func TestSupervisor_SingleInstance(t *testing.T) {
	skipOnWindows(t)
	s, bus := newTestSupervisor(t, scriptLaunch{script: "sleep 60"})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, settings.Defaults()))
	first := s.Status().PID

	cfg := settings.Defaults()
	cfg.APIPort = 9001
	require.NoError(t, s.Start(ctx, cfg))
	second := s.Status()

	assert.NotEqual(t, first, second.PID)
	assert.Equal(t, 9001, second.Port)
	assert.False(t, alive(first), "previous backend still running")
	assert.True(t, alive(second.PID))
	assert.Equal(t, []string{
		events.EventBackendStarting, events.EventBackendStarted,
		events.EventBackendStopped,
		events.EventBackendStarting, events.EventBackendStarted,
	}, bus.Types())
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	skipOnWindows(t)
	s, bus := newTestSupervisor(t, scriptLaunch{script: "sleep 60"})
	ctx := context.Background()

	// Stop before anything was started.
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, bus.Types())

	require.NoError(t, s.Start(ctx, settings.Defaults()))
	pid := s.Status().PID

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	assert.Equal(t, StatusStopped, s.Status().State)
	assert.False(t, alive(pid))
	assert.NoFileExists(t, s.cfg.PIDFile)
	assert.Equal(t, []string{
		events.EventBackendStarting, events.EventBackendStarted, events.EventBackendStopped,
	}, bus.Types())
}

func TestSupervisor_StopKillsProcessGroup(t *testing.T) {
	skipOnWindows(t)
	childPID := filepath.Join(t.TempDir(), "child.pid")
	s, _ := newTestSupervisor(t, scriptLaunch{script: "sleep 60 & echo $! > " + childPID + "; wait"})

	require.NoError(t, s.Start(context.Background(), settings.Defaults()))

	var grandchild int
	waitFor(t, func() bool {
		pid, _, err := ReadPIDFile(childPID)
		grandchild = pid
		return err == nil
	})

	require.NoError(t, s.Stop(context.Background()))
	waitFor(t, func() bool { return !alive(grandchild) })
}

func TestSupervisor_LaunchError(t *testing.T) {
	s, bus := newTestSupervisor(t, PackagedLaunch{ExecutablePath: filepath.Join(t.TempDir(), "missing-backend")})

	err := s.Start(context.Background(), settings.Defaults())
	require.Error(t, err)

	var lerr *LaunchError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, config.ModePackaged, lerr.Mode)
	assert.Contains(t, lerr.Path, "missing-backend")

	st := s.Status()
	assert.Equal(t, StatusStopped, st.State)
	assert.Zero(t, st.PID)
	assert.NotEmpty(t, st.Error)
	assert.NoFileExists(t, s.cfg.PIDFile)
	assert.Equal(t, []string{events.EventBackendStarting, events.EventBackendLaunchFailed}, bus.Types())
}

func TestSupervisor_CrashSettlesStopped(t *testing.T) {
	skipOnWindows(t)
	s, bus := newTestSupervisor(t, scriptLaunch{script: "echo boom; exit 7"})

	require.NoError(t, s.Start(context.Background(), settings.Defaults()))

	waitFor(t, func() bool { return len(bus.Types()) == 4 })
	assert.Equal(t, []string{
		events.EventBackendStarting, events.EventBackendStarted,
		events.EventBackendCrashed, events.EventBackendStopped,
	}, bus.Types())

	st := s.Status()
	assert.Equal(t, StatusStopped, st.State)
	assert.Equal(t, 7, st.ExitCode)
	assert.NotEmpty(t, st.Error)
	assert.NoFileExists(t, s.cfg.PIDFile)
	assert.Contains(t, s.Logs(10), "boom")

	// No automatic restart.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusStopped, s.Status().State)
}

func TestSupervisor_CleanExit(t *testing.T) {
	skipOnWindows(t)
	s, bus := newTestSupervisor(t, scriptLaunch{script: "exit 0"})

	require.NoError(t, s.Start(context.Background(), settings.Defaults()))

	waitFor(t, func() bool { return len(bus.Types()) == 3 })
	assert.Equal(t, events.EventBackendStopped, bus.Types()[2])
	assert.Equal(t, StatusStopped, s.Status().State)
	assert.Empty(t, s.Status().Error)
}

func TestSupervisor_Restart(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestSupervisor(t, scriptLaunch{script: "sleep 60"})
	ctx := context.Background()

	assert.ErrorIs(t, s.Restart(ctx), ErrNotConfigured)

	cfg := settings.Defaults()
	cfg.APIPort = 9200
	require.NoError(t, s.Start(ctx, cfg))
	first := s.Status().PID

	require.NoError(t, s.Restart(ctx))
	st := s.Status()
	assert.Equal(t, StatusRunning, st.State)
	assert.Equal(t, 9200, st.Port)
	assert.NotEqual(t, first, st.PID)
}

func TestSupervisor_CloseRefusesStart(t *testing.T) {
	skipOnWindows(t)
	s, bus := newTestSupervisor(t, scriptLaunch{script: "sleep 60"})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, settings.Defaults()))
	pid := s.Status().PID

	require.NoError(t, s.Close(ctx))
	assert.False(t, alive(pid))
	assert.Equal(t, StatusStopped, s.Status().State)
	assert.Contains(t, bus.Types(), events.EventBackendStopped)

	assert.ErrorIs(t, s.Restart(ctx), ErrClosed)
	assert.ErrorIs(t, s.Start(ctx, settings.Defaults()), ErrClosed)
	assert.Equal(t, StatusStopped, s.Status().State)
	assert.Zero(t, s.Status().PID)

	_, _, err := ReadPIDFile(s.cfg.PIDFile)
	assert.True(t, os.IsNotExist(err), "pid file left behind")

	require.NoError(t, s.Close(ctx))
}

func TestStatus_JSONState(t *testing.T) {
	data, err := StatusCrashed.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"crashed"`, string(data))

	var s ProcessState
	require.NoError(t, s.UnmarshalJSON([]byte(`"running"`)))
	assert.Equal(t, StatusRunning, s)
	assert.Error(t, s.UnmarshalJSON([]byte(`"bogus"`)))
}
