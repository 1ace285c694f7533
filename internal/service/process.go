// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	defaultStopTimeout = 10 * time.Second
	// Bounds how long Wait keeps draining output held open by grandchildren.
	outputWaitDelay = 2 * time.Second
)

// ProcessSpec describes one spawn of the backend.
type ProcessSpec struct {
	Args        []string // Program followed by its arguments
	Dir         string
	Env         []string
	StopSignal  string
	StopTimeout time.Duration
}

// Process manages a single spawned child. A Process is started at most once.
type Process struct {
	spec ProcessSpec
	logs *LogBuffer

	mu            sync.RWMutex
	cmd           *exec.Cmd
	state         ProcessState
	pid           int
	exitCode      int
	exitErr       error
	startedAt     time.Time
	stoppedAt     time.Time
	stopRequested bool
	started       bool

	onExit   func(exitCode int, err error)
	waitDone chan struct{}
}

// NewProcess creates a process that writes its output to logs.
func NewProcess(spec ProcessSpec, logs *LogBuffer) *Process {
	if logs == nil {
		logs = NewLogBuffer(defaultLogBufferSize)
	}
	return &Process{
		spec:     spec,
		logs:     logs,
		state:    StatusStopped,
		waitDone: make(chan struct{}),
	}
}

// OnExit sets a callback for when the process exits without being asked to.
// It must be set before Start.
func (p *Process) OnExit(fn func(exitCode int, err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = fn
}

// Start spawns the process. The child is not tied to any request context;
// it runs until Stop or until it exits on its own.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("process already started")
	}
	if len(p.spec.Args) == 0 {
		return errors.New("empty command")
	}

	cmd := exec.Command(p.spec.Args[0], p.spec.Args[1:]...)
	cmd.Dir = p.spec.Dir
	cmd.Env = p.spec.Env
	setProcessGroup(cmd)

	out := newLineWriter(p.logs)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = outputWaitDelay

	p.logs.Write(fmt.Sprintf("[easyrag] Starting: %v (workdir: %s)", p.spec.Args, p.spec.Dir))

	p.state = StatusStarting
	if err := cmd.Start(); err != nil {
		p.state = StatusStopped
		p.logs.Write(fmt.Sprintf("[easyrag] Failed to start: %v", err))
		close(p.waitDone)
		return err
	}

	p.started = true
	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.state = StatusRunning

	go p.waitForExit(cmd, out)

	return nil
}

// Stop signals the process group, waits up to the stop timeout, then kills
// it. ctx cancellation also forces the kill. Stop blocks until the child has
// been reaped.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.state == StatusStopped || p.state == StatusCrashed {
		p.mu.Unlock()
		return nil
	}
	p.state = StatusStopping
	p.stopRequested = true
	pid := p.pid
	p.mu.Unlock()

	timeout := p.spec.StopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}

	signalGroup(pid, parseSignal(p.spec.StopSignal))

	select {
	case <-p.waitDone:
	case <-time.After(timeout):
		p.logs.Write(fmt.Sprintf("[easyrag] Process did not stop within %v, killing", timeout))
		signalGroup(pid, syscall.SIGKILL)
		<-p.waitDone
	case <-ctx.Done():
		signalGroup(pid, syscall.SIGKILL)
		<-p.waitDone
	}
	return nil
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.waitDone
}

// PID returns the pid of the running child, or 0.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pid
}

// Status returns the current process status.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Status{
		State:     p.state,
		PID:       p.pid,
		ExitCode:  p.exitCode,
		StartedAt: p.startedAt,
		StoppedAt: p.stoppedAt,
	}
	if p.exitErr != nil {
		st.Error = p.exitErr.Error()
	}
	return st
}

func (p *Process) waitForExit(cmd *exec.Cmd, out *lineWriter) {
	err := cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) {
		// Exited cleanly; a grandchild still held the output open.
		err = nil
	}
	out.Flush()

	p.mu.Lock()
	p.stoppedAt = time.Now()
	wasStopRequested := p.stopRequested

	switch {
	case err == nil:
		p.exitCode = 0
		p.state = StatusStopped
		p.logs.Write("[easyrag] Process exited cleanly")
	case wasStopRequested:
		p.exitCode = exitCodeOf(err)
		p.state = StatusStopped
		p.logs.Write(fmt.Sprintf("[easyrag] Process stopped: %v", err))
	default:
		p.exitCode = exitCodeOf(err)
		p.exitErr = err
		p.state = StatusCrashed
		p.logs.Write(fmt.Sprintf("[easyrag] Process exited with error: %v", err))
	}

	exitCode := p.exitCode
	onExit := p.onExit
	p.pid = 0
	p.mu.Unlock()

	// Closed before the callback so a Stop racing with the exit never waits
	// on a callback that waits on Stop.
	close(p.waitDone)

	if onExit != nil && !wasStopRequested {
		onExit(exitCode, err)
	}
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func parseSignal(name string) syscall.Signal {
	switch name {
	case "SIGKILL":
		return syscall.SIGKILL
	case "SIGINT":
		return syscall.SIGINT
	default:
		return syscall.SIGTERM
	}
}
