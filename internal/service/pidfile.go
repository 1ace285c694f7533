// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	ps "github.com/mitchellh/go-ps"
	"github.com/sirupsen/logrus"
)

// WritePIDFile records the backend pid and executable.
func WritePIDFile(path string, pid int, executable string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data := fmt.Sprintf("%d\n%s\n", pid, executable)
	return os.WriteFile(path, []byte(data), 0600)
}

// ReadPIDFile returns the pid and executable recorded at path.
func ReadPIDFile(path string) (int, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", err
	}
	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return 0, "", fmt.Errorf("invalid pid file %s", path)
	}
	exe := ""
	if len(lines) > 1 {
		exe = strings.TrimSpace(lines[1])
	}
	return pid, exe, nil
}

// RemovePIDFile deletes the pid file if it exists.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// findProcess looks up a process by pid, returning nil if there is none.
var findProcess = ps.FindProcess

// ReapOrphan kills a backend left running by a previous host that died
// without stopping it. The recorded process is only killed when it is still
// alive, its executable is the launch or recorded one, and it has been
// orphaned. Returns the pid killed, or 0.
func ReapOrphan(path string, launch Launch, log logrus.FieldLogger) (int, error) {
	pid, recorded, err := ReadPIDFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		RemovePIDFile(path)
		return 0, err
	}
	defer RemovePIDFile(path)

	proc, err := findProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if proc == nil {
		return 0, nil
	}

	name := proc.Executable()
	fields := logrus.Fields{"pid": pid, "executable": name}
	if !matchesAny(name, launch.Executable(), recorded) {
		log.WithFields(fields).Debug("Recorded pid belongs to another program")
		return 0, nil
	}
	if !orphaned(proc) {
		log.WithFields(fields).WithField("ppid", proc.PPid()).Debug("Recorded pid has a live parent")
		return 0, nil
	}

	if err := signalGroup(pid, syscall.SIGKILL); err != nil {
		if p, ferr := os.FindProcess(pid); ferr == nil {
			err = p.Kill()
		}
		if err != nil {
			return 0, fmt.Errorf("kill orphan %d: %w", pid, err)
		}
	}
	log.WithFields(fields).Warn("Killed orphaned backend")
	return pid, nil
}

// reapers are the processes that adopt orphans.
var reapers = map[string]bool{
	"init":    true,
	"systemd": true,
	"launchd": true,
}

// orphaned reports whether proc has lost the process that started it: its
// parent is gone, or it was adopted by init or a subreaper.
func orphaned(proc ps.Process) bool {
	ppid := proc.PPid()
	if ppid <= 1 {
		return true
	}
	parent, err := findProcess(ppid)
	if err != nil || parent == nil {
		return true
	}
	return reapers[strings.ToLower(parent.Executable())]
}

// matchesAny reports whether procName is one of the executables. A bare
// name is also resolved through PATH and symlinks, so an interpreter
// recorded as python matches a process named python3.12.
func matchesAny(procName string, executables ...string) bool {
	for _, exe := range executables {
		if exe == "" {
			continue
		}
		if sameExecutable(procName, exe) {
			return true
		}
		if resolved, err := exec.LookPath(exe); err == nil {
			if target, err := filepath.EvalSymlinks(resolved); err == nil && sameExecutable(procName, target) {
				return true
			}
		}
	}
	return false
}

// commLen is the longest process name Linux reports; longer names are cut.
const commLen = 15

// sameExecutable compares a process name against an executable path by base
// name, ignoring case and a .exe suffix.
func sameExecutable(procName, exe string) bool {
	if procName == "" || exe == "" {
		return false
	}
	a := strings.ToLower(strings.TrimSuffix(procName, ".exe"))
	b := strings.ToLower(strings.TrimSuffix(filepath.Base(exe), ".exe"))
	if a == b {
		return true
	}
	return len(a) == commLen && len(b) > commLen && strings.HasPrefix(b, a)
}
