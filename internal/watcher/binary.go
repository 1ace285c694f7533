// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reports when the backend executable is replaced.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/wingedpig/easyrag/internal/events"
)

const changeCooldown = 5 * time.Second

// BinaryWatcher watches the packaged backend executable and publishes
// events.EventBinaryChanged once a change settles. Updates usually replace
// the file by rename, so the parent directory is watched and events are
// filtered by name.
type BinaryWatcher struct {
	path      string
	bus       events.EventBus
	log       logrus.FieldLogger
	watcher   *fsnotify.Watcher
	debouncer *Debouncer

	// mu is held for the whole of fire, so Close waits for one in flight.
	mu       sync.Mutex
	lastFire time.Time
	closed   bool

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// Config configures a BinaryWatcher.
type Config struct {
	Path     string
	Debounce time.Duration
	Bus      events.EventBus
	Log      logrus.FieldLogger
}

// NewBinaryWatcher starts watching cfg.Path.
func NewBinaryWatcher(cfg Config) (*BinaryWatcher, error) {
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	w := &BinaryWatcher{
		path:      abs,
		bus:       cfg.Bus,
		log:       log.WithField("component", "watcher"),
		watcher:   fsWatcher,
		debouncer: NewDebouncer(cfg.Debounce),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Path returns the watched executable.
func (w *BinaryWatcher) Path() string {
	return w.path
}

// Close stops the watcher and releases resources. It waits for a change
// notification already in progress; none are published after it returns.
func (w *BinaryWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.debouncer.Stop()
		w.watcher.Close()
	})
	w.wg.Wait()

	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *BinaryWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Watch error")
		}
	}
}

func (w *BinaryWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	// Chmod fires when the binary is executed; reacting to it loops.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	w.debouncer.Trigger(w.fire)
}

func (w *BinaryWatcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || time.Since(w.lastFire) < changeCooldown {
		return
	}
	info, err := os.Stat(w.path)
	if err != nil {
		// Removed, or mid-replacement; the Create that follows retriggers.
		return
	}
	w.lastFire = time.Now()

	w.log.WithField("path", w.path).Info("Backend executable changed")
	if w.bus == nil {
		return
	}
	err = w.bus.Publish(context.Background(), events.Event{
		Type:      events.EventBinaryChanged,
		Timestamp: w.lastFire,
		Payload: map[string]interface{}{
			"path":    w.path,
			"modTime": info.ModTime().Format(time.RFC3339),
			"size":    info.Size(),
		},
	})
	if err != nil {
		w.log.WithError(err).Debug("Failed to publish event")
	}
}
