// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Store persists the Configuration in an encrypted file.
type Store struct {
	mu      sync.RWMutex
	path    string
	key     Key
	current Configuration
	log     logrus.FieldLogger
}

// Open creates the store's directory and loads the file at path. A missing,
// corrupt or undecryptable file yields defaults rather than an error.
func Open(path string, key Key, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	s := &Store{
		path:    path,
		key:     key,
		current: Defaults(),
		log:     log.WithField("component", "settings"),
	}
	s.load()
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the last saved configuration, or defaults.
func (s *Store) Get() Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set normalizes raw, persists it and returns the stored value. Nothing is
// written if normalization or the write fails.
func (s *Store) Set(raw Partial) (Configuration, error) {
	cfg, err := Normalize(raw)
	if err != nil {
		return Configuration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(cfg); err != nil {
		return Configuration{}, err
	}
	s.current = cfg
	s.log.WithField("config", cfg.Redacted()).Info("Configuration saved")
	return cfg, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).Warn("Cannot read settings, using defaults")
		}
		return
	}

	plaintext, err := open(s.key, data)
	if err != nil {
		s.log.WithError(err).Warn("Cannot decrypt settings, using defaults")
		return
	}

	var raw Partial
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		s.log.WithError(err).Warn("Cannot decode settings, using defaults")
		return
	}

	cfg, err := Normalize(raw)
	if err != nil {
		s.log.WithError(err).Warn("Stored settings are invalid, using defaults")
		return
	}
	s.current = cfg
}

// write replaces the file atomically: temp file, sync, rename.
func (s *Store) write(cfg Configuration) error {
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	data, err := seal(s.key, plaintext)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
