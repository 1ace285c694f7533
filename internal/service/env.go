// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wingedpig/easyrag/internal/settings"
)

// Environment variables understood by the backend.
const (
	EnvDeepseekAPIKey       = "DEEPSEEK_API_KEY"
	EnvQwenAPIKey           = "QWEN_API_KEY"
	EnvRawDir               = "RAW_DIR"
	EnvIndexDir             = "INDEX_DIR"
	EnvPort                 = "EASYRAG_PORT"
	EnvCORSAllowOrigins     = "CORS_ALLOW_ORIGINS"
	EnvCORSAllowCredentials = "CORS_ALLOW_CREDENTIALS"
)

// DataDirs are the backend's knowledge-base directories.
type DataDirs struct {
	Raw   string
	Index string
}

// ResolveDataDirs picks the knowledge-base root (kbRoot, or defaultRoot when
// empty) and creates its raw and index subdirectories.
func ResolveDataDirs(kbRoot, defaultRoot string) (DataDirs, error) {
	root := kbRoot
	if root == "" {
		root = defaultRoot
	}
	dirs := DataDirs{
		Raw:   filepath.Join(root, "raw"),
		Index: filepath.Join(root, "index"),
	}
	for _, dir := range []string{dirs.Raw, dirs.Index} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return DataDirs{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return dirs, nil
}

// BuildEnv maps a configuration to the backend's environment variables.
// Every variable is always present.
func BuildEnv(cfg settings.Configuration, dirs DataDirs) map[string]string {
	port := cfg.APIPort
	if port == 0 {
		port = settings.DefaultPort
	}
	return map[string]string{
		EnvDeepseekAPIKey:       cfg.DeepseekAPIKey,
		EnvQwenAPIKey:           cfg.QwenAPIKey,
		EnvRawDir:               dirs.Raw,
		EnvIndexDir:             dirs.Index,
		EnvPort:                 strconv.Itoa(port),
		EnvCORSAllowOrigins:     "*",
		EnvCORSAllowCredentials: "false",
	}
}

// Environ merges env over base (in os.Environ form). Inherited entries with
// the same names are dropped and the added entries are sorted by name.
func Environ(base []string, env map[string]string) []string {
	result := make([]string, 0, len(base)+len(env))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := env[name]; ok {
			continue
		}
		result = append(result, kv)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}
