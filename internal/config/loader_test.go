// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		app_name: "EasyRAG"
		data_dir: "/var/lib/easyrag"
		server: {
			port: 9100
			host: "127.0.0.1"
		}
		backend: {
			mode: "development"
			interpreter: "python3"
			source_dir: "/src/backend"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "EasyRAG", cfg.AppName)
	assert.Equal(t, "/var/lib/easyrag", cfg.DataDir)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, ModeDevelopment, cfg.Backend.Mode)
	assert.Equal(t, "python3", cfg.Backend.Interpreter)
	assert.Equal(t, "/src/backend", cfg.Backend.SourceDir)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	configContent := `{
		// comments are allowed
		data_dir: /tmp/easyrag

		# hash comments too
		bridge: {
			capabilities: [
				"config:get"
				"backend:status"
			]
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "/tmp/easyrag", cfg.DataDir)
	assert.Equal(t, []string{"config:get", "backend:status"}, cfg.Bridge.Capabilities)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/easyrag.hjson")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	path := writeTestConfig(t, `{ server: { port: `)
	loader := NewLoader()
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, `{ data_dir: "/tmp/easyrag-test" }`)

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "EasyRAG", cfg.AppName)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, ModeAuto, cfg.Backend.Mode)
	assert.Equal(t, "python", cfg.Backend.Interpreter)
	assert.Equal(t, "uvicorn", cfg.Backend.Module)
	assert.Equal(t, "main:app", cfg.Backend.App)
	assert.Equal(t, "SIGTERM", cfg.Backend.StopSignal)
	assert.Equal(t, 10*time.Second, cfg.Backend.StopTimeoutDuration())
	assert.Equal(t, DefaultCapabilities, cfg.Bridge.Capabilities)
	assert.Equal(t, filepath.Join("/tmp/easyrag-test", "bridge.token"), cfg.TokenPath())
	assert.Equal(t, filepath.Join("/tmp/easyrag-test", "kb"), cfg.KBDefaultRoot())
	assert.Equal(t, filepath.Join("/tmp/easyrag-test", "config.enc"), cfg.SettingsPath())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, OpenBrowser, cfg.UI.Open)
	assert.Equal(t, 2*time.Minute, cfg.UI.TicketTTLDuration())
	assert.Empty(t, cfg.UI.DevServerOrigin())
}

func TestLoader_LoadWithDefaults_UI(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, `{ backend: { resources_dir: "/opt/easyrag/resources" } }`)

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/easyrag/resources", "frontend-dist"), cfg.UI.DistDir)

	t.Setenv(EnvDevServerURL, "http://localhost:5173/app")
	cfg, err = NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/app", cfg.UI.DevServerURL)
	assert.Equal(t, "http://localhost:5173", cfg.UI.DevServerOrigin())
}

func TestLoader_LoadWithDefaults_EmptyPath(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, os.Getenv(EnvDataDir), cfg.DataDir)
}

func TestLoader_LoadWithDefaults_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPython, "/opt/python/bin/python3")
	t.Setenv(EnvBackendMode, ModeDevelopment)

	path := writeTestConfig(t, `{ backend: { mode: "packaged", interpreter: "python" } }`)
	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/python/bin/python3", cfg.Backend.Interpreter)
	assert.Equal(t, ModeDevelopment, cfg.Backend.Mode)
}

func TestLoader_LoadWithDefaults_DotEnv(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, `{}`)
	envPath := filepath.Join(filepath.Dir(path), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("EASYRAG_PYTHON=/usr/bin/python3.12\n"), 0644))

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python3.12", cfg.Backend.Interpreter)
}

func TestLoader_LoadWithDefaults_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, `{ backend: { mode: "docker" } }`)

	_, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "backend.mode")
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	loader := NewLoader()
	assert.Equal(t, "", loader.FindConfig())

	require.NoError(t, os.WriteFile("easyrag.json", []byte(`{}`), 0644))
	assert.Equal(t, "easyrag.json", filepath.Base(loader.FindConfig()))

	require.NoError(t, os.WriteFile("easyrag.hjson", []byte(`{}`), 0644))
	assert.Equal(t, "easyrag.hjson", filepath.Base(loader.FindConfig()))
}

func TestBackendConfig_ExecutablePath(t *testing.T) {
	b := BackendConfig{ResourcesDir: "/opt/easyrag/resources", Executable: "backend/backend"}
	assert.Equal(t, "/opt/easyrag/resources/backend/backend", b.ExecutablePath())

	b.Executable = "/usr/local/bin/easyrag-backend"
	assert.Equal(t, "/usr/local/bin/easyrag-backend", b.ExecutablePath())
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	path := writeTestConfig(t, content)
	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "easyrag.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// clearEnv unsets the override variables for the duration of a test, since
// .env loading writes to the process environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvPython, EnvBackendMode, EnvResourcesDir, EnvDataDir, EnvDevServerURL} {
		prev, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}
}
