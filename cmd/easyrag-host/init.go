// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/wingedpig/easyrag/internal/config"
)

const initUsage = `Usage: easyrag-host init [options]

Create an easyrag.hjson options file in the current directory.

The command asks a few questions and writes a commented file covering
every option, so it can be edited by hand afterwards.

Options:
  -h, --help    Show this help message
  -o, --out     File to write (default: easyrag.hjson)`

// runInit handles the "easyrag-host init" command.
func runInit(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	showHelp := fs.BoolP("help", "h", false, "Show help for init command")
	configFile := fs.StringP("out", "o", "easyrag.hjson", "File to write")
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		fmt.Fprintln(out, initUsage)
		return nil
	}

	if _, err := os.Stat(*configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", *configFile)
	}

	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "EasyRAG Host Setup")
	fmt.Fprintln(out, "==================")
	fmt.Fprintln(out, "Press Enter to accept defaults shown in [brackets].")
	fmt.Fprintln(out)

	opts := initOptions{}

	portStr := prompt(reader, out, "Command channel port", "8765")
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		port = 8765
	}
	opts.Port = port

	fmt.Fprintln(out)
	fmt.Fprintln(out, "The backend runs from a packaged executable, or from source during development.")
	opts.Mode = prompt(reader, out, "Launch mode (auto/packaged/development)", config.ModeAuto)
	switch opts.Mode {
	case config.ModeAuto, config.ModePackaged, config.ModeDevelopment:
	default:
		return fmt.Errorf("invalid mode %q", opts.Mode)
	}
	if opts.Mode != config.ModePackaged {
		opts.SourceDir = prompt(reader, out, "Backend source directory", "backend")
	}

	fmt.Fprintln(out)
	opts.UIOrigin = prompt(reader, out, "UI origin allowed to call the host (or empty for none)", "")

	watch := prompt(reader, out, "Restart when the packaged executable is replaced? (y/n)", "n")
	opts.WatchBinary = strings.ToLower(watch) == "y"

	if err := os.WriteFile(*configFile, []byte(generateConfig(opts)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created %s\n", *configFile)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Review and edit %s as needed\n", *configFile)
	fmt.Fprintln(out, "  2. Run: ./easyrag-host")
	fmt.Fprintln(out)
	return nil
}

type initOptions struct {
	Port        int
	Mode        string
	SourceDir   string
	UIOrigin    string
	WatchBinary bool
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(opts initOptions) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // EasyRAG Host Options
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).
  // API keys and the knowledge base location are not set here; the UI saves
  // them to the encrypted settings file in the data directory.

  app_name: "EasyRAG"

  // Where settings, the bearer token and the default knowledge base live.
  // Defaults to the per-user config directory.
  // data_dir: "/path/to/data"

  // ---------------------------------------------------------------------------
  // Command Channel
  // ---------------------------------------------------------------------------
  server: {
    host: "127.0.0.1"
`)
	fmt.Fprintf(&sb, "    port: %d\n", opts.Port)
	if opts.UIOrigin != "" {
		fmt.Fprintf(&sb, "    ui_origins: [\"%s\"]\n", escapeHJSONValue(opts.UIOrigin))
	} else {
		sb.WriteString("    // ui_origins: [\"http://localhost:5173\"]\n")
	}
	sb.WriteString(`  }

  // ---------------------------------------------------------------------------
  // Backend
  // ---------------------------------------------------------------------------
  backend: {
`)
	fmt.Fprintf(&sb, "    mode: \"%s\"\n", opts.Mode)
	sb.WriteString(`
    // Packaged mode runs <resources_dir>/<executable>.
    // resources_dir: "/Applications/EasyRAG.app/Contents/Resources"
    // executable: "backend/backend"

    // Development mode runs: <interpreter> -m <module> <app> --host <listen_host> --port <apiPort>
    // interpreter: "python"   // or set EASYRAG_PYTHON
    // module: "uvicorn"
    // app: "main:app"
`)
	if opts.SourceDir != "" {
		fmt.Fprintf(&sb, "    source_dir: \"%s\"\n", escapeHJSONValue(opts.SourceDir))
	}
	fmt.Fprintf(&sb, "    watch_binary: %t\n", opts.WatchBinary)
	sb.WriteString(`    // debounce: "500ms"

    stop_signal: "SIGTERM"
    stop_timeout: "10s"
    log_buffer: 1000
  }

  // ---------------------------------------------------------------------------
  // Event History
  // ---------------------------------------------------------------------------
  events: {
    max_events: 1000
    max_age: "1h"
  }

  // ---------------------------------------------------------------------------
  // Command Bridge
  // ---------------------------------------------------------------------------
  // Remove entries to hide commands from the UI.
  // bridge: {
  //   capabilities: ["config:get", "config:save", "dialog:select-directory", "backend:status", "backend:restart", "backend:logs"]
  // }

  // ---------------------------------------------------------------------------
  // UI
  // ---------------------------------------------------------------------------
  ui: {
    open: "browser"   // browser or none
    // dist_dir: "<resources_dir>/frontend-dist"
    // dev_server_url: "http://localhost:5173"   // or set EASYRAG_DEV_SERVER_URL
    // ticket_ttl: "2m"
  }

  logging: {
    level: "info"   // debug, info, warn, error
    format: "text"  // text or json
  }
}
`)

	return sb.String()
}
