// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// easyrag-host runs the EasyRAG desktop host: it keeps the encrypted
// configuration, supervises the backend service and serves the UI's commands.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/wingedpig/easyrag/internal/app"
	"github.com/wingedpig/easyrag/internal/config"
	"github.com/wingedpig/easyrag/internal/dialog"
)

var (
	version = "0.1.0"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		dataDir     string
		mode        string
		headless    bool
		noBrowser   bool
		showVersion bool
		debug       bool
	)

	flag.StringVarP(&configPath, "config", "c", "", "Path to options file (default: auto-detect)")
	flag.StringVar(&host, "host", "", "Command channel host (overrides options)")
	flag.IntVar(&port, "port", 0, "Command channel port (overrides options)")
	flag.StringVar(&dataDir, "data-dir", "", "Data directory (overrides options)")
	flag.StringVar(&mode, "mode", "", "Backend launch mode: auto, packaged or development")
	flag.BoolVar(&headless, "headless", false, "Never open native dialogs or a browser; directory selection reports cancel")
	flag.BoolVar(&noBrowser, "no-browser", false, "Do not open the UI in a browser")
	flag.BoolVarP(&showVersion, "version", "v", false, "Show version")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if showVersion {
		fmt.Printf("easyrag-host %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		configPath = config.NewLoader().FindConfig()
	}
	if configPath != "" {
		log.Printf("Using options: %s", configPath)
	}

	opts := app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		DataDir:    dataDir,
		Mode:       mode,
		Debug:      debug,
		NoBrowser:  noBrowser || headless,
		Version:    version,
	}
	if headless {
		opts.Picker = dialog.StaticPicker{}
	}

	application, err := app.New(opts)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("App error: %v", err)
	}
}
