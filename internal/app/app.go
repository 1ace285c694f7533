// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the host together and runs it until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/easyrag/internal/api"
	"github.com/wingedpig/easyrag/internal/bridge"
	"github.com/wingedpig/easyrag/internal/config"
	"github.com/wingedpig/easyrag/internal/dialog"
	"github.com/wingedpig/easyrag/internal/events"
	"github.com/wingedpig/easyrag/internal/service"
	"github.com/wingedpig/easyrag/internal/settings"
	"github.com/wingedpig/easyrag/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.Mutex

	opts          Options
	config        *config.Config
	log           *logrus.Logger
	eventBus      *events.MemoryEventBus
	store         *settings.Store
	supervisor    *service.Supervisor
	bridge        *bridge.Bridge
	binaryWatcher *watcher.BinaryWatcher
	apiServer     *api.Server
	listener      net.Listener
	token         string
	tickets       *api.Tickets
	subs          []events.SubscriptionID

	done         chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	DataDir    string
	Mode       string // Backend launch mode override
	Debug      bool
	NoBrowser  bool // Never open the UI in a browser
	Version    string
	Picker     dialog.Picker // Defaults to the native dialog
	LogOutput  io.Writer     // Defaults to stderr
}

// New loads the host options and creates an App. Nothing is started.
func New(opts Options) (*App, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Command-line overrides
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Mode != "" {
		cfg.Backend.Mode = opts.Mode
		if err := config.NewValidator().Validate(cfg); err != nil {
			return nil, err
		}
	}

	return &App{
		opts:   opts,
		config: cfg,
		log:    NewLogger(cfg.Logging, opts.Debug, opts.LogOutput),
		done:   make(chan struct{}),
	}, nil
}

// Config returns the host options in effect.
func (app *App) Config() *config.Config {
	return app.config
}

// Initialize creates every component. It reaps a backend orphaned by a
// previous host before the supervisor is created.
func (app *App) Initialize(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	cfg := app.config
	log := app.log

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	log.WithFields(logrus.Fields{"data_dir": cfg.DataDir, "version": app.opts.Version}).Info("Starting EasyRAG host")

	store, err := settings.Open(cfg.SettingsPath(), settings.DefaultKey(cfg.AppName), log)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	app.store = store
	log.WithField("path", store.Path()).Debug("Settings store opened")

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.MaxAge, time.Hour),
		Log:              log,
	})

	launch := service.NewLaunch(cfg.Backend)
	log.WithFields(logrus.Fields{"mode": launch.Mode(), "executable": launch.Executable()}).Info("Backend launch strategy")

	if pid, err := service.ReapOrphan(cfg.PIDFile(), launch, log); err != nil {
		log.WithError(err).Warn("Could not reap orphaned backend")
	} else if pid != 0 {
		app.eventBus.Publish(ctx, events.Event{
			Type:    events.EventBackendOrphanReaped,
			Payload: map[string]interface{}{"pid": pid},
		})
	}

	app.supervisor = service.NewSupervisor(service.SupervisorConfig{
		Launch:        launch,
		KBDefaultRoot: cfg.KBDefaultRoot(),
		PIDFile:       cfg.PIDFile(),
		StopSignal:    cfg.Backend.StopSignal,
		StopTimeout:   cfg.Backend.StopTimeoutDuration(),
		LogBuffer:     cfg.Backend.LogBuffer,
		Bus:           app.eventBus,
		Log:           log,
	})

	// Synchronous handlers run under the supervisor's lock, so this one
	// only logs.
	id, err := app.eventBus.Subscribe("*", func(ctx context.Context, e events.Event) error {
		log.WithField("type", e.Type).Debug("Event published")
		return nil
	})
	if err != nil {
		return err
	}
	app.subs = append(app.subs, id)

	picker := app.opts.Picker
	if picker == nil {
		picker = dialog.NewNativePicker("Select knowledge base folder")
	}
	app.bridge = bridge.New(bridge.Config{
		Store:        store,
		Backend:      app.supervisor,
		Picker:       picker,
		Bus:          app.eventBus,
		Capabilities: cfg.Bridge.Capabilities,
		Log:          log,
	})

	token, err := api.LoadOrCreateToken(cfg.TokenPath())
	if err != nil {
		return err
	}
	app.token = token
	app.tickets = api.NewTickets(cfg.UI.TicketTTLDuration())

	origins := cfg.Server.UIOrigins
	if dev := cfg.UI.DevServerOrigin(); dev != "" && !contains(origins, dev) {
		origins = append(append([]string(nil), origins...), dev)
	}
	app.apiServer = api.NewServer(api.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, api.Dependencies{
		Bridge:    app.bridge,
		EventBus:  app.eventBus,
		Token:     token,
		UIOrigins: origins,
		UI:        app.uiConfig(),
		Tickets:   app.tickets,
		Log:       log,
	})

	if cfg.Backend.WatchBinary && launch.Mode() == config.ModePackaged {
		w, err := watcher.NewBinaryWatcher(watcher.Config{
			Path:     launch.Executable(),
			Debounce: cfg.Backend.DebounceDuration(),
			Bus:      app.eventBus,
			Log:      log,
		})
		if err != nil {
			log.WithError(err).Warn("Backend executable watch disabled")
		} else {
			app.binaryWatcher = w
			log.WithField("path", w.Path()).Info("Watching backend executable")

			id, err := app.eventBus.SubscribeAsync(events.EventBinaryChanged, app.restartOnBinaryChange, 4)
			if err != nil {
				return err
			}
			app.subs = append(app.subs, id)
		}
	}

	return nil
}

// restartOnBinaryChange restarts a started backend after its executable
// was replaced.
func (app *App) restartOnBinaryChange(ctx context.Context, e events.Event) error {
	err := app.supervisor.Restart(ctx)
	if errors.Is(err, service.ErrNotConfigured) || errors.Is(err, service.ErrClosed) {
		return nil
	}
	return err
}

func (app *App) uiConfig() api.UIConfig {
	return api.UIConfig{DistDir: app.config.UI.DistDir, DevServerURL: app.config.UI.DevServerURL}
}

// openUI opens the UI in the user's browser with a fresh launch ticket.
func (app *App) openUI() {
	if app.opts.NoBrowser || app.config.UI.Open != config.OpenBrowser {
		return
	}
	ui := app.uiConfig()
	if !ui.Available() {
		app.log.WithField("dist_dir", ui.DistDir).Warn("No UI found, not opening a browser")
		return
	}
	if err := openURL(ui.LaunchURL("http://"+app.Addr(), app.tickets.Issue())); err != nil {
		app.log.WithError(err).Warn("Could not open browser")
		return
	}
	app.log.Info("Opened UI in browser")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Start binds the command channel and starts the backend from the stored
// configuration. A backend that fails to launch is logged, not fatal; the
// UI can fix the configuration and save again.
func (app *App) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	addr := net.JoinHostPort(app.config.Server.Host, strconv.Itoa(app.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	app.listener = ln

	if err := app.supervisor.Start(ctx, app.store.Get()); err != nil {
		var lerr *service.LaunchError
		if !errors.As(err, &lerr) {
			return err
		}
		app.log.WithError(err).Warn("Backend not started; save a configuration to retry")
	}
	return nil
}

// Run starts the app and blocks until a signal, ctx cancellation, or Stop.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		app.Shutdown(context.Background())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.apiServer.Serve(app.listener)
	})
	app.openUI()

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			app.log.Infof("Received signal %v, shutting down...", sig)
		case <-gctx.Done():
			app.log.Info("Context cancelled, shutting down...")
		case <-app.done:
			app.log.Info("Shutdown requested...")
		}
		return app.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown stops accepting commands, then stops the backend and waits for
// it to exit. No backend can be started afterwards. Safe to call more than
// once.
func (app *App) Shutdown(ctx context.Context) error {
	app.shutdownOnce.Do(func() {
		app.mu.Lock()
		defer app.mu.Unlock()

		app.log.Info("Shutting down...")

		timeout := app.config.Backend.StopTimeoutDuration() + 5*time.Second
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		// Stop API server first to stop accepting new requests
		if app.apiServer != nil {
			if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
				app.log.WithError(err).Warn("Error shutting down command channel")
			}
		}
		if app.listener != nil {
			app.listener.Close() // already closed if Serve ran
		}

		if app.binaryWatcher != nil {
			app.binaryWatcher.Close()
		}
		for _, id := range app.subs {
			app.eventBus.Unsubscribe(id)
		}
		app.subs = nil

		if app.supervisor != nil {
			app.supervisor.Close(shutdownCtx)
		}

		if app.eventBus != nil {
			app.eventBus.Close()
		}

		app.log.Info("Shutdown complete")
	})
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

// Addr returns the command channel's listen address once started.
func (app *App) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener == nil {
		return ""
	}
	return app.listener.Addr().String()
}

// Token returns the command channel's bearer token once initialized.
func (app *App) Token() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.token
}

// Supervisor returns the backend supervisor once initialized.
func (app *App) Supervisor() *service.Supervisor {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.supervisor
}
