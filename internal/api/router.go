// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the command channel on a loopback HTTP listener.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wingedpig/easyrag/internal/api/handlers"
	"github.com/wingedpig/easyrag/internal/api/middleware"
	"github.com/wingedpig/easyrag/internal/bridge"
	"github.com/wingedpig/easyrag/internal/events"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host string
	Port int
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Bridge    *bridge.Bridge
	EventBus  events.EventBus
	Token     string   // Bearer token every request must carry
	UIOrigins []string // Browser origins allowed by CORS
	UI        UIConfig
	Tickets   *Tickets // Launch tickets redeemable for Token; nil disables the exchange
	Log       logrus.FieldLogger
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, handlers.ErrNotFound, "not found")
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, handlers.ErrBadRequest, "method not allowed")
	})

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = methodNotAllowed

	// Apply global middleware
	r.Use(middleware.Logging(log))

	// Ticket exchange, the one API route without a token
	var sessionHandler *handlers.SessionHandler
	if deps.Tickets != nil {
		sessionHandler = handlers.NewSessionHandler(deps.Tickets, deps.Token, deps.UI.LaunchURL)
		r.HandleFunc("/api/v1/session", sessionHandler.Create).Methods("POST")
	}

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = methodNotAllowed
	api.Use(middleware.Auth(deps.Token))

	// Bridge handlers
	bridgeHandler := handlers.NewBridgeHandler(deps.Bridge)
	api.HandleFunc("/config", bridgeHandler.GetConfig).Methods("GET")
	api.HandleFunc("/config", bridgeHandler.SaveConfig).Methods("PUT")
	api.HandleFunc("/dialog/select-directory", bridgeHandler.SelectDirectory).Methods("POST")
	api.HandleFunc("/backend", bridgeHandler.BackendStatus).Methods("GET")
	api.HandleFunc("/backend/restart", bridgeHandler.RestartBackend).Methods("POST")
	api.HandleFunc("/backend/logs", bridgeHandler.BackendLogs).Methods("GET")
	api.HandleFunc("/capabilities", bridgeHandler.Capabilities).Methods("GET")
	api.HandleFunc("/invoke/{command}", bridgeHandler.Invoke).Methods("POST")

	// Event handlers
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")

	if sessionHandler != nil {
		api.HandleFunc("/session/ticket", sessionHandler.IssueTicket).Methods("POST")
	}

	// The UI itself, outside the API and without a token
	if ui := newUIHandler(deps.UI); ui != nil {
		r.PathPrefix("/").Handler(ui).Methods("GET", "HEAD")
	}

	return r
}

// NewHandler wraps the router with the middleware that must also see
// requests matching no route: panic recovery, and CORS so that preflight
// requests are answered.
func NewHandler(deps Dependencies) http.Handler {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return middleware.Recovery(log)(middleware.CORS(deps.UIOrigins)(NewRouter(deps)))
}

// Server represents the API server.
type Server struct {
	handler http.Handler
	cfg     ServerConfig
	log     logrus.FieldLogger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		handler: NewHandler(deps),
		cfg:     cfg,
		log:     log,
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve accepts connections on ln. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.server.Handler = s.handler
	s.log.Infof("Command channel listening on http://%s", ln.Addr())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down command channel...")

	// Create a timeout context if none provided
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
