// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wingedpig/easyrag/internal/bridge"
	"github.com/wingedpig/easyrag/internal/settings"
)

// MaxBodySize is the largest request body a command accepts.
const MaxBodySize = 64 << 10

// BridgeHandler exposes the command bridge over HTTP.
type BridgeHandler struct {
	bridge *bridge.Bridge
}

// NewBridgeHandler creates a new bridge handler.
func NewBridgeHandler(b *bridge.Bridge) *BridgeHandler {
	return &BridgeHandler{bridge: b}
}

// GetConfig returns the stored configuration.
func (h *BridgeHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.bridge.GetConfig(r.Context())
	if err != nil {
		WriteCommandError(w, err, nil)
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// SaveConfig stores the configuration in the request body and restarts
// the backend.
func (h *BridgeHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	raw, err := settings.ParsePartial(body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrValidation, err.Error())
		return
	}

	cfg, err := h.bridge.SaveConfig(r.Context(), raw)
	if err != nil {
		var data interface{}
		if cfg != (settings.Configuration{}) {
			data = cfg
		}
		WriteCommandError(w, err, data)
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// SelectDirectory opens the native directory picker. The response data is
// the chosen path, or null when cancelled.
func (h *BridgeHandler) SelectDirectory(w http.ResponseWriter, r *http.Request) {
	path, err := h.bridge.SelectDirectory(r.Context())
	if err != nil {
		WriteCommandError(w, err, nil)
		return
	}
	WriteJSON(w, http.StatusOK, path)
}

// BackendStatus returns the backend's state.
func (h *BridgeHandler) BackendStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.bridge.BackendStatus(r.Context())
	if err != nil {
		WriteCommandError(w, err, nil)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// RestartBackend restarts the backend.
func (h *BridgeHandler) RestartBackend(w http.ResponseWriter, r *http.Request) {
	st, err := h.bridge.RestartBackend(r.Context())
	if err != nil {
		WriteCommandError(w, err, st)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// BackendLogs returns recent backend output. The optional lines query
// parameter selects how many.
func (h *BridgeHandler) BackendLogs(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("lines"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid lines parameter")
			return
		}
	}
	lines, err := h.bridge.BackendLogs(r.Context(), n)
	if err != nil {
		WriteCommandError(w, err, nil)
		return
	}
	WriteJSON(w, http.StatusOK, lines)
}

// Capabilities lists the commands this client may call.
func (h *BridgeHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.bridge.Capabilities())
}

// Invoke runs the command named in the path with the request body as its
// argument.
func (h *BridgeHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	out, err := h.bridge.Invoke(r.Context(), mux.Vars(r)["command"], body)
	if err != nil {
		WriteCommandError(w, err, out)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// readBody reads at most MaxBodySize bytes of the request body. On failure
// it writes the error response and returns false.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, ErrTooLarge,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return nil, false
		}
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return nil, false
	}
	return body, true
}
