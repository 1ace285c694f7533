// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wingedpig/easyrag/internal/bridge"
	"github.com/wingedpig/easyrag/internal/service"
	"github.com/wingedpig/easyrag/internal/settings"
)

// Response is the standard API response wrapper.
type Response struct {
	Data  interface{} `json:"data"`
	Error *ErrorInfo  `json:"error,omitempty"`
	Meta  *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains response metadata.
type MetaInfo struct {
	Timestamp time.Time `json:"timestamp"`
}

// Common error codes
const (
	ErrNotFound       = "NOT_FOUND"
	ErrBadRequest     = "BAD_REQUEST"
	ErrValidation     = "VALIDATION_ERROR"
	ErrLaunchError    = "LAUNCH_ERROR"
	ErrForbidden      = "FORBIDDEN"
	ErrUnauthorized   = "UNAUTHORIZED"
	ErrInternalError  = "INTERNAL_ERROR"
	ErrUnknownCommand = "UNKNOWN_COMMAND"
	ErrTooLarge       = "PAYLOAD_TOO_LARGE"
	ErrUnavailable    = "UNAVAILABLE"
)

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	resp := Response{
		Data: data,
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithDetails(w, status, code, message, nil)
}

// WriteErrorWithDetails writes an error response with details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	resp := Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteCommandError maps a bridge error to its status and code. data, if
// not nil, is returned alongside the error (a saved configuration whose
// backend failed to launch, or the status after a failed restart).
func WriteCommandError(w http.ResponseWriter, err error, data interface{}) {
	var (
		verr *settings.ValidationError
		lerr *service.LaunchError
	)
	status, code := http.StatusInternalServerError, ErrInternalError
	var details map[string]interface{}

	switch {
	case errors.As(err, &verr):
		status, code = http.StatusBadRequest, ErrValidation
		fields := make(map[string]interface{}, len(verr.Errors))
		for _, fe := range verr.Errors {
			fields[fe.Field] = fe.Message
		}
		details = map[string]interface{}{"fields": fields}
	case errors.As(err, &lerr):
		status, code = http.StatusBadGateway, ErrLaunchError
		details = map[string]interface{}{"mode": lerr.Mode, "path": lerr.Path}
	case errors.Is(err, bridge.ErrForbidden):
		status, code = http.StatusForbidden, ErrForbidden
	case errors.Is(err, bridge.ErrUnknownCommand):
		status, code = http.StatusNotFound, ErrUnknownCommand
	case errors.Is(err, service.ErrClosed):
		status, code = http.StatusServiceUnavailable, ErrUnavailable
	}

	resp := Response{
		Data: data,
		Error: &ErrorInfo{
			Code:    code,
			Message: err.Error(),
			Details: details,
		},
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
