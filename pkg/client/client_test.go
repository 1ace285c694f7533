// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockServer creates a test server that returns the given response.
func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// apiHandler creates a handler that returns a standard API response.
func apiHandler(data interface{}, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}
}

// apiErrorHandler creates a handler that returns an API error with optional
// data and details.
func apiErrorHandler(code, message string, statusCode int, data interface{}, details map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		errInfo := map[string]interface{}{
			"code":    code,
			"message": message,
		}
		if details != nil {
			errInfo["details"] = details
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  data,
			"error": errInfo,
		})
	}
}

func TestNew(t *testing.T) {
	c := New("http://127.0.0.1:8765/")

	if c.BaseURL() != "http://127.0.0.1:8765" {
		t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
	}
	if c.Config == nil || c.Dialog == nil || c.Backend == nil || c.Events == nil {
		t.Error("sub-clients not initialized")
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("WithTimeout", func(t *testing.T) {
		c := New("http://localhost", WithTimeout(time.Minute))
		if c.httpClient.Timeout != time.Minute {
			t.Errorf("Timeout = %v, want 1m", c.httpClient.Timeout)
		}
	})

	t.Run("WithHTTPClient", func(t *testing.T) {
		hc := &http.Client{Timeout: 10 * time.Second}
		c := New("http://localhost", WithHTTPClient(hc))
		if c.httpClient != hc {
			t.Error("custom HTTP client not used")
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{Code: CodeValidation, Message: "invalid configuration"}
	if err.Error() != "VALIDATION_ERROR: invalid configuration" {
		t.Errorf("Error() = %q", err.Error())
	}

	err2 := &APIError{Message: "Something went wrong"}
	if err2.Error() != "Something went wrong" {
		t.Errorf("Error() = %q", err2.Error())
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var got string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		apiHandler([]string{}, http.StatusOK)(w, r)
	})

	c := New(server.URL, WithToken("secret"))
	if _, err := c.Capabilities(context.Background()); err != nil {
		t.Fatalf("Capabilities() error = %v", err)
	}
	if got != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
	}

	c = New(server.URL)
	c.Capabilities(context.Background())
	if got != "" {
		t.Errorf("Authorization = %q, want none without a token", got)
	}
}

func TestUnauthorized(t *testing.T) {
	server := mockServer(t, apiErrorHandler(CodeUnauthorized, "missing or invalid token", http.StatusUnauthorized, nil, nil))

	c := New(server.URL)
	_, err := c.Config.Get(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != CodeUnauthorized || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("got %s/%d", apiErr.Code, apiErr.StatusCode)
	}
}

func TestNonEnvelopeError(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	c := New(server.URL)
	_, err := c.Backend.Status(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("plain-text error should not be an APIError: %v", err)
	}
}

func TestConfigClient_Get(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/config" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		apiHandler(map[string]interface{}{
			"deepseekApiKey": "sk-1",
			"qwenApiKey":     "",
			"kbRootPath":     "/data/kb",
			"apiPort":        8000,
		}, http.StatusOK)(w, r)
	})

	c := New(server.URL)
	cfg, err := c.Config.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := Configuration{DeepseekAPIKey: "sk-1", KBRootPath: "/data/kb", APIPort: 8000}
	if *cfg != want {
		t.Errorf("Get() = %+v, want %+v", *cfg, want)
	}
}

func TestConfigClient_Save(t *testing.T) {
	var body map[string]interface{}
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		apiHandler(body, http.StatusOK)(w, r)
	})

	c := New(server.URL)
	cfg, err := c.Config.Save(context.Background(), Configuration{QwenAPIKey: "q", APIPort: 9000})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if cfg.QwenAPIKey != "q" || cfg.APIPort != 9000 {
		t.Errorf("Save() = %+v", *cfg)
	}
	if body["apiPort"] != float64(9000) {
		t.Errorf("sent apiPort = %v", body["apiPort"])
	}
}

func TestConfigClient_UpdateKeepsOtherFields(t *testing.T) {
	stored := map[string]interface{}{
		"deepseekApiKey": "sk-d",
		"qwenApiKey":     "sk-q",
		"kbRootPath":     "/data/kb",
		"apiPort":        8000,
	}
	var (
		methods []string
		body    map[string]interface{}
	)
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodGet {
			apiHandler(stored, http.StatusOK)(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		apiHandler(body, http.StatusOK)(w, r)
	})

	c := New(server.URL)
	cfg, err := c.Config.Update(context.Background(), map[string]interface{}{"apiPort": "9000"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(methods) != 2 || methods[0] != http.MethodGet || methods[1] != http.MethodPut {
		t.Fatalf("requests = %v, want GET then PUT", methods)
	}
	want := map[string]interface{}{
		"deepseekApiKey": "sk-d",
		"qwenApiKey":     "sk-q",
		"kbRootPath":     "/data/kb",
		"apiPort":        "9000",
	}
	if len(body) != len(want) {
		t.Fatalf("sent body = %v, want %v", body, want)
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("sent %s = %v, want %v", k, body[k], v)
		}
	}
	if cfg.DeepseekAPIKey != "sk-d" || cfg.QwenAPIKey != "sk-q" || cfg.KBRootPath != "/data/kb" {
		t.Errorf("Update() = %+v, other fields lost", *cfg)
	}
}

func TestConfigClient_UpdateGetFails(t *testing.T) {
	var puts int
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts++
		}
		apiErrorHandler(CodeForbidden, "config:get: command not permitted", http.StatusForbidden, nil, nil)(w, r)
	})

	cfg, err := New(server.URL).Config.Update(context.Background(), map[string]interface{}{"apiPort": 9000})
	if cfg != nil || err == nil {
		t.Errorf("Update() = %v, %v; want error", cfg, err)
	}
	if puts != 0 {
		t.Errorf("PUT sent %d times after a failed read", puts)
	}
}

func TestConfigClient_SaveValidationError(t *testing.T) {
	server := mockServer(t, apiErrorHandler(CodeValidation, "invalid configuration", http.StatusBadRequest, nil,
		map[string]interface{}{"fields": map[string]interface{}{"apiPort": "must be between 1 and 65535"}}))

	c := New(server.URL)
	cfg, err := c.Config.Save(context.Background(), Configuration{APIPort: 70000})
	if cfg != nil {
		t.Errorf("Save() = %+v, want nil", cfg)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeValidation {
		t.Fatalf("error = %v, want validation error", err)
	}
	if _, ok := apiErr.Fields()["apiPort"]; !ok {
		t.Errorf("Fields() = %v, want apiPort", apiErr.Fields())
	}
}

func TestConfigClient_SaveLaunchError(t *testing.T) {
	saved := map[string]interface{}{"kbRootPath": "/kb", "apiPort": 8001}
	server := mockServer(t, apiErrorHandler(CodeLaunch, "backend failed to launch", http.StatusBadGateway, saved,
		map[string]interface{}{"mode": "packaged"}))

	c := New(server.URL)
	cfg, err := c.Config.Save(context.Background(), Configuration{KBRootPath: "/kb", APIPort: 8001})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeLaunch {
		t.Fatalf("error = %v, want launch error", err)
	}
	if cfg == nil || cfg.APIPort != 8001 {
		t.Errorf("Save() = %v, want the stored configuration", cfg)
	}
}

func TestDialogClient_SelectDirectory(t *testing.T) {
	t.Run("selected", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v1/dialog/select-directory" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			apiHandler("/home/me/kb", http.StatusOK)(w, r)
		})

		path, err := New(server.URL).Dialog.SelectDirectory(context.Background())
		if err != nil {
			t.Fatalf("SelectDirectory() error = %v", err)
		}
		if path == nil || *path != "/home/me/kb" {
			t.Errorf("SelectDirectory() = %v", path)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		server := mockServer(t, apiHandler(nil, http.StatusOK))

		path, err := New(server.URL).Dialog.SelectDirectory(context.Background())
		if err != nil {
			t.Fatalf("SelectDirectory() error = %v", err)
		}
		if path != nil {
			t.Errorf("SelectDirectory() = %q, want nil", *path)
		}
	})
}

func TestBackendClient_Status(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/backend" {
			t.Errorf("path = %s", r.URL.Path)
		}
		apiHandler(map[string]interface{}{
			"state": "running",
			"pid":   4242,
			"port":  8000,
			"mode":  "packaged",
		}, http.StatusOK)(w, r)
	})

	st, err := New(server.URL).Backend.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !st.Running() || st.PID != 4242 || st.Port != 8000 {
		t.Errorf("Status() = %+v", *st)
	}
}

func TestBackendClient_Restart(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v1/backend/restart" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			apiHandler(map[string]interface{}{"state": "running", "pid": 7}, http.StatusOK)(w, r)
		})

		st, err := New(server.URL).Backend.Restart(context.Background())
		if err != nil {
			t.Fatalf("Restart() error = %v", err)
		}
		if st.PID != 7 {
			t.Errorf("PID = %d, want 7", st.PID)
		}
	})

	t.Run("launch failure", func(t *testing.T) {
		server := mockServer(t, apiErrorHandler(CodeLaunch, "no such file", http.StatusBadGateway,
			map[string]interface{}{"state": "stopped", "error": "no such file"}, nil))

		st, err := New(server.URL).Backend.Restart(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
		if st == nil || st.State != StateStopped || st.Error == "" {
			t.Errorf("Restart() status = %+v", st)
		}
	})
}

func TestBackendClient_Logs(t *testing.T) {
	var query string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/backend/logs" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		query = r.URL.RawQuery
		apiHandler([]string{"starting", "listening on 8000"}, http.StatusOK)(w, r)
	})

	c := New(server.URL)
	lines, err := c.Backend.Logs(context.Background(), 2)
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if len(lines) != 2 || lines[1] != "listening on 8000" {
		t.Errorf("Logs() = %v", lines)
	}
	if query != "lines=2" {
		t.Errorf("query = %q, want lines=2", query)
	}

	if _, err := c.Backend.Logs(context.Background(), 0); err != nil {
		t.Fatalf("Logs(0) error = %v", err)
	}
	if query != "" {
		t.Errorf("query = %q, want none", query)
	}
}

func TestSessionClient(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/session/ticket":
			apiHandler(map[string]string{"ticket": "t-1", "url": "http://127.0.0.1:8765/#ticket=t-1"}, http.StatusOK)(w, r)
		case "/api/v1/session":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["ticket"] != "t-1" {
				apiErrorHandler(CodeUnauthorized, "invalid or expired ticket", http.StatusUnauthorized, nil, nil)(w, r)
				return
			}
			apiHandler(map[string]string{"token": "secret"}, http.StatusOK)(w, r)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	c := New(server.URL)
	ticket, err := c.Session.NewTicket(context.Background())
	if err != nil {
		t.Fatalf("NewTicket() error = %v", err)
	}
	if ticket.Ticket != "t-1" || ticket.URL == "" {
		t.Errorf("NewTicket() = %+v", *ticket)
	}

	token, err := c.Session.Redeem(context.Background(), ticket.Ticket)
	if err != nil || token != "secret" {
		t.Errorf("Redeem() = %q, %v", token, err)
	}

	_, err = c.Session.Redeem(context.Background(), "bogus")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeUnauthorized {
		t.Errorf("Redeem(bogus) error = %v, want unauthorized", err)
	}
}

func TestEventClient_List(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "5" {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		if got := q["type"]; len(got) != 2 || got[0] != "backend.*" || got[1] != "config.saved" {
			t.Errorf("type = %v", got)
		}
		if q.Get("since") != "2026-01-02T03:04:05Z" {
			t.Errorf("since = %q", q.Get("since"))
		}
		apiHandler([]map[string]interface{}{
			{"id": "1", "type": "backend.started", "timestamp": since, "payload": map[string]interface{}{"pid": 9}},
		}, http.StatusOK)(w, r)
	})

	events, err := New(server.URL).Events.List(context.Background(), &ListOptions{
		Limit: 5,
		Types: []string{"backend.*", "config.saved"},
		Since: since,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != "backend.started" {
		t.Fatalf("List() = %+v", events)
	}
	if !events[0].Timestamp.Equal(since) {
		t.Errorf("Timestamp = %v", events[0].Timestamp)
	}
}

func TestEventClient_ListNoOptions(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}
		apiHandler([]interface{}{}, http.StatusOK)(w, r)
	})

	events, err := New(server.URL).Events.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("List() = %v, want empty", events)
	}
}

func TestInvoke(t *testing.T) {
	var gotBody string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/invoke/config:save" {
			t.Errorf("path = %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		apiHandler(map[string]interface{}{"apiPort": 8000}, http.StatusOK)(w, r)
	})

	out, err := New(server.URL).Invoke(context.Background(), "config:save", map[string]interface{}{"apiPort": 8000})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if gotBody != `{"apiPort":8000}` {
		t.Errorf("body = %s", gotBody)
	}
	var cfg Configuration
	if err := json.Unmarshal(out, &cfg); err != nil || cfg.APIPort != 8000 {
		t.Errorf("Invoke() = %s", out)
	}
}

func TestInvokeUnknownCommand(t *testing.T) {
	server := mockServer(t, apiErrorHandler(CodeUnknownCommand, "unknown command", http.StatusNotFound, nil, nil))

	_, err := New(server.URL).Invoke(context.Background(), "nope", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeUnknownCommand {
		t.Errorf("error = %v", err)
	}
}
