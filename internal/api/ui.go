// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UIConfig tells the router where the UI comes from.
type UIConfig struct {
	DistDir      string // Built UI served at /, used when it holds index.html
	DevServerURL string // When set, / redirects here and DistDir is ignored
}

// Available reports whether there is a UI to open.
func (u UIConfig) Available() bool {
	if u.DevServerURL != "" {
		return true
	}
	if u.DistDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(u.DistDir, "index.html"))
	return err == nil && !info.IsDir()
}

// LaunchURL returns the address to open the UI at. ticket travels in the
// fragment, which browsers never send to a server. A dev server UI is
// served from another origin, so it is also told where the host listens.
func (u UIConfig) LaunchURL(hostURL, ticket string) string {
	frag := url.Values{"ticket": {ticket}}
	base := strings.TrimSuffix(hostURL, "/") + "/"
	if u.DevServerURL != "" {
		base, _, _ = strings.Cut(u.DevServerURL, "#")
		frag.Set("api", strings.TrimSuffix(hostURL, "/"))
	}
	return base + "#" + frag.Encode()
}

// newUIHandler returns the handler for UI paths, or nil when there is no UI.
func newUIHandler(cfg UIConfig) http.Handler {
	if cfg.DevServerURL != "" {
		return http.RedirectHandler(cfg.DevServerURL, http.StatusFound)
	}
	if !cfg.Available() {
		return nil
	}
	return &staticUI{root: cfg.DistDir, files: http.FileServer(http.Dir(cfg.DistDir))}
}

// staticUI serves the built single-page UI. Paths that are not files get
// index.html so client-side routes survive a reload.
type staticUI struct {
	root  string
	files http.Handler
}

func (h *staticUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	info, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(clean)))
	if err == nil && !info.IsDir() {
		h.files.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filepath.Join(h.root, "index.html"))
}
