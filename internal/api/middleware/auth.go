// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth returns middleware that requires "Authorization: Bearer <token>".
// Preflight requests pass through so CORS can answer them.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="easyrag"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"missing or invalid token"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
