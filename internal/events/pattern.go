// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import "strings"

// MatchPattern checks if an event type matches a pattern.
// Patterns support wildcards:
// - "backend.*" matches "backend.started", "backend.crashed", etc.
// - "*.saved" matches "config.saved"
// - "*" matches everything
func MatchPattern(pattern, eventType string) bool {
	if pattern == "" || eventType == "" {
		return false
	}

	switch {
	case pattern == "*", pattern == eventType:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(eventType, strings.TrimPrefix(pattern, "*"))
	}
	return false
}
