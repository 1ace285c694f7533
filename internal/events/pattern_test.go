// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"*", "backend.started", true},
		{"backend.started", "backend.started", true},
		{"backend.started", "backend.stopped", false},
		{"backend.*", "backend.crashed", true},
		{"backend.*", "config.saved", false},
		{"*.saved", "config.saved", true},
		{"*.saved", "backend.started", false},
		{"", "backend.started", false},
		{"backend.*", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.eventType))
		})
	}
}
