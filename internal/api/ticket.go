// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tickets issues single-use launch tickets. The host puts a ticket in the
// URL it opens the UI at, and the UI exchanges it once for the bearer token.
type Tickets struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	issued map[string]time.Time // ticket -> expiry
}

// NewTickets creates a ticket issuer whose tickets expire after ttl.
func NewTickets(ttl time.Duration) *Tickets {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Tickets{ttl: ttl, now: time.Now, issued: make(map[string]time.Time)}
}

// Issue returns a new ticket.
func (t *Tickets) Issue() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ticket, expiry := range t.issued {
		if now.After(expiry) {
			delete(t.issued, ticket)
		}
	}
	ticket := uuid.NewString()
	t.issued[ticket] = now.Add(t.ttl)
	return ticket
}

// Redeem consumes ticket. It reports false for an unknown, used or expired
// ticket.
func (t *Tickets) Redeem(ticket string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.issued[ticket]
	if !ok {
		return false
	}
	delete(t.issued, ticket)
	return !t.now().After(expiry)
}
