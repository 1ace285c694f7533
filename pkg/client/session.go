// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Ticket is a single-use launch ticket and the URL that opens the UI with it.
type Ticket struct {
	Ticket string `json:"ticket"`
	URL    string `json:"url"`
}

// SessionClient issues and redeems UI launch tickets.
type SessionClient struct {
	c *Client
}

// NewTicket asks the host for a launch ticket. It requires the token.
func (s *SessionClient) NewTicket(ctx context.Context) (*Ticket, error) {
	data, err := s.c.post(ctx, "/api/v1/session/ticket")
	if err != nil {
		return nil, err
	}

	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse ticket: %w", err)
	}
	return &t, nil
}

// Redeem exchanges a launch ticket for the host's bearer token. A ticket
// can be redeemed once.
func (s *SessionClient) Redeem(ctx context.Context, ticket string) (string, error) {
	data, err := s.c.sendJSON(ctx, http.MethodPost, "/api/v1/session", map[string]string{"ticket": ticket})
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse session: %w", err)
	}
	return resp.Token, nil
}
