// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
)

// TicketIssuer issues and redeems single-use launch tickets.
type TicketIssuer interface {
	Issue() string
	Redeem(ticket string) bool
}

// SessionHandler hands the bearer token to a UI holding a launch ticket.
type SessionHandler struct {
	tickets   TicketIssuer
	token     string
	launchURL func(hostURL, ticket string) string
}

// NewSessionHandler creates a session handler. launchURL builds the address
// a new ticket opens the UI at.
func NewSessionHandler(tickets TicketIssuer, token string, launchURL func(hostURL, ticket string) string) *SessionHandler {
	return &SessionHandler{tickets: tickets, token: token, launchURL: launchURL}
}

// Create exchanges a launch ticket for the bearer token. It is the only
// command channel route that needs no token.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticket string `json:"ticket"`
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON body")
		return
	}
	if req.Ticket == "" || !h.tickets.Redeem(req.Ticket) {
		WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "invalid or expired ticket")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"token": h.token})
}

// IssueTicket returns a new launch ticket and the URL that opens the UI
// with it.
func (h *SessionHandler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	ticket := h.tickets.Issue()
	WriteJSON(w, http.StatusOK, map[string]string{
		"ticket": ticket,
		"url":    h.launchURL("http://"+r.Host, ticket),
	})
}
