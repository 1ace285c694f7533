// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events records what the host's control plane did.
//
// The supervisor and bridge publish lifecycle events here; the command
// channel exposes them as a pull-only history so a client can find out why
// the backend is unreachable without the host pushing anything to it.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types []string  // Event types to match (supports wildcards)
	Since time.Time // Events after this time
	Limit int       // Maximum events to return, newest kept
}

// EventBus is the event pub/sub system.
type EventBus interface {
	// Publish records an event and hands it to matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers a handler that runs on its own goroutine.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus.
	Close() error
}

// Event types
const (
	EventBackendStarting     = "backend.starting"
	EventBackendStarted      = "backend.started"
	EventBackendStopped      = "backend.stopped"
	EventBackendCrashed      = "backend.crashed"
	EventBackendLaunchFailed = "backend.launch_failed"
	EventBackendOrphanReaped = "backend.orphan_reaped"
	EventBinaryChanged       = "backend.binary_changed"
	EventConfigSaved         = "config.saved"
)
