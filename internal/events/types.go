// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the pub/sub event bus used to fan internal
// lifecycle notifications (session, process, connection) out to the
// components that care about them.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Session   string                 `json:"session"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types    []string  // Event types to match (supports wildcards)
	Session  string    // Filter by session
	Since    time.Time // Events after this time
	Until    time.Time // Events before this time
	Limit    int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultSession sets the default session id for events that don't specify one.
	SetDefaultSession(sessionID string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types
const (
	// Session lifecycle events
	EventSessionCreated = "session.created"
	EventSessionClosed  = "session.closed"
	EventSessionWarning = "session.warning" // approaching timeout
	EventSessionExpired = "session.expired"
	EventSessionCleaned = "session.cleaned"

	// Process events
	EventProcessStarted = "process.started"
	EventProcessExited  = "process.exited"
	EventProcessCrashed = "process.crashed"

	// Connection events
	EventConnectionOpened     = "connection.opened"
	EventConnectionClosed     = "connection.closed"
	EventConnectionReattached = "connection.reattached"

	// Security events
	EventCommandAllowed = "security.command.allowed"
	EventCommandDenied  = "security.command.denied"
	EventPermissionAsk  = "security.permission.asked"

	// Notification events (for the push collaborator, see internal/push)
	EventNotifyDone    = "notify.done"    // Task completed
	EventNotifyBlocked = "notify.blocked" // Waiting for user input
	EventNotifyError   = "notify.error"   // Something failed
)
