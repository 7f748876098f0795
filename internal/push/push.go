// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package push defines the notification collaborator that alerts a client's
// mobile/desktop push channel when a session needs attention while no socket
// is actively subscribed (SPEC_FULL.md §6).
package push

import (
	"context"
	"log"
)

// Notifier delivers an out-of-band notification for a session.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, payload interface{}) error
}

// LoggingNotifier is a Notifier that simply logs, used when no push
// provider is configured.
type LoggingNotifier struct{}

// Notify implements Notifier by logging the notification.
func (LoggingNotifier) Notify(ctx context.Context, sessionID string, payload interface{}) error {
	log.Printf("push: notification for session %s: %+v", sessionID, payload)
	return nil
}
