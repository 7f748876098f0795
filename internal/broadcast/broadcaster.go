// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package broadcast implements the Event Broadcaster (C8): it turns internal
// lifecycle events and wire messages into fanned-out deliveries to every
// client subscribed to a session, falling back to the push collaborator when
// no client is ready to receive.
package broadcast

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/aicompanion/internal/connection"
	"github.com/wingedpig/aicompanion/internal/push"
	"github.com/wingedpig/aicompanion/internal/queue"
)

// Broadcaster fans wire messages for a session out to every subscribed
// client in parallel (§4.8).
type Broadcaster struct {
	conns  *connection.Manager
	queues *queue.Manager
	notify push.Notifier
}

// New creates a Broadcaster wired to the connection manager, the per-session
// queue manager, and the push-notification collaborator.
func New(conns *connection.Manager, queues *queue.Manager, notify push.Notifier) *Broadcaster {
	return &Broadcaster{conns: conns, queues: queues, notify: notify}
}

// Send delivers payload to every client subscribed to sessionID. Delivery to
// each client runs concurrently; a failure on one client's socket doesn't
// block delivery to the others. If no client is currently subscribed, the
// message is queued and, when notifyOnIdle is set, handed to the push
// collaborator instead.
func (b *Broadcaster) Send(ctx context.Context, sessionID string, payload interface{}, priority queue.Priority, notifyOnIdle bool) error {
	clients := b.conns.Subscribers(sessionID)

	if len(clients) == 0 {
		b.queues.For(sessionID).Enqueue(payload, priority)
		if notifyOnIdle && b.notify != nil {
			if err := b.notify.Notify(ctx, sessionID, payload); err != nil {
				log.Printf("broadcast: push notify failed for session %s: %v", sessionID, err)
			}
		}
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var failed []error

	for _, c := range clients {
		c := c
		g.Go(func() error {
			if err := c.WriteJSON(payload); err != nil {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		log.Printf("broadcast: %d of %d clients failed to receive session %s message", len(failed), len(clients), sessionID)
	}
	return nil
}

// SendError delivers a structured error payload through Send with critical
// priority and push notification enabled: when no client is subscribed it is
// queued and handed to the push collaborator. A failed write to a subscribed
// client is logged and not queued, exactly as in Send.
func (b *Broadcaster) SendError(ctx context.Context, sessionID string, payload interface{}) error {
	return b.Send(ctx, sessionID, payload, queue.PriorityCritical, true)
}

// Drain flushes any messages queued for sessionID while no client was
// subscribed, delivering them to the now-connected client c.
func (b *Broadcaster) Drain(sessionID string, c *connection.Client) {
	entries := b.queues.For(sessionID).Drain()
	for _, e := range entries {
		if err := c.WriteJSON(e.Payload); err != nil {
			log.Printf("broadcast: failed to drain queued message for session %s: %v", sessionID, err)
			return
		}
	}
}
