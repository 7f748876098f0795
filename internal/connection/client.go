// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package connection implements the Connection Manager (C6): fingerprinting
// clients, tracking their live WebSocket sockets, and reattaching a
// reconnecting client to its prior subscription set within a bounded window.
package connection

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Fingerprint identifies a client across reconnects, independent of its
// current socket (§4.6).
type Fingerprint string

// DeriveFingerprint computes a client fingerprint: "device:<id>" when the
// client supplies a stable device id, else a hash of its user-agent string.
func DeriveFingerprint(deviceID, userAgent string) Fingerprint {
	if deviceID != "" {
		return Fingerprint("device:" + deviceID)
	}
	sum := sha256.Sum256([]byte(userAgent))
	return Fingerprint("ua:" + hex.EncodeToString(sum[:])[:16])
}

// Client is one live client connection.
type Client struct {
	mu sync.Mutex

	Fingerprint   Fingerprint
	Conn          *websocket.Conn
	Subscriptions map[string]struct{} // session ids this client is subscribed to
	ConnectedAt   time.Time
	LastPong      time.Time
	WriteMu       sync.Mutex // serializes concurrent writes to Conn
}

// NewClient wraps a freshly upgraded socket.
func NewClient(fp Fingerprint, conn *websocket.Conn) *Client {
	now := time.Now()
	return &Client{
		Fingerprint:   fp,
		Conn:          conn,
		Subscriptions: make(map[string]struct{}),
		ConnectedAt:   now,
		LastPong:      now,
	}
}

// Subscribe adds a session id to this client's subscription set.
func (c *Client) Subscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subscriptions[sessionID] = struct{}{}
}

// Unsubscribe removes a session id from this client's subscription set.
func (c *Client) Unsubscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Subscriptions, sessionID)
}

// SubscriptionSet returns a copy of the session ids this client follows.
func (c *Client) SubscriptionSet() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.Subscriptions))
	for id := range c.Subscriptions {
		out = append(out, id)
	}
	return out
}

// TouchPong records a pong frame, keeping the connection alive in sweeps.
func (c *Client) TouchPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastPong = time.Now()
}

// WriteJSON serializes a write through the per-client write mutex, since
// gorilla/websocket connections aren't safe for concurrent writers.
func (c *Client) WriteJSON(v interface{}) error {
	c.WriteMu.Lock()
	defer c.WriteMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// HistoryEntry records a disconnected client's subscription set so a
// reconnect within the window can restore it (§4.6).
type HistoryEntry struct {
	Fingerprint   Fingerprint
	Subscriptions []string
	DisconnectedAt time.Time
}
