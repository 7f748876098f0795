// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config configures the Connection Manager's health checks and reconnection
// window (§6).
type Config struct {
	HealthCheckInterval time.Duration
	ReconnectionWindow  time.Duration
}

// Manager tracks every live client plus a bounded history of recently
// disconnected ones, so a reconnect within the window restores its
// subscription set instead of starting cold (§4.6).
type Manager struct {
	cfg Config

	mu      sync.Mutex
	clients map[Fingerprint]*Client
	history map[Fingerprint]HistoryEntry

	ticker   *time.Ticker
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager creates a Manager and starts its ping/prune sweep.
func NewManager(cfg Config) *Manager {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	m := &Manager{
		cfg:     cfg,
		clients: make(map[Fingerprint]*Client),
		history: make(map[Fingerprint]HistoryEntry),
		stopCh:  make(chan struct{}),
	}
	m.ticker = time.NewTicker(cfg.HealthCheckInterval)
	go m.sweepLoop()
	return m
}

// Connect registers a new client connection for fp, restoring any prior
// subscription set found in history within the reconnection window.
func (m *Manager) Connect(fp Fingerprint, conn *websocket.Conn) *Client {
	c := NewClient(fp, conn)

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.history[fp]; ok {
		if time.Since(entry.DisconnectedAt) <= m.cfg.ReconnectionWindow {
			for _, sid := range entry.Subscriptions {
				c.Subscriptions[sid] = struct{}{}
			}
		}
		delete(m.history, fp)
	}

	m.clients[fp] = c
	return c
}

// Disconnect removes a client from the live set and files its subscription
// set into history for the reconnection window.
func (m *Manager) Disconnect(fp Fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[fp]
	if !ok {
		return
	}
	delete(m.clients, fp)
	m.history[fp] = HistoryEntry{
		Fingerprint:    fp,
		Subscriptions:  c.SubscriptionSet(),
		DisconnectedAt: time.Now(),
	}
}

// Get returns the live client for fp, if connected.
func (m *Manager) Get(fp Fingerprint) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[fp]
	return c, ok
}

// Subscribers returns every live client currently subscribed to sessionID.
func (m *Manager) Subscribers(sessionID string) []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Client
	for _, c := range m.clients {
		c.mu.Lock()
		_, ok := c.Subscriptions[sessionID]
		c.mu.Unlock()
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// UnsubscribeAll removes sessionID from every live client's subscription
// set, used once a session has closed so its id doesn't linger in client
// bookkeeping forever.
func (m *Manager) UnsubscribeAll(sessionID string) {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.Unsubscribe(sessionID)
	}
}

// Count returns the number of currently connected clients.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.ticker.C:
			m.sweepOnce()
		case <-m.stopCh:
			return
		}
	}
}

// sweepOnce pings every live client, then on the following tick drops any
// client that hasn't ponged since (the two-pass "ping, then check" rule in
// §4.6), and prunes history entries older than twice the reconnection window.
func (m *Manager) sweepOnce() {
	now := time.Now()

	m.mu.Lock()
	var dead []Fingerprint
	for fp, c := range m.clients {
		c.mu.Lock()
		stale := now.Sub(c.LastPong) > 2*m.cfg.HealthCheckInterval
		c.mu.Unlock()
		if stale {
			dead = append(dead, fp)
			continue
		}
		go func(c *Client) {
			c.WriteMu.Lock()
			defer c.WriteMu.Unlock()
			_ = c.Conn.WriteMessage(websocket.PingMessage, nil)
		}(c)
	}
	for _, fp := range dead {
		c := m.clients[fp]
		delete(m.clients, fp)
		m.history[fp] = HistoryEntry{Fingerprint: fp, Subscriptions: c.SubscriptionSet(), DisconnectedAt: now}
		c.Conn.Close()
	}

	pruneBefore := now.Add(-2 * m.cfg.ReconnectionWindow)
	for fp, entry := range m.history {
		if m.cfg.ReconnectionWindow > 0 && entry.DisconnectedAt.Before(pruneBefore) {
			delete(m.history, fp)
		}
	}
	m.mu.Unlock()
}

// Shutdown stops the sweep loop and closes every live connection.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		m.ticker.Stop()
		close(m.stopCh)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for fp, c := range m.clients {
		c.Conn.Close()
		delete(m.clients, fp)
	}
}
