// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/aicompanion/internal/connection"
	"github.com/wingedpig/aicompanion/internal/queue"
)

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Notify(ctx context.Context, sessionID string, payload interface{}) error {
	r.calls = append(r.calls, sessionID)
	return nil
}

func dialPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	var serverConn *websocket.Conn
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn = c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	require.Eventually(t, func() bool { return serverConn != nil }, time.Second, 5*time.Millisecond)
	return clientConn, serverConn
}

func TestSend_DeliversToSubscribedClient(t *testing.T) {
	clientConn, serverConn := dialPair(t)
	conns := connection.NewManager(connection.Config{HealthCheckInterval: time.Hour, ReconnectionWindow: time.Minute})
	t.Cleanup(conns.Shutdown)
	queues := queue.NewManager(queue.Config{MaxEntries: 10})

	c := conns.Connect("device:abc", serverConn)
	c.Subscribe("session-1")

	b := New(conns, queues, nil)
	require.NoError(t, b.Send(context.Background(), "session-1", map[string]string{"hello": "world"}, queue.PriorityNormal, false))

	var received map[string]string
	require.NoError(t, clientConn.ReadJSON(&received))
	assert.Equal(t, "world", received["hello"])
}

func TestSend_QueuesWhenNoSubscriber(t *testing.T) {
	conns := connection.NewManager(connection.Config{HealthCheckInterval: time.Hour, ReconnectionWindow: time.Minute})
	t.Cleanup(conns.Shutdown)
	queues := queue.NewManager(queue.Config{MaxEntries: 10})

	b := New(conns, queues, nil)
	require.NoError(t, b.Send(context.Background(), "session-1", "payload", queue.PriorityNormal, false))

	assert.Equal(t, 1, queues.For("session-1").Len())
}

func TestSend_NotifiesPushWhenIdleAndRequested(t *testing.T) {
	conns := connection.NewManager(connection.Config{HealthCheckInterval: time.Hour, ReconnectionWindow: time.Minute})
	t.Cleanup(conns.Shutdown)
	queues := queue.NewManager(queue.Config{MaxEntries: 10})
	notifier := &recordingNotifier{}

	b := New(conns, queues, notifier)
	require.NoError(t, b.SendError(context.Background(), "session-1", "boom"))

	assert.Equal(t, []string{"session-1"}, notifier.calls)
}

func TestDrain_DeliversQueuedMessagesToReconnectedClient(t *testing.T) {
	conns := connection.NewManager(connection.Config{HealthCheckInterval: time.Hour, ReconnectionWindow: time.Minute})
	t.Cleanup(conns.Shutdown)
	queues := queue.NewManager(queue.Config{MaxEntries: 10})
	b := New(conns, queues, nil)

	require.NoError(t, b.Send(context.Background(), "session-1", "queued-message", queue.PriorityNormal, false))

	clientConn, serverConn := dialPair(t)
	_ = clientConn
	c := conns.Connect("device:abc", serverConn)

	b.Drain("session-1", c)

	var received string
	require.NoError(t, clientConn.ReadJSON(&received))
	assert.Equal(t, "queued-message", received)
	assert.Equal(t, 0, queues.For("session-1").Len())
}
