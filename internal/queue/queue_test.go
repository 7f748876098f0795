// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndDrain_PreservesFIFOOrder(t *testing.T) {
	q := New(Config{MaxEntries: 10})
	q.Enqueue("first", PriorityNormal)
	q.Enqueue("second", PriorityNormal)
	q.Enqueue("third", PriorityNormal)

	entries := q.Drain()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Payload)
	assert.Equal(t, "second", entries[1].Payload)
	assert.Equal(t, "third", entries[2].Payload)
	assert.Equal(t, 0, q.Len())
}

func TestEnqueue_DropsOldestNonCriticalWhenFull(t *testing.T) {
	q := New(Config{MaxEntries: 2})
	q.Enqueue("first", PriorityNormal)
	q.Enqueue("second", PriorityNormal)
	q.Enqueue("third", PriorityNormal)

	entries := q.Drain()
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Payload)
	assert.Equal(t, "third", entries[1].Payload)
}

func TestEnqueue_PreservesCriticalEntriesOverNormal(t *testing.T) {
	q := New(Config{MaxEntries: 2})
	q.Enqueue("critical-one", PriorityCritical)
	q.Enqueue("normal-one", PriorityNormal)
	q.Enqueue("normal-two", PriorityNormal)

	entries := q.Drain()
	require.Len(t, entries, 2)
	assert.Equal(t, "critical-one", entries[0].Payload)
	assert.Equal(t, "normal-two", entries[1].Payload)
}

func TestEnqueue_DropsOldestOverallWhenAllCritical(t *testing.T) {
	q := New(Config{MaxEntries: 2})
	q.Enqueue("c1", PriorityCritical)
	q.Enqueue("c2", PriorityCritical)
	q.Enqueue("c3", PriorityCritical)

	entries := q.Drain()
	require.Len(t, entries, 2)
	assert.Equal(t, "c2", entries[0].Payload)
	assert.Equal(t, "c3", entries[1].Payload)
}

func TestEnqueue_PrunesAgedEntriesOnNextEnqueue(t *testing.T) {
	q := New(Config{MaxEntries: 10, MaxAge: 10 * time.Millisecond})
	q.Enqueue("stale", PriorityNormal)
	time.Sleep(30 * time.Millisecond)
	q.Enqueue("fresh", PriorityNormal)

	entries := q.Drain()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Payload)
}

func TestManager_EvictDiscardsQueue(t *testing.T) {
	m := NewManager(Config{MaxEntries: 10})
	q := m.For("session-1")
	q.Enqueue("x", PriorityNormal)

	m.Evict("session-1")
	freshQueue := m.For("session-1")
	assert.Equal(t, 0, freshQueue.Len())
}

func TestManager_ForReturnsSameQueuePerSession(t *testing.T) {
	m := NewManager(Config{MaxEntries: 10})
	q1 := m.For("session-1")
	q2 := m.For("session-1")
	assert.Same(t, q1, q2)
}
