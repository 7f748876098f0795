// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_StartAndCollectLines(t *testing.T) {
	r := New()
	err := r.Start(context.Background(), Options{Binary: "echo", Args: []string{"hello"}, WorkDir: "/tmp"})
	require.NoError(t, err)

	var buf bytes.Buffer
	for line := range r.Lines() {
		buf.WriteString(line.Text)
	}
	<-r.Done()

	assert.Equal(t, "hello", buf.String())
	assert.NoError(t, r.ExitErr())
}

func TestRunner_StartAlreadyRunning(t *testing.T) {
	r := New()
	err := r.Start(context.Background(), Options{Binary: "sleep", Args: []string{"10"}, WorkDir: "/tmp"})
	require.NoError(t, err)
	defer r.Stop(context.Background())

	err = r.Start(context.Background(), Options{Binary: "sleep", Args: []string{"10"}, WorkDir: "/tmp"})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunner_Stop(t *testing.T) {
	r := New()
	err := r.Start(context.Background(), Options{Binary: "sleep", Args: []string{"60"}, WorkDir: "/tmp"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	err = r.Stop(context.Background())
	require.NoError(t, err)

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not report done after Stop")
	}
}

func TestRunner_SignalNotRunning(t *testing.T) {
	r := New()
	err := r.Signal(nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestIsAlive_InvalidPID(t *testing.T) {
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
}
