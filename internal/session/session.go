// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session implements the Session Manager (C5): creating,
// reusing-by-directory, timing out, backgrounding, and tearing down the
// per-directory assistant sessions that back each client conversation.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/wingedpig/aicompanion/internal/msghandler"
	"github.com/wingedpig/aicompanion/internal/runner"
)

// State is a session's lifecycle state (§3).
type State string

const (
	StateActive       State = "active"
	StateProcessing   State = "processing"
	StateBackgrounded State = "backgrounded"
	StateClosed       State = "closed"
)

// Session is one directory-scoped conversation with the assistant CLI.
type Session struct {
	mu sync.Mutex

	ID           string
	Directory    string
	ClaudeSID    string // assistant CLI's own session id, for --resume
	State        State
	CreatedAt    time.Time
	LastActivity time.Time
	Backgrounded bool
	IsTemporary  bool // reused-by-directory placeholders don't count toward maxSessions

	Buffer *msghandler.Buffer

	PID int

	proc       *runner.Runner
	procCancel context.CancelFunc

	cancelTimeout func()
}

// NewSession creates a fresh session rooted at dir.
func NewSession(id, dir string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Directory:    dir,
		State:        StateActive,
		CreatedAt:    now,
		LastActivity: now,
		Buffer:       &msghandler.Buffer{},
	}
}

// Touch records activity, resetting the inactivity clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
	if s.State == StateBackgrounded {
		s.State = StateActive
		s.Backgrounded = false
	}
}

// SetProcessing flags whether the session currently has an in-flight
// assistant invocation.
func (s *Session) SetProcessing(processing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if processing {
		s.State = StateProcessing
	} else if s.State == StateProcessing {
		s.State = StateActive
	}
}

// MarkBackgrounded transitions the session to backgrounded, used once its
// normal inactivity timeout has elapsed but its directory's slot should stay
// reserved for a longer grace window.
func (s *Session) MarkBackgrounded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateBackgrounded
	s.Backgrounded = true
}

// MarkForegrounded reverses MarkBackgrounded when a client reconnects.
func (s *Session) MarkForegrounded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateActive
	s.Backgrounded = false
	s.LastActivity = time.Now()
}

// Idle returns how long the session has been inactive.
func (s *Session) Idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivity)
}

// IsActive reports whether the assistant CLI has a resumable session id.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ClaudeSID != ""
}

// SetClaudeSessionID records the assistant CLI's own session id once the
// first turn completes.
func (s *Session) SetClaudeSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClaudeSID = id
}

// ClearBuffer resets the session's message-aggregation buffer.
func (s *Session) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Buffer.Reset()
}

// AttachRunner records the subprocess backing this session's conversation,
// replacing the one-process-per-turn model: the same Runner is reused for
// every subsequent turn until it exits or the session is torn down.
func (s *Session) AttachRunner(r *runner.Runner, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = r
	s.procCancel = cancel
	s.PID = r.PID()
}

// LiveRunner returns the session's current subprocess, if it is still
// running.
func (s *Session) LiveRunner() (*runner.Runner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil || !s.proc.Running() {
		return nil, false
	}
	return s.proc, true
}

// DetachRunner clears the session's runner once its process has exited, so a
// later turn knows to spawn a fresh one instead of writing to a dead pipe. It
// is a no-op if the session has since been attached to a different runner.
func (s *Session) DetachRunner(r *runner.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == r {
		s.proc = nil
		s.procCancel = nil
	}
}

// TakeRunner removes and returns the session's runner and its cancel func, for
// a caller tearing the session down. A second call returns ok == false.
func (s *Session) TakeRunner() (*runner.Runner, context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, cancel := s.proc, s.procCancel
	s.proc = nil
	s.procCancel = nil
	return r, cancel, r != nil
}

// Snapshot is a read-only copy of a session's externally visible state.
type Snapshot struct {
	ID           string
	Directory    string
	State        State
	CreatedAt    time.Time
	LastActivity time.Time
	Backgrounded bool
}

// Snapshot returns a copy of s's state safe to hand to callers outside the lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.ID,
		Directory:    s.Directory,
		State:        s.State,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		Backgrounded: s.Backgrounded,
	}
}
