// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wingedpig/aicompanion/internal/events"
	"github.com/wingedpig/aicompanion/internal/runner"
)

// ErrMaxSessionsReached is returned by CreateInteractiveSession when the
// manager is already at its configured session cap.
var ErrMaxSessionsReached = errors.New("session: maximum concurrent sessions reached")

// ErrUnsafeDirectory is returned when a requested directory falls outside
// the configured safe root.
var ErrUnsafeDirectory = errors.New("session: directory is outside the configured safe root")

// Config configures the Manager's lifecycle policy (§4.5, §6).
type Config struct {
	SafeRoot                  string
	MaxSessions               int
	SessionTimeout            time.Duration
	BackgroundedSessionTimeout time.Duration
	SessionWarningTime        time.Duration
	MinTimeoutCheckInterval   time.Duration
}

// Manager owns the full set of live sessions, keyed both by session id and
// by working directory for reuse-by-directory (§4.5 step 2).
type Manager struct {
	cfg Config
	bus events.EventBus

	mu          sync.Mutex
	sessions    map[string]*Session // session id -> session
	byDirectory map[string]string   // directory -> session id, authoritative for reuse
	claudeIndex map[string]string   // assistant CLI session id -> our session id

	ticker   *time.Ticker
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager creates a Manager and starts its central timeout-sweep ticker.
func NewManager(cfg Config, bus events.EventBus) *Manager {
	if cfg.MinTimeoutCheckInterval <= 0 {
		cfg.MinTimeoutCheckInterval = 30 * time.Second
	}
	m := &Manager{
		cfg:         cfg,
		bus:         bus,
		sessions:    make(map[string]*Session),
		byDirectory: make(map[string]string),
		claudeIndex: make(map[string]string),
		stopCh:      make(chan struct{}),
	}
	m.ticker = time.NewTicker(cfg.MinTimeoutCheckInterval)
	go m.sweepLoop()
	return m
}

// CreateInteractiveSession validates the directory, reuses an existing
// session for that directory if one is live, enforces maxSessions, then
// creates and registers a fresh one under a newly generated id.
func (m *Manager) CreateInteractiveSession(dir string) (*Session, bool, error) {
	dir, err := m.validateDirectory(dir)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byDirectory[dir]; ok {
		if existing, ok := m.sessions[existingID]; ok {
			return existing, true, nil
		}
		delete(m.byDirectory, dir)
	}

	if m.countBillable() >= m.cfg.MaxSessions && m.cfg.MaxSessions > 0 {
		return nil, false, ErrMaxSessionsReached
	}

	id := uuid.NewString()
	s := NewSession(id, dir)
	m.sessions[id] = s
	m.byDirectory[dir] = id

	if m.bus != nil {
		m.bus.Publish(context.Background(), events.Event{Type: events.EventSessionCreated, Session: id, Payload: map[string]interface{}{"directory": dir}})
	}

	return s, false, nil
}

func (m *Manager) countBillable() int {
	n := 0
	for _, s := range m.sessions {
		if !s.IsTemporary {
			n++
		}
	}
	return n
}

// ValidateDirectory reports whether dir is usable as a session's working
// directory — it exists and falls under the configured safe root, if one is
// set (wire.TypeSetWorkingDirectory, §6) — returning its clean absolute form.
func (m *Manager) ValidateDirectory(dir string) (string, error) {
	return m.validateDirectory(dir)
}

// validateDirectory makes dir absolute and cleans it (symlinks are not
// resolved), then rejects it if it is not an existing directory or lies
// outside the configured safe root.
func (m *Manager) validateDirectory(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}
	abs = filepath.Clean(abs)

	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", fmt.Errorf("directory does not exist: %s", abs)
	}

	if m.cfg.SafeRoot == "" {
		return abs, nil
	}
	root := filepath.Clean(m.cfg.SafeRoot)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", ErrUnsafeDirectory
	}
	return abs, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// MapClaudeSession records the assistant CLI's own session id against ours,
// so later resumes and routing lookups can go either direction.
func (m *Manager) MapClaudeSession(ourID, claudeSID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[ourID]; ok {
		s.SetClaudeSessionID(claudeSID)
	}
	m.claudeIndex[claudeSID] = ourID
}

// BySessionOrClaudeID resolves either our own session id or the assistant
// CLI's session id to a Session.
func (m *Manager) BySessionOrClaudeID(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, true
	}
	if ourID, ok := m.claudeIndex[id]; ok {
		return m.sessions[ourID], true
	}
	return nil, false
}

// UpdateActivity resets a session's inactivity clock.
func (m *Manager) UpdateActivity(id string) {
	if s, ok := m.Get(id); ok {
		s.Touch()
	}
}

// SetProcessing flags whether a session currently has an in-flight turn.
func (m *Manager) SetProcessing(id string, processing bool) {
	if s, ok := m.Get(id); ok {
		s.SetProcessing(processing)
	}
}

// Close tears a session down gracefully: sends its subprocess SIGTERM (escalating to SIGKILL if it doesn't exit within its
// grace period), removes it from all indexes, and emits session.closed
// (§4.5 closeSession).
func (m *Manager) Close(id string) error {
	return m.teardown(id, false)
}

// Kill tears a session down immediately: SIGKILLs its subprocess with no
// grace period, then performs the same cleanup as Close (§4.5 killSession,
// §5 "subprocess is signaled").
func (m *Manager) Kill(id string) error {
	return m.teardown(id, true)
}

func (m *Manager) teardown(id string, immediate bool) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	delete(m.sessions, id)
	delete(m.byDirectory, s.Directory)
	if s.ClaudeSID != "" {
		delete(m.claudeIndex, s.ClaudeSID)
	}
	m.mu.Unlock()

	s.mu.Lock()
	s.State = StateClosed
	s.mu.Unlock()

	if r, cancel, ok := s.TakeRunner(); ok {
		if immediate {
			r.Signal(syscall.SIGKILL)
			cancel()
		} else {
			// cancel() runs exec's own context-cancellation kill path, which
			// would undercut the SIGTERM grace period Stop is about to give
			// the subprocess, so it waits until Stop has finished escalating.
			go func() {
				r.Stop(context.Background())
				cancel()
			}()
		}
	}

	if m.bus != nil {
		m.bus.Publish(context.Background(), events.Event{Type: events.EventSessionClosed, Session: id})
	}
	return nil
}

// CleanupDead removes a session whose subprocess has exited unexpectedly,
// emitting session.cleaned instead of session.closed so subscribers can
// distinguish a crash from a normal teardown.
func (m *Manager) CleanupDead(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	delete(m.byDirectory, s.Directory)
	if s.ClaudeSID != "" {
		delete(m.claudeIndex, s.ClaudeSID)
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(context.Background(), events.Event{Type: events.EventSessionCleaned, Session: id})
	}
}

// List returns a snapshot of every live session.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Count returns the number of live, non-temporary sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countBillable()
}

// sweepLoop runs on a single central ticker (resolving the "per-session
// timers vs. central ticker" design question in favor of one ticker for the
// whole manager) and applies the warning/expiry/background rules in §4.5.
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

func (m *Manager) sweepOnce() {
	now := time.Now()
	var toWarn, toBackground, toExpire, toReap []string

	m.mu.Lock()
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.LastActivity)
		state := s.State
		pid := s.PID
		s.mu.Unlock()

		if state == StateProcessing {
			continue
		}

		if state == StateBackgrounded {
			// A backgrounded session's Runner is discarded, so PID liveness
			// is the only signal left that the subprocess crashed instead
			// of simply going quiet.
			if pid != 0 && !runner.IsAlive(pid) {
				toReap = append(toReap, id)
				continue
			}
			if idle >= m.cfg.BackgroundedSessionTimeout && m.cfg.BackgroundedSessionTimeout > 0 {
				toExpire = append(toExpire, id)
			}
			continue
		}

		if m.cfg.SessionTimeout <= 0 {
			continue
		}
		if idle >= m.cfg.SessionTimeout {
			toBackground = append(toBackground, id)
		} else if m.cfg.SessionWarningTime > 0 && idle >= m.cfg.SessionTimeout-m.cfg.SessionWarningTime {
			toWarn = append(toWarn, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toReap {
		m.CleanupDead(id)
	}
	for _, id := range toWarn {
		if s, ok := m.Get(id); ok {
			log.Printf("session: %s idle for %s, approaching timeout", id, s.Idle().Round(time.Second))
		}
		if m.bus != nil {
			m.bus.Publish(context.Background(), events.Event{Type: events.EventSessionWarning, Session: id})
		}
	}
	for _, id := range toBackground {
		if s, ok := m.Get(id); ok {
			s.MarkBackgrounded()
		}
	}
	for _, id := range toExpire {
		if m.bus != nil {
			m.bus.Publish(context.Background(), events.Event{Type: events.EventSessionExpired, Session: id})
		}
		m.Close(id)
	}
}

// Shutdown stops the sweep ticker and closes every live session.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		m.ticker.Stop()
		close(m.stopCh)
	})

	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Close(id); err != nil {
			log.Printf("session: error closing %s during shutdown: %v", id, err)
		}
	}
}
