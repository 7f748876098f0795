// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the Orchestrator (C9): it wires the
// command-security policy, session manager, process runner, stream parser,
// and message classifier into the single SendPrompt pipeline that drives one
// client turn end to end.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wingedpig/aicompanion/internal/broadcast"
	"github.com/wingedpig/aicompanion/internal/msghandler"
	"github.com/wingedpig/aicompanion/internal/queue"
	"github.com/wingedpig/aicompanion/internal/runner"
	"github.com/wingedpig/aicompanion/internal/security"
	"github.com/wingedpig/aicompanion/internal/session"
	"github.com/wingedpig/aicompanion/internal/streamparse"
	"github.com/wingedpig/aicompanion/internal/wire"
)

// AssistantConfig configures how the assistant CLI is invoked (SPEC_FULL.md §6).
type AssistantConfig struct {
	Binary          string
	PermissionMode  string
	AllowedTools    []string
	DisallowedTools []string
	SkipPermissions bool
	UsePTY          bool
}

// Orchestrator ties together C3 (security), C5 (sessions), C4 (process
// runner), C1 (stream parser), C2 (message handler), and C8 (broadcaster).
//
// A session's assistant subprocess is long-lived: it is started on a
// session's first turn and kept running across every subsequent turn
// (§3, §4.4), with a single background pump goroutine per subprocess
// consuming its stdout for the subprocess's whole lifetime rather than once
// per call. runTurn writes a turn to that subprocess's stdin and blocks on
// the turns channel until pump observes the matching final_result (or the
// subprocess dies mid-turn).
type Orchestrator struct {
	policy    *security.Policy
	sessions  *session.Manager
	broadcast *broadcast.Broadcaster
	assistant AssistantConfig

	mu      sync.Mutex
	pending map[string]chan string // requestID -> channel awaiting a permission response
	turns   map[string]chan error  // sessionID -> channel awaiting the in-flight turn's outcome
}

// New creates an Orchestrator.
func New(policy *security.Policy, sessions *session.Manager, b *broadcast.Broadcaster, assistant AssistantConfig) *Orchestrator {
	return &Orchestrator{
		policy:    policy,
		sessions:  sessions,
		broadcast: b,
		assistant: assistant,
		pending:   make(map[string]chan string),
		turns:     make(map[string]chan error),
	}
}

// SendPrompt runs one full turn: validate the command, resolve or create the
// session, drive the assistant CLI, parse and classify its stream, aggregate
// the final result, and broadcast progress as it arrives (§4.9). This is the
// one-shot `ask` pathway (§6): a session is created or reused by directory.
func (o *Orchestrator) SendPrompt(ctx context.Context, dir, prompt string) error {
	sess, _, err := o.sessions.CreateInteractiveSession(dir)
	if err != nil {
		return fmt.Errorf("assistant execution failed: %w", err)
	}
	return o.runTurn(ctx, sess, prompt)
}

// StartSession creates or reuses a session for dir without running a prompt
// against it yet (wire.TypeStreamStart, §6).
func (o *Orchestrator) StartSession(dir string) (sessionID string, reused bool, err error) {
	sess, reused, err := o.sessions.CreateInteractiveSession(dir)
	if err != nil {
		return "", false, err
	}
	return sess.ID, reused, nil
}

// SendToSession appends a prompt to an already-open session, identified by
// either our own session id or the assistant CLI's (wire.TypeStreamSend, §6).
// If the session's subprocess is still alive, the prompt is written to its
// stdin (sendToExistingSession, §4.9 step 2); otherwise a fresh subprocess is
// started first.
func (o *Orchestrator) SendToSession(ctx context.Context, sessionID, prompt string) error {
	sess, ok := o.sessions.BySessionOrClaudeID(sessionID)
	if !ok {
		return fmt.Errorf("assistant execution failed: session %s not found", sessionID)
	}
	return o.runTurn(ctx, sess, prompt)
}

// CloseSession tears down a session, gracefully signaling its subprocess
// (wire.TypeStreamClose, §6; §4.5 closeSession).
func (o *Orchestrator) CloseSession(sessionID string) error {
	return o.sessions.Close(sessionID)
}

// runTurn is the shared body behind SendPrompt and SendToSession: validate,
// gate on permission approval, ensure the session's subprocess is running,
// write the prompt to its stdin, and wait for pump to observe that turn's
// final_result.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, prompt string) error {
	if !sess.Buffer.IsCleared() {
		// Previous turn ended without reaching a final result (error, timeout,
		// or denied permission) and left stale state behind.
		sess.ClearBuffer()
	}

	dir := sess.Directory
	res := o.policy.Validate(prompt, dir)
	if !res.Allowed {
		o.broadcast.SendError(ctx, sess.ID, wire.NewErrorEgress("", res.Code, res.Reason))
		return fmt.Errorf("assistant execution failed: command rejected by policy: %s", res.Reason)
	}

	if res.RequiresConfirmation {
		reqID := o.policy.RequestPermission(prompt, dir)
		o.broadcast.Send(ctx, sess.ID, wire.NewEgress(wire.TypePermissionRequired, wire.PermissionRequiredPayload{SessionID: sess.ID, RequestID: reqID, Prompt: prompt}), queue.PriorityCritical, true)
		approved, err := o.awaitApproval(ctx, reqID)
		if err != nil {
			return fmt.Errorf("assistant execution failed: %w", err)
		}
		if !approved {
			return fmt.Errorf("assistant execution failed: command denied by user")
		}
	}

	sess.SetProcessing(true)
	defer sess.SetProcessing(false)
	o.sessions.UpdateActivity(sess.ID)

	r, err := o.ensureRunner(sess)
	if err != nil {
		return fmt.Errorf("assistant execution failed: %w", err)
	}

	line, err := wire.EncodeUserMessage(resumeID(sess), prompt)
	if err != nil {
		return fmt.Errorf("assistant execution failed: %w", err)
	}

	done := o.registerTurn(sess.ID)
	defer o.unregisterTurn(sess.ID)

	if err := r.WriteLine(line); err != nil {
		return fmt.Errorf("assistant execution failed: %w", err)
	}

	timer := time.NewTimer(runner.DeriveTimeout(prompt))
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("assistant execution failed: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("assistant execution failed: timed out waiting for a response")
	case <-ctx.Done():
		return fmt.Errorf("assistant execution failed: %w", ctx.Err())
	}
}

// ensureRunner returns the session's live subprocess, starting one and
// spawning its background pump if none is running yet (§3: "exactly one
// subprocess per session while active").
func (o *Orchestrator) ensureRunner(sess *session.Session) (*runner.Runner, error) {
	if r, ok := sess.LiveRunner(); ok {
		return r, nil
	}

	args := runner.BuildArgs(resumeID(sess), o.assistant.PermissionMode, o.assistant.AllowedTools, o.assistant.DisallowedTools, o.assistant.SkipPermissions)

	procCtx, cancel := context.WithCancel(context.Background())
	r := runner.New()
	if err := r.Start(procCtx, runner.Options{
		Binary:  o.assistant.Binary,
		Args:    args,
		WorkDir: sess.Directory,
		UsePTY:  o.assistant.UsePTY,
	}); err != nil {
		cancel()
		return nil, err
	}

	sess.AttachRunner(r, cancel)
	go o.pump(sess, r)
	return r, nil
}

// RunCommand executes an arbitrary shell command under command-security
// policy gating (wire.TypeAICLICommand, §6) rather than driving the
// assistant CLI. Output is streamed to onChunk as it arrives instead of
// going through a session's subscriber set, since the command carries no
// sessionId of its own. Unlike the assistant conversation, each invocation is
// a disposable one-shot process.
func (o *Orchestrator) RunCommand(ctx context.Context, dir, command string, onChunk func(wire.Egress)) error {
	res := o.policy.Validate(command, dir)
	if !res.Allowed {
		return fmt.Errorf("command rejected by policy: %s", res.Reason)
	}

	r := runner.New()
	if err := r.Start(ctx, runner.Options{
		Binary:  "/bin/sh",
		Args:    []string{"-c", command},
		WorkDir: dir,
	}); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	onChunk(wire.NewEgress(wire.TypeProcessStart, map[string]interface{}{"pid": r.PID()}))

	for line := range r.Lines() {
		if line.Stderr {
			onChunk(wire.NewEgress(wire.TypeStreamError, map[string]interface{}{"chunk": line.Text}))
			continue
		}
		onChunk(wire.NewEgress(wire.TypeStreamChunk, map[string]interface{}{"chunk": line.Text}))
	}

	err := r.ExitErr()
	onChunk(wire.NewEgress(wire.TypeProcessExit, map[string]interface{}{"error": errString(err)}))
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func resumeID(sess *session.Session) string {
	if sess.IsActive() {
		return sess.ClaudeSID
	}
	return ""
}

// pump consumes a session's subprocess output for the subprocess's whole
// lifetime, classifying and broadcasting each event, and notifying any
// blocked runTurn call via finishTurn once a turn completes. It is started
// once per subprocess by ensureRunner, not once per call.
func (o *Orchestrator) pump(sess *session.Session, r *runner.Runner) {
	ctx := context.Background()
	js := streamparse.NewJSONStream()

	for line := range r.Lines() {
		if line.Stderr {
			continue
		}
		objects := js.Feed([]byte(line.Text + "\n"))
		for _, obj := range objects {
			if err := o.handleEvent(ctx, sess, r, obj); err != nil {
				o.finishTurn(sess.ID, err)
			}
		}
	}

	sess.DetachRunner(r)

	if err := r.ExitErr(); err != nil {
		o.broadcast.SendError(ctx, sess.ID, wire.NewErrorEgress("", wire.ErrInternal, err.Error()))
		o.finishTurn(sess.ID, err)
	} else {
		o.finishTurn(sess.ID, fmt.Errorf("subprocess exited before completing the turn"))
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, sess *session.Session, r *runner.Runner, raw string) error {
	event, err := wire.ParseAssistantEvent([]byte(raw))
	if err != nil {
		return nil
	}

	result := msghandler.Classify(event, sess.Buffer)
	switch result.Verdict {
	case msghandler.VerdictPermissionRequest:
		reqID := o.policy.RequestPermission(result.PermissionPrompt, sess.Directory)
		o.broadcast.Send(ctx, sess.ID, wire.NewEgress(wire.TypePermissionRequired, wire.PermissionRequiredPayload{SessionID: sess.ID, RequestID: reqID, Prompt: result.PermissionPrompt}), queue.PriorityCritical, true)
		approved, err := o.awaitApproval(ctx, reqID)
		if err != nil {
			return err
		}
		response := "no"
		if approved {
			response = "yes"
		}
		return r.WriteLine(response)

	case msghandler.VerdictToolUse:
		o.broadcast.Send(ctx, sess.ID, wire.NewEgress(wire.TypeToolUse, nil), queue.PriorityNormal, false)

	case msghandler.VerdictFinalResult:
		if event.SessionID != "" {
			o.sessions.MapClaudeSession(sess.ID, event.SessionID)
		}
		assistantMsg, convResult := msghandler.Aggregate(event, sess.Buffer, msghandler.AggregateOptions{})
		o.broadcast.Send(ctx, sess.ID, wire.NewEgress(wire.TypeAssistantMessage, assistantMsg), queue.PriorityNormal, false)
		o.broadcast.Send(ctx, sess.ID, wire.NewEgress(wire.TypeConversationResult, convResult), queue.PriorityCritical, true)
		sess.ClearBuffer()
		o.finishTurn(sess.ID, nil)

	case msghandler.VerdictError:
		return result.Err
	}
	return nil
}

// registerTurn opens a completion channel for sess's in-flight turn.
func (o *Orchestrator) registerTurn(sessionID string) chan error {
	ch := make(chan error, 1)
	o.mu.Lock()
	o.turns[sessionID] = ch
	o.mu.Unlock()
	return ch
}

func (o *Orchestrator) unregisterTurn(sessionID string) {
	o.mu.Lock()
	delete(o.turns, sessionID)
	o.mu.Unlock()
}

// finishTurn delivers a turn's outcome to its blocked runTurn call, if one is
// still waiting. It is a no-op otherwise (e.g. the subprocess exiting while
// idle between turns).
func (o *Orchestrator) finishTurn(sessionID string, err error) {
	o.mu.Lock()
	ch, ok := o.turns[sessionID]
	o.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// awaitApproval blocks until the client responds to a permission request, or
// ctx is cancelled.
func (o *Orchestrator) awaitApproval(ctx context.Context, requestID string) (bool, error) {
	ch := make(chan string, 1)
	o.mu.Lock()
	o.pending[requestID] = ch
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.pending, requestID)
		o.mu.Unlock()
	}()

	select {
	case resp := <-ch:
		return wire.IsApproval(resp), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ResolvePermission delivers a client's yes/no response to a pending
// approval wait, identified by the security policy's request id.
func (o *Orchestrator) ResolvePermission(requestID, response string) bool {
	o.mu.Lock()
	ch, ok := o.pending[requestID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	switch {
	case wire.IsApproval(response):
		o.policy.ApprovePermission(requestID)
	case wire.IsDenial(response):
		o.policy.DenyPermission(requestID, "denied by client")
	default:
		o.policy.DenyPermission(requestID, "unrecognized response treated as denial")
	}
	select {
	case ch <- response:
	default:
	}
	return true
}
