// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package msghandler classifies one parsed assistant event at a time and
// aggregates a session's buffered events into the wire payloads sent on
// final_result (§4.2).
package msghandler

import "github.com/wingedpig/aicompanion/internal/wire"

// Buffer is the per-session accumulator described in §3 "Session Buffer".
type Buffer struct {
	AssistantMessages    []wire.AssistantMsg
	Deliverables         []wire.Deliverable
	SystemInit           *wire.AssistantEvent
	PermissionRequestSent bool
	ToolUseInProgress     bool
}

// Reset clears the buffer back to its zero state (§3: "Reset on {new prompt,
// explicit clear, session close}").
func (b *Buffer) Reset() {
	b.AssistantMessages = nil
	b.Deliverables = nil
	b.SystemInit = nil
	b.PermissionRequestSent = false
	b.ToolUseInProgress = false
}

// IsCleared reports whether the buffer is in its post-Reset state, used by
// the round-trip test in §8 ("clearSessionBuffer followed by
// getSessionBuffer yields empty arrays and cleared flags").
func (b *Buffer) IsCleared() bool {
	return len(b.AssistantMessages) == 0 && len(b.Deliverables) == 0 &&
		b.SystemInit == nil && !b.PermissionRequestSent && !b.ToolUseInProgress
}
