// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package msghandler

import (
	"errors"
	"regexp"
	"strings"

	"github.com/wingedpig/aicompanion/internal/wire"
)

// Verdict is the action a caller should take after Classify examines one
// assistant event.
type Verdict string

const (
	VerdictBuffer            Verdict = "buffer"
	VerdictPermissionRequest Verdict = "permission_request"
	VerdictToolUse           Verdict = "tool_use"
	VerdictFinalResult       Verdict = "final_result"
	VerdictSkip              Verdict = "skip"
	VerdictError             Verdict = "error"
)

// ErrNilBuffer is returned by Classify when called with a nil buffer.
var ErrNilBuffer = errors.New("msghandler: buffer is nil")

// Result carries the verdict plus any data the caller needs to act on it.
type Result struct {
	Verdict          Verdict
	PermissionPrompt string // set when Verdict == VerdictPermissionRequest
	Err              error  // set when Verdict == VerdictError
}

var fencedCodeBlock = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)\\n(.*?)\\n?```")

// permissionCues are phrase fragments that mark assistant text as a
// permission request (§4.2 "Permission heuristics").
var permissionCues = []string{
	"would you like", "should i", "may i", "can i", "do you want",
}

var yesNoAffordance = regexp.MustCompile(`(?i)\(y\s*/\s*n\)|\(yes\s*/\s*no\)`)

var sentenceEndingInQuestion = regexp.MustCompile(`[^.!?\n]*\?`)

// Classify examines one assistant event against the session buffer and
// returns the action the orchestrator should take (§4.2).
func Classify(event wire.AssistantEvent, buf *Buffer) Result {
	if buf == nil {
		return Result{Verdict: VerdictError, Err: ErrNilBuffer}
	}

	switch event.Type {
	case "system":
		if event.Subtype == "init" {
			ev := event
			buf.SystemInit = &ev
			return Result{Verdict: VerdictBuffer}
		}
		return Result{Verdict: VerdictSkip}

	case "assistant":
		if event.Message == nil || len(event.Message.Content) == 0 {
			return Result{Verdict: VerdictSkip}
		}
		for _, block := range event.Message.Content {
			if block.IsToolUse() {
				buf.ToolUseInProgress = true
				return Result{Verdict: VerdictToolUse}
			}
		}
		text := joinText(event.Message.Content)
		if looksLikePermissionPrompt(text) {
			buf.PermissionRequestSent = true
			return Result{Verdict: VerdictPermissionRequest, PermissionPrompt: extractPermissionPrompt(text)}
		}
		buf.Deliverables = append(buf.Deliverables, extractCodeBlocks(text)...)
		buf.AssistantMessages = append(buf.AssistantMessages, *event.Message)
		return Result{Verdict: VerdictBuffer}

	case "user", "tool_result":
		return Result{Verdict: VerdictSkip}

	case "result":
		return Result{Verdict: VerdictFinalResult}

	default:
		return Result{Verdict: VerdictSkip}
	}
}

func joinText(blocks []wire.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// looksLikePermissionPrompt implements the heuristic in §4.2.
func looksLikePermissionPrompt(text string) bool {
	lower := strings.ToLower(text)
	for _, cue := range permissionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	if yesNoAffordance.MatchString(text) {
		return true
	}
	// A line ending in "?" followed by a yes/no affordance elsewhere in the
	// same text also counts, covered by the cue/affordance checks above for
	// the common phrasings; a bare trailing "?" alone is not sufficient.
	return false
}

// extractPermissionPrompt returns the minimal sentence describing what's
// being asked, per §4.2: the last sentence ending with "?", else the last
// non-empty line, else a fixed fallback.
func extractPermissionPrompt(text string) string {
	if matches := sentenceEndingInQuestion.FindAllString(text, -1); len(matches) > 0 {
		return strings.TrimSpace(matches[len(matches)-1])
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "Permission required to proceed"
}

// extractCodeBlocks parses fenced code blocks out of assistant text (§4.2
// "Code-block extraction").
func extractCodeBlocks(text string) []wire.Deliverable {
	matches := fencedCodeBlock.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]wire.Deliverable, 0, len(matches))
	for _, m := range matches {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		out = append(out, wire.Deliverable{Language: lang, Code: m[2]})
	}
	return out
}
