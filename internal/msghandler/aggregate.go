// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package msghandler

import (
	"strings"

	"github.com/wingedpig/aicompanion/internal/wire"
)

// AggregateOptions customizes the final_result aggregation (§4.2.1).
type AggregateOptions struct {
	IsLongRunningCompletion bool
}

// Aggregate builds the two wire-ready payloads sent on final_result: the
// assistant's concatenated text plus any extracted deliverables, and the
// conversation's overall result.
func Aggregate(event wire.AssistantEvent, buf *Buffer, opts AggregateOptions) (wire.AssistantMessagePayload, wire.ConversationResultPayload) {
	content := joinAssistantText(buf.AssistantMessages)

	assistantMsg := wire.AssistantMessagePayload{
		Type:         wire.TypeAssistantMessage,
		Content:      content,
		MessageCount: len(buf.AssistantMessages),
		Deliverables: buf.Deliverables,
	}

	result := wire.ConversationResultPayload{
		Type:        wire.TypeConversationResult,
		Success:     !event.IsError,
		Result:      event.Result,
		SessionID:   event.SessionID,
		DurationMS:  event.DurationMS,
		CostUSD:     event.TotalCostUSD,
		Usage:       event.Usage,
	}

	if opts.IsLongRunningCompletion {
		result.AggregatedContent = content
		result.SendAggregated = true
	}

	if buf.PermissionRequestSent && looksLikePermissionPrompt(event.Result) {
		result.EmbeddedPermission = &wire.EmbeddedPermission{Prompt: extractPermissionPrompt(event.Result)}
	}

	return assistantMsg, result
}

// joinAssistantText concatenates the text blocks of every buffered assistant
// message, each message's own blocks joined with a blank line (§4.2.1).
func joinAssistantText(messages []wire.AssistantMsg) string {
	var parts []string
	for _, m := range messages {
		if t := joinText(m.Content); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
