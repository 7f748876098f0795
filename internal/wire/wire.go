// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the JSON envelopes exchanged between clients and the
// companion server, and the subtype union emitted on the assistant's stdout.
package wire

import (
	"encoding/json"
	"strings"
	"time"
)

// Ingress message types (client -> server).
const (
	TypeAsk                 = "ask"
	TypeStreamStart         = "streamStart"
	TypeStreamSend          = "streamSend"
	TypeStreamClose         = "streamClose"
	TypePermission          = "permission"
	TypeSubscribe           = "subscribe"
	TypeSetWorkingDirectory = "setWorkingDirectory"
	TypePing                = "ping"
	TypeClientBackgrounding = "client_backgrounding"
	TypeRegisterDevice      = "registerDevice"
	TypeAICLICommand        = "aicliCommand"
)

// Egress message types (server -> client).
const (
	TypePong               = "pong"
	TypeStreamData          = "streamData"
	TypeSystemInit          = "systemInit"
	TypeAssistantMessage    = "assistant_response"
	TypeToolUse             = "toolUse"
	TypeToolResult          = "toolResult"
	TypeConversationResult  = "final_result"
	TypePermissionRequired  = "permissionRequired"
	TypeProcessStart        = "processStart"
	TypeProcessExit         = "processExit"
	TypeStreamChunk         = "streamChunk"
	TypeCommandProgress     = "commandProgress"
	TypeStreamError         = "streamError"
	TypeError               = "error"
)

// Error codes surfaced on the egress error envelope.
const (
	ErrInvalidMessage   = "INVALID_MESSAGE"
	ErrBlockedCommand   = "BLOCKED_COMMAND"
	ErrReadOnlyMode     = "READONLY_MODE"
	ErrCapacity         = "CAPACITY_EXCEEDED"
	ErrSessionNotFound  = "SESSION_NOT_FOUND"
	ErrAccessDenied     = "ACCESS_DENIED"
	ErrInternal         = "INTERNAL_ERROR"
)

// Ingress is a client-to-server message. The concrete field set honored
// depends on Type; unrecognized fields are ignored.
type Ingress struct {
	Type                 string `json:"type"`
	RequestID            string `json:"requestId,omitempty"`
	Prompt               string `json:"prompt,omitempty"`
	SessionID            string `json:"sessionId,omitempty"`
	WorkingDirectory     string `json:"workingDirectory,omitempty"`
	Format               string `json:"format,omitempty"`
	SkipPermissions      bool   `json:"skipPermissions,omitempty"`
	Response             string `json:"response,omitempty"`
	Path                 string `json:"path,omitempty"`
	DeviceID             string `json:"deviceId,omitempty"`
	Command              string `json:"command,omitempty"`
	Cwd                  string `json:"cwd,omitempty"`
}

// Egress is a server-to-client message envelope.
type Egress struct {
	Type       string      `json:"type"`
	RequestID  string      `json:"requestId,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Error      *ErrorInfo  `json:"error,omitempty"`
	IsComplete bool        `json:"isComplete,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ErrorInfo carries a stable error code plus a human-readable message.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// NewEgress builds a ready-to-send envelope stamped with the current time.
func NewEgress(msgType string, data interface{}) Egress {
	return Egress{Type: msgType, Data: data, Timestamp: time.Now()}
}

// NewErrorEgress builds an error envelope.
func NewErrorEgress(requestID, code, message string) Egress {
	return Egress{
		Type:      TypeError,
		RequestID: requestID,
		Timestamp: time.Now(),
		Error:     &ErrorInfo{Code: code, Message: message},
	}
}

// AssistantEvent is one newline-delimited JSON object from the assistant's
// stdout protocol (§6): a tagged union over Type.
type AssistantEvent struct {
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	Cwd          string          `json:"cwd,omitempty"`
	Tools        []string        `json:"tools,omitempty"`
	MCPServers   []string        `json:"mcp_servers,omitempty"`
	Model        string          `json:"model,omitempty"`
	Message      *AssistantMsg   `json:"message,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolID       string          `json:"tool_id,omitempty"`
	Result       string          `json:"result,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	TotalCostUSD float64         `json:"total_cost_usd,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
}

// AssistantMsg is the `message` field of an assistant event.
type AssistantMsg struct {
	ID      string         `json:"id,omitempty"`
	Model   string          `json:"model,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// ContentBlock is one element of message.content: either text or a tool use.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	ID    string          `json:"id,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Usage is the assistant's reported token usage for a turn.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// IsToolUse reports whether this content block represents a tool invocation.
func (c ContentBlock) IsToolUse() bool {
	return c.Type == "tool_use"
}

// Deliverable is a fenced code block extracted from assistant text.
type Deliverable struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// AssistantMessagePayload is the aggregated payload sent on final_result (§4.2.1).
type AssistantMessagePayload struct {
	Type         string        `json:"type"`
	Content      string        `json:"content"`
	MessageCount int           `json:"messageCount"`
	Deliverables []Deliverable `json:"deliverables"`
}

// EmbeddedPermission carries a permission prompt discovered inside a result's
// own text, so the client can re-prompt even though the turn already completed.
type EmbeddedPermission struct {
	Prompt string `json:"prompt"`
}

// ConversationResultPayload is the aggregated payload sent on final_result (§4.2.1).
type ConversationResultPayload struct {
	Type               string               `json:"type"`
	Success            bool                 `json:"success"`
	Result             string               `json:"result"`
	SessionID          string               `json:"sessionId"`
	DurationMS         int64                `json:"duration"`
	CostUSD            float64              `json:"cost"`
	Usage              *Usage               `json:"usage,omitempty"`
	AggregatedContent  string               `json:"aggregatedContent,omitempty"`
	SendAggregated     bool                 `json:"sendAggregated,omitempty"`
	EmbeddedPermission *EmbeddedPermission  `json:"embeddedPermission,omitempty"`
}

// PermissionRequiredPayload is sent when the assistant is waiting on a yes/no.
type PermissionRequiredPayload struct {
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
	Prompt    string `json:"prompt"`
}

// stdinUserMessage is the JSON envelope written to the assistant's stdin to
// deliver one turn of a persistent, --input-format stream-json conversation
// (§4.4, §4.9 step 2).
type stdinUserMessage struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Message   stdinMessageInner `json:"message"`
}

type stdinMessageInner struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// EncodeUserMessage marshals a turn's prompt into the stdin envelope the
// assistant expects, one line of JSON with no trailing newline (the caller
// appends it). resumeSessionID is empty for a session's first turn.
func EncodeUserMessage(resumeSessionID, prompt string) (string, error) {
	msg := stdinUserMessage{
		Type:      "user",
		SessionID: resumeSessionID,
		Message: stdinMessageInner{
			Role:    "user",
			Content: []ContentBlock{{Type: "text", Text: prompt}},
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// approvalTokens and denialTokens classify a client's free-text permission
// response (§6 "Permission approval responses").
var approvalTokens = map[string]bool{
	"y": true, "yes": true, "approve": true, "allow": true,
	"ok": true, "proceed": true, "continue": true,
}

var denialTokens = map[string]bool{
	"n": true, "no": true, "deny": true, "reject": true,
}

// IsApproval reports whether a normalized permission response means "yes".
func IsApproval(response string) bool {
	return approvalTokens[normalizeResponse(response)]
}

// IsDenial reports whether a normalized permission response means "no".
func IsDenial(response string) bool {
	return denialTokens[normalizeResponse(response)]
}

func normalizeResponse(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseAssistantEvent decodes one NDJSON line from the assistant's stdout
// protocol into an AssistantEvent.
func ParseAssistantEvent(raw []byte) (AssistantEvent, error) {
	var event AssistantEvent
	err := json.Unmarshal(raw, &event)
	return event, err
}
