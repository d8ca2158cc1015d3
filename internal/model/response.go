package model

import (
	"encoding/json"
	"strings"
)

// ToolCallState tracks a tool invocation through the stream
type ToolCallState string

const (
	ToolCallStarted   ToolCallState = "started"
	ToolCallCompleted ToolCallState = "completed"
)

// ToolCall is one tool invocation announced by the agent
type ToolCall struct {
	ID     string          `json:"tool_use_id"`
	Name   string          `json:"name"`
	Kind   string          `json:"type"`
	Input  json.RawMessage `json:"input,omitempty"`
	State  ToolCallState   `json:"status"`
	Result *ToolResult     `json:"result,omitempty"`
}

// ToolResult is the structured output returned for a tool invocation
type ToolResult struct {
	ID      string          `json:"tool_use_id"`
	Content json.RawMessage `json:"content,omitempty"`
	IsError bool            `json:"is_error"`
}

// RawEvent is the audit record of a received event.
// Data holds the payload when it is valid JSON; otherwise Raw holds it verbatim.
type RawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Raw   string          `json:"raw,omitempty"`
}

// AgentResponse is the structured result of one agent invocation.
// It is built by a single aggregator and must not be mutated once returned.
type AgentResponse struct {
	RequestID         string            `json:"request_id"`
	TextFragments     []string          `json:"text_fragments"`
	ThinkingFragments []string          `json:"thinking_fragments,omitempty"`
	Citations         []json.RawMessage `json:"citations,omitempty"`
	SQLStatements     []string          `json:"sql_statements,omitempty"`
	ToolCalls         []ToolCall        `json:"tool_calls,omitempty"` // insertion order
	ToolResults       []ToolResult      `json:"tool_results,omitempty"`
	StatusMessages    []string          `json:"status_messages,omitempty"`
	FinalPayload      json.RawMessage   `json:"final_payload,omitempty"`
	RawEvents         []RawEvent        `json:"raw_events,omitempty"`
}

// Text returns the answer text in receipt order
func (r *AgentResponse) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.TextFragments, "")
}

// ThinkingText returns the reasoning trace
func (r *AgentResponse) ThinkingText() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.ThinkingFragments, "")
}

// ToolCall looks up a tool invocation by id
func (r *AgentResponse) ToolCall(id string) (ToolCall, bool) {
	for _, tc := range r.ToolCalls {
		if tc.ID == id {
			return tc, true
		}
	}
	return ToolCall{}, false
}
