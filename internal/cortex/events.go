// Package cortex talks to a hosted conversational agent over its streaming run API
// and folds the event stream into a model.AgentResponse.
package cortex

import "encoding/json"

// EventKind is the closed set of stream events the aggregator understands
type EventKind int

const (
	KindUnknown EventKind = iota
	KindText
	KindTextDelta
	KindMessageDelta
	KindThinkingDelta
	KindThinking
	KindStatus
	KindToolUse
	KindToolResult
	KindToolResultStatus
	KindCitation
	KindResponse
	KindError
)

var kindByName = map[string]EventKind{
	"response.text":               KindText,
	"response.text.delta":         KindTextDelta,
	"message.delta":               KindMessageDelta,
	"response.thinking.delta":     KindThinkingDelta,
	"response.thinking":           KindThinking,
	"response.status":             KindStatus,
	"response.tool_use":           KindToolUse,
	"response.tool_result":        KindToolResult,
	"response.tool_result.status": KindToolResultStatus,
	"citation":                    KindCitation,
	"response":                    KindResponse,
	"error":                       KindError,
}

// KindOf maps a wire event name to its kind. Unrecognized names are KindUnknown.
func KindOf(name string) EventKind {
	if k, ok := kindByName[name]; ok {
		return k
	}
	return KindUnknown
}

// String returns the wire name of the kind
func (k EventKind) String() string {
	for name, kind := range kindByName {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Wire payloads

type textPayload struct {
	Text *string `json:"text"`
}

type contentPart struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

type messageDeltaPayload struct {
	Delta struct {
		Content []contentPart `json:"content"`
	} `json:"delta"`
}

type statusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type toolUsePayload struct {
	ToolUseID string          `json:"tool_use_id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Input     json.RawMessage `json:"input"`
}

type toolResultPayload struct {
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type toolResultStatusPayload struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ToolType string `json:"tool_type"`
}
