package model

import "time"

// ToolChoice constrains which tools the agent may use
type ToolChoice struct {
	Type string   `json:"type"`           // auto, required, tool
	Name []string `json:"name,omitempty"` // tool names when Type is "tool"
}

// RunRequest is a single question sent to an agent
type RunRequest struct {
	Message string

	// ThreadID continues an existing conversation thread when non-nil
	ThreadID        *int64
	ParentMessageID int64

	ToolChoice *ToolChoice

	// Timeout bounds the whole streamed exchange (0 uses the backend default)
	Timeout time.Duration
}

// NewRunRequest creates a standalone request with no thread context
func NewRunRequest(message string) RunRequest {
	return RunRequest{Message: message}
}
