package llm

import (
	"context"
	"time"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Agent defines the interface for anything that answers a question with a structured response
type Agent interface {
	// Name returns the backend name
	Name() string

	// Run sends one standalone message and blocks until the full response is available.
	// A returned response is complete; on error no partial response is returned.
	Run(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error)
}

// Config holds configuration for the OpenAI-compatible backend
type Config struct {
	// Model name (provider-specific)
	Model string

	// APIKey for the chat endpoint
	APIKey string

	// BaseURL for custom endpoints (e.g., a local gateway)
	BaseURL string

	// Timeout bounds one streamed completion
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	// SystemPrompt is sent before every message
	SystemPrompt string

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      120 * time.Second,
		MaxTokens:    2000,
		SystemPrompt: "You are a careful business analyst. Answer precisely and state figures exactly.",
	}
}
