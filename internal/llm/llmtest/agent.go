// Package llmtest provides scripted agents for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Response builds a complete response carrying text and optional SQL
func Response(text string, sql ...string) *model.AgentResponse {
	return &model.AgentResponse{
		TextFragments: []string{text},
		SQLStatements: sql,
	}
}

// Rule answers every message that contains Match
type Rule struct {
	Match string
	Reply *model.AgentResponse
	Err   error
}

// Agent replies with the first rule whose Match is contained in the message.
// It records every message it receives and is safe for concurrent use.
type Agent struct {
	Rules []Rule

	mu       sync.Mutex
	messages []string
}

// Name returns the backend name
func (a *Agent) Name() string {
	return "scripted"
}

// Run answers from the rules
func (a *Agent) Run(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
	a.mu.Lock()
	a.messages = append(a.messages, req.Message)
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range a.Rules {
		if strings.Contains(req.Message, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			return r.Reply, nil
		}
	}
	return nil, fmt.Errorf("llmtest: no rule matches %q", truncate(req.Message, 60))
}

// Messages returns every message received so far in call order
func (a *Agent) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

// Count returns how many received messages contain substr
func (a *Agent) Count(substr string) int {
	n := 0
	for _, m := range a.Messages() {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

// Func adapts a function to the agent interface
type Func func(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error)

// Name returns the backend name
func (f Func) Name() string {
	return "func"
}

// Run calls f
func (f Func) Run(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
	return f(ctx, req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
