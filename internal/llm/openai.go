package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cortex"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/util"
)

// OpenAIAgent answers questions through an OpenAI-compatible chat endpoint.
// Every Run is a fresh single-message conversation.
type OpenAIAgent struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// NewOpenAIAgent creates a new OpenAI-backed agent
func NewOpenAIAgent(config Config, logger *slog.Logger) (*OpenAIAgent, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAIAgent{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}, nil
}

// Name returns the backend name
func (a *OpenAIAgent) Name() string {
	return "openai"
}

// Run streams a chat completion and folds the deltas into an AgentResponse
func (a *OpenAIAgent) Run(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
	if req.ThreadID != nil {
		a.logger.Warn("thread continuation is not supported by the openai backend, sending standalone")
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = a.config.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	modelName := a.config.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	messages := []openai.ChatCompletionMessage{}
	if a.config.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.config.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   a.config.MaxTokens,
		Temperature: 0.0,
	})
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = stream.Close() }()

	resp := &model.AgentResponse{TextFragments: []string{}}
	var finishReason string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, transportError(err)
		}

		if resp.RequestID == "" {
			resp.RequestID = chunk.ID
		}
		if data, err := json.Marshal(chunk); err == nil {
			resp.RawEvents = append(resp.RawEvents, model.RawEvent{Event: chunk.Object, Data: data})
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				resp.TextFragments = append(resp.TextFragments, choice.Delta.Content)
			}
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}
	}

	final, err := json.Marshal(map[string]string{
		"id":            resp.RequestID,
		"model":         modelName,
		"finish_reason": finishReason,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal final payload: %w", err)
	}
	resp.FinalPayload = final

	return resp, nil
}

// transportError maps client errors onto the shared transport error type
func transportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &cortex.TransportError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &cortex.TransportError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error(), Err: err}
	}
	return &cortex.TransportError{Err: err}
}
