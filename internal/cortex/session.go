package cortex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cache"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/sse"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/util"
)

const (
	// RequestIDHeader carries the server-assigned id of a run
	RequestIDHeader = "X-Snowflake-Request-Id"

	defaultRunTimeout     = 300 * time.Second
	defaultControlTimeout = 30 * time.Second
	maxErrorBody          = 64 << 10
)

// Limiter throttles outbound requests per destination
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config locates an agent and authenticates against it
type Config struct {
	BaseURL   string // full https://host; derived from Account when empty
	Account   string
	Database  string
	Schema    string
	AgentName string
	Token     string

	// Timeout bounds a streamed run when the request does not set its own
	Timeout time.Duration

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// Session owns the HTTP exchange with one agent. It holds no per-call state,
// so concurrent Run calls each get their own connection.
type Session struct {
	baseURL    string
	database   string
	schema     string
	agentName  string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// Option customizes a Session
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// WithLimiter throttles every outbound request
func WithLimiter(l Limiter) Option {
	return func(s *Session) { s.limiter = l }
}

// WithCache caches agent metadata lookups
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Session) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLogger sets the session logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session for the configured agent
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("agent token is required")
	}
	if cfg.AgentName == "" || cfg.Database == "" || cfg.Schema == "" {
		return nil, fmt.Errorf("agent database, schema and name are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Account == "" {
			return nil, fmt.Errorf("agent account or base URL is required")
		}
		baseURL = BaseURLFor(cfg.Account)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRunTimeout
	}

	s := &Session{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		database:  cfg.Database,
		schema:    cfg.Schema,
		agentName: cfg.AgentName,
		token:     cfg.Token,
		timeout:   timeout,
		httpClient: &http.Client{
			// No client timeout: streams are bounded by the per-call context.
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BaseURLFor derives the API host from an account identifier
func BaseURLFor(account string) string {
	account = strings.TrimSpace(account)
	account = strings.TrimPrefix(account, "https://")
	account = strings.TrimSuffix(account, "/")
	account = strings.TrimSuffix(account, ".snowflakecomputing.com")
	if strings.Contains(account, ".") {
		return "https://" + account
	}
	return "https://" + account + ".snowflakecomputing.com"
}

// Name returns the backend name
func (s *Session) Name() string {
	return "cortex"
}

// Run sends one user message and blocks until the stream ends, the timeout
// elapses, or the agent reports an error. The connection is always released
// before Run returns.
func (s *Session) Run(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(newRunBody(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	s.logger.Debug("running agent", "agent", s.agentName, "message", truncate(req.Message, 50))

	resp, err := s.do(ctx, http.MethodPost, s.agentURL()+":run", body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	agg := NewAggregator(resp.Header.Get(RequestIDHeader), s.logger)
	dec := sse.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, &TransportError{Err: err}
		}

		if err := agg.Apply(ev); err != nil {
			if IsFatal(err) {
				return nil, err
			}
			s.logger.Warn("skipping event", "error", err)
		}
	}

	return agg.Finish(), nil
}

// CreateThread opens a conversation thread and returns its id
func (s *Session) CreateThread(ctx context.Context, originApplication string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultControlTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"origin_application": originApplication})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, s.baseURL+"/api/v2/cortex/threads", body, "application/json")
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	id := gjson.GetBytes(data, "thread_id")
	if !id.Exists() {
		return 0, fmt.Errorf("thread response has no thread_id: %s", truncate(string(data), 200))
	}
	return id.Int(), nil
}

// DescribeAgent fetches the agent's configuration document
func (s *Session) DescribeAgent(ctx context.Context) (json.RawMessage, error) {
	endpoint := s.agentURL()
	key := cache.CacheKey(endpoint)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return json.RawMessage(data), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultControlTimeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodGet, endpoint, nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("agent description is not valid JSON")
	}

	if s.cache != nil {
		if err := s.cache.Set(key, data, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache agent description", "error", err)
		}
	}
	return json.RawMessage(data), nil
}

// do sends an authenticated request and returns the response when the status is 2xx
func (s *Session) do(ctx context.Context, method, endpoint string, body []byte, accept string) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, endpoint); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Error("agent request failed", "url", endpoint, "status", resp.StatusCode)
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

func (s *Session) agentURL() string {
	return fmt.Sprintf("%s/api/v2/databases/%s/schemas/%s/agents/%s",
		s.baseURL, url.PathEscape(s.database), url.PathEscape(s.schema), url.PathEscape(s.agentName))
}

type runMessage struct {
	Role    string        `json:"role"`
	Content []runTextPart `json:"content"`
}

type runTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type runBody struct {
	Messages        []runMessage      `json:"messages"`
	ThreadID        *int64            `json:"thread_id,omitempty"`
	ParentMessageID *int64            `json:"parent_message_id,omitempty"`
	ToolChoice      *model.ToolChoice `json:"tool_choice,omitempty"`
}

func newRunBody(req model.RunRequest) runBody {
	body := runBody{
		Messages: []runMessage{{
			Role:    "user",
			Content: []runTextPart{{Type: "text", Text: req.Message}},
		}},
		ToolChoice: req.ToolChoice,
	}
	if req.ThreadID != nil {
		parent := req.ParentMessageID
		body.ThreadID = req.ThreadID
		body.ParentMessageID = &parent
	}
	return body
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
