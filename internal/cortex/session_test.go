package cortex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cache"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

const runPath = "/api/v2/databases/DB/schemas/SC/agents/AGENT:run"

func newTestSession(t *testing.T, srv *httptest.Server, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(Config{
		BaseURL:   srv.URL,
		Database:  "DB",
		Schema:    "SC",
		AgentName: "AGENT",
		Token:     "pat-123",
		Timeout:   5 * time.Second,
	}, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return s
}

func writeEvents(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set(RequestIDHeader, "req-abc")
	w.WriteHeader(http.StatusOK)
	for _, e := range events {
		_, _ = io.WriteString(w, e)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func TestSession_Run(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, runPath, r.URL.Path)
		assert.Equal(t, "Bearer pat-123", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		writeEvents(w,
			": keep-alive\n\n",
			"event: response.text.delta\ndata: {\"text\":\"Revenue was \"}\n\n",
			"event: response.text.delta\ndata: {\"text\":\"$1.25M.\"}\n\n",
			"event: response\ndata: {\"message\":{}}",
		)
	}))
	defer srv.Close()

	resp, err := newTestSession(t, srv).Run(context.Background(), model.NewRunRequest("What was total revenue in Q4 2024?"))
	require.NoError(t, err)

	assert.Equal(t, "req-abc", resp.RequestID)
	assert.Equal(t, "Revenue was $1.25M.", resp.Text())
	assert.NotNil(t, resp.FinalPayload, "trailing event without blank line must be kept")

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	part := msg["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", part["type"])
	assert.Equal(t, "What was total revenue in Q4 2024?", part["text"])
	assert.NotContains(t, body, "thread_id")
	assert.NotContains(t, body, "tool_choice")
}

func TestSession_RunThreadFields(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeEvents(w, "event: response.text\ndata: {\"text\":\"ok\"}\n\n")
	}))
	defer srv.Close()

	thread := int64(42)
	req := model.NewRunRequest("follow up")
	req.ThreadID = &thread
	req.ToolChoice = &model.ToolChoice{Type: "tool", Name: []string{"revenue_analyst"}}

	_, err := newTestSession(t, srv).Run(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 42, body["thread_id"])
	assert.EqualValues(t, 0, body["parent_message_id"])
	choice := body["tool_choice"].(map[string]any)
	assert.Equal(t, "tool", choice["type"])
}

func TestSession_RunStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"bad token"}`)
	}))
	defer srv.Close()

	_, err := newTestSession(t, srv).Run(context.Background(), model.NewRunRequest("q"))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusUnauthorized, terr.StatusCode)
	assert.Contains(t, terr.Body, "bad token")
}

func TestSession_RunConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	s := newTestSession(t, srv)
	srv.Close()

	_, err := s.Run(context.Background(), model.NewRunRequest("q"))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.StatusCode)
}

func TestSession_RunErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w,
			"event: response.text.delta\ndata: {\"text\":\"partial\"}\n\n",
			"event: error\ndata: {\"message\":\"quota exceeded\"}\n\n",
		)
	}))
	defer srv.Close()

	resp, err := newTestSession(t, srv).Run(context.Background(), model.NewRunRequest("q"))
	assert.Nil(t, resp)

	perr, ok := err.(*AgentProtocolError)
	require.True(t, ok, "protocol errors are returned unwrapped, got %T", err)
	assert.Equal(t, "quota exceeded", perr.Message)
	assert.Equal(t, "req-abc", perr.RequestID)
}

func TestSession_RunSkipsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w,
			"event: response.text.delta\ndata: {not json\n\n",
			"event: response.text.delta\ndata: {\"text\":\"fine\"}\n\n",
		)
	}))
	defer srv.Close()

	resp, err := newTestSession(t, srv).Run(context.Background(), model.NewRunRequest("q"))
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Text())
	assert.Equal(t, "{not json", resp.RawEvents[0].Raw)
}

func TestSession_RunTimeoutReleasesConnection(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, "event: response.text.delta\ndata: {\"text\":\"slow\"}\n\n")
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	req := model.NewRunRequest("q")
	req.Timeout = 100 * time.Millisecond

	start := time.Now()
	resp, err := newTestSession(t, srv).Run(context.Background(), req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSession_RunCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, ": keep-alive\n\n")
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newTestSession(t, srv).Run(ctx, model.NewRunRequest("q"))
	assert.ErrorIs(t, err, context.Canceled)
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context, rawURL string) error {
	l.calls.Add(1)
	return nil
}

func TestSession_CreateThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/cortex/threads", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cove", body["origin_application"])
		_, _ = io.WriteString(w, `{"thread_id": 9001}`)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	id, err := newTestSession(t, srv, WithLimiter(limiter)).CreateThread(context.Background(), "cove")
	require.NoError(t, err)
	assert.EqualValues(t, 9001, id)
	assert.EqualValues(t, 1, limiter.calls.Load())
}

func TestSession_CreateThreadMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := newTestSession(t, srv).CreateThread(context.Background(), "cove")
	require.Error(t, err)
}

func TestSession_DescribeAgentIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/databases/DB/schemas/SC/agents/AGENT", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"name":"AGENT","profile":{"display_name":"Business agent"}}`)
	}))
	defer srv.Close()

	s := newTestSession(t, srv, WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute))

	first, err := s.DescribeAgent(context.Background())
	require.NoError(t, err)
	second, err := s.DescribeAgent(context.Background())
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.EqualValues(t, 1, hits.Load())
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(Config{Database: "DB", Schema: "SC", AgentName: "A", Account: "x"})
	assert.Error(t, err, "token required")

	_, err = NewSession(Config{Token: "t", Database: "DB", Schema: "SC", AgentName: "A"})
	assert.Error(t, err, "account or base URL required")
}

func TestBaseURLFor(t *testing.T) {
	tests := []struct {
		account string
		want    string
	}{
		{"xy12345", "https://xy12345.snowflakecomputing.com"},
		{"myorg-myaccount", "https://myorg-myaccount.snowflakecomputing.com"},
		{"xy12345.snowflakecomputing.com", "https://xy12345.snowflakecomputing.com"},
		{"xy12345.us-east-1", "https://xy12345.us-east-1"},
		{"https://xy12345.snowflakecomputing.com/", "https://xy12345.snowflakecomputing.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseURLFor(tt.account), tt.account)
	}
}
