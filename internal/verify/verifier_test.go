package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/llm/llmtest"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Verdict
	}{
		{"consistent", "CONSISTENT: both report $1.25M.", model.VerdictConsistent},
		{"inconsistent wins over later consistent", "INCONSISTENT: the figures are not consistent with each other.", model.VerdictInconsistent},
		{"lower case", "inconsistent - revenue was $1.1M", model.VerdictInconsistent},
		{"mixed case consistent", "Consistent. The data agrees.", model.VerdictConsistent},
		{"neither token", "I cannot find revenue data for that quarter.", model.VerdictUnverified},
		{"explicit unverified", "UNVERIFIED: no data available.", model.VerdictUnverified},
		{"empty", "", model.VerdictUnverified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestComparisonPrompt(t *testing.T) {
	p := ComparisonPrompt("Revenue was $1.25M", "Revenue was $1.1M")
	assert.Contains(t, p, "ORIGINAL CLAIM:\nRevenue was $1.25M")
	assert.Contains(t, p, "VERIFIED INFORMATION:\nRevenue was $1.1M")
	assert.Contains(t, p, "- INCONSISTENT:")
}

var revenueClaim = model.Claim{
	Text:                 "Total revenue in Q4 2024 was $1.25M",
	VerificationQuestion: "What was total revenue in Q4 2024?",
	Source:               model.SourceAnalytical,
}

func TestVerifier_Verify(t *testing.T) {
	agent := &llmtest.Agent{Rules: []llmtest.Rule{
		{Match: "Compare these two statements", Reply: llmtest.Response("CONSISTENT: both state $1.25M.")},
		{Match: "What was total revenue in Q4 2024?", Reply: llmtest.Response("Q4 2024 revenue was $1,250,000.", "SELECT SUM(amount) FROM sales")},
	}}

	cv, err := NewVerifier(agent, Options{}).Verify(context.Background(), revenueClaim)
	require.NoError(t, err)

	assert.Equal(t, model.VerdictConsistent, cv.Verdict)
	assert.Equal(t, "CONSISTENT: both state $1.25M.", cv.Explanation)
	assert.Equal(t, revenueClaim, cv.Claim)
	assert.Equal(t, []string{"SELECT SUM(amount) FROM sales"}, cv.VerificationResponse.SQLStatements)

	msgs := agent.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, revenueClaim.VerificationQuestion, msgs[0], "verification question must be asked standalone")
	assert.Contains(t, msgs[1], "Q4 2024 revenue was $1,250,000.")
}

func TestVerifier_VerifyComparisonFailure(t *testing.T) {
	boom := errors.New("503")
	agent := &llmtest.Agent{Rules: []llmtest.Rule{
		{Match: "Compare these two statements", Err: boom},
		{Match: "", Reply: llmtest.Response("answer")},
	}}

	_, err := NewVerifier(agent, Options{}).Verify(context.Background(), revenueClaim)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "comparison query")
}

func claimsN(n int) []model.Claim {
	claims := make([]model.Claim, n)
	for i := range claims {
		claims[i] = model.Claim{
			Text:                 fmt.Sprintf("claim %d", i),
			VerificationQuestion: fmt.Sprintf("question %d?", i),
			Source:               model.SourceAnalytical,
		}
	}
	return claims
}

// echoAgent answers question i after a delay that shrinks with i, so completion
// order is the reverse of claim order.
func echoAgent(n int, inflight, peak *atomic.Int32) llmtest.Func {
	return func(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}

		var i int
		if strings.HasPrefix(req.Message, "question ") {
			_, _ = fmt.Sscanf(req.Message, "question %d?", &i)
			time.Sleep(time.Duration(n-i) * 5 * time.Millisecond)
			return llmtest.Response(fmt.Sprintf("answer %d", i)), nil
		}
		if strings.Contains(req.Message, "claim 1\n") {
			return llmtest.Response("INCONSISTENT: differs"), nil
		}
		return llmtest.Response("CONSISTENT: matches"), nil
	}
}

func TestVerifier_VerifyAllKeepsClaimOrder(t *testing.T) {
	const n = 6
	var inflight, peak atomic.Int32
	v := NewVerifier(echoAgent(n, &inflight, &peak), Options{Workers: 3})

	var mu sync.Mutex
	var done []int
	results, err := v.VerifyAll(context.Background(), claimsN(n), func(i int, _ model.ClaimVerification) {
		mu.Lock()
		done = append(done, i)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, results, n)

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("claim %d", i), r.Claim.Text)
		assert.Equal(t, fmt.Sprintf("answer %d", i), r.VerificationResponse.Text())
	}
	assert.Equal(t, model.VerdictInconsistent, results[1].Verdict)
	assert.Equal(t, model.VerdictConsistent, results[0].Verdict)

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, done)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestVerifier_VerifyAllSequential(t *testing.T) {
	var inflight, peak atomic.Int32
	v := NewVerifier(echoAgent(3, &inflight, &peak), Options{Workers: 1})

	_, err := v.VerifyAll(context.Background(), claimsN(3), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestVerifier_VerifyAllFailureCarriesIndex(t *testing.T) {
	boom := errors.New("agent unavailable")
	agent := llmtest.Func(func(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
		if req.Message == "question 2?" {
			return nil, boom
		}
		return llmtest.Response("CONSISTENT"), nil
	})

	results, err := NewVerifier(agent, Options{Workers: 1}).VerifyAll(context.Background(), claimsN(4), nil)
	assert.Nil(t, results)

	var cerr *ClaimError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 2, cerr.Index)
	assert.ErrorIs(t, err, boom)
}

func TestVerifier_VerifyAllCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	agent := llmtest.Func(func(ctx context.Context, req model.RunRequest) (*model.AgentResponse, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := NewVerifier(agent, Options{Workers: 2}).VerifyAll(ctx, claimsN(10), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls.Load(), int32(10), "pending verifications must be abandoned")
}

func TestVerifier_VerifyAllEmpty(t *testing.T) {
	results, err := NewVerifier(&llmtest.Agent{}, Options{}).VerifyAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
