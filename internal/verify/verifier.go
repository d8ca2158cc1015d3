// Package verify checks each claim with an independent question and classifies
// whether the answer agrees with the claim.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/llm"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// ClaimError identifies which claim's verification failed
type ClaimError struct {
	Index int
	Claim string
	Err   error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("verify claim %d (%q): %v", e.Index+1, truncate(e.Claim, 60), e.Err)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// Options configures a Verifier
type Options struct {
	// Workers bounds concurrent claim verifications (<= 1 means sequential)
	Workers int

	// Timeout bounds each agent call (0 uses the backend default)
	Timeout time.Duration

	Logger *slog.Logger
}

// Verifier runs factored verification: the verification question is asked on
// its own, never alongside the original answer.
type Verifier struct {
	agent   llm.Agent
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(agent llm.Agent, opts Options) *Verifier {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{
		agent:   agent,
		workers: opts.Workers,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Verify asks the claim's question standalone, then asks the agent to compare
// the claim against that answer.
func (v *Verifier) Verify(ctx context.Context, claim model.Claim) (model.ClaimVerification, error) {
	verification, err := v.run(ctx, claim.VerificationQuestion)
	if err != nil {
		return model.ClaimVerification{}, fmt.Errorf("verification query: %w", err)
	}

	comparison, err := v.run(ctx, ComparisonPrompt(claim.Text, verification.Text()))
	if err != nil {
		return model.ClaimVerification{}, fmt.Errorf("comparison query: %w", err)
	}

	explanation := comparison.Text()
	return model.ClaimVerification{
		Claim:                claim,
		VerificationResponse: verification,
		ComparisonResponse:   comparison,
		Verdict:              Classify(explanation),
		Explanation:          explanation,
	}, nil
}

// VerifyAll verifies every claim on up to Workers goroutines. Results are indexed
// like claims regardless of completion order. The first failure cancels the
// remaining verifications and is returned as a *ClaimError.
// onDone, when non-nil, is called once per finished claim from the worker goroutine.
func (v *Verifier) VerifyAll(ctx context.Context, claims []model.Claim, onDone func(index int, cv model.ClaimVerification)) ([]model.ClaimVerification, error) {
	results := make([]model.ClaimVerification, len(claims))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	for i, claim := range claims {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return &ClaimError{Index: i, Claim: claim.Text, Err: err}
			}

			start := time.Now()
			cv, err := v.Verify(ctx, claim)
			if err != nil {
				return &ClaimError{Index: i, Claim: claim.Text, Err: err}
			}
			results[i] = cv

			v.logger.Info("claim verified",
				"index", i,
				"verdict", cv.Verdict,
				"duration", time.Since(start).Round(time.Millisecond))
			if onDone != nil {
				onDone(i, cv)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (v *Verifier) run(ctx context.Context, message string) (*model.AgentResponse, error) {
	req := model.NewRunRequest(message)
	req.Timeout = v.timeout
	return v.agent.Run(ctx, req)
}

// ComparisonPrompt asks for a verdict token followed by an explanation
func ComparisonPrompt(claim, verified string) string {
	return fmt.Sprintf(`Compare these two statements and determine if they are consistent.

ORIGINAL CLAIM:
%s

VERIFIED INFORMATION:
%s

Respond with exactly one of these first, then explain:
- %s: if the claim matches the verified information
- %s: if the claim contradicts the verified information
- %s: if you cannot determine from the information

Your response:`, claim, verified, model.VerdictConsistent, model.VerdictInconsistent, model.VerdictUnverified)
}

// Classify scans the comparison text case-insensitively. The inconsistency token
// is checked first since "CONSISTENT" is a substring of it.
func Classify(text string) model.Verdict {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, string(model.VerdictInconsistent)):
		return model.VerdictInconsistent
	case strings.Contains(upper, string(model.VerdictConsistent)):
		return model.VerdictConsistent
	default:
		return model.VerdictUnverified
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
