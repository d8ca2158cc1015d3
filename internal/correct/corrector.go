// Package correct asks the agent for a revised answer once verification has
// found inconsistent claims.
package correct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/llm"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// ErrNothingToCorrect is returned when no verdict is INCONSISTENT
var ErrNothingToCorrect = errors.New("no inconsistent claims to correct")

// evidenceLimit caps how much of each verification answer goes into the prompt
const evidenceLimit = 200

// Corrector produces a single revised answer per run. There are no retries.
type Corrector struct {
	agent  llm.Agent
	logger *slog.Logger
}

// NewCorrector creates a new corrector
func NewCorrector(agent llm.Agent, logger *slog.Logger) *Corrector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Corrector{agent: agent, logger: logger}
}

// Correct sends one correction prompt built from every verdict
func (c *Corrector) Correct(ctx context.Context, query, answer string, verifications []model.ClaimVerification) (*model.AgentResponse, error) {
	if !NeedsCorrection(verifications) {
		return nil, ErrNothingToCorrect
	}

	resp, err := c.agent.Run(ctx, model.NewRunRequest(CorrectionPrompt(query, answer, verifications)))
	if err != nil {
		return nil, fmt.Errorf("correct response: %w", err)
	}
	c.logger.Info("corrected response generated", "request_id", resp.RequestID)
	return resp, nil
}

// NeedsCorrection reports whether any verdict is INCONSISTENT
func NeedsCorrection(verifications []model.ClaimVerification) bool {
	for _, v := range verifications {
		if v.Verdict == model.VerdictInconsistent {
			return true
		}
	}
	return false
}

// CorrectionPrompt lists every claim with its status and, for inconsistent
// claims, the start of the independently verified answer.
func CorrectionPrompt(query, answer string, verifications []model.ClaimVerification) string {
	var parts []string
	for _, v := range verifications {
		parts = append(parts, fmt.Sprintf("- Claim: %s\n  Status: %s", v.Claim.Text, v.Verdict))
		if v.Verdict == model.VerdictInconsistent {
			parts = append(parts, "  Correct Info: "+head(v.VerificationResponse.Text(), evidenceLimit))
		}
	}

	return fmt.Sprintf(`Generate a corrected response based on verification results.

ORIGINAL QUESTION: %s

ORIGINAL RESPONSE: %s

VERIFICATION RESULTS:
%s

Generate a revised response that corrects any INCONSISTENT claims using the verified information.

Corrected Response:`, query, answer, strings.Join(parts, "\n"))
}

// head returns the first n characters of s
func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
