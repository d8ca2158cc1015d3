package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/llm"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Terminator closes a claim block in the tagged extraction format
const Terminator = "---"

// tagPattern matches CLAIM:, QUESTION: and SOURCE: lines, tolerating list
// markers and markdown bold around the tag.
var tagPattern = regexp.MustCompile(`(?i)^(?:[-*]\s+|\d+[.)]\s+)?\**\s*(CLAIM|QUESTION|SOURCE)\s*\**\s*:\s*\**\s*(.*?)\s*\**$`)

// ClaimExtractor asks an agent to decompose an answer into checkable claims
type ClaimExtractor struct {
	agent  llm.Agent
	logger *slog.Logger
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(agent llm.Agent, logger *slog.Logger) *ClaimExtractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ClaimExtractor{agent: agent, logger: logger}
}

// Extract sends the extraction prompt and parses the claims out of the reply.
// It fails only when the agent call fails; the reply itself is never rejected.
func (e *ClaimExtractor) Extract(ctx context.Context, query, responseText string) ([]model.Claim, *model.AgentResponse, error) {
	resp, err := e.agent.Run(ctx, model.NewRunRequest(ExtractionPrompt(query, responseText)))
	if err != nil {
		return nil, nil, fmt.Errorf("extract claims: %w", err)
	}

	claims := ParseClaims(resp.Text())
	e.logger.Info("claims extracted", "count", len(claims), "request_id", resp.RequestID)
	return claims, resp, nil
}

// ExtractionPrompt builds the fixed-template extraction prompt
func ExtractionPrompt(query, responseText string) string {
	return fmt.Sprintf(`Analyze this response and list all specific factual claims that can be verified.

Original Question: %s

Response to Analyze:
%s

For each claim, provide:
1. The exact claim made
2. A verification question to check it
3. Whether to use "analyst" (for data/numbers) or "search" (for policies/knowledge/products)

List each claim in this format:
CLAIM: [the claim]
QUESTION: [verification question]
SOURCE: [analyst or search]
%s`, query, responseText, Terminator)
}

// draft is a claim under construction during the scan
type draft struct {
	text      string
	question  string
	source    model.ClaimSource
	hasSource bool
}

// ParseClaims scans the tagged format line by line. A CLAIM line closes the claim
// in progress and opens a new one; a terminator closes it; a claim still open at
// the end is kept. Missing questions and sources get defaults.
func ParseClaims(text string) []model.Claim {
	var (
		claims  []model.Claim
		current *draft
	)

	closeCurrent := func() {
		if current != nil && current.text != "" {
			claims = append(claims, current.finish())
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if line == Terminator {
			closeCurrent()
			continue
		}

		m := tagPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])

		switch strings.ToUpper(m[1]) {
		case "CLAIM":
			closeCurrent()
			current = &draft{text: value}
		case "QUESTION":
			if current == nil {
				current = &draft{}
			}
			current.question = value
		case "SOURCE":
			if current == nil {
				current = &draft{}
			}
			current.source, current.hasSource = model.ParseClaimSource(value)
		}
	}
	closeCurrent()

	return claims
}

func (d *draft) finish() model.Claim {
	c := model.Claim{
		Text:                 d.text,
		VerificationQuestion: d.question,
		Source:               d.source,
	}
	if c.VerificationQuestion == "" {
		c.VerificationQuestion = "Verify: " + c.Text
	}
	if !d.hasSource {
		c.Source = model.SourceAnalytical
	}
	return c
}
