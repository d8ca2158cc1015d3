package model

import "strings"

// ClaimSource says which kind of capability should verify a claim
type ClaimSource string

const (
	SourceAnalytical ClaimSource = "analytical" // numbers and data, answered by structured queries
	SourceSearch     ClaimSource = "search"     // policies, products, documents
)

// ParseClaimSource maps the free-form SOURCE value an agent writes to a ClaimSource.
// The second return value is false when the value is empty.
func ParseClaimSource(s string) (ClaimSource, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return "", false
	case strings.Contains(s, "analyst"), strings.Contains(s, "analytic"):
		return SourceAnalytical, true
	default:
		return SourceSearch, true
	}
}

// Claim is a single checkable assertion taken from an agent answer
type Claim struct {
	Text                 string      `json:"claim"`
	VerificationQuestion string      `json:"verification_question"`
	Source               ClaimSource `json:"source"`
}

// Verdict is the outcome of comparing a claim with its independent verification
type Verdict string

const (
	VerdictConsistent   Verdict = "CONSISTENT"
	VerdictInconsistent Verdict = "INCONSISTENT"
	VerdictUnverified   Verdict = "UNVERIFIED"
)

// IsConsistent renders the verdict as true, false or nil (unverified)
func (v Verdict) IsConsistent() *bool {
	var b bool
	switch v {
	case VerdictConsistent:
		b = true
	case VerdictInconsistent:
		b = false
	default:
		return nil
	}
	return &b
}

// ClaimVerification is the immutable record of verifying one claim.
// Explanation is always the full comparison text.
type ClaimVerification struct {
	Claim                Claim          `json:"claim"`
	VerificationResponse *AgentResponse `json:"-"`
	ComparisonResponse   *AgentResponse `json:"-"`
	Verdict              Verdict        `json:"verdict"`
	Explanation          string         `json:"explanation"`
}
