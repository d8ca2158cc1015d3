package score

import (
	"fmt"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Scorer tallies verdicts and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate tallies the verdicts of a run and generates diagnostic signals.
// Corrected and ExecutionTime are left for the caller to fill in.
func (s *Scorer) Calculate(verifications []model.ClaimVerification) model.Summary {
	sum := model.Summary{Total: len(verifications)}
	for _, v := range verifications {
		switch v.Verdict {
		case model.VerdictConsistent:
			sum.Consistent++
		case model.VerdictInconsistent:
			sum.Inconsistent++
		default:
			sum.Unverified++
		}
	}

	if sum.Total > 0 {
		sum.Score = float64(sum.Consistent) / float64(sum.Total)
	}

	// 1. Nothing to verify
	if sum.Total == 0 {
		sum.Signals = append(sum.Signals, model.Signal{
			Type:        model.SignalNoClaims,
			Severity:    model.SeverityWarning,
			Description: "No verifiable claims extracted",
		})
	}

	// 2. Contradictions
	if sum.Inconsistent > 0 {
		sum.Signals = append(sum.Signals, model.Signal{
			Type:        model.SignalInconsistency,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("%d of %d claims contradict independent verification", sum.Inconsistent, sum.Total),
			Data: map[string]any{
				"inconsistent": sum.Inconsistent,
				"total":        sum.Total,
			},
		})
	}

	// 3. Claims the comparison could not decide
	if sig, ok := s.unverifiedSignal(sum); ok {
		sum.Signals = append(sum.Signals, sig)
	}

	// 4. Analytical claims whose verification ran no query
	if sig, ok := s.sqlSupportSignal(verifications); ok {
		sum.Signals = append(sum.Signals, sig)
	}

	sum.Confidence = s.determineConfidence(sum)
	return sum
}

func (s *Scorer) unverifiedSignal(sum model.Summary) (model.Signal, bool) {
	if sum.Unverified == 0 {
		return model.Signal{}, false
	}
	ratio := float64(sum.Unverified) / float64(sum.Total)

	severity := model.SeverityInfo
	if ratio >= 0.5 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalUnverifiedClaims,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d claims could not be verified", sum.Unverified, sum.Total),
		Data: map[string]any{
			"unverified": sum.Unverified,
			"ratio":      ratio,
		},
	}, true
}

func (s *Scorer) sqlSupportSignal(verifications []model.ClaimVerification) (model.Signal, bool) {
	var analytical, unsupported int
	for _, v := range verifications {
		if v.Claim.Source != model.SourceAnalytical {
			continue
		}
		analytical++
		if v.VerificationResponse == nil || len(v.VerificationResponse.SQLStatements) == 0 {
			unsupported++
		}
	}
	if unsupported == 0 {
		return model.Signal{}, false
	}

	return model.Signal{
		Type:        model.SignalMissingSQLSupport,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d of %d analytical claims were verified without a data query", unsupported, analytical),
		Data: map[string]any{
			"analytical":  analytical,
			"without_sql": unsupported,
		},
	}, true
}

// determineConfidence determines the confidence level of the original answer
func (s *Scorer) determineConfidence(sum model.Summary) string {
	if sum.Total == 0 {
		return "unknown"
	}
	if sum.Inconsistent > 0 {
		return "low"
	}

	if sum.Score >= 0.8 {
		return "high"
	} else if sum.Score >= 0.5 {
		return "medium"
	} else {
		return "low"
	}
}
