package score

import (
	"testing"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

func verdicts(vs ...model.Verdict) []model.ClaimVerification {
	out := make([]model.ClaimVerification, len(vs))
	for i, v := range vs {
		out[i] = model.ClaimVerification{
			Claim:                model.Claim{Text: "claim", Source: model.SourceSearch},
			VerificationResponse: &model.AgentResponse{},
			Verdict:              v,
		}
	}
	return out
}

func hasSignal(sum model.Summary, typ model.SignalType) bool {
	for _, s := range sum.Signals {
		if s.Type == typ {
			return true
		}
	}
	return false
}

func TestScorer_Calculate_Tally(t *testing.T) {
	scorer := NewScorer()

	sum := scorer.Calculate(verdicts(
		model.VerdictConsistent,
		model.VerdictInconsistent,
		model.VerdictUnverified,
		model.VerdictConsistent,
	))

	if sum.Total != 4 || sum.Consistent != 2 || sum.Inconsistent != 1 || sum.Unverified != 1 {
		t.Errorf("Unexpected tally: %+v", sum)
	}
	if sum.Score != 0.5 {
		t.Errorf("Expected score 0.5, got %f", sum.Score)
	}
	if sum.Confidence != "low" {
		t.Errorf("Expected low confidence with an inconsistency, got %s", sum.Confidence)
	}
	if !hasSignal(sum, model.SignalInconsistency) {
		t.Error("Expected inconsistency signal")
	}
	if !hasSignal(sum, model.SignalUnverifiedClaims) {
		t.Error("Expected unverified signal")
	}
}

func TestScorer_Calculate_AllConsistent(t *testing.T) {
	sum := NewScorer().Calculate(verdicts(model.VerdictConsistent))

	if sum.Consistent != 1 || sum.Inconsistent != 0 || sum.Unverified != 0 {
		t.Errorf("Unexpected tally: %+v", sum)
	}
	if sum.Score != 1 {
		t.Errorf("Expected score 1, got %f", sum.Score)
	}
	if sum.Confidence != "high" {
		t.Errorf("Expected high confidence, got %s", sum.Confidence)
	}
	if len(sum.Signals) != 0 {
		t.Errorf("Expected no signals, got %+v", sum.Signals)
	}
}

func TestScorer_Calculate_NoClaims(t *testing.T) {
	sum := NewScorer().Calculate(nil)

	if sum.Total != 0 || sum.Score != 0 {
		t.Errorf("Unexpected summary: %+v", sum)
	}
	if sum.Confidence != "unknown" {
		t.Errorf("Expected unknown confidence, got %s", sum.Confidence)
	}
	if !hasSignal(sum, model.SignalNoClaims) {
		t.Error("Expected no_claims signal")
	}
}

func TestScorer_Calculate_MissingSQLSupport(t *testing.T) {
	vs := verdicts(model.VerdictConsistent, model.VerdictConsistent)
	vs[0].Claim.Source = model.SourceAnalytical
	vs[1].Claim.Source = model.SourceAnalytical
	vs[1].VerificationResponse = &model.AgentResponse{SQLStatements: []string{"SELECT 1"}}

	sum := NewScorer().Calculate(vs)
	if !hasSignal(sum, model.SignalMissingSQLSupport) {
		t.Fatal("Expected missing_sql_support signal")
	}
	for _, s := range sum.Signals {
		if s.Type == model.SignalMissingSQLSupport && s.Data["without_sql"] != 1 {
			t.Errorf("Expected 1 claim without SQL, got %v", s.Data["without_sql"])
		}
	}
}

func TestScorer_Calculate_UnverifiedSeverity(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []model.Verdict
		severity model.Severity
	}{
		{"minority", []model.Verdict{model.VerdictUnverified, model.VerdictConsistent, model.VerdictConsistent}, model.SeverityInfo},
		{"majority", []model.Verdict{model.VerdictUnverified, model.VerdictUnverified, model.VerdictConsistent}, model.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := NewScorer().Calculate(verdicts(tt.verdicts...))
			for _, s := range sum.Signals {
				if s.Type == model.SignalUnverifiedClaims && s.Severity != tt.severity {
					t.Errorf("Expected severity %s, got %s", tt.severity, s.Severity)
				}
			}
		})
	}
}
