package model

import "time"

// Report is the export document produced once per orchestration run
type Report struct {
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	StartedAt time.Time `json:"started_at"`
	Backend   string    `json:"backend"`

	InitialResponse    string   `json:"initial_response"`
	InitialResponseSQL []string `json:"initial_response_sql"`

	Claims          []Claim `json:"claims"`
	ClaimsTruncated int     `json:"claims_truncated,omitempty"` // claims dropped by the max-claims limit

	Verifications []VerificationRecord `json:"verifications"`

	// FinalResponse is nil when no correction stage ran
	FinalResponse *string `json:"final_response"`

	Summary Summary        `json:"summary"`
	Stages  []StageOutcome `json:"stages"`
}

// VerificationRecord is the exported form of a ClaimVerification
type VerificationRecord struct {
	Claim                string      `json:"claim"`
	VerificationQuestion string      `json:"verification_question"`
	Source               ClaimSource `json:"source"`
	VerificationResponse string      `json:"verification_response"`
	VerificationSQL      []string    `json:"verification_sql"`
	Verdict              Verdict     `json:"verdict"`
	IsConsistent         *bool       `json:"is_consistent"`
	Explanation          string      `json:"explanation"`
}

// NewVerificationRecord flattens a verification for export
func NewVerificationRecord(v ClaimVerification) VerificationRecord {
	rec := VerificationRecord{
		Claim:                v.Claim.Text,
		VerificationQuestion: v.Claim.VerificationQuestion,
		Source:               v.Claim.Source,
		VerificationResponse: v.VerificationResponse.Text(),
		VerificationSQL:      []string{},
		Verdict:              v.Verdict,
		IsConsistent:         v.Verdict.IsConsistent(),
		Explanation:          v.Explanation,
	}
	if v.VerificationResponse != nil && len(v.VerificationResponse.SQLStatements) > 0 {
		rec.VerificationSQL = v.VerificationResponse.SQLStatements
	}
	return rec
}

// Summary tallies verdicts for a run
type Summary struct {
	Total         int      `json:"total"`
	Consistent    int      `json:"consistent"`
	Inconsistent  int      `json:"inconsistent"`
	Unverified    int      `json:"unverified"`
	Score         float64  `json:"score"` // consistent / total, 0 when there are no claims
	Confidence    string   `json:"confidence"`
	Signals       []Signal `json:"signals,omitempty"`
	Corrected     bool     `json:"corrected"`
	ExecutionTime float64  `json:"execution_time_seconds"`
}

// SignalType names a diagnostic observation about a run
type SignalType string

const (
	SignalNoClaims          SignalType = "no_claims"
	SignalInconsistency     SignalType = "inconsistency"
	SignalUnverifiedClaims  SignalType = "unverified_claims"
	SignalMissingSQLSupport SignalType = "missing_sql_support"
)

// Severity ranks a signal
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Signal is one diagnostic observation with the numbers behind it
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// StageOutcome records how long a pipeline stage took and whether it ran
type StageOutcome struct {
	Stage   string  `json:"stage"`
	Skipped bool    `json:"skipped,omitempty"`
	Seconds float64 `json:"seconds"`
	Calls   int     `json:"agent_calls"`
}
