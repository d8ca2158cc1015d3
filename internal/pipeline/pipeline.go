package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/correct"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/extract"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/llm"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/score"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/verify"
)

// Stage is one step of a verification run. Stages run strictly in order.
type Stage string

const (
	StageInitialQuery         Stage = "INITIAL_QUERY"
	StageClaimExtraction      Stage = "CLAIM_EXTRACTION"
	StagePerClaimVerification Stage = "PER_CLAIM_VERIFICATION"
	StageAggregation          Stage = "AGGREGATION"
	StageCorrection           Stage = "CORRECTION"
	StageDone                 Stage = "DONE"
)

// StageError reports which stage failed and, during verification, which claim
type StageError struct {
	Stage      Stage
	ClaimIndex int // zero-based; -1 when the failure is not tied to a claim
	Err        error
}

func (e *StageError) Error() string {
	if e.ClaimIndex >= 0 {
		return fmt.Sprintf("%s failed for claim %d: %v", e.Stage, e.ClaimIndex+1, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Hooks receive progress callbacks. OnClaimVerified may be called from several
// goroutines at once.
type Hooks struct {
	OnStage         func(stage Stage)
	OnClaimVerified func(index, total int, v model.ClaimVerification)
}

// Options configures a Pipeline
type Options struct {
	MaxClaims           int // 0 = unlimited
	Workers             int
	VerificationTimeout time.Duration
	TotalTimeout        time.Duration
	Hooks               Hooks
	Logger              *slog.Logger
}

// OptionsFromConfig maps the runtime config onto pipeline options
func OptionsFromConfig(cfg *model.Config, logger *slog.Logger) Options {
	return Options{
		MaxClaims:           cfg.CoVe.MaxClaims,
		Workers:             cfg.CoVe.Workers,
		VerificationTimeout: cfg.CoVe.VerificationTimeout,
		TotalTimeout:        cfg.CoVe.TotalTimeout,
		Logger:              logger,
	}
}

// Pipeline orchestrates a complete chain-of-verification run
type Pipeline struct {
	agent     llm.Agent
	extractor *extract.ClaimExtractor
	verifier  *verify.Verifier
	corrector *correct.Corrector
	scorer    *score.Scorer
	opts      Options
	logger    *slog.Logger
}

// NewPipeline creates a new pipeline. Every stage talks to the same agent;
// each call is an independent request.
func NewPipeline(agent llm.Agent, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		agent:     agent,
		extractor: extract.NewClaimExtractor(agent, logger),
		verifier: verify.NewVerifier(agent, verify.Options{
			Workers: opts.Workers,
			Timeout: opts.VerificationTimeout,
			Logger:  logger,
		}),
		corrector: correct.NewCorrector(agent, logger),
		scorer:    score.NewScorer(),
		opts:      opts,
		logger:    logger,
	}
}

// Result holds the full responses of a run alongside its export report
type Result struct {
	Report        *model.Report
	Initial       *model.AgentResponse
	Extraction    *model.AgentResponse
	Verifications []model.ClaimVerification
	Correction    *model.AgentResponse // nil when no correction ran
}

// Run answers query, verifies the answer claim by claim and corrects it when
// any claim is inconsistent. Any stage failure aborts the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	if p.opts.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TotalTimeout)
		defer cancel()
	}

	start := time.Now()
	report := &model.Report{
		RunID:     uuid.NewString(),
		Query:     query,
		StartedAt: start.UTC(),
		Backend:   p.agent.Name(),
	}
	result := &Result{Report: report}
	logger := p.logger.With("run_id", report.RunID)

	// 1. Initial answer
	err := p.stage(report, StageInitialQuery, 1, func() error {
		resp, err := p.agent.Run(ctx, model.NewRunRequest(query))
		if err != nil {
			return err
		}
		result.Initial = resp
		report.InitialResponse = resp.Text()
		report.InitialResponseSQL = nonNil(resp.SQLStatements)
		return nil
	})
	if err != nil {
		return nil, stageError(StageInitialQuery, err)
	}

	// 2. Claims
	var claims []model.Claim
	err = p.stage(report, StageClaimExtraction, 1, func() error {
		extracted, resp, err := p.extractor.Extract(ctx, query, report.InitialResponse)
		if err != nil {
			return err
		}
		result.Extraction = resp
		claims = extracted
		if limit := p.opts.MaxClaims; limit > 0 && len(claims) > limit {
			logger.Warn("claim limit reached", "extracted", len(claims), "kept", limit)
			report.ClaimsTruncated = len(claims) - limit
			claims = claims[:limit]
		}
		report.Claims = nonNil(claims)
		return nil
	})
	if err != nil {
		return nil, stageError(StageClaimExtraction, err)
	}

	// 3. Independent verification of every claim
	err = p.stage(report, StagePerClaimVerification, 2*len(claims), func() error {
		verifications, err := p.verifier.VerifyAll(ctx, claims, func(i int, v model.ClaimVerification) {
			if p.opts.Hooks.OnClaimVerified != nil {
				p.opts.Hooks.OnClaimVerified(i, len(claims), v)
			}
		})
		if err != nil {
			return err
		}
		result.Verifications = verifications
		return nil
	})
	if err != nil {
		return nil, stageError(StagePerClaimVerification, err)
	}
	report.Verifications = make([]model.VerificationRecord, 0, len(result.Verifications))
	for _, v := range result.Verifications {
		report.Verifications = append(report.Verifications, model.NewVerificationRecord(v))
	}

	// 4. Tally
	p.notify(StageAggregation)
	tallied := time.Now()
	report.Summary = p.scorer.Calculate(result.Verifications)
	report.Stages = append(report.Stages, model.StageOutcome{
		Stage:   string(StageAggregation),
		Seconds: time.Since(tallied).Seconds(),
	})

	// 5. Correction, only when something is inconsistent
	if correct.NeedsCorrection(result.Verifications) {
		err = p.stage(report, StageCorrection, 1, func() error {
			resp, err := p.corrector.Correct(ctx, query, report.InitialResponse, result.Verifications)
			if err != nil {
				return err
			}
			result.Correction = resp
			text := resp.Text()
			report.FinalResponse = &text
			report.Summary.Corrected = true
			return nil
		})
		if err != nil {
			return nil, stageError(StageCorrection, err)
		}
	} else {
		report.Stages = append(report.Stages, model.StageOutcome{Stage: string(StageCorrection), Skipped: true})
	}

	p.notify(StageDone)
	report.Summary.ExecutionTime = time.Since(start).Seconds()
	logger.Info("run complete",
		"claims", report.Summary.Total,
		"consistent", report.Summary.Consistent,
		"inconsistent", report.Summary.Inconsistent,
		"unverified", report.Summary.Unverified,
		"corrected", report.Summary.Corrected,
		"duration", time.Since(start).Round(time.Millisecond))

	return result, nil
}

// stage runs fn as the named stage and records its outcome on the report
func (p *Pipeline) stage(report *model.Report, stage Stage, calls int, fn func() error) error {
	p.notify(stage)
	p.logger.Debug("stage started", "run_id", report.RunID, "stage", stage)

	start := time.Now()
	err := fn()
	report.Stages = append(report.Stages, model.StageOutcome{
		Stage:   string(stage),
		Seconds: time.Since(start).Seconds(),
		Calls:   calls,
	})
	if err != nil {
		p.logger.Error("stage failed", "run_id", report.RunID, "stage", stage, "error", err)
	}
	return err
}

func (p *Pipeline) notify(stage Stage) {
	if p.opts.Hooks.OnStage != nil {
		p.opts.Hooks.OnStage(stage)
	}
}

func stageError(stage Stage, err error) error {
	se := &StageError{Stage: stage, ClaimIndex: -1, Err: err}
	var cerr *verify.ClaimError
	if errors.As(err, &cerr) {
		se.ClaimIndex = cerr.Index
	}
	return se
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
