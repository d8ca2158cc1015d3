package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/pipeline"
)

var (
	outJSON   string
	outMD     string
	maxClaims int
	workers   int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <question>",
	Short: "Answer a question and verify every claim in the answer",
	Long: `Run executes a full chain-of-verification:
- Ask the agent the question
- Extract the factual claims from its answer
- Ask an independent verification question for every claim
- Compare each verification answer with its claim
- Generate a corrected answer when any claim is inconsistent

Example:
  cove run "What was total revenue in Q4 2024?"
  cove run "Top 5 customers by revenue" --json report.json --md report.md
  cove run "Which region grew fastest?" --max-claims 5 --workers 2 -v`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: output.json_path)")
	runCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	runCmd.Flags().IntVar(&maxClaims, "max-claims", -1, "maximum claims to verify, 0 = unlimited (default: cove.max_claims)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "concurrent claim verifications (default: cove.workers)")
}

func runRun(cmd *cobra.Command, args []string) error {
	query := args[0]

	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.cfg
	if maxClaims >= 0 {
		cfg.CoVe.MaxClaims = maxClaims
	}
	if workers > 0 {
		cfg.CoVe.Workers = workers
	}
	if outJSON == "" {
		outJSON = cfg.Output.JSONPath
	}
	if outMD == "" {
		outMD = cfg.Output.MDPath
	}

	agent, err := a.agent()
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Question: %s\n", query)
		fmt.Fprintf(os.Stderr, "Backend:  %s\n", agent.Name())
		fmt.Fprintf(os.Stderr, "Workers:  %d\n", cfg.CoVe.Workers)
		fmt.Fprintln(os.Stderr)
	}

	opts := pipeline.OptionsFromConfig(cfg, a.logger)
	opts.Hooks = progressHooks()

	result, err := pipeline.NewPipeline(agent, opts).Run(ctx, query)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	a.saveReport(ctx, result.Report)

	if err := pipeline.NewRenderer(cmd.OutOrStdout()).RenderReport(result.Report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}

// progressHooks prints stage transitions and verdicts as they complete
func progressHooks() pipeline.Hooks {
	if !verbose {
		return pipeline.Hooks{}
	}

	var mu sync.Mutex
	return pipeline.Hooks{
		OnStage: func(stage pipeline.Stage) {
			if msg, ok := stageMessages[stage]; ok {
				fmt.Fprintf(os.Stderr, "⚙️  %s\n", msg)
			}
		},
		OnClaimVerified: func(index, total int, v model.ClaimVerification) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(os.Stderr, "   [%d/%d] %s  %s\n", index+1, total, v.Verdict, v.Claim.Text)
		},
	}
}

var stageMessages = map[pipeline.Stage]string{
	pipeline.StageInitialQuery:         "Asking the agent...",
	pipeline.StageClaimExtraction:      "Extracting claims...",
	pipeline.StagePerClaimVerification: "Verifying claims...",
	pipeline.StageCorrection:           "Generating corrected answer...",
	pipeline.StageDone:                 "Done",
}
