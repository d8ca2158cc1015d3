package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/pipeline"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify every question in a file",
	Long: `Batch runs a full verification for each question in a file:
- One question per line; blank lines and # comments are skipped
- Repeated questions are verified once
- Questions run in parallel; claims within a question follow cove.workers
- One JSON report per question is written to the output directory

Example:
  cove batch questions.txt
  cove batch questions.txt --concurrency 3 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 2, "questions verified at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./cove-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	agent, err := a.agent()
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Cove Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Backend:      %s\n", agent.Name())
	fmt.Fprintf(os.Stderr, "  Concurrency:  %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p := pipeline.NewPipeline(agent, pipeline.OptionsFromConfig(a.cfg, a.logger))
	processor := worker.NewBatchProcessor(p, concurrency)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cmd.OutOrStdout())
	var success, failures, corrected int

	for _, res := range results {
		if res.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ [%d] %s: %v\n", res.Index+1, res.Query, res.Error)
			continue
		}

		report := res.Result.Report
		a.saveReport(ctx, report)

		path := filepath.Join(outputDir, fmt.Sprintf("%03d-%s.json", res.Index+1, report.RunID))
		if err := renderer.RenderJSON(report, path); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ [%d] %s: failed to write JSON: %v\n", res.Index+1, res.Query, err)
			continue
		}

		success++
		if report.Summary.Corrected {
			corrected++
		}
		fmt.Fprintf(os.Stderr, "✓ [%d] %s (%d/%d consistent)\n",
			res.Index+1, res.Query, report.Summary.Consistent, report.Summary.Total)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d questions\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:    %d\n", success)
	fmt.Fprintf(os.Stderr, "  Corrected:  %d\n", corrected)
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failures > 0 {
		return fmt.Errorf("%d of %d questions failed", failures, len(results))
	}
	return nil
}
