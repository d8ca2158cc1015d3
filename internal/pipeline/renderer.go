package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Renderer writes reports as JSON, Markdown and a terminal summary
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer whose summaries go to out
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// WriteJSON encodes the export document
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RenderJSON writes the export document to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return r.WriteJSON(w, report)
	})
}

// RenderMarkdown writes a human-readable report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, Markdown(report))
		return err
	})
}

// Markdown formats the report as Markdown
func Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Verification Report\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", report.Query)
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Backend: %s\n", report.Backend)
	fmt.Fprintf(&b, "- Verification score: %d/%d (%s confidence)\n\n",
		report.Summary.Consistent, report.Summary.Total, report.Summary.Confidence)

	fmt.Fprintf(&b, "## Original Answer\n\n%s\n\n", report.InitialResponse)
	writeSQL(&b, report.InitialResponseSQL)

	fmt.Fprintf(&b, "## Claims\n\n")
	if len(report.Verifications) == 0 {
		fmt.Fprintf(&b, "_No verifiable claims were extracted._\n\n")
	}
	for i, v := range report.Verifications {
		fmt.Fprintf(&b, "### %d. %s %s\n\n", i+1, verdictIcon(v.Verdict), v.Claim)
		fmt.Fprintf(&b, "- Verdict: **%s**\n", v.Verdict)
		fmt.Fprintf(&b, "- Source: %s\n", strings.ToUpper(string(v.Source)))
		fmt.Fprintf(&b, "- Verification question: %s\n\n", v.VerificationQuestion)
		fmt.Fprintf(&b, "**Independent answer:**\n\n%s\n\n", v.VerificationResponse)
		writeSQL(&b, v.VerificationSQL)
		fmt.Fprintf(&b, "**Comparison:**\n\n%s\n\n", v.Explanation)
	}
	if report.ClaimsTruncated > 0 {
		fmt.Fprintf(&b, "_%d further claims were not verified (claim limit)._\n\n", report.ClaimsTruncated)
	}

	if len(report.Summary.Signals) > 0 {
		fmt.Fprintf(&b, "## Signals\n\n")
		for _, s := range report.Summary.Signals {
			fmt.Fprintf(&b, "- [%s] %s\n", s.Severity, s.Description)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintf(&b, "## Final Answer\n\n")
	switch {
	case report.FinalResponse != nil:
		fmt.Fprintf(&b, "%s\n", *report.FinalResponse)
	case report.Summary.Inconsistent == 0:
		fmt.Fprintf(&b, "%s\n\n_All claims verified, no corrections needed._\n", report.InitialResponse)
	default:
		fmt.Fprintf(&b, "_No corrected response generated._\n")
	}

	return b.String()
}

// RenderSummary prints a short summary of the run
func (r *Renderer) RenderSummary(report *model.Report) {
	s := report.Summary
	fmt.Fprintf(r.out, "\n")
	fmt.Fprintf(r.out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(r.out, "  Chain-of-Verification\n")
	fmt.Fprintf(r.out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(r.out, "\n")
	fmt.Fprintf(r.out, "  Question:      %s\n", report.Query)
	fmt.Fprintf(r.out, "  Claims:        %d\n", s.Total)
	fmt.Fprintf(r.out, "  Consistent:    %d\n", s.Consistent)
	fmt.Fprintf(r.out, "  Inconsistent:  %d\n", s.Inconsistent)
	fmt.Fprintf(r.out, "  Unverified:    %d\n", s.Unverified)
	fmt.Fprintf(r.out, "  Score:         %d/%d (%s confidence)\n", s.Consistent, s.Total, s.Confidence)
	fmt.Fprintf(r.out, "  Time:          %.1fs\n", s.ExecutionTime)
	fmt.Fprintf(r.out, "\n")

	for i, v := range report.Verifications {
		fmt.Fprintf(r.out, "  %s %d. %s [%s]\n", verdictIcon(v.Verdict), i+1, truncate(v.Claim, 60), v.Verdict)
	}
	if len(report.Verifications) > 0 {
		fmt.Fprintf(r.out, "\n")
	}

	if report.FinalResponse != nil {
		fmt.Fprintf(r.out, "Corrected answer:\n%s\n", *report.FinalResponse)
	} else {
		fmt.Fprintf(r.out, "Answer:\n%s\n", report.InitialResponse)
	}
}

func writeSQL(b *strings.Builder, statements []string) {
	for _, sql := range statements {
		fmt.Fprintf(b, "```sql\n%s\n```\n\n", sql)
	}
}

func verdictIcon(v model.Verdict) string {
	switch v {
	case model.VerdictConsistent:
		return "✅"
	case model.VerdictInconsistent:
		return "❌"
	default:
		return "⚠️"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RenderReport renders the report to the requested outputs and prints the summary
func (r *Renderer) RenderReport(report *model.Report, jsonPath, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(report)
	return nil
}
