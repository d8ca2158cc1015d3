package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

var (
	askThread    int64
	askParent    int64
	askNewThread bool
	askJSON      bool
	askThinking  bool
	askTools     []string
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message to the agent without verification",
	Long: `Ask streams a single answer from the agent and prints its text and SQL.

Pass --thread to continue a conversation, or --new-thread to open one first.

Example:
  cove ask "How many orders shipped last week?"
  cove ask "And the week before?" --thread 1234 --parent 5678
  cove ask "Top customers" --tool revenue_analyst --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Int64Var(&askThread, "thread", 0, "continue this thread id")
	askCmd.Flags().Int64Var(&askParent, "parent", 0, "parent message id within the thread")
	askCmd.Flags().BoolVar(&askNewThread, "new-thread", false, "create a thread before asking")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full structured response as JSON")
	askCmd.Flags().BoolVar(&askThinking, "thinking", false, "print the reasoning trace")
	askCmd.Flags().StringSliceVar(&askTools, "tool", nil, "restrict the agent to these tools")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	agent, err := a.agent()
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	req := model.NewRunRequest(args[0])
	if len(askTools) > 0 {
		req.ToolChoice = &model.ToolChoice{Type: "tool", Name: askTools}
	}

	switch {
	case askNewThread:
		session, err := a.session()
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		id, err := session.CreateThread(ctx, a.cfg.Agent.OriginApplication)
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Created thread %d\n", id)
		req.ThreadID = &id
	case cmd.Flags().Changed("thread"):
		req.ThreadID = &askThread
		req.ParentMessageID = askParent
	}

	resp, err := agent.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printResponse(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp, askThinking)
	return nil
}

func printResponse(w, diag io.Writer, resp *model.AgentResponse, thinking bool) {
	if thinking && resp.ThinkingText() != "" {
		fmt.Fprintf(w, "Thinking:\n%s\n\n", resp.ThinkingText())
	}

	fmt.Fprintln(w, strings.TrimSpace(resp.Text()))

	for i, sql := range resp.SQLStatements {
		fmt.Fprintf(w, "\n-- SQL %d\n%s\n", i+1, sql)
	}

	if verbose {
		fmt.Fprintf(diag, "\nRequest id: %s\n", resp.RequestID)
		for _, tc := range resp.ToolCalls {
			fmt.Fprintf(diag, "Tool: %s (%s) %s\n", tc.Name, tc.Kind, tc.State)
		}
		for _, tr := range resp.ToolResults {
			name := tr.ID
			if tc, ok := resp.ToolCall(tr.ID); ok {
				name = tc.Name
			}
			status := "ok"
			if tr.IsError {
				status = "error"
			}
			fmt.Fprintf(diag, "Result: %s %s\n", name, status)
		}
	}
}
