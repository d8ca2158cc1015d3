package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect the configured agent",
}

var agentDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the agent's configuration document",
	Long: `Describe fetches the agent definition (instructions, tools, models).
Responses are cached according to the cache settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		session, err := a.session()
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		doc, err := session.DescribeAgent(cmd.Context())
		if err != nil {
			return fmt.Errorf("describe agent: %w", err)
		}

		var out bytes.Buffer
		if err := json.Indent(&out, doc, "", "  "); err != nil {
			return fmt.Errorf("format agent description: %w", err)
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentDescribeCmd)
}
