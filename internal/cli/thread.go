package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var threadOrigin string

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage agent conversation threads",
}

var threadCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a conversation thread and print its id",
	Args:  cobra.NoArgs,
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

		origin := threadOrigin
		if origin == "" {
			origin = a.cfg.Agent.OriginApplication
		}

		id, err := session.CreateThread(cmd.Context(), origin)
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadCreateCmd)

	threadCreateCmd.Flags().StringVar(&threadOrigin, "origin", "", "origin application (default: agent.origin_application)")
}
