package cli

import (
	"fmt"

	"github.com/harun/agentchat/internal/app"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the agent",
	Long: `Connect to the configured MCP server, list every tool the agent can
call together with the built-in ones, then disconnect.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := appOptions()
	opts.Stderr = cmd.ErrOrStderr()

	defs, err := app.ListTools(cmd.Context(), cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	app.PrintTools(cmd.OutOrStdout(), defs)
	return nil
}
