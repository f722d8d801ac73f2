package cli

import (
	"github.com/harun/agentchat/internal/app"
	"github.com/spf13/cobra"
)

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := appOptions()
	opts.Stdout = cmd.OutOrStdout()
	opts.Stderr = cmd.ErrOrStderr()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}
