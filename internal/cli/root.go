package cli

import (
	"github.com/harun/agentchat/internal/app"
	"github.com/harun/agentchat/internal/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	provider string
	model    string
	fancy    bool
	noMCP    bool
)

// appOptions supplies collaborators to the app. Tests replace it.
var appOptions = func() app.Options {
	return app.Options{}
}

// rootCmd starts a chat when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentchat",
	Short: "agentchat - chat with an LLM agent in the terminal",
	Long: `agentchat is an interactive terminal chat with an LLM agent.
The agent can tell the current time and use every tool exposed by a
configured MCP server. Type 'exit' to quit.`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentchat/agentchat.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", config.ProviderGemini, "model provider (gemini, openai, anthropic)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model name (default depends on the provider)")
	rootCmd.PersistentFlags().BoolVar(&noMCP, "no-mcp", false, "do not start the MCP tool server")

	rootCmd.Flags().BoolVar(&fancy, "fancy", false, "decorated output with spinner and typing effect")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadConfig merges file, environment and the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader(cfgFile).
		BindFlag("ai.provider", cmd.Flags().Lookup("provider")).
		BindFlag("ai.model", cmd.Flags().Lookup("model")).
		BindFlag("logging.level", cmd.Flags().Lookup("log-level")).
		BindFlag("ui.fancy", cmd.Flags().Lookup("fancy"))

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	// mcp.enabled is the inverse of the flag, so it cannot be bound.
	if noMCP {
		cfg.MCP.Enabled = false
	}
	return cfg, nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
