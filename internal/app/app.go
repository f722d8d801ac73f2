// Package app assembles the chat client from configuration: credential
// check, tool connector, agent, session, runner and the interactive loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harun/agentchat/internal/config"
	"github.com/harun/agentchat/internal/logger"
	"github.com/harun/agentchat/internal/repl"
	"github.com/harun/agentchat/pkg/agent"
	"github.com/harun/agentchat/pkg/coretools"
	"github.com/harun/agentchat/pkg/mcptool"
	"github.com/harun/agentchat/pkg/session"
	"github.com/harun/agentchat/pkg/tools"
)

// Options overrides the collaborators App builds by default.
type Options struct {
	// Providers defaults to agent.ProviderFactory.
	Providers agent.ProviderCreator

	// Dial defaults to the mcp-go client.
	Dial mcptool.Dialer

	// Reader defaults to readline on a terminal and a plain line reader otherwise.
	Reader repl.LineReader

	Stdout io.Writer
	Stderr io.Writer

	// Now overrides the clock of the getCurrentTime tool.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Providers == nil {
		o.Providers = &agent.ProviderFactory{}
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// App is the assembled chat client
type App struct {
	config  *config.Config
	logger  *logger.Logger
	toolset *mcptool.Toolset
	runner  *agent.Runner
	reader  repl.LineReader
	loop    *repl.Loop
}

// New validates cfg and builds the client. The credential is checked before
// anything else is created, so a missing key never spawns a tool server or
// opens a session.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	opts.setDefaults()

	log, err := NewLogger(cfg, opts.Stderr)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.initialize(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initialize(ctx context.Context, opts Options) error {
	cfg := a.config

	provider, err := opts.Providers.NewProvider(agent.AuthProfile{
		ID:       cfg.AI.Provider + ":default",
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	toolset, err := newToolset(cfg.MCP, opts.Dial, a.logger)
	if err != nil {
		return err
	}
	a.toolset = toolset

	var toolsets []tools.Toolset
	if toolset != nil {
		if err := toolset.Connect(ctx); err != nil {
			// The next turn retries the connection.
			a.logger.Warn().Err(err).Msg("MCP server unavailable, continuing with local tools")
		}
		toolsets = append(toolsets, toolset)
	}

	chatAgent := &agent.Agent{
		Name:        cfg.Agent.Name,
		Model:       cfg.AI.Model,
		Instruction: cfg.Agent.Instruction,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Tools:       coretools.Definitions(coretools.Options{Now: opts.Now}),
		Toolsets:    toolsets,
	}

	sessions := session.NewInMemoryService()
	if _, err := sessions.Create(ctx, session.Key{
		AppName:   cfg.Session.AppName,
		UserID:    cfg.Session.UserID,
		SessionID: cfg.Session.SessionID,
	}); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	runner, err := agent.NewRunner(agent.Config{
		AppName:       cfg.Session.AppName,
		Agent:         chatAgent,
		Sessions:      sessions,
		Provider:      provider,
		Logger:        a.logger.GetZerolog(),
		MaxToolRounds: cfg.AI.MaxToolRounds,
		Streaming:     cfg.AI.Streaming,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	a.runner = runner

	reader := opts.Reader
	if reader == nil {
		reader, err = repl.NewLineReader(cfg.UI.HistoryFile)
		if err != nil {
			return err
		}
	}
	a.reader = reader

	loopCfg := repl.Config{
		Runner:    runner,
		Reader:    reader,
		Presenter: newPresenter(cfg, opts.Stdout, opts.Stderr),
		UserID:    cfg.Session.UserID,
		SessionID: cfg.Session.SessionID,
		Logger:    a.logger.GetZerolog(),
	}
	if toolset != nil {
		loopCfg.Connector = toolset
	}

	a.loop, err = repl.New(loopCfg)
	if err != nil {
		return fmt.Errorf("failed to create chat loop: %w", err)
	}

	a.logger.Info().
		Str("provider", provider.Provider()).
		Str("model", chatAgent.Model).
		Bool("mcp", toolset != nil).
		Msg("Chat client ready")
	return nil
}

// Run starts the chat loop and blocks until the user exits. A connector that
// fails to close is logged and does not fail the run.
func (a *App) Run(ctx context.Context) error {
	err := a.loop.Run(ctx)

	var shutdownErr *repl.ShutdownError
	if errors.As(err, &shutdownErr) {
		a.logger.Warn().Err(shutdownErr.Err).Msg("Tool connector did not shut down cleanly")
		return nil
	}
	return err
}

// Runner returns the agent runner
func (a *App) Runner() *agent.Runner {
	return a.runner
}

// Close releases whatever New created. It is safe after Run.
func (a *App) Close() error {
	var errs []error
	if a.reader != nil {
		if err := a.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close line reader: %w", err))
		}
	}
	if a.toolset != nil {
		if err := a.toolset.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from the logging section. Console
// output goes to stderr.
func NewLogger(cfg *config.Config, stderr io.Writer) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Out:       stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newToolset returns nil when MCP is disabled.
func newToolset(cfg config.MCPConfig, dial mcptool.Dialer, log *logger.Logger) (*mcptool.Toolset, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	toolset, err := mcptool.New(mcptool.Options{
		Name: "mcp",
		Params: mcptool.ConnectionParams{
			Transport: cfg.Transport,
			Command:   cfg.Command,
			Args:      cfg.Args,
			Env:       cfg.Env,
			URL:       cfg.URL,
			Timeout:   cfg.Timeout,
		},
		Logger: log.GetZerolog(),
		Dial:   dial,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp toolset: %w", err)
	}
	return toolset, nil
}

func newPresenter(cfg *config.Config, stdout, stderr io.Writer) repl.Presenter {
	if cfg.UI.Fancy {
		return repl.NewFancyPresenter(stdout, stderr, cfg.Agent.Name, cfg.UI.TypingDelay)
	}
	return repl.NewPlainPresenter(stdout, stderr, "")
}
