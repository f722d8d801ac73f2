package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/agentchat/internal/tracing"
	"github.com/harun/agentchat/pkg/session"
	"github.com/rs/zerolog"
)

// DefaultMaxToolRounds bounds the model/tool round trips of one turn.
const DefaultMaxToolRounds = 10

// Runner executes turns of one agent against a session store
type Runner struct {
	appName       string
	agent         *Agent
	sessions      *session.InMemoryService
	provider      LLMProvider
	logger        zerolog.Logger
	maxToolRounds int
	streaming     bool
	toolTimeout   time.Duration
}

// Config holds runner configuration
type Config struct {
	AppName  string
	Agent    *Agent
	Sessions *session.InMemoryService
	Provider LLMProvider
	Logger   zerolog.Logger

	// MaxToolRounds defaults to DefaultMaxToolRounds.
	MaxToolRounds int

	// Streaming yields partial text events while the model is generating.
	Streaming bool

	// ToolTimeout overrides the registry's default per-call timeout.
	ToolTimeout time.Duration
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.AppName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if err := cfg.Agent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent: %w", err)
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.MaxToolRounds < 0 {
		return nil, fmt.Errorf("max tool rounds cannot be negative")
	}

	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds == 0 {
		maxToolRounds = DefaultMaxToolRounds
	}

	return &Runner{
		appName:       cfg.AppName,
		agent:         cfg.Agent,
		sessions:      cfg.Sessions,
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		maxToolRounds: maxToolRounds,
		streaming:     cfg.Streaming,
		toolTimeout:   cfg.ToolTimeout,
	}, nil
}

// AppName returns the application name sessions are keyed under
func (r *Runner) AppName() string {
	return r.appName
}

// Agent returns the agent the runner executes
func (r *Runner) Agent() *Agent {
	return r.agent
}

// Run submits a user message and returns the turn's events. Nothing happens
// until the caller pulls the first event; failures surface from Err as a
// *TurnError once the sequence ends.
func (r *Runner) Run(ctx context.Context, req RunRequest) Events {
	if ctx == nil {
		ctx = context.Background()
	}

	key := session.Key{AppName: r.appName, UserID: req.UserID, SessionID: req.SessionID}
	invocationID := tracing.NewInvocationID()
	ctx = tracing.NewTurnContext(ctx, invocationID, r.agent.Name, key.String())

	return &turnStream{
		runner:       r,
		ctx:          ctx,
		req:          req,
		key:          key,
		invocationID: invocationID,
		logger:       tracing.LoggerFromContext(ctx, r.logger),
	}
}
