package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harun/agentchat/pkg/agent"
	"github.com/harun/agentchat/pkg/session"
	"github.com/rs/zerolog"
)

// ExitCommand ends the chat.
const ExitCommand = "exit"

// ErrInterrupt is returned by a LineReader when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// Runner executes one turn.
type Runner interface {
	Run(ctx context.Context, req agent.RunRequest) agent.Events
}

// LineReader reads one line of user input. It returns io.EOF at end of input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// Presenter renders the conversation.
type Presenter interface {
	// Greet is shown once before the first prompt.
	Greet()

	// Prompt is the text shown when waiting for input.
	Prompt() string

	// BeginTurn is called after a line is submitted.
	BeginTurn()

	// WriteFragment shows agent text as soon as it arrives.
	WriteFragment(text string)

	// EndTurn is called after the last event of a successful turn.
	EndTurn()

	// TurnError reports a failed turn.
	TurnError(err error)

	// Goodbye is shown once on shutdown.
	Goodbye()
}

// ShutdownError reports a connector that failed to close. It never changes
// the exit status.
type ShutdownError struct {
	Err error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("failed to release tool connector: %v", e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// Config holds loop configuration
type Config struct {
	Runner    Runner
	Connector io.Closer
	Reader    LineReader
	Presenter Presenter
	UserID    string
	SessionID string
	Logger    zerolog.Logger
}

// Loop is the chat loop. It is built once and run once.
type Loop struct {
	runner    Runner
	connector io.Closer
	reader    LineReader
	presenter Presenter
	userID    string
	sessionID string
	logger    zerolog.Logger

	turns int
}

// New creates a chat loop
func New(cfg Config) (*Loop, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("line reader is required")
	}
	if cfg.Presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}

	return &Loop{
		runner:    cfg.Runner,
		connector: cfg.Connector,
		reader:    cfg.Reader,
		presenter: cfg.Presenter,
		userID:    cfg.UserID,
		sessionID: cfg.SessionID,
		logger:    cfg.Logger,
	}, nil
}

// IsExit reports whether line is the exit command.
func IsExit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), ExitCommand)
}

// Turns returns the number of turns submitted so far.
func (l *Loop) Turns() int {
	return l.turns
}

// Run reads and submits lines until exit or end of input. It returns a
// *ShutdownError when the connector fails to close and the read error when
// input breaks for any other reason.
func (l *Loop) Run(ctx context.Context) error {
	l.presenter.Greet()

	for {
		line, err := l.reader.ReadLine(l.presenter.Prompt())
		if errors.Is(err, ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			l.logger.Debug().Msg("End of input")
			return l.shutdown()
		}
		if err != nil {
			if shutdownErr := l.shutdown(); shutdownErr != nil {
				l.logger.Warn().Err(shutdownErr).Msg("Shutdown failed")
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if IsExit(line) {
			return l.shutdown()
		}

		l.turn(ctx, line)
	}
}

// turn submits one line and drains its events.
func (l *Loop) turn(ctx context.Context, line string) {
	l.turns++
	l.presenter.BeginTurn()

	if err := l.drain(ctx, line); err != nil {
		l.logger.Debug().Err(err).Int("turn", l.turns).Msg("Turn failed")
		l.presenter.TurnError(err)
		return
	}
	l.presenter.EndTurn()
}

func (l *Loop) drain(ctx context.Context, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during turn: %v", r)
		}
	}()

	events := l.runner.Run(ctx, agent.RunRequest{
		UserID:     l.userID,
		SessionID:  l.sessionID,
		NewMessage: session.NewUserContent(line),
	})
	defer events.Close()

	for events.Next() {
		ev := events.Event()
		if ev == nil || ev.Author == session.AuthorUser {
			continue
		}
		if text := ev.Text(); text != "" {
			l.presenter.WriteFragment(text)
		}
	}
	return events.Err()
}

func (l *Loop) shutdown() error {
	defer l.presenter.Goodbye()

	if l.connector == nil {
		return nil
	}
	if err := l.connector.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to close tool connector")
		return &ShutdownError{Err: err}
	}
	l.logger.Debug().Msg("Tool connector closed")
	return nil
}
