package agent

import (
	"context"
	"errors"

	"github.com/harun/agentchat/internal/tracing"
	"github.com/harun/agentchat/pkg/session"
	"github.com/harun/agentchat/pkg/tools"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type turnState int

const (
	stateStart turnState = iota
	stateRound
	statePull
	stateDone
)

// turnStream produces the events of one turn on demand.
type turnStream struct {
	runner       *Runner
	ctx          context.Context
	req          RunRequest
	key          session.Key
	invocationID string
	logger       zerolog.Logger

	state    turnState
	sess     *session.Session
	registry *tools.Registry
	specs    []ToolSpec
	round    int

	span      trace.Span
	roundSpan trace.Span
	stream    ResponseStream

	pending []*session.Event
	current *session.Event
	err     error
}

func (t *turnStream) Next() bool {
	for {
		if len(t.pending) > 0 {
			t.current = t.pending[0]
			t.pending = t.pending[1:]
			return true
		}
		t.current = nil
		if t.state == stateDone {
			return false
		}
		if err := t.step(); err != nil {
			t.finish(err)
		}
	}
}

func (t *turnStream) Event() *session.Event {
	return t.current
}

func (t *turnStream) Err() error {
	return t.err
}

// Close abandons the turn. Events already appended to the session stay.
func (t *turnStream) Close() error {
	if t.state != stateDone {
		t.finish(nil)
	}
	t.pending = nil
	return nil
}

func (t *turnStream) step() error {
	if err := t.ctx.Err(); err != nil {
		return &TurnError{Phase: PhaseModel, Err: err}
	}

	switch t.state {
	case stateStart:
		return t.start()
	case stateRound:
		return t.openRound()
	case statePull:
		return t.pull()
	}
	return nil
}

// start resolves the session and tools and records the user message.
func (t *turnStream) start() error {
	t.ctx, t.span = tracing.StartSpan(t.ctx, "agent.turn",
		attribute.String("session_key", t.key.String()),
		attribute.String("agent", t.runner.agent.Name),
	)

	sess, err := t.runner.sessions.Get(t.ctx, t.key)
	if err != nil {
		return &TurnError{Phase: PhaseSession, Err: err}
	}
	t.sess = sess

	if t.req.NewMessage == nil || len(t.req.NewMessage.Parts) == 0 {
		return &TurnError{Phase: PhaseSubmit, Err: errors.New("message is empty")}
	}

	registry, err := tools.Build(t.ctx, t.runner.agent.Tools, t.runner.agent.Toolsets)
	if err != nil {
		return &TurnError{Phase: PhaseTools, Err: err}
	}
	if t.runner.toolTimeout > 0 {
		registry.SetTimeout(t.runner.toolTimeout)
	}
	t.registry = registry
	t.specs = toolSpecs(registry)

	content := *t.req.NewMessage
	content.Role = session.RoleUser
	userEvent := session.NewEvent(t.invocationID, session.AuthorUser, &content)
	if err := t.runner.sessions.AppendEvent(t.ctx, t.sess, userEvent); err != nil {
		return &TurnError{Phase: PhaseSession, Err: err}
	}

	t.logger.Debug().
		Int("tools", len(t.specs)).
		Int("history", t.sess.Len()).
		Msg("Turn started")

	t.pending = append(t.pending, userEvent)
	t.state = stateRound
	return nil
}

// openRound sends the conversation so far to the model.
func (t *turnStream) openRound() error {
	if t.round >= t.runner.maxToolRounds {
		return &TurnError{Phase: PhaseModel, Err: ErrMaxToolRounds}
	}
	t.round++

	request := LLMRequest{
		Model:        t.runner.agent.Model,
		Messages:     buildMessages(t.sess.Events()),
		Tools:        t.specs,
		Temperature:  t.runner.agent.Temperature,
		MaxTokens:    t.runner.agent.MaxTokens,
		SystemPrompt: t.runner.agent.instruction(),
	}

	var roundCtx context.Context
	roundCtx, t.roundSpan = tracing.StartSpan(t.ctx, "agent.model_round",
		attribute.String("provider", t.runner.provider.Provider()),
		attribute.String("model", request.Model),
		attribute.Int("round", t.round),
	)

	stream, err := t.runner.provider.Stream(roundCtx, request)
	if err != nil {
		return &TurnError{Phase: PhaseModel, Err: err}
	}
	t.stream = stream
	t.state = statePull
	return nil
}

// pull reads one chunk of the current round, finishing the round at the end
// of the stream.
func (t *turnStream) pull() error {
	if t.stream.Next() {
		if delta := t.stream.Delta(); delta != "" && t.runner.streaming {
			ev := session.NewEvent(t.invocationID, t.runner.agent.Name, &session.Content{
				Role:  session.RoleModel,
				Parts: []session.Part{{Text: delta}},
			})
			ev.Partial = true
			t.pending = append(t.pending, ev)
		}
		return nil
	}

	stream := t.stream
	t.stream = nil
	defer stream.Close()

	if err := stream.Err(); err != nil {
		return &TurnError{Phase: PhaseModel, Err: err}
	}

	resp, err := stream.Response()
	if err != nil {
		return &TurnError{Phase: PhaseModel, Err: err}
	}
	t.endRound(nil)

	if resp.Usage != nil {
		t.logger.Debug().
			Int("round", t.round).
			Int("input_tokens", resp.Usage.InputTokens).
			Int("output_tokens", resp.Usage.OutputTokens).
			Int("tool_calls", len(resp.ToolCalls)).
			Msg("Model round completed")
	}

	modelEvent := session.NewEvent(t.invocationID, t.runner.agent.Name, modelContent(resp))
	modelEvent.TurnComplete = len(resp.ToolCalls) == 0
	if err := t.runner.sessions.AppendEvent(t.ctx, t.sess, modelEvent); err != nil {
		return &TurnError{Phase: PhaseSession, Err: err}
	}

	// Streamed text was already yielded as partial events.
	if t.runner.streaming {
		t.pending = append(t.pending, withoutText(modelEvent))
	} else {
		t.pending = append(t.pending, modelEvent)
	}

	if modelEvent.TurnComplete {
		t.finish(nil)
		return nil
	}

	responseEvent := session.NewEvent(t.invocationID, t.runner.agent.Name, t.executeTools(resp.ToolCalls))
	if err := t.runner.sessions.AppendEvent(t.ctx, t.sess, responseEvent); err != nil {
		return &TurnError{Phase: PhaseSession, Err: err}
	}
	t.pending = append(t.pending, responseEvent)
	t.state = stateRound
	return nil
}

// executeTools runs the calls of one round in order. Tool failures become
// error results for the model, not turn failures.
func (t *turnStream) executeTools(calls []ToolCall) *session.Content {
	content := &session.Content{Role: session.RoleTool}

	for _, call := range calls {
		ctx, span := tracing.StartSpan(t.ctx, "agent.tool",
			attribute.String("tool", call.Name),
			attribute.String("tool_call_id", call.ID),
		)

		result := t.registry.Execute(ctx, call.Name, call.Parameters)

		var spanErr error
		if !result.Success {
			spanErr = errors.New(result.Error)
			t.logger.Warn().Str("tool", call.Name).Str("error", result.Error).Msg("Tool call failed")
		}
		tracing.EndSpan(span, spanErr)

		content.Parts = append(content.Parts, session.Part{
			FunctionResponse: &session.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: result.Output,
				Error:    result.Error,
			},
		})
	}

	return content
}

func (t *turnStream) endRound(err error) {
	if t.roundSpan != nil {
		tracing.EndSpan(t.roundSpan, err)
		t.roundSpan = nil
	}
}

// finish moves the turn to its terminal state and releases what it holds.
func (t *turnStream) finish(err error) {
	if t.stream != nil {
		if closeErr := t.stream.Close(); closeErr != nil {
			t.logger.Debug().Err(closeErr).Msg("Failed to close model stream")
		}
		t.stream = nil
	}
	t.endRound(err)

	if err != nil {
		var turnErr *TurnError
		if !errors.As(err, &turnErr) {
			err = &TurnError{Phase: PhaseModel, Err: err}
		}
		t.err = err
		t.logger.Debug().Err(err).Msg("Turn failed")
	}

	if t.span != nil {
		tracing.EndSpan(t.span, err)
		t.span = nil
	}
	t.state = stateDone
}

var _ Events = (*turnStream)(nil)
