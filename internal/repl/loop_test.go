package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/harun/agentchat/pkg/agent"
	"github.com/harun/agentchat/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	events []*session.Event
	err    error
	pos    int
	closed bool
	panics bool
}

func (e *fakeEvents) Next() bool {
	if e.panics {
		panic("provider exploded")
	}
	if e.pos >= len(e.events) {
		return false
	}
	e.pos++
	return true
}

func (e *fakeEvents) Event() *session.Event { return e.events[e.pos-1] }
func (e *fakeEvents) Err() error            { return e.err }
func (e *fakeEvents) Close() error          { e.closed = true; return nil }

// fakeRunner answers each turn with the next scripted stream.
type fakeRunner struct {
	turns    []*fakeEvents
	requests []agent.RunRequest
	issued   []*fakeEvents
}

func (r *fakeRunner) Run(ctx context.Context, req agent.RunRequest) agent.Events {
	r.requests = append(r.requests, req)
	var ev *fakeEvents
	if len(r.turns) > 0 {
		ev = r.turns[0]
		r.turns = r.turns[1:]
	} else {
		ev = &fakeEvents{}
	}
	r.issued = append(r.issued, ev)
	return ev
}

// checkingReader fails the test if a line is read while a turn is open.
type checkingReader struct {
	t      *testing.T
	lines  []string
	runner *fakeRunner
	err    error
}

func (r *checkingReader) ReadLine(prompt string) (string, error) {
	for _, ev := range r.runner.issued {
		assert.True(r.t, ev.closed, "line read before previous turn was drained")
	}
	if len(r.lines) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *checkingReader) Close() error { return nil }

type fakeConnector struct {
	closed int
	err    error
}

func (c *fakeConnector) Close() error {
	c.closed++
	return c.err
}

func textEvent(author, text string) *session.Event {
	return session.NewEvent("e-1", author, &session.Content{
		Role:  session.RoleModel,
		Parts: []session.Part{{Text: text}},
	})
}

type harness struct {
	loop      *Loop
	runner    *fakeRunner
	connector *fakeConnector
	out       *bytes.Buffer
	errOut    *bytes.Buffer
}

func newHarness(t *testing.T, lines []string, turns ...*fakeEvents) *harness {
	t.Helper()

	h := &harness{
		runner:    &fakeRunner{turns: turns},
		connector: &fakeConnector{},
		out:       &bytes.Buffer{},
		errOut:    &bytes.Buffer{},
	}

	loop, err := New(Config{
		Runner:    h.runner,
		Connector: h.connector,
		Reader:    &checkingReader{t: t, lines: lines, runner: h.runner},
		Presenter: NewPlainPresenter(h.out, h.errOut, ""),
		UserID:    "user-1",
		SessionID: "session-1",
		Logger:    zerolog.New(io.Discard),
	})
	require.NoError(t, err)
	h.loop = loop
	return h
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Runner: &fakeRunner{}})
	assert.Error(t, err)

	_, err = New(Config{Runner: &fakeRunner{}, Reader: NewPlainReader(strings.NewReader(""), nil)})
	assert.Error(t, err)
}

func TestIsExit(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"exit", true},
		{"EXIT", true},
		{"ExIt", true},
		{"  exit  ", true},
		{"exit\r", true},
		{"exit now", false},
		{"exi", false},
		{"quit", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExit(tt.line))
		})
	}
}

func TestLoop_ExitFirst(t *testing.T) {
	for _, line := range []string{"exit", "EXIT", " ExIt "} {
		t.Run(line, func(t *testing.T) {
			h := newHarness(t, []string{line, "never read"})

			require.NoError(t, h.loop.Run(context.Background()))

			assert.Equal(t, 1, h.connector.closed)
			assert.Empty(t, h.runner.requests)
			assert.Equal(t, 0, h.loop.Turns())
			assert.Equal(t, DefaultTitle+"\n", h.out.String())
		})
	}
}

func TestLoop_EOFActsAsExit(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, 1, h.connector.closed)
	assert.Empty(t, h.runner.requests)
}

func TestLoop_FiltersUserEvents(t *testing.T) {
	turn := &fakeEvents{events: []*session.Event{
		textEvent(session.AuthorUser, "What time is it?"),
		textEvent("GeminiAgent", "It is "),
		textEvent("GeminiAgent", ""),
		textEvent("GeminiAgent", "10:00."),
	}}
	h := newHarness(t, []string{"What time is it?", "exit"}, turn)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Equal(t, DefaultTitle+"\nAgent: It is 10:00.\n", h.out.String())
	assert.Empty(t, h.errOut.String())

	require.Len(t, h.runner.requests, 1)
	req := h.runner.requests[0]
	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, "session-1", req.SessionID)
	assert.Equal(t, "What time is it?", req.NewMessage.Parts[0].Text)
	assert.Equal(t, session.RoleUser, req.NewMessage.Role)
	assert.True(t, turn.closed)
}

func TestLoop_TurnErrorIsRecoverable(t *testing.T) {
	failing := &fakeEvents{
		events: []*session.Event{textEvent(session.AuthorUser, "hi")},
		err:    &agent.TurnError{Phase: agent.PhaseModel, Err: errors.New("quota exceeded")},
	}
	ok := &fakeEvents{events: []*session.Event{textEvent("GeminiAgent", "Hello!")}}
	h := newHarness(t, []string{"hi", "hi again", "exit"}, failing, ok)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Equal(t, 2, h.loop.Turns())
	assert.Contains(t, h.errOut.String(), "[Error during execution]: turn failed during model: quota exceeded")
	assert.Contains(t, h.out.String(), "Agent: Hello!\n")
	assert.Equal(t, 1, h.connector.closed)
}

func TestLoop_PanicDuringTurnIsRecoverable(t *testing.T) {
	h := newHarness(t, []string{"boom", "exit"}, &fakeEvents{panics: true})

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Contains(t, h.errOut.String(), "panic during turn: provider exploded")
	assert.Equal(t, 1, h.connector.closed)
}

func TestLoop_EmptyLineIsSubmitted(t *testing.T) {
	h := newHarness(t, []string{"", "exit"})

	require.NoError(t, h.loop.Run(context.Background()))

	require.Len(t, h.runner.requests, 1)
	assert.Equal(t, "", h.runner.requests[0].NewMessage.Parts[0].Text)
}

func TestLoop_SequentialTurns(t *testing.T) {
	turns := []*fakeEvents{
		{events: []*session.Event{textEvent("GeminiAgent", "one")}},
		{events: []*session.Event{textEvent("GeminiAgent", "two")}},
		{events: []*session.Event{textEvent("GeminiAgent", "three")}},
	}
	h := newHarness(t, []string{"1", "2", "3"}, turns...)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Equal(t, 3, h.loop.Turns())
	assert.Equal(t, DefaultTitle+"\nAgent: one\nAgent: two\nAgent: three\n", h.out.String())
	for _, turn := range turns {
		assert.True(t, turn.closed)
	}
}

func TestLoop_ShutdownErrorDoesNotBlockExit(t *testing.T) {
	h := newHarness(t, []string{"exit"})
	h.connector.err = errors.New("process already exited")

	err := h.loop.Run(context.Background())
	require.Error(t, err)

	var shutdownErr *ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	assert.Contains(t, err.Error(), "process already exited")
	assert.Equal(t, 1, h.connector.closed)
}

func TestLoop_NilConnector(t *testing.T) {
	runner := &fakeRunner{}
	loop, err := New(Config{
		Runner:    runner,
		Reader:    NewPlainReader(strings.NewReader("exit\n"), nil),
		Presenter: NewPlainPresenter(io.Discard, io.Discard, ""),
	})
	require.NoError(t, err)

	assert.NoError(t, loop.Run(context.Background()))
}

func TestLoop_InterruptRepromptsAndReadErrorStops(t *testing.T) {
	h := newHarness(t, nil)
	reader := &scriptedReader{results: []readResult{
		{err: ErrInterrupt},
		{line: "hi"},
		{err: errors.New("tty gone")},
	}}
	h.loop.reader = reader

	err := h.loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty gone")
	assert.Len(t, h.runner.requests, 1)
	assert.Equal(t, 1, h.connector.closed)
}

type readResult struct {
	line string
	err  error
}

type scriptedReader struct {
	results []readResult
}

func (r *scriptedReader) ReadLine(prompt string) (string, error) {
	if len(r.results) == 0 {
		return "", io.EOF
	}
	res := r.results[0]
	r.results = r.results[1:]
	return res.line, res.err
}

func (r *scriptedReader) Close() error { return nil }

func TestLoop_LongPipedLineIsOneTurn(t *testing.T) {
	runner := &fakeRunner{}
	loop, err := New(Config{
		Runner:    runner,
		Reader:    NewPlainReader(strings.NewReader(strings.Repeat("x", 100*1024)+"\nexit\n"), nil),
		Presenter: NewPlainPresenter(io.Discard, io.Discard, ""),
	})
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background()))
	require.Len(t, runner.requests, 1)
	assert.Len(t, runner.requests[0].NewMessage.Parts[0].Text, 100*1024)
}
