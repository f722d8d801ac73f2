package agent

import (
	"errors"
	"fmt"

	"github.com/harun/agentchat/pkg/session"
)

// ErrMaxToolRounds is returned when the model keeps calling tools past the
// per-turn limit.
var ErrMaxToolRounds = errors.New("maximum tool execution rounds exceeded")

// Turn phases reported by TurnError.
const (
	PhaseSubmit  = "submit"
	PhaseTools   = "tools"
	PhaseModel   = "model"
	PhaseSession = "session"
)

// TurnError is a failure of a single turn. The conversation can continue.
type TurnError struct {
	Phase string
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed during %s: %v", e.Phase, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// RunRequest submits one user message to a session.
type RunRequest struct {
	UserID     string
	SessionID  string
	NewMessage *session.Content
}

// Events is a lazily produced, finite, non-restartable sequence of events
// for one turn.
//
//	events := runner.Run(ctx, req)
//	defer events.Close()
//	for events.Next() {
//		ev := events.Event()
//	}
//	if err := events.Err(); err != nil { ... }
type Events interface {
	Next() bool
	Event() *session.Event
	Err() error
	Close() error
}

// AgentMessage represents a message in the conversation sent to a provider
type AgentMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`

	// IsError marks a tool result that reports a failed call.
	IsError bool `json:"is_error,omitempty"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolSpec is a tool as advertised to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AuthProfile holds the credentials for one LLM provider
type AuthProfile struct {
	ID       string `json:"id"`
	Provider string `json:"provider"` // "gemini", "openai", "anthropic"
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

// ErrSessionNotFound is returned when a run names a session that was never
// created.
var ErrSessionNotFound = session.ErrSessionNotFound

// Event is a unit of conversation yielded by a run.
type Event = session.Event
