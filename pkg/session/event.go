package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthorUser tags events that echo the user's own message.
const AuthorUser = "user"

// Content roles
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// FunctionResponse is the result of a tool invocation.
type FunctionResponse struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Part is one piece of content. Exactly one field is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// NewUserContent wraps text as a single-part user message.
func NewUserContent(text string) *Content {
	return &Content{
		Role:  RoleUser,
		Parts: []Part{{Text: text}},
	}
}

// Event is a unit of conversation produced during a turn.
type Event struct {
	ID           string    `json:"id"`
	InvocationID string    `json:"invocation_id"`
	Author       string    `json:"author"`
	Content      *Content  `json:"content,omitempty"`
	Partial      bool      `json:"partial,omitempty"`
	TurnComplete bool      `json:"turn_complete,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(invocationID, author string, content *Content) *Event {
	return &Event{
		ID:           uuid.New().String(),
		InvocationID: invocationID,
		Author:       author,
		Content:      content,
		Timestamp:    time.Now(),
	}
}

// Text concatenates the event's text parts.
func (e *Event) Text() string {
	if e == nil || e.Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range e.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// FunctionCalls returns the tool invocations carried by the event.
func (e *Event) FunctionCalls() []FunctionCall {
	if e == nil || e.Content == nil {
		return nil
	}

	var calls []FunctionCall
	for _, part := range e.Content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the tool results carried by the event.
func (e *Event) FunctionResponses() []FunctionResponse {
	if e == nil || e.Content == nil {
		return nil
	}

	var responses []FunctionResponse
	for _, part := range e.Content.Parts {
		if part.FunctionResponse != nil {
			responses = append(responses, *part.FunctionResponse)
		}
	}
	return responses
}
