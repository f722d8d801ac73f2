package tracing

import (
	"context"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// InvocationIDKey is the context key for the turn invocation ID
	InvocationIDKey ContextKey = "invocation_id"
	// AgentIDKey is the context key for agent ID
	AgentIDKey ContextKey = "agent_id"
	// SessionKeyKey is the context key for session key
	SessionKeyKey ContextKey = "session_key"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID      string
	InvocationID string
	AgentID      string
	SessionKey   string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewInvocationID generates a short ID for one turn, e.g. "e-V1StGXR8_Z5jdHi6B-myT".
func NewInvocationID() string {
	id, err := gonanoid.New()
	if err != nil {
		return "e-" + uuid.New().String()
	}
	return "e-" + id
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithInvocationID adds an invocation ID to the context
func WithInvocationID(ctx context.Context, invocationID string) context.Context {
	return context.WithValue(ctx, InvocationIDKey, invocationID)
}

// WithAgentID adds an agent ID to the context
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithSessionKey adds a session key to the context
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, SessionKeyKey, sessionKey)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetInvocationID retrieves the invocation ID from the context
func GetInvocationID(ctx context.Context) string {
	if invocationID, ok := ctx.Value(InvocationIDKey).(string); ok {
		return invocationID
	}
	return ""
}

// GetAgentID retrieves the agent ID from the context
func GetAgentID(ctx context.Context) string {
	if agentID, ok := ctx.Value(AgentIDKey).(string); ok {
		return agentID
	}
	return ""
}

// GetSessionKey retrieves the session key from the context
func GetSessionKey(ctx context.Context) string {
	if sessionKey, ok := ctx.Value(SessionKeyKey).(string); ok {
		return sessionKey
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:      GetTraceID(ctx),
		InvocationID: GetInvocationID(ctx),
		AgentID:      GetAgentID(ctx),
		SessionKey:   GetSessionKey(ctx),
	}
}

// NewTurnContext prepares the context for one turn: a fresh trace ID when
// none is set, plus the invocation, agent and session identifiers.
func NewTurnContext(ctx context.Context, invocationID, agentID, sessionKey string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithInvocationID(ctx, invocationID)
	ctx = WithAgentID(ctx, agentID)
	return WithSessionKey(ctx, sessionKey)
}

// LoggerFromContext stamps the tracing fields of ctx onto a logger.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.InvocationID != "" {
		lc = lc.Str("invocation_id", tc.InvocationID)
	}
	if tc.AgentID != "" {
		lc = lc.Str("agent_id", tc.AgentID)
	}
	if tc.SessionKey != "" {
		lc = lc.Str("session_key", tc.SessionKey)
	}
	return lc.Logger()
}
