package agent

import (
	"context"
	"fmt"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Stream starts a streaming completion for one model round
	Stream(ctx context.Context, request LLMRequest) (ResponseStream, error)

	// Provider returns the provider name
	Provider() string
}

// ResponseStream yields text deltas of one model round and, once drained,
// the aggregated response.
type ResponseStream interface {
	// Next advances to the next chunk. It returns false at the end of the
	// stream or on error.
	Next() bool

	// Delta is the text carried by the current chunk, possibly empty.
	Delta() string

	// Response aggregates the drained stream.
	Response() (*LLMResponse, error)

	Err() error
	Close() error
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []AgentMessage
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// ProviderCreator creates LLM providers from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	switch profile.Provider {
	case "gemini":
		return NewGeminiProvider(profile.APIKey, profile.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey, profile.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey, profile.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
