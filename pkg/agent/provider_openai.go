package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIProvider implements LLMProvider for OpenAI and OpenAI-compatible
// endpoints
type OpenAIProvider struct {
	client openai.Client
	name   string
}

// NewOpenAIProvider creates a new OpenAI provider. An empty baseURL uses the
// SDK default.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		name:   "openai",
	}
}

// Provider returns the provider name
func (p *OpenAIProvider) Provider() string {
	return p.name
}

// Stream starts a streaming chat completion
func (p *OpenAIProvider) Stream(ctx context.Context, request LLMRequest) (ResponseStream, error) {
	params, err := buildOpenAIParams(request)
	if err != nil {
		return nil, err
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	return &openAIStream{stream: stream}, nil
}

func buildOpenAIParams(request LLMRequest) (openai.ChatCompletionNewParams, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tc := range msg.ToolCalls {
					paramsJSON, err := json.Marshal(tc.Parameters)
					if err != nil {
						return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to marshal tool parameters: %w", err)
					}

					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: string(paramsJSON),
						},
					})
				}

				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
	}

	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(request.MaxTokens))
	}

	if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, tool := range request.Tools {
			fn := openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
			}
			if schema := providerSchema(tool.InputSchema); schema != nil {
				fn.Parameters = openai.FunctionParameters(schema)
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type:     "function",
				Function: fn,
			})
		}
		params.Tools = tools
	}

	return params, nil
}

// providerSchema drops keys providers reject and returns nil for tools
// without parameters.
func providerSchema(schema map[string]interface{}) map[string]interface{} {
	if len(schema) == 0 {
		return nil
	}
	if props, ok := schema["properties"].(map[string]interface{}); !ok || len(props) == 0 {
		return nil
	}

	cleaned := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		if k == "$schema" {
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	acc    openai.ChatCompletionAccumulator
	delta  string
}

func (s *openAIStream) Next() bool {
	s.delta = ""
	if !s.stream.Next() {
		return false
	}

	chunk := s.stream.Current()
	s.acc.AddChunk(chunk)
	if len(chunk.Choices) > 0 {
		s.delta = chunk.Choices[0].Delta.Content
	}
	return true
}

func (s *openAIStream) Delta() string {
	return s.delta
}

func (s *openAIStream) Err() error {
	return s.stream.Err()
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

func (s *openAIStream) Response() (*LLMResponse, error) {
	if len(s.acc.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	message := s.acc.Choices[0].Message

	toolCalls, err := parseOpenAIToolCalls(message.ToolCalls)
	if err != nil {
		return nil, err
	}

	return &LLMResponse{
		Content:   message.Content,
		ToolCalls: toolCalls,
		Usage: &TokenUsage{
			InputTokens:  int(s.acc.Usage.PromptTokens),
			OutputTokens: int(s.acc.Usage.CompletionTokens),
		},
	}, nil
}

func parseOpenAIToolCalls(calls []openai.ChatCompletionMessageToolCall) ([]ToolCall, error) {
	toolCalls := []ToolCall{}
	for _, tc := range calls {
		params := map[string]interface{}{}
		if args := strings.TrimSpace(tc.Function.Arguments); args != "" {
			if err := json.Unmarshal([]byte(args), &params); err != nil {
				return nil, fmt.Errorf("failed to parse tool arguments for %s: %w", tc.Function.Name, err)
			}
		}

		id := tc.ID
		if id == "" {
			id = newToolCallID()
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:         id,
			Name:       tc.Function.Name,
			Parameters: params,
		})
	}
	return toolCalls, nil
}

func newToolCallID() string {
	return "call_" + gonanoid.Must(16)
}
