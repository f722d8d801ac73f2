package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements LLMProvider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

// Provider returns the provider name
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Stream starts a streaming message request
func (p *AnthropicProvider) Stream(ctx context.Context, request LLMRequest) (ResponseStream, error) {
	reqParams, err := buildAnthropicParams(request)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, reqParams)
	return &anthropicStream{stream: stream}, nil
}

func buildAnthropicParams(request LLMRequest) (anthropic.MessageNewParams, error) {
	anthropicMessages := []anthropic.MessageParam{}

	// Tool results of one round travel together in a single user message.
	var pendingResults []anthropic.ContentBlockParamUnion
	flushResults := func() {
		if len(pendingResults) > 0 {
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range request.Messages {
		// The conversation has to open with a user turn.
		if len(anthropicMessages) == 0 && len(pendingResults) == 0 && msg.Role != "user" {
			continue
		}

		if msg.Role == "tool" {
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
			continue
		}
		flushResults()

		if msg.Content == "" && len(msg.ToolCalls) == 0 {
			continue
		}

		switch {
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Parameters, tc.Name))
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case msg.Role == "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		case msg.Role == "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}
	flushResults()

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  anthropicMessages,
		MaxTokens: int64(maxTokens),
	}

	if request.SystemPrompt != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: request.SystemPrompt},
		}
	}

	if request.Temperature > 0 {
		reqParams.Temperature = anthropic.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, tool := range request.Tools {
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.InputSchema["properties"],
					Required:   schemaRequired(tool.InputSchema),
				},
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		reqParams.Tools = tools
	}

	return reqParams, nil
}

func schemaRequired(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		names := make([]string, 0, len(required))
		for _, v := range required {
			if name, ok := v.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}

type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	message anthropic.Message
	delta   string
	err     error
}

func (s *anthropicStream) Next() bool {
	s.delta = ""
	if s.err != nil || !s.stream.Next() {
		return false
	}

	event := s.stream.Current()
	if err := s.message.Accumulate(event); err != nil {
		s.err = fmt.Errorf("failed to accumulate stream event: %w", err)
		return false
	}

	if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
		if text, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
			s.delta = text.Text
		}
	}
	return true
}

func (s *anthropicStream) Delta() string {
	return s.delta
}

func (s *anthropicStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.stream.Err()
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}

func (s *anthropicStream) Response() (*LLMResponse, error) {
	content := ""
	toolCalls := []ToolCall{}

	for _, block := range s.message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ToolUseBlock:
			params := map[string]interface{}{}
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &params); err != nil {
					return nil, fmt.Errorf("failed to parse tool input for %s: %w", b.Name, err)
				}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:         b.ID,
				Name:       b.Name,
				Parameters: params,
			})
		}
	}

	return &LLMResponse{
		Content:   content,
		ToolCalls: toolCalls,
		Usage: &TokenUsage{
			InputTokens:  int(s.message.Usage.InputTokens),
			OutputTokens: int(s.message.Usage.OutputTokens),
		},
	}, nil
}
