package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/agentchat/pkg/session"
	"github.com/harun/agentchat/pkg/tools"
)

// buildMessages turns the session history into provider messages.
func buildMessages(events []*session.Event) []AgentMessage {
	messages := []AgentMessage{}

	for _, ev := range events {
		if ev == nil || ev.Content == nil {
			continue
		}

		switch ev.Content.Role {
		case session.RoleUser:
			// Providers reject empty text, so blank lines stay out of the replay.
			text := ev.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}
			messages = append(messages, AgentMessage{
				Role:    "user",
				Content: text,
			})
		case session.RoleModel:
			msg := AgentMessage{
				Role:    "assistant",
				Content: ev.Text(),
			}
			for _, call := range ev.FunctionCalls() {
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					ID:         call.ID,
					Name:       call.Name,
					Parameters: call.Args,
				})
			}
			if strings.TrimSpace(msg.Content) == "" && len(msg.ToolCalls) == 0 {
				continue
			}
			messages = append(messages, msg)
		case session.RoleTool:
			for _, resp := range ev.FunctionResponses() {
				messages = append(messages, AgentMessage{
					Role:       "tool",
					Content:    toolResultContent(resp),
					ToolCallID: resp.ID,
					IsError:    resp.Error != "",
				})
			}
		}
	}

	return messages
}

// toolResultContent renders a tool result the way it is handed back to the
// model.
func toolResultContent(resp session.FunctionResponse) string {
	if resp.Error != "" {
		return "error: " + resp.Error
	}

	switch v := resp.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	}

	data, err := json.Marshal(resp.Response)
	if err != nil {
		return fmt.Sprintf("%v", resp.Response)
	}
	return string(data)
}

// toolSpecs advertises every registered tool to the model.
func toolSpecs(registry *tools.Registry) []ToolSpec {
	defs := registry.Definitions()
	specs := make([]ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Schema(),
		})
	}
	return specs
}

// modelContent builds the content of a model round.
func modelContent(resp *LLMResponse) *session.Content {
	content := &session.Content{Role: session.RoleModel}
	if resp.Content != "" {
		content.Parts = append(content.Parts, session.Part{Text: resp.Content})
	}
	for _, tc := range resp.ToolCalls {
		content.Parts = append(content.Parts, session.Part{
			FunctionCall: &session.FunctionCall{
				ID:   tc.ID,
				Name: tc.Name,
				Args: tc.Parameters,
			},
		})
	}
	return content
}

// withoutText copies an event minus its text parts.
func withoutText(ev *session.Event) *session.Event {
	out := *ev
	if ev.Content == nil {
		return &out
	}

	content := &session.Content{Role: ev.Content.Role}
	for _, part := range ev.Content.Parts {
		if part.Text != "" {
			continue
		}
		content.Parts = append(content.Parts, part)
	}
	out.Content = content
	return &out
}
