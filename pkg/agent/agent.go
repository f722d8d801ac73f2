package agent

import (
	"fmt"
	"strings"

	"github.com/harun/agentchat/pkg/tools"
)

// DefaultInstruction is the system instruction used when none is configured.
const DefaultInstruction = "You are a helpful assistant. Use tools when necessary to fulfill user requests."

// Agent binds a model, an instruction and the tools the model may call.
// It is assembled once and not modified afterwards.
type Agent struct {
	Name        string
	Model       string
	Instruction string
	Temperature float64
	MaxTokens   int

	// Tools are fixed in-process tools.
	Tools []tools.Definition

	// Toolsets are resolved at the start of every turn.
	Toolsets []tools.Toolset
}

// Validate checks the agent before it is handed to a runner.
func (a *Agent) Validate() error {
	if a == nil {
		return fmt.Errorf("agent is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if a.Name == "user" {
		return fmt.Errorf("agent name %q is reserved", a.Name)
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if a.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	return nil
}

func (a *Agent) instruction() string {
	if a.Instruction == "" {
		return DefaultInstruction
	}
	return a.Instruction
}
