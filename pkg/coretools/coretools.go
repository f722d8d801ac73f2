// Package coretools provides the in-process tools the agent always has.
package coretools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/agentchat/pkg/tools"
)

// CurrentTimeToolName is the name the model sees for the clock tool.
const CurrentTimeToolName = "getCurrentTime"

// TimeLayout is the display format of the clock tool.
const TimeLayout = "1/2/2006, 3:04:05 PM"

// Options configures core tool registration.
type Options struct {
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Definitions returns the core tools in registration order.
func Definitions(opts Options) []tools.Definition {
	return []tools.Definition{
		currentTimeTool(opts),
	}
}

// Register adds the core tools to a registry.
func Register(registry *tools.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}

	for _, tool := range Definitions(opts) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func currentTimeTool(opts Options) tools.Definition {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return tools.Definition{
		Name:        CurrentTimeToolName,
		Description: "Returns the current local time.",
		Source:      "core",
		Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{
				"time": now().Local().Format(TimeLayout),
			}, nil
		},
	}
}
