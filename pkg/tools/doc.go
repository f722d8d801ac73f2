// Package tools registers and executes structured tools for the agent.
//
// Invariants:
// - Tool names are unique within a registry.
// - Arguments are schema-validated before execution.
// - Handler failures come back as a failed Result, never as a panic or error.
//
// Usage:
//
//	registry := tools.NewRegistry()
//	_ = registry.Register(tools.Definition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []tools.Parameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
//			return args["text"], nil
//		},
//	})
//	result := registry.Execute(ctx, "echo", map[string]interface{}{"text": "hi"})
package tools
