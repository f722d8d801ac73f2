package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultTimeout bounds a single tool execution when the caller gives none.
const DefaultTimeout = 30 * time.Second

const maxOutputSize = 10 * 1024

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition describes a tool the agent may call.
//
// A definition carries either a Parameters list or a raw InputSchema (as
// discovered from an MCP server). When both are empty the tool takes no
// arguments.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  []Parameter            `json:"parameters,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Source      string                 `json:"source,omitempty"`
	Handler     Handler                `json:"-"`
}

// Schema returns the JSON schema advertised to the model.
func (d *Definition) Schema() map[string]interface{} {
	if len(d.InputSchema) > 0 {
		return d.InputSchema
	}

	properties := make(map[string]interface{}, len(d.Parameters))
	required := []string{}
	for _, param := range d.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Result represents the result of a tool execution
type Result struct {
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Registry holds tool definitions and executes them by name.
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string
	timeout time.Duration
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		timeout: DefaultTimeout,
	}
}

// SetTimeout overrides the per-call execution timeout.
func (r *Registry) SetTimeout(timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timeout > 0 {
		r.timeout = timeout
	}
}

// Register adds a tool. Names must be unique within the registry.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def.Schema())
	if err != nil {
		// Remote servers may advertise drafts gojsonschema cannot load; the
		// server validates its own arguments in that case.
		if len(def.InputSchema) == 0 {
			return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
		}
		log.Warn().Str("tool", def.Name).Err(err).Msg("Skipping argument validation for tool")
		schema = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema
	r.order = append(r.order, def.Name)

	log.Debug().Str("tool", def.Name).Str("source", def.Source).Msg("Tool registered")

	return nil
}

// Get returns a tool definition by name
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tools[name]
}

// Definitions returns all tools in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Execute runs a tool by name. Failures are reported in the Result rather
// than as an error so they can be handed back to the model.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) Result {
	startTime := time.Now()

	r.mu.RLock()
	tool := r.tools[name]
	schema := r.schemas[name]
	timeout := r.timeout
	r.mu.RUnlock()

	if tool == nil {
		log.Warn().Str("tool", name).Msg("Tool not found")
		return Result{
			Success: false,
			Error:   fmt.Sprintf("tool not found: %s", name),
		}
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	if err := validateArgs(schema, args); err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Parameter validation failed")
		return Result{
			Success: false,
			Error:   fmt.Sprintf("parameter validation failed: %v", err),
		}
	}

	log.Debug().Str("tool", name).Msg("Executing tool")

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := tool.Handler(timeoutCtx, args)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		duration := time.Since(startTime)
		output, truncated := truncateOutput(result)

		log.Debug().
			Str("tool", name).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")

		return Result{
			Success:   true,
			Output:    output,
			Truncated: truncated,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case err := <-errChan:
		duration := time.Since(startTime)

		log.Warn().
			Str("tool", name).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")

		return Result{
			Success: false,
			Error:   err.Error(),
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case <-timeoutCtx.Done():
		duration := time.Since(startTime)

		log.Warn().
			Str("tool", name).
			Dur("duration", duration).
			Msg("Tool execution timeout")

		return Result{
			Success: false,
			Error:   fmt.Sprintf("tool execution timeout after %v", timeout),
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}
	}
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
	}

	return nil
}

func compileSchema(schemaMap map[string]interface{}) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}

// truncateOutput caps the serialized output handed back to the model. The
// cut never splits a UTF-8 sequence.
func truncateOutput(output interface{}) (interface{}, bool) {
	text, ok := output.(string)
	if !ok {
		data, err := json.Marshal(output)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", output))
		}
		text = string(data)
	}

	if len(text) <= maxOutputSize {
		return output, false
	}

	log.Warn().
		Int("original", len(text)).
		Int("truncated", maxOutputSize).
		Msg("Output truncated")

	cut := maxOutputSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n... [output truncated]", true
}
