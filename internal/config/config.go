package config

import (
	"encoding/json"
	"time"
)

// Supported model providers
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// PlaceholderAPIKey is the value shipped in the sample .env file.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// Config represents the agentchat configuration
type Config struct {
	// AI provider and model
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Agent identity and instruction
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Session identifiers
	Session SessionConfig `json:"session" mapstructure:"session"`

	// External tool server
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// Terminal presentation
	UI UIConfig `json:"ui" mapstructure:"ui"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// AIConfig holds model provider configuration
type AIConfig struct {
	Provider      string  `json:"provider" mapstructure:"provider"` // gemini, openai, anthropic
	Model         string  `json:"model" mapstructure:"model"`
	APIKey        string  `json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL       string  `json:"base_url,omitempty" mapstructure:"base_url"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxToolRounds int     `json:"max_tool_rounds" mapstructure:"max_tool_rounds"`
	Streaming     bool    `json:"streaming" mapstructure:"streaming"`
}

// AgentConfig names the agent and its system instruction
type AgentConfig struct {
	Name        string `json:"name" mapstructure:"name"`
	Instruction string `json:"instruction" mapstructure:"instruction"`
}

// SessionConfig holds the identifiers of the single conversation session
type SessionConfig struct {
	AppName   string `json:"app_name" mapstructure:"app_name"`
	UserID    string `json:"user_id" mapstructure:"user_id"`
	SessionID string `json:"session_id" mapstructure:"session_id"`
}

// MCPConfig describes the MCP tool server connection
type MCPConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Transport string        `json:"transport" mapstructure:"transport"` // stdio, http
	Command   string        `json:"command" mapstructure:"command"`
	Args      []string      `json:"args" mapstructure:"args"`
	Env       []string      `json:"env,omitempty" mapstructure:"env"`
	URL       string        `json:"url,omitempty" mapstructure:"url"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
}

// UIConfig holds terminal presentation settings
type UIConfig struct {
	Fancy       bool          `json:"fancy" mapstructure:"fancy"`
	TypingDelay time.Duration `json:"typing_delay" mapstructure:"typing_delay"`
	HistoryFile string        `json:"history_file,omitempty" mapstructure:"history_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file,omitempty" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider:      ProviderGemini,
			Temperature:   0,
			MaxTokens:     0,
			MaxToolRounds: 10,
			Streaming:     true,
		},
		Agent: AgentConfig{
			Name:        "GeminiAgent",
			Instruction: "You are a helpful assistant. Use tools when necessary to fulfill user requests.",
		},
		Session: SessionConfig{
			AppName:   "GeminiCLI",
			UserID:    "user-1",
			SessionID: "session-1",
		},
		MCP: MCPConfig{
			Enabled:   true,
			Transport: "stdio",
			Command:   "npx",
			Args:      []string{"-y", "@modelcontextprotocol/server-everything"},
			Timeout:   30 * time.Second,
		},
		UI: UIConfig{
			Fancy:       false,
			TypingDelay: 8 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	default:
		return "gemini-2.5-flash"
	}
}

// APIKeyEnv returns the environment variable holding the provider's credential.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// String returns a JSON representation of the config with the API key masked
func (c *Config) String() string {
	masked := *c
	if masked.AI.APIKey != "" {
		masked.AI.APIKey = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}
