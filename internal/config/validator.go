package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrCredentialMissing is returned when the provider credential is unset
	// or still the placeholder.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CredentialError names the environment variable that must be set.
type CredentialError struct {
	EnvVar string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("Please provide a valid %s in the .env file", e.EnvVar)
}

func (e *CredentialError) Unwrap() error {
	return ErrCredentialMissing
}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCredential rejects an empty or placeholder API key.
func (v *Validator) ValidateCredential(provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" || key == PlaceholderAPIKey {
		return &CredentialError{EnvVar: APIKeyEnv(provider)}
	}
	return nil
}

// ValidateProvider validates a provider name
func (v *Validator) ValidateProvider(provider string) error {
	validProviders := []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value. Zero means provider default.
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("max tokens cannot be negative, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateMCP validates the tool server connection settings
func (v *Validator) ValidateMCP(cfg MCPConfig) error {
	if !cfg.Enabled {
		return nil
	}

	switch cfg.Transport {
	case "", "stdio":
		if strings.TrimSpace(cfg.Command) == "" {
			return fmt.Errorf("mcp.command is required for the stdio transport")
		}
	case "http":
		u, err := url.Parse(cfg.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("mcp.url must be an absolute URL for the http transport")
		}
	default:
		return fmt.Errorf("invalid mcp transport: %s (must be one of: stdio, http)", cfg.Transport)
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("mcp.timeout must be >= 0")
	}
	return nil
}

// ValidateSession validates the session identifiers
func (v *Validator) ValidateSession(cfg SessionConfig) error {
	fields := []struct {
		name  string
		value string
	}{
		{"session.app_name", cfg.AppName},
		{"session.user_id", cfg.UserID},
		{"session.session_id", cfg.SessionID},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
		if strings.Contains(f.value, "/") {
			return fmt.Errorf("%s cannot contain '/'", f.name)
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation and returns every problem
// found. The credential is not checked here.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := v.ValidateProvider(cfg.AI.Provider); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateModel(cfg.AI.Model); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateTemperature(cfg.AI.Temperature); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateMaxTokens(cfg.AI.MaxTokens); err != nil {
		errs = append(errs, err)
	}
	if cfg.AI.MaxToolRounds < 0 {
		errs = append(errs, fmt.Errorf("ai.max_tool_rounds must be >= 0"))
	}

	if strings.TrimSpace(cfg.Agent.Name) == "" {
		errs = append(errs, fmt.Errorf("agent.name is required"))
	} else if cfg.Agent.Name == "user" {
		errs = append(errs, fmt.Errorf("agent.name %q is reserved", cfg.Agent.Name))
	}

	if err := v.ValidateSession(cfg.Session); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateMCP(cfg.MCP); err != nil {
		errs = append(errs, err)
	}
	if cfg.UI.TypingDelay < 0 {
		errs = append(errs, fmt.Errorf("ui.typing_delay must be >= 0"))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// Validate checks the credential first, then everything else. Credential
// failures are returned as *CredentialError, the rest wrap ErrInvalidConfig.
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if err := v.ValidateCredential(cfg.AI.Provider, cfg.AI.APIKey); err != nil {
		return err
	}

	errs := v.ValidateConfig(cfg)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
