package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AGENTCHAT_AI_MODEL.
const EnvPrefix = "AGENTCHAT"

// Loader handles configuration loading
type Loader struct {
	configPath string
	envFile    string
	flags      map[string]*pflag.Flag
}

// NewLoader creates a new config loader. An empty path means
// ~/.agentchat/agentchat.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
		flags:      make(map[string]*pflag.Flag),
	}
}

// WithEnvFile sets the dotenv file read before the environment. An empty
// path disables it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// BindFlag lets a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) *Loader {
	if flag != nil {
		l.flags[key] = flag
	}
	return l
}

// Load reads the dotenv file, the config file and the environment, in
// increasing order of precedence, with bound flags on top.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", l.envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	configPath := l.GetConfigPath()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if filepath.Ext(configPath) == "" {
				v.SetConfigType("json")
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if l.configPath != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv(APIKeyEnv(cfg.AI.Provider))
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = DefaultModel(cfg.AI.Provider)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentchat", "agentchat.json")
}

// setDefaults registers every key so environment variables can override
// keys the config file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", d.AI.APIKey)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.temperature", d.AI.Temperature)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.max_tool_rounds", d.AI.MaxToolRounds)
	v.SetDefault("ai.streaming", d.AI.Streaming)

	v.SetDefault("agent.name", d.Agent.Name)
	v.SetDefault("agent.instruction", d.Agent.Instruction)

	v.SetDefault("session.app_name", d.Session.AppName)
	v.SetDefault("session.user_id", d.Session.UserID)
	v.SetDefault("session.session_id", d.Session.SessionID)

	v.SetDefault("mcp.enabled", d.MCP.Enabled)
	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("mcp.command", d.MCP.Command)
	v.SetDefault("mcp.args", d.MCP.Args)
	v.SetDefault("mcp.env", d.MCP.Env)
	v.SetDefault("mcp.url", d.MCP.URL)
	v.SetDefault("mcp.timeout", d.MCP.Timeout)

	v.SetDefault("ui.fancy", d.UI.Fancy)
	v.SetDefault("ui.typing_delay", d.UI.TypingDelay)
	v.SetDefault("ui.history_file", d.UI.HistoryFile)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
