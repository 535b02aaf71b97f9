package config

import (
	"fmt"
)

// Config represents the main VMPilot configuration
type Config struct {
	// Providers
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Agent loop
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Prompt caching
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Chat persistence
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Gateway streaming surface
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProvidersConfig holds API credentials per LLM provider
type ProvidersConfig struct {
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
}

// ProviderConfig holds credentials for one provider
type ProviderConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// AgentConfig configures the iterative agent loop
type AgentConfig struct {
	Model          string  `json:"model" mapstructure:"model"`
	Provider       string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxIterations  int     `json:"max_iterations" mapstructure:"max_iterations"`
	RequestTimeout int     `json:"request_timeout" mapstructure:"request_timeout"` // seconds
	SystemPrompt   string  `json:"system_prompt" mapstructure:"system_prompt"`
}

// CacheConfig configures prompt cache breakpoint injection
type CacheConfig struct {
	Breakpoints int `json:"breakpoints" mapstructure:"breakpoints"`
}

// ChatConfig configures conversation persistence
type ChatConfig struct {
	Backend       string `json:"backend" mapstructure:"backend"` // memory, sqlite
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
	CleanupSpec   string `json:"cleanup_spec" mapstructure:"cleanup_spec"` // cron expression
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:          "claude-3-5-sonnet-20241022",
			Provider:       "anthropic",
			Temperature:    0.7,
			MaxTokens:      4096,
			MaxIterations:  25,
			RequestTimeout: 30,
		},
		Cache: CacheConfig{
			Breakpoints: 3,
		},
		Chat: ChatConfig{
			Backend:       "sqlite",
			RetentionDays: 30,
			CleanupSpec:   "@daily",
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9741,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    28,
			Compress:  true,
			Redaction: true,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Agent.Model == "" {
		return fmt.Errorf("agent model cannot be empty")
	}
	switch c.Agent.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported provider: %s", c.Agent.Provider)
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if c.Agent.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive")
	}
	if c.Cache.Breakpoints < 0 {
		return fmt.Errorf("cache breakpoints cannot be negative")
	}
	switch c.Chat.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported chat backend: %s", c.Chat.Backend)
	}
	if c.Gateway.Enabled && (c.Gateway.Port <= 0 || c.Gateway.Port > 65535) {
		return fmt.Errorf("gateway port must be between 1 and 65535")
	}
	return nil
}

// APIKey returns the configured API key for the active provider
func (c *Config) APIKey() string {
	switch c.Agent.Provider {
	case "anthropic":
		return c.Providers.Anthropic.APIKey
	case "openai":
		return c.Providers.OpenAI.APIKey
	}
	return ""
}
