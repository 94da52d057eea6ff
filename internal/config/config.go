// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the assistant configuration.
type Config struct {
	Agent     AgentConfig        `toml:"agent"`
	Executor  ExecutorConfig     `toml:"executor"` // Remote executor connection
	LLM       LLMConfig          `toml:"llm"`      // Default LLM settings
	Profiles  map[string]Profile `toml:"profiles"` // Capability profiles (planner, judge, workers)
	Approval  ApprovalConfig     `toml:"approval"` // Confirmation gate settings
	Watchdog  WatchdogConfig     `toml:"watchdog"` // Reconciliation loop settings
	Notify    NotifyConfig       `toml:"notify"`   // Watchdog report delivery
	Roles     RolesConfig        `toml:"roles"`    // Worker role overrides
	Telemetry TelemetryConfig    `toml:"telemetry"`
	Storage   StorageConfig      `toml:"storage"`  // Persistent storage settings
	Timeouts  map[string]int     `toml:"timeouts"` // Per-action timeout overrides in seconds
}

// AgentConfig contains assistant identification settings.
type AgentConfig struct {
	ID string `toml:"id"`
}

// ExecutorConfig contains remote executor connection settings.
type ExecutorConfig struct {
	URL            string `toml:"url"`             // WebSocket endpoint of the executor
	TokenEnv       string `toml:"token_env"`       // Env var holding the shared secret
	ConnectTimeout int    `toml:"connect_timeout"` // Seconds to wait for the acknowledged open (default 10)
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
}

// Profile represents a capability profile mapping to a specific LLM configuration.
type Profile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint
}

// ApprovalConfig contains confirmation gate settings.
type ApprovalConfig struct {
	Expiry int `toml:"expiry"` // Seconds a pending confirmation stays answerable (default 300)
}

// WatchdogConfig contains reconciliation loop settings.
type WatchdogConfig struct {
	Interval       int `toml:"interval"`        // Seconds between passes (default 600)
	StuckThreshold int `toml:"stuck_threshold"` // Seconds a sub-task may stay running (default 900)
}

// NotifyConfig contains watchdog report delivery settings.
type NotifyConfig struct {
	NATSURL string `toml:"nats_url"` // Empty = log-backed notifier
	Subject string `toml:"subject"`
}

// RolesConfig contains worker role override settings.
type RolesConfig struct {
	Path  string `toml:"path"`  // Directory of role override YAML files
	Watch bool   `toml:"watch"` // Reload overrides when files change
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path string `toml:"path"` // Base directory for the audit log
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Executor: ExecutorConfig{
			ConnectTimeout: 10,
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Approval: ApprovalConfig{
			Expiry: 300, // 5 minutes
		},
		Watchdog: WatchdogConfig{
			Interval:       600, // 10 minutes between passes
			StuckThreshold: 900, // 15 minutes before a running sub-task is stuck
		},
		Notify: NotifyConfig{
			Subject: "aide.watchdog",
		},
		Storage: StorageConfig{
			Path: "~/.local/aide",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from aide.toml in the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	return LoadFile(filepath.Join(cwd, "aide.toml"))
}

// Validate reports configuration problems a run would trip over.
func (c *Config) Validate() error {
	if c.Executor.URL == "" {
		return fmt.Errorf("executor.url is required")
	}
	if c.Executor.ConnectTimeout <= 0 {
		return fmt.Errorf("executor.connect_timeout must be positive")
	}
	if c.Approval.Expiry <= 0 {
		return fmt.Errorf("approval.expiry must be positive")
	}
	if c.Watchdog.Interval <= 0 {
		return fmt.Errorf("watchdog.interval must be positive")
	}
	if c.Watchdog.StuckThreshold <= 0 {
		return fmt.Errorf("watchdog.stuck_threshold must be positive")
	}
	for action, secs := range c.Timeouts {
		if secs <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", action)
		}
	}
	return nil
}

// ExecutorToken returns the shared secret from the configured environment variable.
func (c *Config) ExecutorToken() string {
	if c.Executor.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Executor.TokenEnv)
}

// ConnectTimeout returns the executor connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Executor.ConnectTimeout) * time.Second
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// GetProfile returns the LLM config for a capability profile.
// Falls back to default LLM config if profile not found.
func (c *Config) GetProfile(name string) LLMConfig {
	if name == "" {
		return c.LLM
	}
	if profile, ok := c.Profiles[name]; ok {
		// Fill in defaults from main LLM config
		result := LLMConfig{
			Provider:  profile.Provider,
			Model:     profile.Model,
			APIKeyEnv: profile.APIKeyEnv,
			MaxTokens: profile.MaxTokens,
			BaseURL:   profile.BaseURL,
		}
		if result.Provider == "" {
			result.Provider = c.LLM.Provider
		}
		if result.APIKeyEnv == "" {
			result.APIKeyEnv = c.LLM.APIKeyEnv
		}
		if result.MaxTokens == 0 {
			result.MaxTokens = c.LLM.MaxTokens
		}
		return result
	}
	return c.LLM
}

// GetProfileAPIKey returns the API key for a specific profile.
func (c *Config) GetProfileAPIKey(profileName string) string {
	llmCfg := c.GetProfile(profileName)
	envVar := llmCfg.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(llmCfg.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
