// Package config provides configuration types and utilities for the
// agent orchestration core.
// This file contains all configuration types in a unified structure.
package config

import (
	"fmt"
	"time"

	"github.com/kadirpekel/roshni/pkg/circuitbreaker"
)

// ============================================================================
// LLM PROVIDER CONFIGURATIONS
// ============================================================================

// LLMProviderConfig names one configured credential/endpoint pair a
// recovery profile or the model selector's catalog family can resolve to
// a concrete pkg/llm.Client at wiring time (constructing the client
// itself is an external collaborator's job, out of scope here).
type LLMProviderConfig struct {
	Type        string  `yaml:"type"`        // "ollama", "openai", "anthropic"
	Model       string  `yaml:"model"`       // Model name
	APIKey      string  `yaml:"api_key"`     // API key (for OpenAI/Anthropic)
	Host        string  `yaml:"host"`        // Host for ollama or custom endpoint
	Temperature float64 `yaml:"temperature"` // Temperature setting
	MaxTokens   int     `yaml:"max_tokens"`  // Max tokens
	Timeout     int     `yaml:"timeout"`     // Request timeout in seconds
}

// Validate implements ConfigInterface for LLMProviderConfig
func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Type == "openai" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for OpenAI")
	}
	if c.Type == "anthropic" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for Anthropic")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for LLMProviderConfig
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		c.Model = "llama3.1"
	}
	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com/v1"
		case "anthropic":
			c.Host = "https://api.anthropic.com"
		default:
			c.Host = "http://localhost:11434"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
}

// ============================================================================
// AGENT CONFIGURATION
// ============================================================================

// AgentConfig is the single tool-calling agent's section:
// persona, iteration/history caps, tool surface, and the ordered auth
// profiles its recovery table rotates through before falling back.
type AgentConfig struct {
	Persona            string   `yaml:"persona"`
	MaxIterations      int      `yaml:"max_iterations"`
	MaxHistoryMessages int      `yaml:"max_history_messages"`
	AllowedTools       []string `yaml:"allowed_tools"` // empty = every registered tool

	ToolMaxAttempts      int     `yaml:"tool_max_attempts"`
	ToolRetryBaseSeconds float64 `yaml:"tool_retry_base_seconds"`

	Recovery       RecoveryConfig       `yaml:"recovery"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// HookSlots bounds how many after-chat hooks (circuit-breaker
	// recording, memory extraction) run concurrently per process.
	HookSlots int64 `yaml:"hook_slots"`
}

// CircuitBreakerConfig configures the breaker that MetricsHook feeds with
// one outcome per chat response, tracked per-service (by convention, "llm" for the
// chat/planning model calls this process makes).
type CircuitBreakerConfig struct {
	HistorySize         int     `yaml:"history_size"`
	FailureThreshold    int     `yaml:"failure_threshold"`
	OpenDurationSeconds float64 `yaml:"open_duration_seconds"`
}

// SetDefaults implements ConfigInterface for CircuitBreakerConfig
func (c *CircuitBreakerConfig) SetDefaults() {
	if c.HistorySize == 0 {
		c.HistorySize = circuitbreaker.DefaultHistorySize
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = circuitbreaker.DefaultFailureThreshold
	}
	if c.OpenDurationSeconds == 0 {
		c.OpenDurationSeconds = circuitbreaker.DefaultOpenDuration.Seconds()
	}
}

// RecoveryConfig names the LLM provider entries (by key into Config.LLMs)
// the agent's recovery table rotates through and finally falls back to.
type RecoveryConfig struct {
	Profiles []string `yaml:"profiles"` // ordered LLM provider names to rotate through
	Fallback string   `yaml:"fallback"` // LLM provider name tried once profiles are exhausted
}

// Validate implements ConfigInterface for AgentConfig
func (c *AgentConfig) Validate() error {
	if c.Persona == "" {
		return fmt.Errorf("persona is required")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if len(c.Recovery.Profiles) == 0 {
		return fmt.Errorf("recovery: at least one profile is required")
	}
	return nil
}

// SetDefaults implements ConfigInterface for AgentConfig
func (c *AgentConfig) SetDefaults() {
	if c.Persona == "" {
		c.Persona = "You are a helpful personal assistant."
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 8
	}
	if c.MaxHistoryMessages == 0 {
		c.MaxHistoryMessages = 40
	}
	if c.ToolMaxAttempts == 0 {
		c.ToolMaxAttempts = 3
	}
	if c.ToolRetryBaseSeconds == 0 {
		c.ToolRetryBaseSeconds = 1
	}
	if len(c.Recovery.Profiles) == 0 {
		c.Recovery.Profiles = []string{"default-llm"}
	}
	if c.HookSlots == 0 {
		c.HookSlots = 4
	}
	c.CircuitBreaker.SetDefaults()
}

// ============================================================================
// MODEL SELECTOR CONFIGURATION
// ============================================================================

// ModelSelectorConfig configures the tier-routing priority ladder
// (pkg/modelselector). Family names a pkg/llm/catalog
// entry (e.g. "anthropic", "openai", "ollama") whose light/heavy/thinking
// triple seeds the selector; ModeOverrides/QuietModel reference model
// names within that same family's catalog entry.
type ModelSelectorConfig struct {
	Family string `yaml:"family"`

	QuietHoursStart int    `yaml:"quiet_hours_start"` // -1 disables quiet hours
	QuietHoursEnd   int    `yaml:"quiet_hours_end"`
	QuietModel      string `yaml:"quiet_model"` // model name within Family's catalog entry

	ModeOverrides map[string]string `yaml:"mode_overrides"` // mode -> model name
	HeavyModes    []string          `yaml:"heavy_modes"`

	ToolResultCharsThreshold   int `yaml:"tool_result_chars_threshold"`
	ComplexQueryCharsThreshold int `yaml:"complex_query_chars_threshold"`
}

// Validate implements ConfigInterface for ModelSelectorConfig
func (c *ModelSelectorConfig) Validate() error {
	if c.Family == "" {
		return fmt.Errorf("family is required")
	}
	if c.QuietHoursStart < -1 || c.QuietHoursStart > 23 {
		return fmt.Errorf("quiet_hours_start must be between -1 and 23")
	}
	if c.QuietHoursEnd < -1 || c.QuietHoursEnd > 23 {
		return fmt.Errorf("quiet_hours_end must be between -1 and 23")
	}
	return nil
}

// SetDefaults implements ConfigInterface for ModelSelectorConfig
func (c *ModelSelectorConfig) SetDefaults() {
	if c.Family == "" {
		c.Family = "ollama"
	}
	if c.QuietHoursStart == 0 && c.QuietHoursEnd == 0 {
		c.QuietHoursStart = -1
		c.QuietHoursEnd = -1
	}
	if c.ToolResultCharsThreshold == 0 {
		c.ToolResultCharsThreshold = 500
	}
	if c.ComplexQueryCharsThreshold == 0 {
		c.ComplexQueryCharsThreshold = 150
	}
}

// ============================================================================
// BUDGET CONFIGURATION
// ============================================================================

// BudgetConfig mirrors pkg/budget.Limits, yaml-tagged for declarative
// defaults applied to every new project.
type BudgetConfig struct {
	MaxCostUSD     float64 `yaml:"max_cost_usd"`
	MaxLLMCalls    int     `yaml:"max_llm_calls"`
	MaxWallSeconds float64 `yaml:"max_wall_seconds"`
}

// Validate implements ConfigInterface for BudgetConfig
func (c *BudgetConfig) Validate() error {
	if c.MaxCostUSD < 0 {
		return fmt.Errorf("max_cost_usd must be non-negative")
	}
	if c.MaxLLMCalls < 0 {
		return fmt.Errorf("max_llm_calls must be non-negative")
	}
	if c.MaxWallSeconds < 0 {
		return fmt.Errorf("max_wall_seconds must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for BudgetConfig
func (c *BudgetConfig) SetDefaults() {
	if c.MaxCostUSD == 0 {
		c.MaxCostUSD = 5.0
	}
	if c.MaxLLMCalls == 0 {
		c.MaxLLMCalls = 200
	}
	if c.MaxWallSeconds == 0 {
		c.MaxWallSeconds = 3600
	}
}

// ============================================================================
// GATEWAY CONFIGURATION
// ============================================================================

// GatewayConfig is the Event Gateway's section: the
// bounded priority queue's capacity and how many dead-letter entries to
// retain.
type GatewayConfig struct {
	Capacity        int `yaml:"capacity"`
	DeadLetterLimit int `yaml:"dead_letter_limit"`
}

// Validate implements ConfigInterface for GatewayConfig
func (c *GatewayConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if c.DeadLetterLimit < 0 {
		return fmt.Errorf("dead_letter_limit must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for GatewayConfig
func (c *GatewayConfig) SetDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 100
	}
	if c.DeadLetterLimit == 0 {
		c.DeadLetterLimit = 50
	}
}

// ============================================================================
// PROJECT REGISTRY CONFIGURATION
// ============================================================================

// RegistryConfig is the Project Store's section: where its
// optional external markdown registry lives, and whether to maintain the
// SQLite secondary index and filesystem watcher on top of it.
type RegistryConfig struct {
	Dir          string `yaml:"dir"`            // external registry directory; empty = legacy sequential ids only
	SQLIndexPath string `yaml:"sql_index_path"` // empty disables the secondary index
	Watch        bool   `yaml:"watch"`          // watch Dir for external edits
}

// Validate implements ConfigInterface for RegistryConfig
func (c *RegistryConfig) Validate() error {
	if c.Watch && c.Dir == "" {
		return fmt.Errorf("watch requires dir to be configured")
	}
	return nil
}

// SetDefaults implements ConfigInterface for RegistryConfig
func (c *RegistryConfig) SetDefaults() {
	// No defaults: an empty Dir is the legal, common "no external
	// registry" configuration, not a zero-config gap to fill in.
}

// ============================================================================
// GLOBAL CONFIGURATIONS
// ============================================================================

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // Log level
	Format string `yaml:"format"` // Log format
	Output string `yaml:"output"` // Output destination
}

// Validate implements ConfigInterface for LoggingConfig
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	validFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	validOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validOutputs[c.Output] {
		return fmt.Errorf("invalid output destination: %s", c.Output)
	}
	return nil
}

// SetDefaults implements ConfigInterface for LoggingConfig
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

// PerformanceConfig represents performance configuration
type PerformanceConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"` // Worker pool size (pkg/worker.Pool)
	Timeout        time.Duration `yaml:"timeout"`         // Global timeout
}

// Validate implements ConfigInterface for PerformanceConfig
func (c *PerformanceConfig) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// SetDefaults implements ConfigInterface for PerformanceConfig
func (c *PerformanceConfig) SetDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Minute
	}
}
