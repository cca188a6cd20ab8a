// Package config provides configuration types and utilities for the
// agent orchestration core.
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
	"sort"

	"github.com/kadirpekel/roshni/pkg/scheduler"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config represents the complete configuration for one roshni process —
// the single entry point every section of the orchestration core reads
// its settings from.
type Config struct {
	// Version and metadata
	Version     string `yaml:"version,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Global settings
	Global GlobalSettings `yaml:"global,omitempty"`

	// DataDir roots the durable, process-owned state pkg/workflow.Backend
	// writes (one subdirectory per project: events.ndjson, checkpoint.json,
	// plan.json). This is distinct from Registry.Dir, the
	// optional human-editable external registry.
	DataDir string `yaml:"data_dir,omitempty"`

	// Named LLM provider credentials/endpoints (the agent's recovery
	// table and the model selector's catalog family both resolve
	// concrete clients through these names at wiring time).
	LLMs map[string]LLMProviderConfig `yaml:"llms,omitempty"`

	Agent         AgentConfig         `yaml:"agent"`
	ModelSelector ModelSelectorConfig `yaml:"model_selector"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Scheduler     scheduler.Config    `yaml:"scheduler"`
	Budget        BudgetConfig        `yaml:"budget"`
	Registry      RegistryConfig      `yaml:"registry"`
}

// Validate implements ConfigInterface for Config
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global settings validation failed: %w", err)
	}

	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("LLM '%s' validation failed: %w", name, err)
		}
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := c.ModelSelector.Validate(); err != nil {
		return fmt.Errorf("model selector validation failed: %w", err)
	}
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway validation failed: %w", err)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget validation failed: %w", err)
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}

	for _, name := range c.Agent.Recovery.Profiles {
		if _, ok := c.LLMs[name]; !ok {
			return fmt.Errorf("agent recovery: profile %q is not a configured llm", name)
		}
	}
	if fb := c.Agent.Recovery.Fallback; fb != "" {
		if _, ok := c.LLMs[fb]; !ok {
			return fmt.Errorf("agent recovery: fallback %q is not a configured llm", fb)
		}
	}

	return nil
}

// SetDefaults implements ConfigInterface for Config
func (c *Config) SetDefaults() {
	c.Global.SetDefaults()

	if c.DataDir == "" {
		c.DataDir = ".roshni"
	}

	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMProviderConfig)
	}
	// Zero-config: create a default local provider if none exist.
	if len(c.LLMs) == 0 {
		c.LLMs["default-llm"] = LLMProviderConfig{}
	}
	for name := range c.LLMs {
		llm := c.LLMs[name]
		llm.SetDefaults()
		c.LLMs[name] = llm
	}

	// With no recovery profiles configured, the agent uses the first
	// configured llm by name.
	if len(c.Agent.Recovery.Profiles) == 0 {
		names := make([]string, 0, len(c.LLMs))
		for name := range c.LLMs {
			names = append(names, name)
		}
		sort.Strings(names)
		c.Agent.Recovery.Profiles = names[:1]
	}

	c.Agent.SetDefaults()
	c.ModelSelector.SetDefaults()
	c.Gateway.SetDefaults()
	c.Budget.SetDefaults()
	c.Registry.SetDefaults()
}

// ============================================================================
// GLOBAL SETTINGS
// ============================================================================

// GlobalSettings contains global configuration settings
type GlobalSettings struct {
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Performance PerformanceConfig `yaml:"performance,omitempty"`
}

// Validate implements ConfigInterface for GlobalSettings
func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	if err := c.Performance.Validate(); err != nil {
		return fmt.Errorf("performance config validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface for GlobalSettings
func (c *GlobalSettings) SetDefaults() {
	c.Logging.SetDefaults()
	c.Performance.SetDefaults()
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// LoadConfig loads the complete configuration from a YAML file, expanding
// ${VAR}/${VAR:-default}/$VAR references against the process environment
// before parsing.
func LoadConfig(filePath string) (*Config, error) {
	var cfg Config
	if err := loadConfig(filePath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFromString loads configuration from a YAML string, applying
// the same environment-variable expansion as LoadConfig.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	var cfg Config
	if err := loadConfigFromString(yamlContent, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from string: %w", err)
	}
	return &cfg, nil
}
