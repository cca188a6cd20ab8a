package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsZeroConfig(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.LLMs, "default-llm")
	assert.Equal(t, "info", cfg.Global.Logging.Level)
	assert.Equal(t, "ollama", cfg.ModelSelector.Family)
	assert.Equal(t, 100, cfg.Gateway.Capacity)
	assert.Equal(t, 200, cfg.Budget.MaxLLMCalls)
	assert.Equal(t, []string{"default-llm"}, cfg.Agent.Recovery.Profiles)
}

func TestValidateRejectsUnknownRecoveryProfile(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Agent.Recovery.Profiles = []string{"ghost"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidateRejectsWatchWithoutRegistryDir(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Registry.Watch = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch requires dir")
}

func TestLoadConfigFromStringExpandsEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("ROSHNI_TEST_API_KEY", "sk-test-123"))
	defer os.Unsetenv("ROSHNI_TEST_API_KEY")

	yamlContent := `
llms:
  primary:
    type: openai
    model: gpt-4o-mini
    api_key: ${ROSHNI_TEST_API_KEY}
    host: https://api.openai.com/v1
agent:
  persona: "You are roshni."
  recovery:
    profiles: ["primary"]
`
	cfg, err := LoadConfigFromString(yamlContent)
	require.NoError(t, err)
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk-test-123", cfg.LLMs["primary"].APIKey)
	assert.Equal(t, "You are roshni.", cfg.Agent.Persona)
}

func TestLoadConfigFromStringDefaultFallback(t *testing.T) {
	yamlContent := `
llms:
  primary:
    type: ollama
    model: llama3.1
    host: http://localhost:11434
`
	cfg, err := LoadConfigFromString(yamlContent)
	require.NoError(t, err)
	cfg.SetDefaults()

	// No ${VAR} present — expandEnvVars should leave the content untouched.
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "llama3.1", cfg.LLMs["primary"].Model)
}
