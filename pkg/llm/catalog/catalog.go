// Package catalog holds the known model families (light/heavy/thinking
// triples per provider) and resolves alternate model names for the agent's
// NotFoundError recovery path.
package catalog

import (
	"strings"

	"github.com/kadirpekel/roshni/pkg/llm"
)

// Catalog is keyed by provider family name; each family lists its models in
// [light, heavy, thinking] order, matching the convention the model
// selector's defaults rely on.
var Catalog = map[string][]llm.ModelConfig{
	"anthropic": {
		{Name: "claude-haiku-4", DisplayName: "Claude Haiku 4", Provider: "anthropic", MaxTokens: 8192, CostTier: "low"},
		{Name: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", Provider: "anthropic", IsHeavy: true, MaxTokens: 8192, CostTier: "medium"},
		{Name: "claude-opus-4-20250514", DisplayName: "Claude Opus 4", Provider: "anthropic", IsHeavy: true, IsThinking: true, MaxTokens: 8192, CostTier: "high"},
	},
	"openai": {
		{Name: "gpt-4o-mini", DisplayName: "GPT-4o Mini", Provider: "openai", MaxTokens: 16384, CostTier: "medium"},
		{Name: "gpt-4o", DisplayName: "GPT-4o", Provider: "openai", IsHeavy: true, MaxTokens: 16384, CostTier: "high"},
		{Name: "o1", DisplayName: "OpenAI o1", Provider: "openai", IsHeavy: true, IsThinking: true, MaxTokens: 16384, CostTier: "high"},
	},
	"ollama": {
		{Name: "llama3.1", DisplayName: "Llama 3.1 (Local)", Provider: "ollama", MaxTokens: 8192, CostTier: "free"},
		{Name: "llama3.1:70b", DisplayName: "Llama 3.1 70B (Local)", Provider: "ollama", IsHeavy: true, MaxTokens: 8192, CostTier: "free"},
		{Name: "deepseek-r1", DisplayName: "DeepSeek R1 (Local)", Provider: "ollama", IsHeavy: true, IsThinking: true, MaxTokens: 8192, CostTier: "free"},
	},
}

// DefaultFamily resolves a family's [light, heavy, thinking] triple. Returns
// false if the family is unknown.
func DefaultFamily(provider string) (light, heavy, thinking llm.ModelConfig, ok bool) {
	models, exists := Catalog[provider]
	if !exists || len(models) < 3 {
		return llm.ModelConfig{}, llm.ModelConfig{}, llm.ModelConfig{}, false
	}
	return models[0], models[1], models[2], true
}

// Families lists the provider keys with a complete light/heavy/thinking
// triple.
func Families() []string {
	names := make([]string, 0, len(Catalog))
	for k, v := range Catalog {
		if len(v) >= 3 {
			names = append(names, k)
		}
	}
	return names
}

// Find returns the catalog entry for provider+name, if any.
func Find(provider, name string) (llm.ModelConfig, bool) {
	for _, m := range Catalog[provider] {
		if m.Name == name {
			return m, true
		}
	}
	return llm.ModelConfig{}, false
}

// ResolveAlternate finds a same-provider model whose name loosely matches
// want (substring, case-insensitive) when the exact name was rejected with
// NotFoundError — the alternate-model-name recovery step in the agent's
// recovery table. When no name matches, the provider's first catalog
// entry is returned with ok=true; ok is false only for a provider with no
// catalog entries.
func ResolveAlternate(provider, want string) (llm.ModelConfig, bool) {
	want = strings.ToLower(want)
	for _, m := range Catalog[provider] {
		if strings.Contains(strings.ToLower(m.Name), want) || strings.Contains(want, strings.ToLower(m.Name)) {
			return m, true
		}
	}
	if len(Catalog[provider]) > 0 {
		return Catalog[provider][0], true
	}
	return llm.ModelConfig{}, false
}
