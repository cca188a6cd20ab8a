package llm

// ThinkingLevel grades how much of a reasoning budget a thinking-capable
// model should spend before answering.
type ThinkingLevel int

const (
	ThinkingOff ThinkingLevel = iota
	ThinkingLow
	ThinkingMedium
	ThinkingHigh
)

// ThinkingBudgetTokens maps a ThinkingLevel to a token budget for providers
// that support extended thinking.
var ThinkingBudgetTokens = map[ThinkingLevel]int{
	ThinkingOff:    0,
	ThinkingLow:    1024,
	ThinkingMedium: 4096,
	ThinkingHigh:   16384,
}

// ModelConfig describes one selectable model: its wire name, a short
// display name, the provider family it belongs to, and the tier flags the
// Model Selector reasons about.
type ModelConfig struct {
	Name                 string `json:"name"`
	DisplayName          string `json:"display_name"`
	Provider             string `json:"provider"`
	IsHeavy              bool   `json:"is_heavy"`
	IsThinking           bool   `json:"is_thinking"`
	MaxTokens            int    `json:"max_tokens,omitempty"`
	CostTier             string `json:"cost_tier,omitempty"`
	ThinkingBudgetTokens int    `json:"thinking_budget_tokens,omitempty"`
}

// WithThinkingBudget returns a copy of m with ThinkingBudgetTokens set,
// used by the model selector so that the shared catalog entries are never
// mutated in place.
func (m ModelConfig) WithThinkingBudget(tokens int) ModelConfig {
	m.ThinkingBudgetTokens = tokens
	return m
}
