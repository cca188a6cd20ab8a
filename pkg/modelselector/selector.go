// Package modelselector implements the tier-routing priority ladder that
// picks a light, heavy, or thinking model per call based on budget
// pressure, channel, mode, and query signals.
package modelselector

import (
	"strings"
	"time"

	"github.com/kadirpekel/roshni/pkg/llm"
)

// complexKeywords suggest a query needs a heavier model.
var complexKeywords = []string{
	"analyze", "compare", "explain", "plan", "design", "refactor", "review",
	"debug", "evaluate", "research", "strategy", "architect", "optimize",
	"trade-off", "tradeoff", "pros and cons",
}

// lightKeywords suggest a light model is sufficient.
var lightKeywords = []string{"summary", "summarize", "list", "quick", "simple", "brief"}

// lightModes are query modes that map to light models outright.
var lightModes = map[string]bool{"summary": true, "answer": true, "timeline": true}

const (
	defaultToolResultCharsThreshold = 500
	defaultComplexQueryCharsThreshold = 150
)

// QuietHours is a [start, end) hour-of-day window (0-23), possibly
// wrapping past midnight when start > end.
type QuietHours struct {
	Start int
	End   int
}

func (q QuietHours) contains(hour int) bool {
	if q.Start > q.End {
		return hour >= q.Start || hour < q.End
	}
	return q.Start <= hour && hour < q.End
}

// TaskSignals are the runtime signals a caller supplies so the selector can
// upgrade or downgrade tier based on what has happened so far in the
// current tool loop, without coupling to specific tool names.
type TaskSignals struct {
	Iteration       int
	ToolResultChars int
	NeedsSynthesis  bool
	NeedsEscalation bool
	Channel         string
}

// BudgetPressure is injected by the caller (the agent consults its active
// project/session budget) rather than read from global state, so a
// Selector never reaches for shared mutable state to make its choice.
type BudgetPressure func() float64

// Config configures a Selector. Zero-value thresholds take the package
// defaults.
type Config struct {
	Light, Heavy, Thinking llm.ModelConfig

	QuietHours   *QuietHours
	QuietModel   *llm.ModelConfig
	ModeOverrides map[string]llm.ModelConfig
	HeavyModes    map[string]bool

	ToolResultCharsThreshold   int
	ComplexQueryCharsThreshold int

	Pressure BudgetPressure

	// Now lets tests pin the clock; defaults to time.Now.
	Now func() time.Time
}

// Selector implements a priority ladder over mode overrides, quiet
// hours, heavy-mode names, and per-call signal thresholds to pick which
// model a given call should use.
type Selector struct {
	cfg Config
}

// New returns a Selector from cfg, applying default thresholds.
func New(cfg Config) *Selector {
	if cfg.ToolResultCharsThreshold <= 0 {
		cfg.ToolResultCharsThreshold = defaultToolResultCharsThreshold
	}
	if cfg.ComplexQueryCharsThreshold <= 0 {
		cfg.ComplexQueryCharsThreshold = defaultComplexQueryCharsThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Pressure == nil {
		cfg.Pressure = func() float64 { return 0 }
	}
	return &Selector{cfg: cfg}
}

// SelectOptions bundles select()'s keyword arguments.
type SelectOptions struct {
	Mode          string
	Think         bool
	ThinkingLevel llm.ThinkingLevel
	Signals       *TaskSignals
}

// Select is the single entry point for model selection. Priority ladder:
//
//  0. Quiet hours -> quiet model.
//  0b. Budget pressure >= 95% -> light model.
//  0c. Budget pressure >= 80% -> light model.
//  0d. Mode override -> that model.
//  1. think / thinking_level>OFF / mode=="think" -> thinking model
//     (budget tokens set; capped to LOW under pressure >= 60%).
//  2. Channel in {boot, heartbeat} -> light model.
//  3. Substantial tool results, synthesis, or escalation -> heavy model.
//  4. Mode in heavy_modes -> heavy; mode in light modes -> light.
//  5. Query length > threshold or complex keyword -> heavy.
//  6. Light keyword -> light.
//  7. Default -> light.
func (s *Selector) Select(query string, opts SelectOptions) llm.ModelConfig {
	cfg := s.cfg

	if cfg.QuietHours != nil && cfg.QuietModel != nil {
		hour := cfg.Now().Hour()
		if cfg.QuietHours.contains(hour) {
			return *cfg.QuietModel
		}
	}

	pressure := cfg.Pressure()
	if pressure >= 0.95 {
		return cfg.Light
	}
	if pressure >= 0.80 {
		return cfg.Light
	}

	if opts.Mode != "" {
		if override, ok := cfg.ModeOverrides[opts.Mode]; ok {
			return override
		}
	}

	if opts.Think || opts.ThinkingLevel > llm.ThinkingOff || opts.Mode == "think" {
		level := opts.ThinkingLevel
		if level <= llm.ThinkingOff {
			level = llm.ThinkingMedium
		}
		budget := llm.ThinkingBudgetTokens[level]
		if pressure >= 0.60 {
			if low := llm.ThinkingBudgetTokens[llm.ThinkingLow]; low < budget {
				budget = low
			}
		}
		return cfg.Thinking.WithThinkingBudget(budget)
	}

	if opts.Signals != nil && (opts.Signals.Channel == "boot" || opts.Signals.Channel == "heartbeat") {
		return cfg.Light
	}

	if opts.Signals != nil && (opts.Signals.ToolResultChars > cfg.ToolResultCharsThreshold ||
		opts.Signals.NeedsSynthesis || opts.Signals.NeedsEscalation) {
		return cfg.Heavy
	}

	if opts.Mode != "" {
		if cfg.HeavyModes[opts.Mode] {
			return cfg.Heavy
		}
		if lightModes[strings.ToLower(opts.Mode)] {
			return cfg.Light
		}
		// Unknown modes fall through to query heuristics.
	}

	queryLower := strings.ToLower(query)
	if len(query) > cfg.ComplexQueryCharsThreshold || containsAny(queryLower, complexKeywords) {
		return cfg.Heavy
	}
	if containsAny(queryLower, lightKeywords) {
		return cfg.Light
	}

	return cfg.Light
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
