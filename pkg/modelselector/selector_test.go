package modelselector

import (
	"testing"
	"time"

	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/stretchr/testify/assert"
)

var light = llm.ModelConfig{Name: "light-model"}
var heavy = llm.ModelConfig{Name: "heavy-model"}
var thinking = llm.ModelConfig{Name: "thinking-model"}

func newSelector(pressure float64) *Selector {
	return New(Config{
		Light:    light,
		Heavy:    heavy,
		Thinking: thinking,
		Pressure: func() float64 { return pressure },
	})
}

func TestDefaultIsLight(t *testing.T) {
	s := newSelector(0)
	got := s.Select("hello", SelectOptions{})
	assert.Equal(t, light.Name, got.Name)
}

func TestComplexKeywordSelectsHeavy(t *testing.T) {
	s := newSelector(0)
	got := s.Select("please analyze this situation", SelectOptions{})
	assert.Equal(t, heavy.Name, got.Name)
}

func TestLongQuerySelectsHeavy(t *testing.T) {
	s := newSelector(0)
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := s.Select(long, SelectOptions{})
	assert.Equal(t, heavy.Name, got.Name)
}

func TestLightKeyword(t *testing.T) {
	s := newSelector(0)
	got := s.Select("give me a quick summary", SelectOptions{})
	assert.Equal(t, light.Name, got.Name)
}

func TestBudgetPressureForcesLight(t *testing.T) {
	s := newSelector(0.96)
	got := s.Select("please analyze and architect a full redesign", SelectOptions{})
	assert.Equal(t, light.Name, got.Name)
}

func TestBudgetPressure80ForcesLightEvenWithThinking(t *testing.T) {
	s := newSelector(0.85)
	got := s.Select("think hard", SelectOptions{Think: true})
	assert.Equal(t, light.Name, got.Name)
}

func TestThinkingSelectsThinkingModel(t *testing.T) {
	s := newSelector(0)
	got := s.Select("ponder this", SelectOptions{Think: true})
	assert.Equal(t, thinking.Name, got.Name)
	assert.Equal(t, 4096, got.ThinkingBudgetTokens)
}

func TestThinkingBudgetCappedUnderModeratePressure(t *testing.T) {
	s := newSelector(0.65)
	got := s.Select("ponder this", SelectOptions{ThinkingLevel: llm.ThinkingHigh})
	assert.Equal(t, 1024, got.ThinkingBudgetTokens)
}

func TestChannelBootIsLight(t *testing.T) {
	s := newSelector(0)
	got := s.Select("analyze and architect a redesign", SelectOptions{
		Signals: &TaskSignals{Channel: "boot"},
	})
	assert.Equal(t, light.Name, got.Name)
}

func TestToolResultCharsUpgradesToHeavy(t *testing.T) {
	s := newSelector(0)
	got := s.Select("ok", SelectOptions{Signals: &TaskSignals{ToolResultChars: 501}})
	assert.Equal(t, heavy.Name, got.Name)
}

func TestModeOverrideWins(t *testing.T) {
	custom := llm.ModelConfig{Name: "custom"}
	s := New(Config{
		Light: light, Heavy: heavy, Thinking: thinking,
		ModeOverrides: map[string]llm.ModelConfig{"voice": custom},
		Pressure:      func() float64 { return 0 },
	})
	got := s.Select("hi", SelectOptions{Mode: "voice"})
	assert.Equal(t, custom.Name, got.Name)
}

func TestQuietHoursOverridesEverything(t *testing.T) {
	quiet := llm.ModelConfig{Name: "quiet-model"}
	fixedNow := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	s := New(Config{
		Light: light, Heavy: heavy, Thinking: thinking,
		QuietHours: &QuietHours{Start: 23, End: 6},
		QuietModel: &quiet,
		Pressure:   func() float64 { return 0 },
		Now:        func() time.Time { return fixedNow },
	})
	got := s.Select("analyze this", SelectOptions{})
	assert.Equal(t, quiet.Name, got.Name)
}
