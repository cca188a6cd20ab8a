// Package budget tracks per-project resource consumption against caps on
// cost, LLM call count, and wall-clock time.
package budget

import (
	"sync"
	"time"
)

// Limits are the caps a Budget enforces. A zero cap means "no limit" for
// that dimension; callers that want a hard zero-call budget should set
// MaxLLMCalls to a small positive number instead of relying on the zero
// value.
type Limits struct {
	MaxCostUSD    float64 `json:"max_cost_usd"`
	MaxLLMCalls   int     `json:"max_llm_calls"`
	MaxWallSeconds float64 `json:"max_wall_seconds"`
}

// Budget is a project's resource envelope. The zero value is not usable;
// construct with New. All mutation goes through RecordCall, which is the
// sole thread-safe mutation path — callers must never set the used fields
// directly.
type Budget struct {
	mu sync.Mutex

	Limits Limits `json:"limits"`

	CostUsedUSD    float64   `json:"cost_used_usd"`
	LLMCallsUsed   int       `json:"llm_calls_used"`
	WallSeconds    float64   `json:"wall_seconds_used"`
	startedAt      time.Time
}

// New returns a Budget with the given limits and a wall-clock start time of
// now.
func New(limits Limits) *Budget {
	return &Budget{
		Limits:    limits,
		startedAt: time.Now(),
	}
}

// RecordCall is the sole mutation path: it accounts one LLM call costing
// cost (may be zero, e.g. for worker-pool calls whose cost is tracked via a
// separate global token budget) and refreshes the wall-time dimension from
// the budget's start time. Safe for concurrent use by multiple workers in a
// single phase.
func (b *Budget) RecordCall(cost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.CostUsedUSD += cost
	b.LLMCallsUsed++
	b.WallSeconds = time.Since(b.startedAt).Seconds()
}

// UpdateWallTime refreshes the wall-time dimension from an externally
// tracked start time, without accounting a call. Used when resuming a
// project whose Budget predates this process.
func (b *Budget) UpdateWallTime(startedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.WallSeconds = time.Since(startedAt).Seconds()
}

// Exhausted reports whether any dimension has reached or passed its cap. A
// cap of zero is treated as "no cap" for that dimension.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhaustedLocked()
}

func (b *Budget) exhaustedLocked() bool {
	if b.Limits.MaxCostUSD > 0 && b.CostUsedUSD >= b.Limits.MaxCostUSD {
		return true
	}
	if b.Limits.MaxLLMCalls > 0 && b.LLMCallsUsed >= b.Limits.MaxLLMCalls {
		return true
	}
	if b.Limits.MaxWallSeconds > 0 && b.WallSeconds >= b.Limits.MaxWallSeconds {
		return true
	}
	return false
}

// RemainingFraction returns the minimum remaining ratio across dimensions
// that have a cap, in [0, 1]. Dimensions with no cap (zero) do not
// constrain the result. If no dimension has a cap, returns 1.
func (b *Budget) RemainingFraction() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	min := 1.0
	have := false

	if b.Limits.MaxCostUSD > 0 {
		have = true
		r := clamp01(1 - b.CostUsedUSD/b.Limits.MaxCostUSD)
		if r < min {
			min = r
		}
	}
	if b.Limits.MaxLLMCalls > 0 {
		have = true
		r := clamp01(1 - float64(b.LLMCallsUsed)/float64(b.Limits.MaxLLMCalls))
		if r < min {
			min = r
		}
	}
	if b.Limits.MaxWallSeconds > 0 {
		have = true
		r := clamp01(1 - b.WallSeconds/b.Limits.MaxWallSeconds)
		if r < min {
			min = r
		}
	}
	if !have {
		return 1.0
	}
	return min
}

// Pressure is 1 - RemainingFraction(), the convention used throughout the
// model selector and orchestrator budget-warning thresholds.
func (b *Budget) Pressure() float64 {
	return 1 - b.RemainingFraction()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Snapshot is a point-in-time, lock-free copy suitable for JSON
// serialization in a checkpoint.
type Snapshot struct {
	Limits       Limits  `json:"limits"`
	CostUsedUSD  float64 `json:"cost_used_usd"`
	LLMCallsUsed int     `json:"llm_calls_used"`
	WallSeconds  float64 `json:"wall_seconds_used"`
}

// Snapshot returns a copy of the current state for serialization.
func (b *Budget) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Limits:       b.Limits,
		CostUsedUSD:  b.CostUsedUSD,
		LLMCallsUsed: b.LLMCallsUsed,
		WallSeconds:  b.WallSeconds,
	}
}

// FromSnapshot rebuilds a Budget from a prior Snapshot, e.g. during
// checkpoint resume.
func FromSnapshot(s Snapshot) *Budget {
	return &Budget{
		Limits:       s.Limits,
		CostUsedUSD:  s.CostUsedUSD,
		LLMCallsUsed: s.LLMCallsUsed,
		WallSeconds:  s.WallSeconds,
		startedAt:    time.Now().Add(-time.Duration(s.WallSeconds * float64(time.Second))),
	}
}
