package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingFractionBounds(t *testing.T) {
	b := New(Limits{MaxCostUSD: 1.0, MaxLLMCalls: 10})
	for i := 0; i < 15; i++ {
		b.RecordCall(0.1)
		f := b.RemainingFraction()
		require.GreaterOrEqual(t, f, 0.0)
		require.LessOrEqual(t, f, 1.0)
	}
}

func TestRemainingFractionMonotonic(t *testing.T) {
	b := New(Limits{MaxCostUSD: 10.0})
	prev := b.RemainingFraction()
	for i := 0; i < 5; i++ {
		b.RecordCall(1.0)
		cur := b.RemainingFraction()
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestExhausted(t *testing.T) {
	b := New(Limits{MaxCostUSD: 0.01, MaxLLMCalls: 1})
	assert.False(t, b.Exhausted())
	b.RecordCall(0)
	assert.True(t, b.Exhausted())
}

func TestRecordCallConcurrent(t *testing.T) {
	b := New(Limits{MaxLLMCalls: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordCall(0.01)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, b.LLMCallsUsed)
}

func TestNoCapsNeverExhausted(t *testing.T) {
	b := New(Limits{})
	b.RecordCall(1000)
	assert.False(t, b.Exhausted())
	assert.Equal(t, 1.0, b.RemainingFraction())
}
