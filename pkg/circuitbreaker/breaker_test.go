package circuitbreaker

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAvailableByDefault(t *testing.T) {
	cb := New(Config{})
	assert.True(t, cb.IsAvailable("llm"))
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, OpenDuration: time.Minute})
	cb.Record("llm", true, 0)
	cb.Record("llm", false, 0)
	assert.True(t, cb.IsAvailable("llm"), "only one failure so far")

	cb.Record("llm", false, 0)
	cb.Record("llm", false, 0)
	assert.False(t, cb.IsAvailable("llm"))
}

func TestNonConsecutiveFailuresDoNotTrip(t *testing.T) {
	cb := New(Config{FailureThreshold: 3})
	cb.Record("llm", false, 0)
	cb.Record("llm", true, 0)
	cb.Record("llm", false, 0)
	assert.True(t, cb.IsAvailable("llm"))
}

func TestResetClearsOpenState(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, OpenDuration: time.Hour})
	cb.Record("llm", false, 0)
	cb.Record("llm", false, 0)
	assert.False(t, cb.IsAvailable("llm"))
	cb.Reset("llm")
	assert.True(t, cb.IsAvailable("llm"))
}

func TestAutoResetAfterOpenDuration(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, OpenDuration: time.Millisecond})
	cb.Record("llm", false, 0)
	assert.False(t, cb.IsAvailable("llm"))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, cb.IsAvailable("llm"))
}

func TestHistoryBounded(t *testing.T) {
	cb := New(Config{HistorySize: 5, FailureThreshold: 3})
	for i := 0; i < 50; i++ {
		cb.Record("llm", true, 0)
	}
	st := cb.GetStatus("llm")
	assert.Equal(t, 5, st.RecentOutcomes)
}

func TestMetricsReflectOpenState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	cb := New(Config{FailureThreshold: 1, OpenDuration: time.Hour}).WithMetrics(m)

	cb.Record("llm", false, 0)
	got := testutil.ToFloat64(m.open.WithLabelValues("llm"))
	assert.Equal(t, 1.0, got)
}
