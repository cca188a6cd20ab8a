package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the pool's in-flight and queued worker counts as
// Prometheus gauges, grounded on pkg/circuitbreaker/metrics.go's
// GaugeVec-per-registry shape. Wiring this is optional — a Pool works
// standalone without it.
type Metrics struct {
	active prometheus.Gauge
	queued prometheus.Gauge
}

// NewMetrics registers the pool's gauges against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roshni",
			Subsystem: "worker",
			Name:      "active",
			Help:      "Number of worker tasks currently executing.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roshni",
			Subsystem: "worker",
			Name:      "queued",
			Help:      "Number of worker tasks waiting for a free pool slot.",
		}),
	}
	reg.MustRegister(m.active, m.queued)
	return m
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *Metrics) setQueued(n int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(n))
}
