package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes per-service breaker state as Prometheus gauges, grounded
// on pkg/observability/metrics.go's CounterVec/GaugeVec-per-registry shape.
// Wiring this is optional — a CircuitBreaker works standalone without it.
type Metrics struct {
	open *prometheus.GaugeVec
}

// NewMetrics registers the breaker's gauges against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		open: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "roshni",
			Subsystem: "circuitbreaker",
			Name:      "open",
			Help:      "1 if the circuit for this service is currently open, 0 otherwise.",
		}, []string{"service"}),
	}
	reg.MustRegister(m.open)
	return m
}

// Observe refreshes the gauge for service from the breaker's current
// state. Call after every Record, or on a periodic sweep.
func (m *Metrics) Observe(c *CircuitBreaker, service string) {
	if m == nil {
		return
	}
	value := 0.0
	if !c.IsAvailable(service) {
		value = 1.0
	}
	m.set(service, value)
}

func (m *Metrics) set(service string, value float64) {
	m.open.WithLabelValues(service).Set(value)
}
