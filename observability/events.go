package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"wacgbridge/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	supply  *prometheus.GaugeVec
	paused  prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted controller events. It
// implements events.Emitter so it can sit in the node's fan-out.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Controller events segmented by type.",
			}, []string{"type"}),
			supply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "supply_units",
				Help:      "Wrapped supply counters in base units.",
			}, []string{"counter"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "paused",
				Help:      "1 while the controller is paused.",
			}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.supply, eventRegistry.paused)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
	switch e := evt.(type) {
	case events.SupplyChange:
		m.SetSupply(e.SupplySnapshot())
	case events.PauseChanged:
		m.SetPaused(e.Paused)
	}
}

// SetSupply publishes the supply counters. Nil values are skipped.
func (m *eventMetrics) SetSupply(s events.TokenSupply) {
	if m == nil {
		return
	}
	counters := map[string]*big.Int{
		"total":            s.Total,
		"wrapped_in":       s.WrappedIn,
		"unwrapped_out":    s.UnwrappedOut,
		"emergency_minted": s.Emergency,
		"admin_burned":     s.AdminBurned,
	}
	for label, value := range counters {
		if value == nil {
			continue
		}
		f, _ := new(big.Float).SetInt(value).Float64()
		m.supply.WithLabelValues(label).Set(f)
	}
}

// SetPaused publishes the pause flag.
func (m *eventMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}
