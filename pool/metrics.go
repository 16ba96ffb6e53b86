package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's prometheus collectors. Construct once per
// process and share across pools; binaries register it explicitly, the
// engine never touches a global registry.
type Metrics struct {
	SwapsTotal        prometheus.Counter
	TicksCrossedTotal prometheus.Counter
	EventsTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		SwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Name:      "swaps_total",
			Help:      "Number of swaps executed across all pools.",
		}),
		TicksCrossedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clmm",
			Name:      "ticks_crossed_total",
			Help:      "Number of tick crossings during swaps.",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clmm",
			Name:      "events_total",
			Help:      "Engine events emitted, by event name.",
		}, []string{"event"}),
	}
}

// Register attaches every collector to the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.SwapsTotal, m.TicksCrossedTotal, m.EventsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
