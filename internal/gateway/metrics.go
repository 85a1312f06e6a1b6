package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts protocol traffic. Registration happens in bootstrap so
// tests can run without a registry.
type Metrics struct {
	eventsTotal  *prometheus.CounterVec
	joinFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokering_ws_events_total",
			Help: "Total client events received, by event name",
		}, []string{"event"}),
		joinFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokering_join_failures_total",
			Help: "Total joinFailed responses sent",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.eventsTotal, m.joinFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) IncEvent(event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) IncJoinFailure() {
	if m == nil {
		return
	}
	m.joinFailures.Inc()
}
