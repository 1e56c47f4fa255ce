package gpuactor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values of the requests counter.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// metrics holds the actor's Prometheus collectors. They are always
// created; registration is optional.
type metrics struct {
	requests       *prometheus.CounterVec
	droppedReplies prometheus.Counter
	adapters       prometheus.Gauge
	devices        prometheus.Gauge
}

func newMetrics(name string) *metrics {
	labels := prometheus.Labels{"actor": name}
	return &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "gpuactor",
			Name:        "requests_total",
			Help:        "Requests processed by the actor, by operation and outcome.",
			ConstLabels: labels,
		}, []string{"op", "outcome"}),
		droppedReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gpuactor",
			Name:        "dropped_replies_total",
			Help:        "Replies and acknowledgments that could not be delivered.",
			ConstLabels: labels,
		}),
		adapters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gpuactor",
			Name:        "adapters",
			Help:        "Adapters currently adopted.",
			ConstLabels: labels,
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gpuactor",
			Name:        "devices",
			Help:        "Devices currently open.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.droppedReplies, m.adapters, m.devices}
}

// register adds every collector to r. Collectors registered before a
// failure are unregistered again.
func (m *metrics) register(r prometheus.Registerer) error {
	var done []prometheus.Collector
	for _, c := range m.collectors() {
		if err := r.Register(c); err != nil {
			for _, d := range done {
				r.Unregister(d)
			}
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return errors.New("metrics already registered for this actor name")
			}
			return err
		}
		done = append(done, c)
	}
	return nil
}

func (m *metrics) observe(op string, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.requests.WithLabelValues(op, outcome).Inc()
}
