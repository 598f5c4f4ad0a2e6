package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusPublisher exposes the published state as an info-style gauge:
// the series for the current value is 1, the previous one is dropped.
type PrometheusPublisher struct {
	State *prometheus.GaugeVec

	mu   sync.Mutex
	last map[string]string
}

// NewPrometheusPublisher creates the gauge and registers it with reg
func NewPrometheusPublisher(reg prometheus.Registerer) (*PrometheusPublisher, error) {
	p := &PrometheusPublisher{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tickfsm",
			Subsystem: "machine",
			Name:      "active_state",
			Help:      "Active state of a machine, 1 for the current state name",
		}, []string{"key", "state"}),
		last: make(map[string]string),
	}
	if err := reg.Register(p.State); err != nil {
		return nil, err
	}
	return p, nil
}

// Publish sets the gauge for value and removes the previous series of key
func (p *PrometheusPublisher) Publish(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.last[key]; ok && prev != value {
		p.State.DeleteLabelValues(key, prev)
	}
	p.last[key] = value
	p.State.WithLabelValues(key, value).Set(1)
}
