package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/alertengine/errors"
)

// Registry owns the Prometheus registry and the engine's metric set, and
// lets ad-hoc collectors (e.g. a worker pool) register against the same
// backing registry instead of the global default.
type Registry struct {
	prom    *prometheus.Registry
	Metrics *Metrics

	mu    sync.Mutex
	extra map[string]prometheus.Collector
}

// NewRegistry creates a Registry with the engine's core metrics and Go
// runtime collectors already registered.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	r := &Registry{
		prom:    prom,
		Metrics: NewMetrics(),
		extra:   make(map[string]prometheus.Collector),
	}
	for _, c := range r.Metrics.collectors() {
		prom.MustRegister(c)
	}
	prom.MustRegister(collectors.NewGoCollector())
	prom.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// Prometheus returns the underlying registry for serving /metrics.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Register adds an ad-hoc named collector (e.g. a worker pool's metrics)
// to the same registry, rejecting duplicate names.
func (r *Registry) Register(name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.extra[name]; exists {
		return errors.WrapValidation("Registry", "Register", "metric "+name+" already registered")
	}
	if err := r.prom.Register(c); err != nil {
		return errors.WrapStoreError(err, "Registry", "Register")
	}
	r.extra[name] = c
	return nil
}
