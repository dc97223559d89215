// Package metric provides the engine's Prometheus metrics: evaluation
// throughput, dampening transitions, alerts fired, and action-dispatch
// queue health. A single Registry is created at startup and handed to
// every component that emits metrics, following the teacher framework's
// dependency-injected-registry convention rather than package-level
// globals.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every metric the engine emits.
type Metrics struct {
	ConditionEvaluations *prometheus.CounterVec
	DampeningTransitions *prometheus.CounterVec
	AlertsFired          *prometheus.CounterVec
	ActionsDispatched    *prometheus.CounterVec
	ActionsDropped       prometheus.Counter
	ActionQueueDepth     prometheus.Gauge
	WorkingMemorySize    *prometheus.GaugeVec
	DataRetracted        prometheus.Counter
	EvaluationErrors     *prometheus.CounterVec
}

// NewMetrics constructs the engine's metric set, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		ConditionEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "rules",
				Name:      "condition_evaluations_total",
				Help:      "Total ConditionEvaluations produced, by condition type and match outcome.",
			},
			[]string{"condition_type", "match"},
		),
		DampeningTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "dampening",
				Name:      "transitions_total",
				Help:      "Dampening state transitions, by dampening type and outcome.",
			},
			[]string{"dampening_type", "outcome"},
		),
		AlertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "alerts",
				Name:      "fired_total",
				Help:      "Total Alerts produced, by severity.",
			},
			[]string{"severity"},
		),
		ActionsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "actions",
				Name:      "dispatched_total",
				Help:      "Total action requests handed to the Action Sink, by plugin.",
			},
			[]string{"plugin"},
		),
		ActionsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "actions",
				Name:      "dropped_total",
				Help:      "Total action requests dropped because the dispatch queue was full.",
			},
		),
		ActionQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "alertengine",
				Subsystem: "actions",
				Name:      "queue_depth",
				Help:      "Current depth of the action dispatch queue.",
			},
		),
		WorkingMemorySize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "alertengine",
				Subsystem: "memory",
				Name:      "fact_count",
				Help:      "Current number of facts held in working memory, by fact kind.",
			},
			[]string{"kind"},
		),
		DataRetracted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "memory",
				Name:      "data_retracted_total",
				Help:      "Total Data items retracted from working memory after evaluation.",
			},
		),
		EvaluationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alertengine",
				Subsystem: "rules",
				Name:      "evaluation_errors_total",
				Help:      "Total EVENT/EXTERNAL expression evaluation errors, by condition type.",
			},
			[]string{"condition_type"},
		),
	}
}

// collectors returns every metric as a prometheus.Collector for registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ConditionEvaluations,
		m.DampeningTransitions,
		m.AlertsFired,
		m.ActionsDispatched,
		m.ActionsDropped,
		m.ActionQueueDepth,
		m.WorkingMemorySize,
		m.DataRetracted,
		m.EvaluationErrors,
	}
}
