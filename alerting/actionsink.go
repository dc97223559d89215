package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/alertengine/metric"
	"github.com/c360/alertengine/pkg/worker"
	"github.com/c360/alertengine/store"
	"github.com/c360/alertengine/types"
)

// ActionDelivery is the genuinely external boundary (§1 Non-goals: action
// dispatch is out of scope): whatever actually sends an email, posts a
// webhook, or pages someone. The engine ships no implementation other
// than a logging default.
type ActionDelivery interface {
	Deliver(ctx context.Context, tenant types.TenantID, plugin, actionID string, properties map[string]string, alert *types.Alert) error
}

// LoggingActionDelivery logs every delivery instead of sending it anywhere,
// the same no-op-with-visibility default the engine uses for
// ExternalEvaluator.
type LoggingActionDelivery struct {
	Logger *slog.Logger
}

func (l LoggingActionDelivery) Deliver(_ context.Context, tenant types.TenantID, plugin, actionID string, properties map[string]string, alert *types.Alert) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("action delivered", "tenant", tenant, "plugin", plugin, "action_id", actionID, "alert", alert.UUID, "properties", properties)
	return nil
}

// ActionSink is the bounded-queue, best-effort Action Sink (§4.4, §6, §9):
// model as a worker pool with drop-on-overflow, never blocking the rule
// engine's tick. Reused directly from the teacher's generic
// pkg/worker.Pool[T], instantiated over types.ActionRequest.
type ActionSink struct {
	pool     *worker.Pool[types.ActionRequest]
	store    store.DefinitionsStore
	delivery ActionDelivery
	metrics  *metric.Metrics
	logger   *slog.Logger
}

// NewActionSink builds an ActionSink with workers worker goroutines and a
// queue of depth queueSize. delivery defaults to LoggingActionDelivery
// when nil.
func NewActionSink(workers, queueSize int, s store.DefinitionsStore, delivery ActionDelivery, registry *metric.Registry, logger *slog.Logger) *ActionSink {
	if logger == nil {
		logger = slog.Default()
	}
	if delivery == nil {
		delivery = LoggingActionDelivery{Logger: logger}
	}
	sink := &ActionSink{store: s, delivery: delivery, logger: logger}
	if registry != nil {
		sink.metrics = registry.Metrics
	}

	var opts []worker.Option[types.ActionRequest]
	if registry != nil {
		opts = append(opts, worker.WithMetricsRegistry[types.ActionRequest](registry, "action_sink"))
	}
	sink.pool = worker.NewPool[types.ActionRequest](workers, queueSize, sink.process, opts...)
	return sink
}

// Start launches the underlying worker pool.
func (s *ActionSink) Start(ctx context.Context) error {
	return s.pool.Start(ctx)
}

// Stop drains the underlying worker pool, waiting up to timeout for
// in-flight and queued action requests to finish.
func (s *ActionSink) Stop(timeout time.Duration) error {
	return s.pool.Stop(timeout)
}

// Dispatch implements alerting.ActionDispatcher: hands req to the pool,
// reporting whether it was accepted. A full queue drops the request and
// counts it; the caller never blocks (§5: action-sink enqueues may
// backpressure but never stall the rule engine).
func (s *ActionSink) Dispatch(req types.ActionRequest) bool {
	if err := s.pool.Submit(req); err != nil {
		if s.metrics != nil {
			s.metrics.ActionsDropped.Inc()
		}
		return false
	}
	if s.metrics != nil {
		s.metrics.ActionsDispatched.WithLabelValues(req.ActionPlugin).Inc()
	}
	return true
}

// process resolves the action plugin's defaults, merges them with the
// action's stored properties (stored properties win), and hands the
// merged set to the ActionDelivery collaborator (§6: "the sink resolves
// the plugin defaults and merges them with the action's stored
// properties before handing off").
func (s *ActionSink) process(ctx context.Context, req types.ActionRequest) error {
	properties := make(map[string]string)

	plugins, err := s.store.ActionPlugins(ctx, req.TenantID)
	if err != nil {
		s.logger.Error("failed to load action plugins", "tenant", req.TenantID, "error", err)
	}
	for _, p := range plugins {
		if p.Name == req.ActionPlugin {
			for k, v := range p.Defaults {
				properties[k] = v
			}
			break
		}
	}

	actions, err := s.store.Actions(ctx, req.TenantID, req.ActionPlugin)
	if err != nil {
		s.logger.Error("failed to load actions", "tenant", req.TenantID, "plugin", req.ActionPlugin, "error", err)
	}
	for _, a := range actions {
		if a.ActionID == req.ActionID {
			for k, v := range a.Properties {
				properties[k] = v
			}
			break
		}
	}

	return s.delivery.Deliver(ctx, req.TenantID, req.ActionPlugin, req.ActionID, properties, &req.Alert)
}
