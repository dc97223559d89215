// Package alerting implements the Alert Producer and its downstream
// collaborators (§4.4): minting Alerts on satisfied dampening, dispatching
// best-effort action requests, driving the FIRING/AUTORESOLVE mode switch,
// and fanning alerts out to live subscribers. It implements rules.AlertHook
// so the Rule Engine never needs to know these concerns exist.
package alerting

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/metric"
	"github.com/c360/alertengine/types"
)

// AlertStore is the external collaborator Alerts are enqueued to (§4.4,
// §6). The engine reads nothing back from it except to resolve open
// alerts when an AUTORESOLVE dampening is satisfied.
type AlertStore interface {
	Enqueue(ctx context.Context, alert *types.Alert) error
	ResolveOpen(ctx context.Context, tenant types.TenantID, triggerID string, status types.AlertStatus) error
}

// TriggerControl is the narrow slice of the Definitions Registry the
// Producer needs to honor autoDisable/autoEnable (§4.4), kept separate
// from the full registry package to avoid a dependency cycle (registry
// does not know about Alerts).
type TriggerControl interface {
	SetEnabled(ctx context.Context, tenant types.TenantID, triggerID string, enabled bool) error
}

// ActionDispatcher hands an action request off for best-effort,
// asynchronous delivery (§4.4, §6). Implemented by ActionSink.
type ActionDispatcher interface {
	Dispatch(req types.ActionRequest) bool
}

// Publisher fans a newly-minted Alert out to live subscribers (admin
// dashboards). Implemented by LiveFeed; a nil Publisher is a valid no-op.
type Publisher interface {
	Publish(alert *types.Alert)
}

// Producer mints Alerts on satisfied dampening and drives everything
// §4.4 says follows from that: action dispatch, the AUTORESOLVE switch,
// and auto-disable/auto-enable.
type Producer struct {
	wm      *memory.WorkingMemory
	store   AlertStore
	actions ActionDispatcher
	control TriggerControl
	feed    Publisher
	metrics *metric.Metrics
	logger  *slog.Logger
}

// NewProducer builds a Producer. actions, control, and feed may be nil;
// a nil ActionDispatcher silently drops action requests, a nil
// TriggerControl makes autoDisable/autoEnable a no-op, and a nil feed
// skips live-fan-out — useful for tests that only care about Alert
// minting.
func NewProducer(wm *memory.WorkingMemory, store AlertStore, actions ActionDispatcher, control TriggerControl, feed Publisher, metrics *metric.Metrics, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{wm: wm, store: store, actions: actions, control: control, feed: feed, metrics: metrics, logger: logger}
}

// OnSatisfied implements rules.AlertHook.
func (p *Producer) OnSatisfied(tenant types.TenantID, trigger *types.Trigger, mode types.Mode, tuple types.EvaluationTuple, d *types.Dampening) {
	ctx := context.Background()
	switch mode {
	case types.ModeAutoResolve:
		p.handleAutoResolveSatisfied(ctx, tenant, trigger, d)
	default:
		p.handleFiringSatisfied(ctx, tenant, trigger, d)
	}
}

func (p *Producer) handleFiringSatisfied(ctx context.Context, tenant types.TenantID, trigger *types.Trigger, d *types.Dampening) {
	alert := &types.Alert{
		TenantID:         tenant,
		TriggerID:        trigger.ID,
		CTime:            latestTimestamp(d.SatisfyingEvals),
		UUID:             uuid.NewString(),
		Trigger:          *trigger.Clone(),
		Dampening:        *d.Clone(),
		SatisfyingTuples: cloneTuples(d.SatisfyingEvals),
		Severity:         trigger.Severity,
		Context:          trigger.Context,
		Status:           types.AlertOpen,
	}
	d.Reset()

	if p.store != nil {
		if err := p.store.Enqueue(ctx, alert); err != nil {
			p.logger.Error("failed to enqueue alert", "tenant", tenant, "trigger", trigger.ID, "error", err)
		}
	}
	if p.metrics != nil {
		p.metrics.AlertsFired.WithLabelValues(string(trigger.Severity)).Inc()
	}

	p.dispatchActions(alert)

	if p.feed != nil {
		p.feed.Publish(alert)
	}

	if trigger.AutoResolve {
		switchToAutoResolve(p.wm, tenant, trigger.ID)
	}
	if trigger.AutoDisable && p.control != nil {
		if err := p.control.SetEnabled(ctx, tenant, trigger.ID, false); err != nil {
			p.logger.Error("auto-disable failed", "tenant", tenant, "trigger", trigger.ID, "error", err)
		}
	}
}

func (p *Producer) handleAutoResolveSatisfied(ctx context.Context, tenant types.TenantID, trigger *types.Trigger, d *types.Dampening) {
	d.Reset()
	switchToFiring(p.wm, tenant, trigger.ID)

	if trigger.AutoResolveAlerts && p.store != nil {
		if err := p.store.ResolveOpen(ctx, tenant, trigger.ID, types.AlertAutoResolved); err != nil {
			p.logger.Error("auto-resolve failed", "tenant", tenant, "trigger", trigger.ID, "error", err)
		}
	}
	if trigger.AutoEnable && p.control != nil {
		if err := p.control.SetEnabled(ctx, tenant, trigger.ID, true); err != nil {
			p.logger.Error("auto-enable failed", "tenant", tenant, "trigger", trigger.ID, "error", err)
		}
	}
}

func (p *Producer) dispatchActions(alert *types.Alert) {
	if p.actions == nil {
		return
	}
	for plugin, ids := range alert.Trigger.Actions {
		for _, id := range ids {
			req := types.ActionRequest{TenantID: alert.TenantID, ActionPlugin: plugin, ActionID: id, Alert: *alert}
			if !p.actions.Dispatch(req) {
				p.logger.Warn("action dispatch dropped, queue full", "tenant", alert.TenantID, "plugin", plugin, "action_id", id)
			}
		}
	}
}

func latestTimestamp(tuples []types.EvaluationTuple) int64 {
	var max int64
	for _, tuple := range tuples {
		for _, ce := range tuple {
			if ce.Timestamp > max {
				max = ce.Timestamp
			}
		}
	}
	return max
}

func cloneTuples(tuples []types.EvaluationTuple) []types.EvaluationTuple {
	if tuples == nil {
		return nil
	}
	out := make([]types.EvaluationTuple, len(tuples))
	for i, t := range tuples {
		out[i] = t.Clone()
	}
	return out
}
