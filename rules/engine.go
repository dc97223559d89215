package rules

import (
	"context"
	"log/slog"

	"github.com/c360/alertengine/dampening"
	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/metric"
	"github.com/c360/alertengine/types"
)

// AlertHook receives every evaluation tuple that newly satisfies a
// trigger's dampening. The Rule Engine is deliberately ignorant of what
// happens next — minting an Alert, flipping AUTORESOLVE mode, dispatching
// actions — all of that lives in the alerting package and is reached only
// through this interface (§4.2's scope boundary: the matcher and joiner
// know nothing about Alerts).
type AlertHook interface {
	OnSatisfied(tenant types.TenantID, trigger *types.Trigger, mode types.Mode, tuple types.EvaluationTuple, d *types.Dampening)
}

// Engine is the indexed-scan Rule Engine: for every incoming Data item it
// looks up the Conditions that read from its dataId (via Working Memory's
// dataId index), evaluates each against the item, joins per-(trigger,mode)
// evaluation tuples, and advances Dampening for every tuple that
// completes. Grounded on the teacher's rule Processor
// (processor/rule/processor.go): one component owns the match/evaluate
// loop and hands satisfied results off through a narrow interface rather
// than reaching into downstream concerns directly.
type Engine struct {
	wm      *memory.WorkingMemory
	matcher *Matcher
	joins   *JoinBuffer
	hook    AlertHook
	metrics *metric.Metrics
	logger  *slog.Logger
}

// NewEngine builds a Rule Engine. hook may be nil during tests that only
// care about dampening state, not Alert production.
func NewEngine(wm *memory.WorkingMemory, matcher *Matcher, metrics *metric.Metrics, hook AlertHook, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		wm:      wm,
		matcher: matcher,
		joins:   NewJoinBuffer(),
		hook:    hook,
		metrics: metrics,
		logger:  logger,
	}
}

// Ingest evaluates one batch of Data against working memory, advancing
// dampening for every evaluation tuple that completes, and retracts the
// batch's Data from working memory before returning (invariant 9: a Data
// item is visible only for the batch it was ingested in).
func (e *Engine) Ingest(ctx context.Context, tenant types.TenantID, batch []*types.Data) error {
	defer e.retract()

	for _, d := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item := d
		item.TenantID = tenant
		e.wm.InsertData(item)
	}

	for _, d := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.evaluateOne(tenant, d)
	}

	return nil
}

func (e *Engine) retract() {
	n := e.wm.RetractBatch()
	if e.metrics != nil && n > 0 {
		e.metrics.DataRetracted.Add(float64(n))
	}
}

func (e *Engine) evaluateOne(tenant types.TenantID, d *types.Data) {
	for _, c := range e.wm.CandidateConditions(tenant, d.DataID) {
		trigger, ok := e.wm.Trigger(tenant, c.TriggerID)
		if !ok || !trigger.Evaluable() {
			continue
		}
		// Only the trigger's currently active condition set is live:
		// a FIRING trigger ignores its AUTORESOLVE conditions and
		// vice versa (§4.4).
		if trigger.ActiveMode != c.TriggerMode {
			continue
		}

		eval, err := e.matcher.Evaluate(c, d, e.wm)
		if err != nil {
			e.logger.Warn("condition evaluation failed, treating as no-match",
				"tenant", tenant, "trigger", c.TriggerID, "condition_type", c.Type, "error", err)
			if e.metrics != nil {
				e.metrics.EvaluationErrors.WithLabelValues(string(c.Type)).Inc()
			}
		}
		if e.metrics != nil {
			e.metrics.ConditionEvaluations.WithLabelValues(string(c.Type), matchLabel(eval.Match)).Inc()
		}

		tuple, complete := e.joins.Accept(eval)
		if !complete {
			continue
		}
		e.advance(tenant, trigger, c.TriggerMode, tuple)
	}
}

func (e *Engine) advance(tenant types.TenantID, trigger *types.Trigger, mode types.Mode, tuple types.EvaluationTuple) {
	policy := trigger.FiringMatch
	if mode == types.ModeAutoResolve {
		policy = trigger.AutoResolveMatch
	}

	d := e.wm.Dampening(tenant, trigger.ID, mode)
	satisfied := dampening.Advance(d, tuple, policy, tupleTimestamp(tuple))

	if e.metrics != nil {
		outcome := "progress"
		if satisfied {
			outcome = "satisfied"
		}
		e.metrics.DampeningTransitions.WithLabelValues(string(d.Type), outcome).Inc()
	}

	if satisfied && e.hook != nil {
		e.hook.OnSatisfied(tenant, trigger, mode, tuple, d)
	}
}

// tupleTimestamp is the latest Data timestamp among a tuple's evaluations,
// used to drive RELAXED_TIME regardless of condition-set index order.
func tupleTimestamp(tuple types.EvaluationTuple) int64 {
	var max int64
	for _, ce := range tuple {
		if ce.Timestamp > max {
			max = ce.Timestamp
		}
	}
	return max
}

func matchLabel(match bool) string {
	if match {
		return "true"
	}
	return "false"
}
