package rules

import (
	"context"
	"testing"

	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/types"
)

type recordingHook struct {
	calls []hookCall
}

type hookCall struct {
	tenant  types.TenantID
	trigger string
	mode    types.Mode
	tuple   types.EvaluationTuple
}

func (h *recordingHook) OnSatisfied(tenant types.TenantID, trigger *types.Trigger, mode types.Mode, tuple types.EvaluationTuple, d *types.Dampening) {
	h.calls = append(h.calls, hookCall{tenant, trigger.ID, mode, tuple})
}

func numericData(tenant types.TenantID, dataID string, ts int64, v float64) *types.Data {
	return &types.Data{TenantID: tenant, DataID: dataID, Timestamp: ts, Value: types.NumericValue(v)}
}

func availData(tenant types.TenantID, dataID string, ts int64, v types.AvailabilityState) *types.Data {
	return &types.Data{TenantID: tenant, DataID: dataID, Timestamp: ts, Value: types.AvailabilityValue(v)}
}

func newSingleConditionEngine(t *testing.T, tenant types.TenantID, triggerID, dataID string, dampeningType types.DampeningType, n, m int, timeMS int64) (*Engine, *memory.WorkingMemory, *recordingHook) {
	t.Helper()
	wm := memory.New()
	trig := &types.Trigger{TenantID: tenant, ID: triggerID, Enabled: true, FiringMatch: types.MatchAll, ActiveMode: types.ModeFiring}
	wm.PutTrigger(trig)
	wm.SetConditions(tenant, triggerID, types.ModeFiring, []*types.Condition{
		{
			TenantID: tenant, TriggerID: triggerID, TriggerMode: types.ModeFiring,
			Type: types.ConditionThreshold, ConditionSetSize: 1, ConditionSetIndex: 1,
			Threshold: &types.ThresholdCondition{DataID: dataID, Operator: types.OpGT, Threshold: 0},
		},
	})
	wm.SetDampening(tenant, triggerID, types.ModeFiring, &types.Dampening{
		TenantID: tenant, TriggerID: triggerID, TriggerMode: types.ModeFiring,
		Type: dampeningType, EvalTrueSetting: n, EvalTotalSetting: m, EvalTimeSetting: timeMS,
	})

	hook := &recordingHook{}
	engine := NewEngine(wm, NewMatcher(nil), nil, hook, nil)
	return engine, wm, hook
}

func TestS1ThresholdStrictFires(t *testing.T) {
	ctx := context.Background()
	engine, _, hook := newSingleConditionEngine(t, "acme", "t1", "X", types.DampeningStrict, 1, 1, 0)

	if err := engine.Ingest(ctx, "acme", []*types.Data{numericData("acme", "X", 1, 15.0)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(hook.calls) != 1 {
		t.Fatalf("expected exactly one satisfied call, got %d", len(hook.calls))
	}
	if got := hook.calls[0].tuple[0].Data.Value.Numeric; got != 15.0 {
		t.Fatalf("expected satisfying tuple value 15.0, got %v", got)
	}
}

func TestS2ThresholdStrictNoMatch(t *testing.T) {
	ctx := context.Background()
	engine, wm, hook := newSingleConditionEngine(t, "acme", "t1", "X", types.DampeningStrict, 1, 1, 0)
	// THRESHOLD(X, GT, 10): 5.0 is below the threshold.
	wm.SetConditions("acme", "t1", types.ModeFiring, []*types.Condition{
		{
			TenantID: "acme", TriggerID: "t1", TriggerMode: types.ModeFiring,
			Type: types.ConditionThreshold, ConditionSetSize: 1, ConditionSetIndex: 1,
			Threshold: &types.ThresholdCondition{DataID: "X", Operator: types.OpGT, Threshold: 10},
		},
	})

	if err := engine.Ingest(ctx, "acme", []*types.Data{numericData("acme", "X", 1, 5.0)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(hook.calls) != 0 {
		t.Fatalf("expected no Alert, got %d", len(hook.calls))
	}
}

func TestS3RelaxedCountFiresAtThirdEval(t *testing.T) {
	ctx := context.Background()
	engine, _, hook := newSingleConditionEngine(t, "acme", "t1", "X", types.DampeningRelaxedCount, 2, 3, 0)

	values := []float64{1, 0, 1}
	for i, v := range values {
		ts := int64(i + 1)
		if err := engine.Ingest(ctx, "acme", []*types.Data{numericData("acme", "X", ts, v)}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	if len(hook.calls) != 1 {
		t.Fatalf("expected exactly one Alert, got %d", len(hook.calls))
	}
	if got := hook.calls[0].tuple[0].Timestamp; got != 3 {
		t.Fatalf("expected Alert at timestamp 3, got %d", got)
	}
}

func TestS4RelaxedTimeTimeout(t *testing.T) {
	ctx := context.Background()
	engine, _, hook := newSingleConditionEngine(t, "acme", "t1", "X", types.DampeningRelaxedTime, 2, 0, 1000)

	if err := engine.Ingest(ctx, "acme", []*types.Data{numericData("acme", "X", 0, 1)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := engine.Ingest(ctx, "acme", []*types.Data{numericData("acme", "X", 1500, 1)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(hook.calls) != 0 {
		t.Fatalf("expected no Alert once the window expires, got %d", len(hook.calls))
	}
}

func TestS5TwoConditionAllRequiresBothInSameBatch(t *testing.T) {
	ctx := context.Background()
	wm := memory.New()
	const tenant types.TenantID = "acme"
	trig := &types.Trigger{TenantID: tenant, ID: "t1", Enabled: true, FiringMatch: types.MatchAll, ActiveMode: types.ModeFiring}
	wm.PutTrigger(trig)
	wm.SetConditions(tenant, "t1", types.ModeFiring, []*types.Condition{
		{
			TenantID: tenant, TriggerID: "t1", TriggerMode: types.ModeFiring,
			Type: types.ConditionThreshold, ConditionSetSize: 2, ConditionSetIndex: 1,
			Threshold: &types.ThresholdCondition{DataID: "X", Operator: types.OpGT, Threshold: 10},
		},
		{
			TenantID: tenant, TriggerID: "t1", TriggerMode: types.ModeFiring,
			Type: types.ConditionAvailability, ConditionSetSize: 2, ConditionSetIndex: 2,
			Availability: &types.AvailabilityCondition{DataID: "Y", Operator: types.AvailabilityDown},
		},
	})

	hook := &recordingHook{}
	engine := NewEngine(wm, NewMatcher(nil), nil, hook, nil)

	// X alone: incomplete tuple, no Alert.
	if err := engine.Ingest(ctx, tenant, []*types.Data{numericData(tenant, "X", 1, 15.0)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(hook.calls) != 0 {
		t.Fatalf("expected no Alert from an incomplete tuple, got %d", len(hook.calls))
	}

	// X and Y together in one batch: complete tuple, one Alert.
	if err := engine.Ingest(ctx, tenant, []*types.Data{
		numericData(tenant, "X", 2, 15.0),
		availData(tenant, "Y", 2, types.Down),
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(hook.calls) != 1 {
		t.Fatalf("expected exactly one Alert from the complete same-batch tuple, got %d", len(hook.calls))
	}
}

func TestS6GroupMemberFiresGroupTemplateDoesNot(t *testing.T) {
	ctx := context.Background()
	wm := memory.New()
	const tenant types.TenantID = "acme"

	group := &types.Trigger{TenantID: tenant, ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll}
	wm.PutTrigger(group) // only to exercise the path; Registry normally refuses this.
	wm.RemoveTrigger(tenant, "g1")

	memberOf := "g1"
	member := &types.Trigger{TenantID: tenant, ID: "m1", Enabled: true, MemberOf: &memberOf, FiringMatch: types.MatchAll, ActiveMode: types.ModeFiring}
	wm.PutTrigger(member)
	wm.SetConditions(tenant, "m1", types.ModeFiring, []*types.Condition{
		{
			TenantID: tenant, TriggerID: "m1", TriggerMode: types.ModeFiring,
			Type: types.ConditionThreshold, ConditionSetSize: 1, ConditionSetIndex: 1,
			Threshold: &types.ThresholdCondition{DataID: "mem1.cpu", Operator: types.OpGT, Threshold: 90},
		},
	})

	hook := &recordingHook{}
	engine := NewEngine(wm, NewMatcher(nil), nil, hook, nil)

	if err := engine.Ingest(ctx, tenant, []*types.Data{numericData(tenant, "mem1.cpu", 1, 99.0)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(hook.calls) != 1 || hook.calls[0].trigger != "m1" {
		t.Fatalf("expected m1 to fire, got %v", hook.calls)
	}
	if _, ok := wm.Trigger(tenant, "g1"); ok {
		t.Fatalf("group template must never be present in working memory")
	}
}
