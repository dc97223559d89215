package registry

import (
	"context"
	"testing"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/store"
	"github.com/c360/alertengine/types"
)

func newTestRegistry() (*Registry, *memory.WorkingMemory) {
	wm := memory.New()
	s := store.NewMemoryStore()
	r := New(s, wm)
	r.MarkInitialized()
	return r, wm
}

type recordingListener struct {
	events []types.DefinitionsEvent
}

func (l *recordingListener) OnDefinitionsEvent(ev types.DefinitionsEvent) {
	l.events = append(l.events, ev)
}

func TestAddTriggerPublishesToWorkingMemory(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()

	listener := &recordingListener{}
	r.Subscribe(types.EventTriggerCreate, listener)

	err := r.AddTrigger(ctx, "acme", &types.Trigger{ID: "t1", Name: "high-cpu", Enabled: true, FiringMatch: types.MatchAll})
	if err != nil {
		t.Fatalf("AddTrigger: %v", err)
	}

	if _, ok := wm.Trigger("acme", "t1"); !ok {
		t.Fatalf("expected trigger published to working memory")
	}
	if len(listener.events) != 1 || listener.events[0].Type != types.EventTriggerCreate {
		t.Fatalf("expected 1 TRIGGER_CREATE event, got %v", listener.events)
	}
}

func TestAddTriggerRejectsDuplicateID(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "t1", Enabled: true})

	err := r.AddTrigger(ctx, "acme", &types.Trigger{ID: "t1", Enabled: true})
	if !errors.Is(err, errors.ClassIllegalState) {
		t.Fatalf("expected duplicate id to fail as IllegalState, got %v", err)
	}
}

func TestGroupTriggerNeverPublishedToWorkingMemory(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true})

	if _, ok := wm.Trigger("acme", "g1"); ok {
		t.Fatalf("group triggers must never be scheduled for evaluation")
	}
}

func TestUpdateTriggerRejectsNonOrphanMember(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	groupID := "g1"
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: groupID, Enabled: true, Group: true})
	r.AddMemberTrigger(ctx, "acme", groupID, "m1", "member-1", nil, map[string]string{})

	member := &types.Trigger{ID: "m1", Enabled: true, MemberOf: &groupID}
	if err := r.UpdateTrigger(ctx, "acme", member); !errors.Is(err, errors.ClassIllegalState) {
		t.Fatalf("expected editing a non-orphan member directly to fail, got %v", err)
	}
}

func TestSetEnabledFlipsTriggerAndWorkingMemory(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "t1", Enabled: true})

	if err := r.SetEnabled(ctx, "acme", "t1", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if _, ok := wm.Trigger("acme", "t1"); ok {
		t.Fatalf("expected disabled trigger to be removed from working memory")
	}

	if err := r.SetEnabled(ctx, "acme", "t1", true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	got, ok := wm.Trigger("acme", "t1")
	if !ok || !got.Enabled {
		t.Fatalf("expected re-enabled trigger back in working memory")
	}
}

func TestSetEnabledOnNonOrphanMemberStillApplies(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	groupID := "g1"
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: groupID, Enabled: true, Group: true})
	r.AddMemberTrigger(ctx, "acme", groupID, "m1", "member-1", nil, map[string]string{})

	if err := r.SetEnabled(ctx, "acme", "m1", false); err != nil {
		t.Fatalf("SetEnabled on a non-orphan member should bypass the edit restriction, got %v", err)
	}
	if _, ok := wm.Trigger("acme", "m1"); ok {
		t.Fatalf("expected disabled member to be removed from working memory")
	}
}

func TestSetConditionsAssignsContiguousIndices(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "t1", Enabled: true, FiringMatch: types.MatchAll})

	conds := []*types.Condition{
		{Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "a", Operator: types.OpGT, Threshold: 1}},
		{Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "b", Operator: types.OpGT, Threshold: 2}},
	}
	if err := r.SetConditions(ctx, "acme", "t1", types.ModeFiring, conds); err != nil {
		t.Fatalf("SetConditions: %v", err)
	}

	got := wm.Conditions("acme", "t1", types.ModeFiring)
	if len(got) != 2 || got[0].ConditionSetIndex != 1 || got[1].ConditionSetIndex != 2 || got[0].ConditionSetSize != 2 {
		t.Fatalf("expected contiguous 1-based indices and size=2, got %+v %+v", got[0], got[1])
	}
}

func TestAddMemberTriggerInstantiatesConditionsFromGroup(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.SetConditions(ctx, "acme", "g1", types.ModeFiring, []*types.Condition{
		{Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "cpu-token", Operator: types.OpGT, Threshold: 90}},
	})

	err := r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{"cpu-token": "host1.cpu"})
	if err != nil {
		t.Fatalf("AddMemberTrigger: %v", err)
	}

	conds := wm.Conditions("acme", "m1", types.ModeFiring)
	if len(conds) != 1 || conds[0].Threshold.DataID != "host1.cpu" {
		t.Fatalf("expected member condition with substituted dataId, got %+v", conds)
	}

	candidates := wm.CandidateConditions("acme", "host1.cpu")
	if len(candidates) != 1 {
		t.Fatalf("expected member condition indexed under its own dataId, got %v", candidates)
	}
}

func TestAddMemberTriggerFailsOnIncompleteDataIDMap(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.SetConditions(ctx, "acme", "g1", types.ModeFiring, []*types.Condition{
		{Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "cpu-token", Operator: types.OpGT, Threshold: 90}},
	})

	err := r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{})
	if !errors.Is(err, errors.ClassValidation) {
		t.Fatalf("expected validation error for missing token mapping, got %v", err)
	}
}

func TestRemoveGroupTriggerCascadesToMembersByDefault(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{})

	if err := r.RemoveTrigger(ctx, "acme", "g1", RemoveTriggerOptions{}); err != nil {
		t.Fatalf("RemoveTrigger: %v", err)
	}
	if _, ok := wm.Trigger("acme", "m1"); ok {
		t.Fatalf("expected member to be deleted along with its group")
	}
}

func TestRemoveGroupTriggerKeepsNonOrphansWhenRequested(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{})

	if err := r.RemoveTrigger(ctx, "acme", "g1", RemoveTriggerOptions{KeepNonOrphans: true}); err != nil {
		t.Fatalf("RemoveTrigger: %v", err)
	}
	promoted, ok := wm.Trigger("acme", "m1")
	if !ok {
		t.Fatalf("expected member to survive as standalone")
	}
	if promoted.MemberOf != nil {
		t.Fatalf("expected promoted member to have no MemberOf, got %v", promoted.MemberOf)
	}
}

func TestSetGroupConditionsPropagatesToAllMembers(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{})
	r.AddMemberTrigger(ctx, "acme", "g1", "m2", "host2", nil, map[string]string{})

	conds := []*types.Condition{
		{Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "cpu-token", Operator: types.OpGT, Threshold: 90}},
	}
	dataIDMemberMap := map[string]map[string]string{
		"cpu-token": {"m1": "host1.cpu", "m2": "host2.cpu"},
	}
	if err := r.SetGroupConditions(ctx, "acme", "g1", types.ModeFiring, conds, dataIDMemberMap); err != nil {
		t.Fatalf("SetGroupConditions: %v", err)
	}

	m1Conds := wm.Conditions("acme", "m1", types.ModeFiring)
	m2Conds := wm.Conditions("acme", "m2", types.ModeFiring)
	if len(m1Conds) != 1 || m1Conds[0].Threshold.DataID != "host1.cpu" {
		t.Fatalf("expected m1 condition substituted with host1.cpu, got %+v", m1Conds)
	}
	if len(m2Conds) != 1 || m2Conds[0].Threshold.DataID != "host2.cpu" {
		t.Fatalf("expected m2 condition substituted with host2.cpu, got %+v", m2Conds)
	}
}

func TestSetGroupConditionsFailsAllOrNothingOnMissingMemberMapping(t *testing.T) {
	r, wm := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{})
	r.AddMemberTrigger(ctx, "acme", "g1", "m2", "host2", nil, map[string]string{})

	conds := []*types.Condition{
		{Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "cpu-token", Operator: types.OpGT, Threshold: 90}},
	}
	// m2's mapping is missing entirely: the whole operation must fail, and
	// m1 (processed first in id order) must not have been modified either.
	dataIDMemberMap := map[string]map[string]string{
		"cpu-token": {"m1": "host1.cpu"},
	}
	if err := r.SetGroupConditions(ctx, "acme", "g1", types.ModeFiring, conds, dataIDMemberMap); !errors.Is(err, errors.ClassValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if got := wm.Conditions("acme", "m1", types.ModeFiring); len(got) != 0 {
		t.Fatalf("expected no partial propagation to m1, got %v", got)
	}
}

func TestOrphanMemberTriggerThenEditDirectly(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	r.AddTrigger(ctx, "acme", &types.Trigger{ID: "g1", Enabled: true, Group: true, FiringMatch: types.MatchAll})
	r.AddMemberTrigger(ctx, "acme", "g1", "m1", "host1", nil, map[string]string{})

	if err := r.OrphanMemberTrigger(ctx, "acme", "m1"); err != nil {
		t.Fatalf("OrphanMemberTrigger: %v", err)
	}

	groupID := "g1"
	edited := &types.Trigger{ID: "m1", Enabled: true, MemberOf: &groupID, Orphan: true, Name: "renamed"}
	if err := r.UpdateTrigger(ctx, "acme", edited); err != nil {
		t.Fatalf("expected orphan to be directly editable, got %v", err)
	}
}
