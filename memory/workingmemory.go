// Package memory implements Working Memory (§4.2): the set of facts
// currently visible to the Rule Engine — active Triggers, their
// Conditions and Dampenings, and Data items not yet retracted. It is
// generalized from the teacher's generic thread-safe map cache
// (pkg/cache/simple.go) into the specific fact indices the matcher needs:
// by trigger identity, by (trigger,mode), and by (tenant,dataId) for
// indexed Data lookup, per the design notes' recommended indexed-scan
// matcher.
package memory

import (
	"sync"

	"github.com/c360/alertengine/types"
)

type triggerKey struct {
	tenant types.TenantID
	id     string
}

type triggerModeKey struct {
	tenant  types.TenantID
	trigger string
	mode    types.Mode
}

type dataKey struct {
	tenant types.TenantID
	dataID string
}

// WorkingMemory holds the facts visible to the Rule Engine for one engine
// instance. All mutation goes through its methods; the Registry publishes
// trigger/condition/dampening changes here via copy-on-publish (§5).
type WorkingMemory struct {
	mu sync.RWMutex

	// triggers holds only active (enabled, non-group) triggers: standalone
	// and member triggers. Group templates are never inserted here (§4.1).
	triggers map[triggerKey]*types.Trigger

	conditions map[triggerModeKey][]*types.Condition
	dampenings map[triggerModeKey]*types.Dampening

	// conditionIndex maps a (tenant,dataId) to every condition that reads
	// from it, across all active triggers — the indexed-scan lookup the
	// Rule Engine uses for each incoming Data item (§9).
	conditionIndex map[dataKey][]*types.Condition

	// present holds Data items inserted during the batch currently being
	// processed, keyed by (tenant,dataId). It is cleared at the end of
	// each batch (RetractBatch), which is how this implementation
	// satisfies invariant 9 ("a Data item inserted into working memory is
	// retracted before the next batch begins") while still letting
	// COMPARE conditions and multi-condition joins see every Data item
	// ingested in the same call to Ingest.
	present map[dataKey]*types.Data
}

// New creates an empty WorkingMemory.
func New() *WorkingMemory {
	return &WorkingMemory{
		triggers:       make(map[triggerKey]*types.Trigger),
		conditions:     make(map[triggerModeKey][]*types.Condition),
		dampenings:     make(map[triggerModeKey]*types.Dampening),
		conditionIndex: make(map[dataKey][]*types.Condition),
		present:        make(map[dataKey]*types.Data),
	}
}

// PutTrigger inserts or atomically replaces a trigger's working-memory
// copy. Callers must not insert group triggers (§4.1); PutTrigger does
// not check, and filtering them out is the Registry's job.
func (wm *WorkingMemory) PutTrigger(t *types.Trigger) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.triggers[triggerKey{t.TenantID, t.ID}] = t
}

// RemoveTrigger deletes a trigger and all of its condition/dampening
// facts and index entries, for both modes.
func (wm *WorkingMemory) RemoveTrigger(tenant types.TenantID, triggerID string) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	delete(wm.triggers, triggerKey{tenant, triggerID})
	for _, mode := range []types.Mode{types.ModeFiring, types.ModeAutoResolve} {
		wm.removeConditionsLocked(tenant, triggerID, mode)
		delete(wm.dampenings, triggerModeKey{tenant, triggerID, mode})
	}
}

// Trigger returns the working-memory copy of a trigger, if active.
func (wm *WorkingMemory) Trigger(tenant types.TenantID, triggerID string) (*types.Trigger, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	t, ok := wm.triggers[triggerKey{tenant, triggerID}]
	return t, ok
}

// ActiveTriggers returns every evaluable trigger currently in memory.
func (wm *WorkingMemory) ActiveTriggers() []*types.Trigger {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	out := make([]*types.Trigger, 0, len(wm.triggers))
	for _, t := range wm.triggers {
		out = append(out, t)
	}
	return out
}

// SetConditions replaces the condition set for (tenant,triggerID,mode) and
// rebuilds the dataId index entries it contributes.
func (wm *WorkingMemory) SetConditions(tenant types.TenantID, triggerID string, mode types.Mode, conditions []*types.Condition) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.removeConditionsLocked(tenant, triggerID, mode)
	key := triggerModeKey{tenant, triggerID, mode}
	wm.conditions[key] = conditions
	for _, c := range conditions {
		for _, dataID := range c.DataIDs() {
			dk := dataKey{tenant, dataID}
			wm.conditionIndex[dk] = append(wm.conditionIndex[dk], c)
		}
	}
}

func (wm *WorkingMemory) removeConditionsLocked(tenant types.TenantID, triggerID string, mode types.Mode) {
	key := triggerModeKey{tenant, triggerID, mode}
	existing := wm.conditions[key]
	delete(wm.conditions, key)
	for _, c := range existing {
		for _, dataID := range c.DataIDs() {
			dk := dataKey{tenant, dataID}
			wm.conditionIndex[dk] = removeCondition(wm.conditionIndex[dk], c)
			if len(wm.conditionIndex[dk]) == 0 {
				delete(wm.conditionIndex, dk)
			}
		}
	}
}

func removeCondition(list []*types.Condition, target *types.Condition) []*types.Condition {
	out := list[:0]
	for _, c := range list {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Conditions returns the ordered condition set for (tenant,triggerID,mode).
func (wm *WorkingMemory) Conditions(tenant types.TenantID, triggerID string, mode types.Mode) []*types.Condition {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.conditions[triggerModeKey{tenant, triggerID, mode}]
}

// CandidateConditions returns every condition (across all active
// triggers) that reads from (tenant,dataID) — the indexed-scan lookup for
// one incoming Data item.
func (wm *WorkingMemory) CandidateConditions(tenant types.TenantID, dataID string) []*types.Condition {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return append([]*types.Condition(nil), wm.conditionIndex[dataKey{tenant, dataID}]...)
}

// SetDampening installs (or replaces) the dampening fact for a
// (trigger,mode). Passing nil clears it, causing the Rule Engine to inject
// the default STRICT(1,1,0) dampening on the next tick (§4.2).
func (wm *WorkingMemory) SetDampening(tenant types.TenantID, triggerID string, mode types.Mode, d *types.Dampening) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	key := triggerModeKey{tenant, triggerID, mode}
	if d == nil {
		delete(wm.dampenings, key)
		return
	}
	wm.dampenings[key] = d
}

// Dampening returns the dampening fact for (tenant,triggerID,mode),
// injecting the default STRICT(1,1,0) dampening if absent (§4.2). The
// synthesized default is stored so subsequent lookups see the same
// instance and its volatile state accumulates correctly.
func (wm *WorkingMemory) Dampening(tenant types.TenantID, triggerID string, mode types.Mode) *types.Dampening {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	key := triggerModeKey{tenant, triggerID, mode}
	if d, ok := wm.dampenings[key]; ok {
		return d
	}
	d := types.DefaultDampening(tenant, triggerID, mode)
	wm.dampenings[key] = d
	return d
}

// InsertData makes a Data item visible to CurrentValue/COMPARE lookups
// for the rest of the current batch.
func (wm *WorkingMemory) InsertData(d *types.Data) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.present[dataKey{d.TenantID, d.DataID}] = d
}

// CurrentValue returns the most recently inserted, not-yet-retracted Data
// item for (tenant,dataID), used by COMPARE conditions to read their
// partner stream.
func (wm *WorkingMemory) CurrentValue(tenant types.TenantID, dataID string) (*types.Data, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	d, ok := wm.present[dataKey{tenant, dataID}]
	return d, ok
}

// SetActiveMode flips which condition set drives evaluation for a trigger
// already in working memory (§4.4's FIRING/AUTORESOLVE switch). A no-op if
// the trigger is not currently active.
func (wm *WorkingMemory) SetActiveMode(tenant types.TenantID, triggerID string, mode types.Mode) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if t, ok := wm.triggers[triggerKey{tenant, triggerID}]; ok {
		t.ActiveMode = mode
	}
}

// RetractBatch clears every Data item made visible via InsertData since
// the last RetractBatch call, satisfying invariant 9: a Data item is
// retracted before the next batch begins.
func (wm *WorkingMemory) RetractBatch() int {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	n := len(wm.present)
	wm.present = make(map[dataKey]*types.Data)
	return n
}

// FactCounts reports the current size of each fact kind, for the
// WorkingMemorySize gauge.
func (wm *WorkingMemory) FactCounts() (triggers, conditions, dampenings, pendingData int) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	triggers = len(wm.triggers)
	for _, cs := range wm.conditions {
		conditions += len(cs)
	}
	dampenings = len(wm.dampenings)
	pendingData = len(wm.present)
	return
}
