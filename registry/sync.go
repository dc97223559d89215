package registry

import (
	"context"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/types"
)

// LoadAll populates Working Memory from every trigger currently in the
// store, for startup (after bootstrap) and for a node joining an
// already-populated cluster. Call MarkInitialized after this returns so
// subsequent AddTrigger calls publish immediately (§4.1).
func (r *Registry) LoadAll(ctx context.Context) error {
	triggers, err := r.store.AllTriggers(ctx)
	if err != nil {
		return errors.WrapStoreError(err, "registry", "LoadAll")
	}
	for _, t := range triggers {
		if !t.Evaluable() {
			continue
		}
		r.wm.PutTrigger(t.Clone())
		for _, mode := range []types.Mode{types.ModeFiring, types.ModeAutoResolve} {
			conditions, err := r.store.Conditions(ctx, t.TenantID, t.ID, mode)
			if err != nil {
				return errors.WrapStoreError(err, "registry", "LoadAll")
			}
			if len(conditions) > 0 {
				r.wm.SetConditions(t.TenantID, t.ID, mode, conditions)
			}
			if d, err := r.store.Dampening(ctx, t.TenantID, t.ID, mode); err == nil {
				r.wm.SetDampening(t.TenantID, t.ID, mode, d)
			}
		}
	}
	return nil
}

// ApplyChange re-syncs Working Memory against the store for the entity
// named in ev, translating an external Definitions Store change
// notification (§6) into local facts — grounded on
// processor/rule/entity_watcher.go's handleEntityUpdates, which does the
// same KV-update-to-local-fact translation for entity state. Also fires
// ev to local listeners, so a remote mutation is indistinguishable from
// a local one to anything subscribed on this node.
func (r *Registry) ApplyChange(ctx context.Context, ev types.DefinitionsEvent) error {
	t, err := r.store.Trigger(ctx, ev.TenantID, ev.TriggerID)
	if err != nil {
		r.wm.RemoveTrigger(ev.TenantID, ev.TriggerID)
		r.listeners.Fire(ev)
		return nil
	}

	if !t.Evaluable() {
		r.wm.RemoveTrigger(ev.TenantID, ev.TriggerID)
		r.listeners.Fire(ev)
		return nil
	}
	r.wm.PutTrigger(t.Clone())

	switch ev.Type {
	case types.EventConditionChange:
		conditions, err := r.store.Conditions(ctx, ev.TenantID, ev.TriggerID, ev.Mode)
		if err != nil {
			return errors.WrapStoreError(err, "registry", "ApplyChange")
		}
		r.wm.SetConditions(ev.TenantID, ev.TriggerID, ev.Mode, conditions)
	case types.EventDampeningChange:
		d, err := r.store.Dampening(ctx, ev.TenantID, ev.TriggerID, ev.Mode)
		if err != nil {
			r.wm.SetDampening(ev.TenantID, ev.TriggerID, ev.Mode, nil)
		} else {
			r.wm.SetDampening(ev.TenantID, ev.TriggerID, ev.Mode, d)
		}
	}

	r.listeners.Fire(ev)
	return nil
}
