// Package registry implements the Definitions Registry (§4.1): the
// authoritative in-memory view of active Triggers and their Conditions and
// Dampening, kept consistent with the external Definitions Store and
// published into Working Memory for the Rule Engine. Its CRUD-with-
// duplicate-checks-and-cascade-delete shape is generalized from
// component/registry.go's factory/instance registry (mutex-guarded maps,
// reject-on-duplicate, cascade cleanup on removal) from components to
// Triggers.
package registry

import (
	"context"
	"sort"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/propagation"
	"github.com/c360/alertengine/store"
	"github.com/c360/alertengine/types"
)

// Registry is the Definitions Registry. It owns the canonical in-memory
// Trigger/Condition/Dampening set, mirrors the external Definitions Store,
// and publishes every active, non-group Trigger's facts into Working
// Memory for the Rule Engine.
type Registry struct {
	store store.DefinitionsStore
	wm    *memory.WorkingMemory

	listeners *listenerSet

	// initialized becomes true once bootstrap/initial load has completed;
	// addTrigger only publishes into Working Memory once initialized, per
	// §4.1 ("if initialized && !isGroup").
	initialized bool
}

// New creates a Registry backed by s and publishing into wm.
func New(s store.DefinitionsStore, wm *memory.WorkingMemory) *Registry {
	return &Registry{store: s, wm: wm, listeners: newListenerSet()}
}

// MarkInitialized flags bootstrap/initial load as complete; subsequent
// AddTrigger calls publish into Working Memory immediately.
func (r *Registry) MarkInitialized() {
	r.initialized = true
}

// Subscribe registers listener for eventType (§4.1, §6).
func (r *Registry) Subscribe(eventType types.DefinitionsEventType, listener Listener) {
	r.listeners.Subscribe(eventType, listener)
}

// Unsubscribe removes every subscription for listener.
func (r *Registry) Unsubscribe(listener Listener) {
	r.listeners.Unsubscribe(listener)
}

func (r *Registry) fire(evType types.DefinitionsEventType, tenant types.TenantID, triggerID string, mode types.Mode) {
	r.listeners.Fire(types.DefinitionsEvent{Type: evType, TenantID: tenant, TriggerID: triggerID, Mode: mode})
}

// AddTrigger adds t. Fails if its id already exists for the tenant. A
// group trigger is accepted but never scheduled for evaluation; if the
// registry has completed initialization and t is not a group, t is
// published into Working Memory immediately.
func (r *Registry) AddTrigger(ctx context.Context, tenant types.TenantID, t *types.Trigger) error {
	if t == nil || t.ID == "" {
		return errors.WrapValidation("registry", "AddTrigger", "trigger id cannot be empty")
	}
	t.TenantID = tenant // trust boundary at the service edge, §4.6

	if _, err := r.store.Trigger(ctx, tenant, t.ID); err == nil {
		return errors.WrapAlreadyExists("registry", "AddTrigger", string(tenant), t.ID)
	}

	if t.ActiveMode == "" {
		t.ActiveMode = types.ModeFiring
	}
	if err := r.store.PutTrigger(ctx, t); err != nil {
		return errors.WrapStoreError(err, "registry", "AddTrigger")
	}

	if r.initialized && t.Evaluable() {
		r.wm.PutTrigger(t.Clone())
	}
	r.fire(types.EventTriggerCreate, tenant, t.ID, "")
	return nil
}

// UpdateTrigger replaces an existing trigger's definition. Fails if the
// target is a non-orphan member (must be edited via its group) or if the
// update attempts to change MemberOf or Orphan.
func (r *Registry) UpdateTrigger(ctx context.Context, tenant types.TenantID, t *types.Trigger) error {
	if t == nil || t.ID == "" {
		return errors.WrapValidation("registry", "UpdateTrigger", "trigger id cannot be empty")
	}
	t.TenantID = tenant

	current, err := r.store.Trigger(ctx, tenant, t.ID)
	if err != nil {
		return errors.WrapNotFound("registry", "UpdateTrigger", string(tenant), t.ID)
	}
	if current.Member() && !current.Orphan {
		return errors.WrapIllegalState("registry", "UpdateTrigger", string(tenant), t.ID,
			"non-orphan member triggers must be edited via their group")
	}
	if !memberOfEqual(current.MemberOf, t.MemberOf) || current.Orphan != t.Orphan {
		return errors.WrapIllegalState("registry", "UpdateTrigger", string(tenant), t.ID,
			"cannot change group membership or orphan status via UpdateTrigger")
	}

	if err := r.store.PutTrigger(ctx, t); err != nil {
		return errors.WrapStoreError(err, "registry", "UpdateTrigger")
	}

	if t.Evaluable() {
		r.wm.PutTrigger(t.Clone())
	} else {
		r.wm.RemoveTrigger(tenant, t.ID)
	}
	r.fire(types.EventTriggerUpdate, tenant, t.ID, "")
	return nil
}

// SetEnabled flips a trigger's enabled flag, implementing
// alerting.TriggerControl for autoDisable/autoEnable (§4.4). Unlike
// UpdateTrigger this is a system-driven flip rather than a user edit of
// the trigger's definition, so it bypasses the non-orphan-member
// restriction: a group's autoDisable still needs to take effect on its
// members even though their conditions stay group-managed.
func (r *Registry) SetEnabled(ctx context.Context, tenant types.TenantID, triggerID string, enabled bool) error {
	t, err := r.store.Trigger(ctx, tenant, triggerID)
	if err != nil {
		return errors.WrapNotFound("registry", "SetEnabled", string(tenant), triggerID)
	}
	t.Enabled = enabled
	if err := r.store.PutTrigger(ctx, t); err != nil {
		return errors.WrapStoreError(err, "registry", "SetEnabled")
	}
	if t.Evaluable() {
		r.wm.PutTrigger(t.Clone())
	} else {
		r.wm.RemoveTrigger(tenant, triggerID)
	}
	r.fire(types.EventTriggerUpdate, tenant, triggerID, "")
	return nil
}

func memberOfEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RemoveTriggerOptions controls cascade behavior when removing a group
// trigger (§4.1).
type RemoveTriggerOptions struct {
	// KeepNonOrphans promotes non-orphan members to standalone triggers
	// instead of deleting them.
	KeepNonOrphans bool
	// KeepOrphans promotes orphan members to standalone triggers instead
	// of deleting them. Orphans are always otherwise unaffected by group
	// edits, but group removal still must decide their fate.
	KeepOrphans bool
}

// RemoveTrigger cascade-deletes a trigger's Conditions, Dampening, action
// bindings and tags. For a group trigger, opts controls whether members
// are deleted or promoted to standalone.
func (r *Registry) RemoveTrigger(ctx context.Context, tenant types.TenantID, id string, opts RemoveTriggerOptions) error {
	t, err := r.store.Trigger(ctx, tenant, id)
	if err != nil {
		return errors.WrapNotFound("registry", "RemoveTrigger", string(tenant), id)
	}

	if t.Group {
		members, err := r.store.Triggers(ctx, tenant)
		if err != nil {
			return errors.WrapStoreError(err, "registry", "RemoveTrigger")
		}
		for _, m := range members {
			if m.MemberOf == nil || *m.MemberOf != id {
				continue
			}
			keep := (m.Orphan && opts.KeepOrphans) || (!m.Orphan && opts.KeepNonOrphans)
			if keep {
				m.MemberOf = nil
				m.Orphan = false
				if err := r.store.PutTrigger(ctx, m); err != nil {
					return errors.WrapStoreError(err, "registry", "RemoveTrigger")
				}
				if m.Evaluable() {
					r.wm.PutTrigger(m.Clone())
				}
				continue
			}
			if err := r.cascadeDeleteOne(ctx, tenant, m.ID); err != nil {
				return err
			}
		}
	}

	if err := r.cascadeDeleteOne(ctx, tenant, id); err != nil {
		return err
	}
	r.fire(types.EventTriggerRemove, tenant, id, "")
	return nil
}

func (r *Registry) cascadeDeleteOne(ctx context.Context, tenant types.TenantID, id string) error {
	if err := r.store.DeleteTrigger(ctx, tenant, id); err != nil {
		return errors.WrapStoreError(err, "registry", "RemoveTrigger")
	}
	r.wm.RemoveTrigger(tenant, id)
	return nil
}

// SetConditions replaces the entire condition set for (tenant,triggerID,mode),
// assigning contiguous ConditionSetIndex values in iteration order.
func (r *Registry) SetConditions(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode, conditions []*types.Condition) error {
	t, err := r.store.Trigger(ctx, tenant, triggerID)
	if err != nil {
		return errors.WrapNotFound("registry", "SetConditions", string(tenant), triggerID)
	}
	if t.Member() && !t.Orphan {
		return errors.WrapIllegalState("registry", "SetConditions", string(tenant), triggerID,
			"non-orphan member conditions must be edited via their group")
	}

	normalized := normalizeConditionSet(tenant, triggerID, mode, conditions)
	if err := r.store.PutConditions(ctx, tenant, triggerID, mode, normalized); err != nil {
		return errors.WrapStoreError(err, "registry", "SetConditions")
	}
	if t.Evaluable() {
		r.wm.SetConditions(tenant, triggerID, mode, normalized)
	}
	r.fire(types.EventConditionChange, tenant, triggerID, mode)
	return nil
}

func normalizeConditionSet(tenant types.TenantID, triggerID string, mode types.Mode, conditions []*types.Condition) []*types.Condition {
	out := make([]*types.Condition, len(conditions))
	size := len(conditions)
	for i, c := range conditions {
		clone := c.Clone()
		clone.TenantID = tenant
		clone.TriggerID = triggerID
		clone.TriggerMode = mode
		clone.ConditionSetIndex = i + 1
		clone.ConditionSetSize = size
		clone.ID = types.NewConditionID(triggerID, mode, i+1)
		out[i] = clone
	}
	return out
}

// SetGroupConditions validates dataIDMemberMap against the group's token
// conditions, propagates the substituted conditions to every non-orphan
// member (all-or-nothing), and stores the token-bearing conditions on the
// group itself.
func (r *Registry) SetGroupConditions(ctx context.Context, tenant types.TenantID, groupID string, mode types.Mode, conditions []*types.Condition, dataIDMemberMap map[string]map[string]string) error {
	group, err := r.store.Trigger(ctx, tenant, groupID)
	if err != nil {
		return errors.WrapNotFound("registry", "SetGroupConditions", string(tenant), groupID)
	}
	if !group.Group {
		return errors.WrapIllegalState("registry", "SetGroupConditions", string(tenant), groupID, "not a group trigger")
	}

	members, err := r.nonOrphanMembers(ctx, tenant, groupID)
	if err != nil {
		return err
	}

	tokens := propagation.Tokens(conditions)
	memberResults := make(map[string][]*types.Condition, len(members))
	for _, m := range members {
		dataIDMap, err := perMemberDataIDMap(tokens, dataIDMemberMap, m.ID)
		if err != nil {
			return err
		}
		substituted := propagation.Substitute(conditions, dataIDMap)
		propagation.RebindTrigger(substituted, tenant, m.ID, mode)
		memberResults[m.ID] = normalizeConditionSet(tenant, m.ID, mode, substituted)
	}

	for memberID, conds := range memberResults {
		if err := r.store.PutConditions(ctx, tenant, memberID, mode, conds); err != nil {
			return errors.WrapStoreError(err, "registry", "SetGroupConditions")
		}
		r.wm.SetConditions(tenant, memberID, mode, conds)
		r.fire(types.EventConditionChange, tenant, memberID, mode)
	}

	groupConds := normalizeConditionSet(tenant, groupID, mode, conditions)
	if err := r.store.PutConditions(ctx, tenant, groupID, mode, groupConds); err != nil {
		return errors.WrapStoreError(err, "registry", "SetGroupConditions")
	}
	r.fire(types.EventConditionChange, tenant, groupID, mode)
	return nil
}

func perMemberDataIDMap(tokens []string, dataIDMemberMap map[string]map[string]string, memberID string) (map[string]string, error) {
	out := make(map[string]string, len(tokens))
	for _, token := range tokens {
		perMember, ok := dataIDMemberMap[token]
		if !ok {
			return nil, errors.WrapValidation("registry", "SetGroupConditions",
				"dataIdMemberMap missing entry for token "+token)
		}
		v, ok := perMember[memberID]
		if !ok {
			return nil, errors.WrapValidation("registry", "SetGroupConditions",
				"dataIdMemberMap missing member "+memberID+" for token "+token)
		}
		out[token] = v
	}
	return out, nil
}

func (r *Registry) nonOrphanMembers(ctx context.Context, tenant types.TenantID, groupID string) ([]*types.Trigger, error) {
	all, err := r.store.Triggers(ctx, tenant)
	if err != nil {
		return nil, errors.WrapStoreError(err, "registry", "nonOrphanMembers")
	}
	out := make([]*types.Trigger, 0)
	for _, t := range all {
		if t.MemberOf != nil && *t.MemberOf == groupID && !t.Orphan {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddDampening installs a Dampening fact for (tenant,triggerID,mode).
func (r *Registry) AddDampening(ctx context.Context, d *types.Dampening) error {
	return r.putDampening(ctx, d, true)
}

// UpdateDampening replaces an existing Dampening fact.
func (r *Registry) UpdateDampening(ctx context.Context, d *types.Dampening) error {
	return r.putDampening(ctx, d, false)
}

func (r *Registry) putDampening(ctx context.Context, d *types.Dampening, mustNotExist bool) error {
	if d == nil || d.TriggerID == "" {
		return errors.WrapValidation("registry", "putDampening", "dampening must reference a trigger")
	}
	t, err := r.store.Trigger(ctx, d.TenantID, d.TriggerID)
	if err != nil {
		return errors.WrapNotFound("registry", "putDampening", string(d.TenantID), d.TriggerID)
	}
	if t.Member() && !t.Orphan {
		return errors.WrapIllegalState("registry", "putDampening", string(d.TenantID), d.TriggerID,
			"non-orphan member dampening must be edited via their group")
	}
	_, existsErr := r.store.Dampening(ctx, d.TenantID, d.TriggerID, d.TriggerMode)
	if mustNotExist && existsErr == nil {
		return errors.WrapAlreadyExists("registry", "AddDampening", string(d.TenantID), d.TriggerID)
	}

	if err := r.store.PutDampening(ctx, d); err != nil {
		return errors.WrapStoreError(err, "registry", "putDampening")
	}
	if t.Evaluable() {
		r.wm.SetDampening(d.TenantID, d.TriggerID, d.TriggerMode, d.Clone())
	}
	r.fire(types.EventDampeningChange, d.TenantID, d.TriggerID, d.TriggerMode)
	return nil
}

// RemoveDampening deletes the Dampening fact for (tenant,triggerID,mode),
// causing the Rule Engine to inject the default STRICT(1,1,0) on next use.
func (r *Registry) RemoveDampening(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) error {
	t, err := r.store.Trigger(ctx, tenant, triggerID)
	if err != nil {
		return errors.WrapNotFound("registry", "RemoveDampening", string(tenant), triggerID)
	}
	if t.Member() && !t.Orphan {
		return errors.WrapIllegalState("registry", "RemoveDampening", string(tenant), triggerID,
			"non-orphan member dampening must be edited via their group")
	}
	if err := r.store.DeleteDampening(ctx, tenant, triggerID, mode); err != nil {
		return errors.WrapStoreError(err, "registry", "RemoveDampening")
	}
	r.wm.SetDampening(tenant, triggerID, mode, nil)
	r.fire(types.EventDampeningChange, tenant, triggerID, mode)
	return nil
}

// SetGroupDampening propagates a Dampening definition to every non-orphan
// member, all-or-nothing, and stores it on the group itself.
func (r *Registry) SetGroupDampening(ctx context.Context, tenant types.TenantID, groupID string, mode types.Mode, d *types.Dampening) error {
	group, err := r.store.Trigger(ctx, tenant, groupID)
	if err != nil {
		return errors.WrapNotFound("registry", "SetGroupDampening", string(tenant), groupID)
	}
	if !group.Group {
		return errors.WrapIllegalState("registry", "SetGroupDampening", string(tenant), groupID, "not a group trigger")
	}
	members, err := r.nonOrphanMembers(ctx, tenant, groupID)
	if err != nil {
		return err
	}

	for _, m := range members {
		memberD := d.Clone()
		memberD.TenantID = tenant
		memberD.TriggerID = m.ID
		memberD.TriggerMode = mode
		if err := r.store.PutDampening(ctx, memberD); err != nil {
			return errors.WrapStoreError(err, "registry", "SetGroupDampening")
		}
	}
	for _, m := range members {
		r.wm.SetDampening(tenant, m.ID, mode, d.Clone())
		r.fire(types.EventDampeningChange, tenant, m.ID, mode)
	}

	groupD := d.Clone()
	groupD.TenantID, groupD.TriggerID, groupD.TriggerMode = tenant, groupID, mode
	if err := r.store.PutDampening(ctx, groupD); err != nil {
		return errors.WrapStoreError(err, "registry", "SetGroupDampening")
	}
	r.fire(types.EventDampeningChange, tenant, groupID, mode)
	return nil
}

// AddMemberTrigger constructs a member trigger by copying the group's
// attributes and instantiating each group condition via dataIDMap.
// dataIDMap's key set must equal the group's token dataIds exactly.
func (r *Registry) AddMemberTrigger(ctx context.Context, tenant types.TenantID, groupID, memberID, memberName string, memberContext map[string]string, dataIDMap map[string]string) error {
	group, err := r.store.Trigger(ctx, tenant, groupID)
	if err != nil {
		return errors.WrapNotFound("registry", "AddMemberTrigger", string(tenant), groupID)
	}
	if !group.Group {
		return errors.WrapIllegalState("registry", "AddMemberTrigger", string(tenant), groupID, "not a group trigger")
	}
	if _, err := r.store.Trigger(ctx, tenant, memberID); err == nil {
		return errors.WrapAlreadyExists("registry", "AddMemberTrigger", string(tenant), memberID)
	}

	member := group.Clone()
	member.ID = memberID
	member.Name = memberName
	member.Context = memberContext
	groupIDCopy := groupID
	member.MemberOf = &groupIDCopy
	member.Orphan = false
	member.Group = false
	member.ActiveMode = types.ModeFiring

	if err := r.instantiateMember(ctx, tenant, group, member, dataIDMap); err != nil {
		return err
	}

	if err := r.store.PutTrigger(ctx, member); err != nil {
		return errors.WrapStoreError(err, "registry", "AddMemberTrigger")
	}
	if member.Evaluable() {
		r.wm.PutTrigger(member.Clone())
	}
	r.fire(types.EventTriggerCreate, tenant, memberID, "")
	return nil
}

// instantiateMember substitutes the group's conditions, dampening, and tags
// into member's own mode-scoped facts, for both FIRING and AUTORESOLVE.
func (r *Registry) instantiateMember(ctx context.Context, tenant types.TenantID, group, member *types.Trigger, dataIDMap map[string]string) error {
	for _, mode := range []types.Mode{types.ModeFiring, types.ModeAutoResolve} {
		groupConds, err := r.store.Conditions(ctx, tenant, group.ID, mode)
		if err != nil {
			return errors.WrapStoreError(err, "registry", "AddMemberTrigger")
		}
		if len(groupConds) == 0 {
			continue
		}
		if err := propagation.ValidateDataIDMap(groupConds, dataIDMap); err != nil {
			return err
		}
		substituted := propagation.Substitute(groupConds, dataIDMap)
		propagation.RebindTrigger(substituted, tenant, member.ID, mode)
		normalized := normalizeConditionSet(tenant, member.ID, mode, substituted)
		if err := r.store.PutConditions(ctx, tenant, member.ID, mode, normalized); err != nil {
			return errors.WrapStoreError(err, "registry", "AddMemberTrigger")
		}
		if member.Evaluable() {
			r.wm.SetConditions(tenant, member.ID, mode, normalized)
		}

		if groupD, err := r.store.Dampening(ctx, tenant, group.ID, mode); err == nil {
			memberD := groupD.Clone()
			memberD.TenantID, memberD.TriggerID, memberD.TriggerMode = tenant, member.ID, mode
			if err := r.store.PutDampening(ctx, memberD); err != nil {
				return errors.WrapStoreError(err, "registry", "AddMemberTrigger")
			}
			if member.Evaluable() {
				r.wm.SetDampening(tenant, member.ID, mode, memberD.Clone())
			}
		}
	}

	if tags, err := r.store.Tags(ctx, tenant, group.ID); err == nil && len(tags) > 0 {
		if err := r.store.PutTags(ctx, tenant, member.ID, tags); err != nil {
			return errors.WrapStoreError(err, "registry", "AddMemberTrigger")
		}
	}
	return nil
}

// OrphanMemberTrigger detaches member from group propagation; it may now
// be edited directly and is untouched by future group edits.
func (r *Registry) OrphanMemberTrigger(ctx context.Context, tenant types.TenantID, memberID string) error {
	m, err := r.store.Trigger(ctx, tenant, memberID)
	if err != nil {
		return errors.WrapNotFound("registry", "OrphanMemberTrigger", string(tenant), memberID)
	}
	if !m.Member() {
		return errors.WrapIllegalState("registry", "OrphanMemberTrigger", string(tenant), memberID, "not a member trigger")
	}
	m.Orphan = true
	if err := r.store.PutTrigger(ctx, m); err != nil {
		return errors.WrapStoreError(err, "registry", "OrphanMemberTrigger")
	}
	if m.Evaluable() {
		r.wm.PutTrigger(m.Clone())
	}
	r.fire(types.EventTriggerUpdate, tenant, memberID, "")
	return nil
}

// UnorphanMemberTrigger re-synthesizes member from its current group using
// dataIDMap, then resumes group propagation.
func (r *Registry) UnorphanMemberTrigger(ctx context.Context, tenant types.TenantID, memberID string, dataIDMap map[string]string) error {
	m, err := r.store.Trigger(ctx, tenant, memberID)
	if err != nil {
		return errors.WrapNotFound("registry", "UnorphanMemberTrigger", string(tenant), memberID)
	}
	if !m.Member() {
		return errors.WrapIllegalState("registry", "UnorphanMemberTrigger", string(tenant), memberID, "not a member trigger")
	}
	group, err := r.store.Trigger(ctx, tenant, *m.MemberOf)
	if err != nil {
		return errors.WrapNotFound("registry", "UnorphanMemberTrigger", string(tenant), *m.MemberOf)
	}

	resynced := group.Clone()
	resynced.ID = m.ID
	resynced.Name = m.Name
	resynced.Context = m.Context
	groupID := group.ID
	resynced.MemberOf = &groupID
	resynced.Orphan = false
	resynced.Group = false
	resynced.ActiveMode = m.ActiveMode

	if err := r.instantiateMember(ctx, tenant, group, resynced, dataIDMap); err != nil {
		return err
	}
	if err := r.store.PutTrigger(ctx, resynced); err != nil {
		return errors.WrapStoreError(err, "registry", "UnorphanMemberTrigger")
	}
	if resynced.Evaluable() {
		r.wm.PutTrigger(resynced.Clone())
	}
	r.fire(types.EventTriggerUpdate, tenant, memberID, "")
	return nil
}
