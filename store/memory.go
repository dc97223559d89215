package store

import (
	"context"
	"sync"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/types"
)

type triggerKey struct {
	tenant types.TenantID
	id     string
}

type modeKey struct {
	tenant  types.TenantID
	trigger string
	mode    types.Mode
}

type actionKey struct {
	tenant types.TenantID
	plugin string
	id     string
}

// MemoryStore is a reference DefinitionsStore implementation backed by
// in-process maps, generalized from flowstore.Store's CRUD-with-mutex shape
// (flowstore/store.go) to the engine's five entity kinds. It has no
// durability guarantees and exists for tests, local development, and
// single-node bootstrap — a real deployment would back DefinitionsStore
// with its own durable store behind this same interface.
type MemoryStore struct {
	mu         sync.RWMutex
	triggers   map[triggerKey]*types.Trigger
	conditions map[modeKey][]*types.Condition
	dampenings map[modeKey]*types.Dampening
	plugins    map[types.TenantID]map[string]*types.ActionPlugin
	actions    map[actionKey]*types.Action
	tags       map[triggerKey]map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		triggers:   make(map[triggerKey]*types.Trigger),
		conditions: make(map[modeKey][]*types.Condition),
		dampenings: make(map[modeKey]*types.Dampening),
		plugins:    make(map[types.TenantID]map[string]*types.ActionPlugin),
		actions:    make(map[actionKey]*types.Action),
		tags:       make(map[triggerKey]map[string]string),
	}
}

func (s *MemoryStore) Triggers(ctx context.Context, tenant types.TenantID) ([]*types.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Trigger, 0)
	for k, t := range s.triggers {
		if k.tenant == tenant {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Trigger(ctx context.Context, tenant types.TenantID, id string) (*types.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.triggers[triggerKey{tenant, id}]
	if !ok {
		return nil, errors.WrapNotFound("store", "Trigger", string(tenant), id)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) PutTrigger(ctx context.Context, t *types.Trigger) error {
	if t == nil || t.ID == "" || !t.TenantID.Valid() {
		return errors.WrapValidation("store", "PutTrigger", "trigger must have a tenant and id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[triggerKey{t.TenantID, t.ID}] = t.Clone()
	return nil
}

func (s *MemoryStore) DeleteTrigger(ctx context.Context, tenant types.TenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := triggerKey{tenant, id}
	if _, ok := s.triggers[key]; !ok {
		return errors.WrapNotFound("store", "DeleteTrigger", string(tenant), id)
	}
	delete(s.triggers, key)
	for _, mode := range []types.Mode{types.ModeFiring, types.ModeAutoResolve} {
		delete(s.conditions, modeKey{tenant, id, mode})
		delete(s.dampenings, modeKey{tenant, id, mode})
	}
	delete(s.tags, key)
	return nil
}

func (s *MemoryStore) Conditions(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) ([]*types.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conditions[modeKey{tenant, triggerID, mode}], nil
}

func (s *MemoryStore) PutConditions(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode, conditions []*types.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditions[modeKey{tenant, triggerID, mode}] = conditions
	return nil
}

func (s *MemoryStore) Dampening(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) (*types.Dampening, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dampenings[modeKey{tenant, triggerID, mode}]
	if !ok {
		return nil, errors.WrapNotFound("store", "Dampening", string(tenant), triggerID)
	}
	return d, nil
}

func (s *MemoryStore) PutDampening(ctx context.Context, d *types.Dampening) error {
	if d == nil || d.TriggerID == "" {
		return errors.WrapValidation("store", "PutDampening", "dampening must reference a trigger")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dampenings[modeKey{d.TenantID, d.TriggerID, d.TriggerMode}] = d
	return nil
}

func (s *MemoryStore) DeleteDampening(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := modeKey{tenant, triggerID, mode}
	if _, ok := s.dampenings[key]; !ok {
		return errors.WrapNotFound("store", "DeleteDampening", string(tenant), triggerID)
	}
	delete(s.dampenings, key)
	return nil
}

func (s *MemoryStore) ActionPlugins(ctx context.Context, tenant types.TenantID) ([]*types.ActionPlugin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.ActionPlugin, 0)
	for _, p := range s.plugins[tenant] {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) Actions(ctx context.Context, tenant types.TenantID, plugin string) ([]*types.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Action, 0)
	for k, a := range s.actions {
		if k.tenant == tenant && k.plugin == plugin {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutAction(ctx context.Context, a *types.Action) error {
	if a == nil || a.ActionID == "" || a.ActionPlugin == "" {
		return errors.WrapValidation("store", "PutAction", "action must have a plugin and id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plugins[a.TenantID] == nil {
		s.plugins[a.TenantID] = make(map[string]*types.ActionPlugin)
	}
	if _, ok := s.plugins[a.TenantID][a.ActionPlugin]; !ok {
		s.plugins[a.TenantID][a.ActionPlugin] = &types.ActionPlugin{Name: a.ActionPlugin}
	}
	s.actions[actionKey{a.TenantID, a.ActionPlugin, a.ActionID}] = a
	return nil
}

func (s *MemoryStore) DeleteAction(ctx context.Context, tenant types.TenantID, plugin, actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := actionKey{tenant, plugin, actionID}
	if _, ok := s.actions[key]; !ok {
		return errors.WrapNotFound("store", "DeleteAction", string(tenant), actionID)
	}
	delete(s.actions, key)
	return nil
}

func (s *MemoryStore) Tags(ctx context.Context, tenant types.TenantID, triggerID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tags[triggerKey{tenant, triggerID}], nil
}

func (s *MemoryStore) PutTags(ctx context.Context, tenant types.TenantID, triggerID string, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[triggerKey{tenant, triggerID}] = tags
	return nil
}

// AllTriggers is the admin cross-tenant fetch (§4.6, §5). Callers are
// expected to bound ctx with the default one-minute timeout; MemoryStore
// itself never blocks long enough to hit it.
func (s *MemoryStore) AllTriggers(ctx context.Context) ([]*types.Trigger, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapStoreError(err, "store", "AllTriggers")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Trigger, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, t.Clone())
	}
	return out, nil
}

// AllDampenings is the admin cross-tenant fetch (§4.6) over every
// Dampening fact currently stored, regardless of tenant.
func (s *MemoryStore) AllDampenings(ctx context.Context) ([]*types.Dampening, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapStoreError(err, "store", "AllDampenings")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Dampening, 0, len(s.dampenings))
	for _, d := range s.dampenings {
		out = append(out, d.Clone())
	}
	return out, nil
}

// AllConditions is the admin cross-tenant fetch (§4.6) over every
// Condition currently stored, regardless of tenant.
func (s *MemoryStore) AllConditions(ctx context.Context) ([]*types.Condition, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapStoreError(err, "store", "AllConditions")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Condition
	for _, conditions := range s.conditions {
		for _, c := range conditions {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// AllTriggersByTag is the admin cross-tenant fetch (§4.6) of every
// Trigger, in any tenant, tagged with name=value — a linear scan, since
// MemoryStore keeps no secondary tag index.
func (s *MemoryStore) AllTriggersByTag(ctx context.Context, name, value string) ([]*types.Trigger, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapStoreError(err, "store", "AllTriggersByTag")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Trigger
	for key, t := range s.triggers {
		if tags, ok := s.tags[key]; ok && tags[name] == value {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

var _ DefinitionsStore = (*MemoryStore)(nil)
