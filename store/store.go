// Package store defines the Definitions Store boundary (§6): the external
// collaborator responsible for persisting Triggers, Conditions, Dampening,
// Actions, Action Plugins, and Tags. The engine only ever consumes this
// interface — it never assumes a storage technology. DefinitionsStore is
// grounded on flowstore.Store's CRUD shape (flowstore/store.go), generalized
// from one entity type to the full set §3 defines.
package store

import (
	"context"

	"github.com/c360/alertengine/types"
)

// DefinitionsStore is the persistence boundary consumed by the Definitions
// Registry. Every operation is tenant-scoped; any operation may fail with an
// *errors.EngineError of class StoreError.
type DefinitionsStore interface {
	Triggers(ctx context.Context, tenant types.TenantID) ([]*types.Trigger, error)
	Trigger(ctx context.Context, tenant types.TenantID, id string) (*types.Trigger, error)
	PutTrigger(ctx context.Context, t *types.Trigger) error
	DeleteTrigger(ctx context.Context, tenant types.TenantID, id string) error

	Conditions(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) ([]*types.Condition, error)
	PutConditions(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode, conditions []*types.Condition) error

	Dampening(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) (*types.Dampening, error)
	PutDampening(ctx context.Context, d *types.Dampening) error
	DeleteDampening(ctx context.Context, tenant types.TenantID, triggerID string, mode types.Mode) error

	ActionPlugins(ctx context.Context, tenant types.TenantID) ([]*types.ActionPlugin, error)
	Actions(ctx context.Context, tenant types.TenantID, plugin string) ([]*types.Action, error)
	PutAction(ctx context.Context, a *types.Action) error
	DeleteAction(ctx context.Context, tenant types.TenantID, plugin, actionID string) error

	Tags(ctx context.Context, tenant types.TenantID, triggerID string) (map[string]string, error)
	PutTags(ctx context.Context, tenant types.TenantID, triggerID string, tags map[string]string) error

	// AllTriggers, AllDampenings, AllConditions, and AllTriggersByTag are
	// the closed set of admin cross-tenant fetches (§4.6): the only
	// operations that may return multiple tenants' data. Each must carry
	// a hard timeout via ctx, default one minute, enforced by the caller.
	AllTriggers(ctx context.Context) ([]*types.Trigger, error)
	AllDampenings(ctx context.Context) ([]*types.Dampening, error)
	AllConditions(ctx context.Context) ([]*types.Condition, error)
	AllTriggersByTag(ctx context.Context, name, value string) ([]*types.Trigger, error)
}

// ChangeWatcher is the external change-event subscription the engine keeps
// the Definitions Registry synchronized with (§6): {TRIGGER_CREATE,
// TRIGGER_UPDATE, TRIGGER_REMOVE, CONDITION_CHANGE, DAMPENING_CHANGE}.
type ChangeWatcher interface {
	Events() <-chan types.DefinitionsEvent
	Close() error
}
