package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/types"
)

// bootstrapFile pairs the on-disk name with the top-level JSON key it
// wraps, per §6's bootstrap format.
type bootstrapFile struct {
	name string
	key  string
}

var bootstrapFiles = []bootstrapFile{
	{"triggers-data.json", "triggers"},
	{"conditions-data.json", "conditions"},
	{"dampening-data.json", "dampening"},
	{"actions-data.json", "actions"},
}

// triggersDoc, conditionsDoc, dampeningDoc and actionsDoc mirror the
// bootstrap JSON files' top-level shape: one key holding an ordered
// sequence of entity mappings (§6).
type triggersDoc struct {
	Triggers []*types.Trigger `json:"triggers"`
}

type conditionEntry struct {
	TenantID  types.TenantID   `json:"tenant_id"`
	TriggerID string           `json:"trigger_id"`
	Mode      types.Mode       `json:"mode"`
	Condition *types.Condition `json:"condition"`
}

type conditionsDoc struct {
	Conditions []conditionEntry `json:"conditions"`
}

type dampeningDoc struct {
	Dampening []*types.Dampening `json:"dampening"`
}

type actionsDoc struct {
	Actions []*types.Action `json:"actions"`
}

// Bootstrap loads triggers-data.json, conditions-data.json,
// dampening-data.json and actions-data.json from dataDir into store, if
// present, per §6. Missing files are skipped, not an error: a fresh
// deployment may ship only some of them. The skip-init-data process flag
// (§6) is the caller's responsibility — Bootstrap always loads when called.
func Bootstrap(ctx context.Context, s DefinitionsStore, dataDir string) error {
	for _, f := range bootstrapFiles {
		path := filepath.Join(dataDir, f.name)
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.WrapStoreError(err, "store", "Bootstrap")
		}
		if err := loadOne(ctx, s, f.name, raw); err != nil {
			return err
		}
	}
	return nil
}

func loadOne(ctx context.Context, s DefinitionsStore, name string, raw []byte) error {
	switch name {
	case "triggers-data.json":
		var doc triggersDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return errors.WrapValidation("store", "Bootstrap", fmt.Sprintf("parse %s: %v", name, err))
		}
		for _, t := range doc.Triggers {
			if err := s.PutTrigger(ctx, t); err != nil {
				return err
			}
		}
	case "conditions-data.json":
		var doc conditionsDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return errors.WrapValidation("store", "Bootstrap", fmt.Sprintf("parse %s: %v", name, err))
		}
		grouped := make(map[modeKey][]*types.Condition)
		order := make([]modeKey, 0)
		for _, e := range doc.Conditions {
			key := modeKey{e.TenantID, e.TriggerID, e.Mode}
			if _, seen := grouped[key]; !seen {
				order = append(order, key)
			}
			grouped[key] = append(grouped[key], e.Condition)
		}
		for _, key := range order {
			if err := s.PutConditions(ctx, key.tenant, key.trigger, key.mode, grouped[key]); err != nil {
				return err
			}
		}
	case "dampening-data.json":
		var doc dampeningDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return errors.WrapValidation("store", "Bootstrap", fmt.Sprintf("parse %s: %v", name, err))
		}
		for _, d := range doc.Dampening {
			if err := s.PutDampening(ctx, d); err != nil {
				return err
			}
		}
	case "actions-data.json":
		var doc actionsDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return errors.WrapValidation("store", "Bootstrap", fmt.Sprintf("parse %s: %v", name, err))
		}
		for _, a := range doc.Actions {
			if err := s.PutAction(ctx, a); err != nil {
				return err
			}
		}
	}
	return nil
}
