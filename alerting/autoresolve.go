package alerting

import (
	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/types"
)

// switchToAutoResolve flips a trigger's active condition set to
// AUTORESOLVE after it fires with autoResolve=true (§4.4): from this
// point the Rule Engine evaluates the trigger's AUTORESOLVE conditions
// and dampening instead of its FIRING set, until those are satisfied.
func switchToAutoResolve(wm *memory.WorkingMemory, tenant types.TenantID, triggerID string) {
	wm.SetActiveMode(tenant, triggerID, types.ModeAutoResolve)
}

// switchToFiring returns a trigger to its FIRING condition set once its
// AUTORESOLVE dampening is satisfied (§4.4).
func switchToFiring(wm *memory.WorkingMemory, tenant types.TenantID, triggerID string) {
	wm.SetActiveMode(tenant, triggerID, types.ModeFiring)
}
