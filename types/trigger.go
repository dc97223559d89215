package types

// Severity is the Trigger's configured alert severity.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// TriggerEventType distinguishes Triggers that produce full lifecycle
// Alerts from ones that merely emit lightweight Events.
type TriggerEventType string

const (
	TriggerEventAlert TriggerEventType = "ALERT"
	TriggerEventEvent TriggerEventType = "EVENT"
)

// MatchPolicy is the reduction applied across a multi-condition evaluation
// tuple's per-evaluation match outcomes.
type MatchPolicy string

const (
	MatchAll MatchPolicy = "ALL"
	MatchAny MatchPolicy = "ANY"
)

// Reduce folds a slice of per-condition match outcomes into the tuple's
// overall match outcome, per this policy. An empty slice reduces to false.
func (p MatchPolicy) Reduce(matches []bool) bool {
	if len(matches) == 0 {
		return false
	}
	switch p {
	case MatchAny:
		for _, m := range matches {
			if m {
				return true
			}
		}
		return false
	case MatchAll:
		fallthrough
	default:
		for _, m := range matches {
			if !m {
				return false
			}
		}
		return true
	}
}

// Mode selects which of a Trigger's two independent condition/dampening
// sets is currently active.
type Mode string

const (
	ModeFiring      Mode = "FIRING"
	ModeAutoResolve Mode = "AUTORESOLVE"
)

// Trigger is a user-defined alert rule. It is exactly one of standalone,
// group, or member (§3 invariant): Group implies MemberOf is nil;
// MemberOf non-nil implies Group is false. An Orphan is a member that has
// been detached from its group's edits.
type Trigger struct {
	TenantID TenantID `json:"tenant_id"`
	ID       string   `json:"id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`

	Severity      Severity         `json:"severity"`
	EventCategory string           `json:"event_category,omitempty"`
	EventText     string           `json:"event_text,omitempty"`
	EventType     TriggerEventType `json:"event_type"`

	FiringMatch      MatchPolicy `json:"firing_match"`
	AutoResolveMatch MatchPolicy `json:"auto_resolve_match"`

	AutoDisable       bool `json:"auto_disable"`
	AutoEnable        bool `json:"auto_enable"`
	AutoResolve       bool `json:"auto_resolve"`
	AutoResolveAlerts bool `json:"auto_resolve_alerts"`

	Context map[string]string `json:"context,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`

	// Actions maps an action plugin name to the set of action ids on that
	// plugin bound to this trigger.
	Actions map[string][]string `json:"actions,omitempty"`

	Group    bool    `json:"group"`
	MemberOf *string `json:"member_of,omitempty"`
	Orphan   bool    `json:"orphan"`

	// ActiveMode is volatile working-memory state: which condition set
	// currently drives evaluation. Standalone/member triggers start in
	// ModeFiring; AutoResolve flips it to ModeAutoResolve until the
	// AUTORESOLVE dampening is satisfied (§4.4).
	ActiveMode Mode `json:"-"`
}

// Standalone reports whether t is neither a group template nor a member.
func (t *Trigger) Standalone() bool {
	return !t.Group && t.MemberOf == nil
}

// Member reports whether t is bound to a group (orphaned or not).
func (t *Trigger) Member() bool {
	return t.MemberOf != nil
}

// Evaluable reports whether the Rule Engine should ever evaluate Data
// against this trigger: group templates never evaluate data directly.
func (t *Trigger) Evaluable() bool {
	return t.Enabled && !t.Group
}

// Clone returns a deep copy suitable for safe publication into Working
// Memory (copy-on-publish per §5).
func (t *Trigger) Clone() *Trigger {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Context = cloneStringMap(t.Context)
	clone.Tags = cloneStringMap(t.Tags)
	if t.MemberOf != nil {
		memberOf := *t.MemberOf
		clone.MemberOf = &memberOf
	}
	if t.Actions != nil {
		clone.Actions = make(map[string][]string, len(t.Actions))
		for plugin, ids := range t.Actions {
			cp := make([]string, len(ids))
			copy(cp, ids)
			clone.Actions[plugin] = cp
		}
	}
	return &clone
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
