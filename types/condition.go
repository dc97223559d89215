package types

import "fmt"

// ConditionType discriminates the Condition variants. Exactly one of the
// variant fields on a Condition is populated, matching this value.
type ConditionType string

const (
	ConditionThreshold      ConditionType = "THRESHOLD"
	ConditionThresholdRange ConditionType = "THRESHOLD_RANGE"
	ConditionCompare        ConditionType = "COMPARE"
	ConditionString         ConditionType = "STRING"
	ConditionAvailability   ConditionType = "AVAILABILITY"
	ConditionEvent          ConditionType = "EVENT"
	ConditionExternal       ConditionType = "EXTERNAL"
)

// ThresholdOperator compares a numeric value to a fixed threshold.
type ThresholdOperator string

const (
	OpLT  ThresholdOperator = "LT"
	OpLTE ThresholdOperator = "LTE"
	OpGT  ThresholdOperator = "GT"
	OpGTE ThresholdOperator = "GTE"
	OpEQ  ThresholdOperator = "EQ"
)

// StringOperator compares a string Data value against a pattern.
type StringOperator string

const (
	StringEqual      StringOperator = "EQUAL"
	StringNotEqual   StringOperator = "NOT_EQUAL"
	StringStartsWith StringOperator = "STARTS_WITH"
	StringEndsWith   StringOperator = "ENDS_WITH"
	StringContains   StringOperator = "CONTAINS"
	StringMatches    StringOperator = "MATCHES"
)

// AvailabilityOperator checks an Availability Data value.
type AvailabilityOperator string

const (
	AvailabilityDown  AvailabilityOperator = "DOWN"
	AvailabilityNotUp AvailabilityOperator = "NOT_UP"
	AvailabilityUp    AvailabilityOperator = "UP"
)

// ThresholdCondition matches a numeric Data value against a fixed value.
type ThresholdCondition struct {
	DataID    string            `json:"data_id"`
	Operator  ThresholdOperator `json:"operator"`
	Threshold float64           `json:"threshold"`
}

// ThresholdRangeCondition matches a numeric Data value falling (or, if
// InRange is false, not falling) between Low and High under OpLow/OpHigh.
type ThresholdRangeCondition struct {
	DataID  string            `json:"data_id"`
	OpLow   ThresholdOperator `json:"op_low"`
	OpHigh  ThresholdOperator `json:"op_high"`
	Low     float64           `json:"low"`
	High    float64           `json:"high"`
	InRange bool              `json:"in_range"`
}

// CompareCondition matches one Data stream against another, scaled.
type CompareCondition struct {
	DataID          string            `json:"data_id"`
	Operator        ThresholdOperator `json:"operator"`
	Data2ID         string            `json:"data2_id"`
	Data2Multiplier float64           `json:"data2_multiplier"`
}

// StringCondition matches a string Data value against a pattern.
type StringCondition struct {
	DataID     string         `json:"data_id"`
	Operator   StringOperator `json:"operator"`
	Pattern    string         `json:"pattern"`
	IgnoreCase bool           `json:"ignore_case"`
}

// AvailabilityCondition matches an Availability Data value.
type AvailabilityCondition struct {
	DataID   string               `json:"data_id"`
	Operator AvailabilityOperator `json:"operator"`
}

// EventCondition matches an Event Data value against a fixed expression.
type EventCondition struct {
	DataID     string `json:"data_id"`
	Expression string `json:"expression"`
}

// ExternalCondition is never evaluated internally; it is delegated to a
// named external system via SystemID (§3, §9).
type ExternalCondition struct {
	DataID     string `json:"data_id"`
	SystemID   string `json:"system_id"`
	Expression string `json:"expression"`
}

// Condition is the tagged-sum Condition type. Identity is
// (TenantID, TriggerID, TriggerMode, ConditionSetIndex); ConditionID is
// deterministically derived from those via NewConditionID.
type Condition struct {
	TenantID TenantID `json:"tenant_id"`
	ID       string   `json:"id"`

	TriggerID   string        `json:"trigger_id"`
	TriggerMode Mode          `json:"trigger_mode"`
	Type        ConditionType `json:"type"`

	ConditionSetSize  int `json:"condition_set_size"`
	ConditionSetIndex int `json:"condition_set_index"`

	Threshold      *ThresholdCondition      `json:"threshold,omitempty"`
	ThresholdRange *ThresholdRangeCondition `json:"threshold_range,omitempty"`
	Compare        *CompareCondition        `json:"compare,omitempty"`
	String         *StringCondition         `json:"string,omitempty"`
	Availability   *AvailabilityCondition   `json:"availability,omitempty"`
	Event          *EventCondition          `json:"event,omitempty"`
	External       *ExternalCondition       `json:"external,omitempty"`
}

// NewConditionID derives the deterministic id for a condition's identity
// tuple (§3).
func NewConditionID(triggerID string, mode Mode, index int) string {
	return fmt.Sprintf("%s-%s-%d", triggerID, mode, index)
}

// DataIDs returns the dataId(s) this condition reads from, in the order a
// working-memory index should key on them. COMPARE reads two streams.
func (c *Condition) DataIDs() []string {
	switch c.Type {
	case ConditionThreshold:
		return []string{c.Threshold.DataID}
	case ConditionThresholdRange:
		return []string{c.ThresholdRange.DataID}
	case ConditionCompare:
		return []string{c.Compare.DataID, c.Compare.Data2ID}
	case ConditionString:
		return []string{c.String.DataID}
	case ConditionAvailability:
		return []string{c.Availability.DataID}
	case ConditionEvent:
		return []string{c.Event.DataID}
	case ConditionExternal:
		return []string{c.External.DataID}
	default:
		return nil
	}
}

// Clone returns a deep copy, safe for copy-on-publish into working memory.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Threshold != nil {
		v := *c.Threshold
		clone.Threshold = &v
	}
	if c.ThresholdRange != nil {
		v := *c.ThresholdRange
		clone.ThresholdRange = &v
	}
	if c.Compare != nil {
		v := *c.Compare
		clone.Compare = &v
	}
	if c.String != nil {
		v := *c.String
		clone.String = &v
	}
	if c.Availability != nil {
		v := *c.Availability
		clone.Availability = &v
	}
	if c.Event != nil {
		v := *c.Event
		clone.Event = &v
	}
	if c.External != nil {
		v := *c.External
		clone.External = &v
	}
	return &clone
}
