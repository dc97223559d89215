// Package propagation implements the Group Propagator (§4.5): rewriting a
// group Trigger's token-bearing Conditions into a concrete member's
// Conditions by substituting each token dataId (and COMPARE's data2Id, and
// EXTERNAL's literal expression occurrences) with the value the member
// supplies in its dataIdMap.
//
// There is no single teacher file for "template instantiation by token
// substitution"; this is grounded on the same rewrite idiom the teacher
// uses for graph token rewriting when cloning a subgraph into a new
// namespace (processor/graph/datamanager.go's id-remapping pass over a
// node's edges) — copy the structure, walk it once, substitute identifiers
// via a lookup map, fail the whole rewrite if any required token is
// missing.
package propagation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/types"
)

// Tokens returns every token dataId a group's condition set references,
// including COMPARE's data2Id, deduplicated.
func Tokens(conditions []*types.Condition) []string {
	seen := make(map[string]struct{})
	for _, c := range conditions {
		for _, id := range c.DataIDs() {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ValidateDataIDMap reports a ClassValidation error if dataIDMap is
// missing any token referenced by conditions. Per the decided open
// question (§9), an empty dataIDMap against a zero-token condition set is
// not an error — only missing coverage for referenced tokens is.
func ValidateDataIDMap(conditions []*types.Condition, dataIDMap map[string]string) error {
	for _, token := range Tokens(conditions) {
		if _, ok := dataIDMap[token]; !ok {
			return errors.WrapValidation("propagation", "ValidateDataIDMap",
				fmt.Sprintf("dataIdMap missing entry for token %q", token))
		}
	}
	return nil
}

// Substitute returns a deep copy of conditions with every token dataId
// (and COMPARE's data2Id) rewritten via dataIDMap, and every EXTERNAL
// expression's literal token occurrences replaced by the member's value.
// Substitute does not validate coverage; call ValidateDataIDMap first.
func Substitute(conditions []*types.Condition, dataIDMap map[string]string) []*types.Condition {
	out := make([]*types.Condition, len(conditions))
	for i, c := range conditions {
		out[i] = substituteOne(c, dataIDMap)
	}
	return out
}

func substituteOne(c *types.Condition, dataIDMap map[string]string) *types.Condition {
	clone := c.Clone()
	switch clone.Type {
	case types.ConditionThreshold:
		clone.Threshold.DataID = rewrite(clone.Threshold.DataID, dataIDMap)
	case types.ConditionThresholdRange:
		clone.ThresholdRange.DataID = rewrite(clone.ThresholdRange.DataID, dataIDMap)
	case types.ConditionCompare:
		clone.Compare.DataID = rewrite(clone.Compare.DataID, dataIDMap)
		clone.Compare.Data2ID = rewrite(clone.Compare.Data2ID, dataIDMap)
	case types.ConditionString:
		clone.String.DataID = rewrite(clone.String.DataID, dataIDMap)
	case types.ConditionAvailability:
		clone.Availability.DataID = rewrite(clone.Availability.DataID, dataIDMap)
	case types.ConditionEvent:
		clone.Event.DataID = rewrite(clone.Event.DataID, dataIDMap)
	case types.ConditionExternal:
		clone.External.DataID = rewrite(clone.External.DataID, dataIDMap)
		clone.External.Expression = rewriteExpression(clone.External.Expression, dataIDMap)
	}
	return clone
}

func rewrite(token string, dataIDMap map[string]string) string {
	if v, ok := dataIDMap[token]; ok {
		return v
	}
	return token
}

// rewriteExpression replaces every literal occurrence of a known token
// dataId in expression with the member's dataId (§4.5).
func rewriteExpression(expression string, dataIDMap map[string]string) string {
	for token, memberID := range dataIDMap {
		expression = strings.ReplaceAll(expression, token, memberID)
	}
	return expression
}

// RebindTrigger reassigns the tenant, trigger id, and mode on each
// substituted condition so it belongs to the member trigger rather than
// the group template.
func RebindTrigger(conditions []*types.Condition, tenant types.TenantID, memberID string, mode types.Mode) []*types.Condition {
	for _, c := range conditions {
		c.TenantID = tenant
		c.TriggerID = memberID
		c.TriggerMode = mode
	}
	return conditions
}
