package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/types"
)

// DataLookup is the narrow slice of working memory the matcher needs: the
// most recently inserted, not-yet-retracted Data item for a dataId, used
// by COMPARE to read its partner stream (§4.2).
type DataLookup interface {
	CurrentValue(tenant types.TenantID, dataID string) (*types.Data, bool)
}

// ExternalEvaluator delegates EXTERNAL condition evaluation to a named
// external system (§3, §9). The engine ships no built-in implementation;
// by default EXTERNAL conditions never match.
type ExternalEvaluator interface {
	Evaluate(c *types.ExternalCondition, d *types.Data) (bool, error)
}

// NoopExternalEvaluator is the default ExternalEvaluator: every EXTERNAL
// condition evaluates to match=false, since no external system is wired.
type NoopExternalEvaluator struct{}

func (NoopExternalEvaluator) Evaluate(*types.ExternalCondition, *types.Data) (bool, error) {
	return false, nil
}

type matchFunc func(m *Matcher, c *types.Condition, d *types.Data, lookup DataLookup) (bool, error)

// Matcher evaluates one Data item against one Condition, dispatching by
// ConditionType through a lookup table, generalized from the teacher's
// operator-dispatch table in expression/evaluator.go (there: a map from
// operator name to func(fieldValue, compareValue) (bool, error); here: a
// map from condition type to its match predicate).
type Matcher struct {
	operators map[types.ConditionType]matchFunc
	regexes   *regexCache
	external  ExternalEvaluator
}

// NewMatcher builds a Matcher. external may be nil, in which case EXTERNAL
// conditions use NoopExternalEvaluator.
func NewMatcher(external ExternalEvaluator) *Matcher {
	if external == nil {
		external = NoopExternalEvaluator{}
	}
	m := &Matcher{
		regexes:  newRegexCache(),
		external: external,
	}
	m.operators = map[types.ConditionType]matchFunc{
		types.ConditionThreshold:      matchThreshold,
		types.ConditionThresholdRange: matchThresholdRange,
		types.ConditionCompare:        matchCompare,
		types.ConditionString:         matchString,
		types.ConditionAvailability:   matchAvailability,
		types.ConditionEvent:          matchEvent,
		types.ConditionExternal:       matchExternal,
	}
	return m
}

// Evaluate matches d against c, producing the ConditionEvaluation the join
// buffer accumulates (§4.2). The evaluation's Timestamp is the Data's own
// timestamp, used as the driving time for RELAXED_TIME dampening.
//
// A failure evaluating an EVENT or EXTERNAL expression never aborts the
// evaluation tuple: per the engine's error taxonomy (ClassEvaluation), the
// condition is treated as match=false and the tuple still completes on
// schedule. Evaluate therefore always returns a usable ConditionEvaluation;
// the returned error, when non-nil, is for the caller to log and count,
// not to react to.
func (m *Matcher) Evaluate(c *types.Condition, d *types.Data, lookup DataLookup) (types.ConditionEvaluation, error) {
	eval := types.ConditionEvaluation{
		Condition:         *c,
		Data:              *d,
		Timestamp:         d.Timestamp,
		ConditionSetSize:  c.ConditionSetSize,
		ConditionSetIndex: c.ConditionSetIndex,
	}

	fn, ok := m.operators[c.Type]
	if !ok {
		return eval, errors.WrapEvaluation("rules", "Evaluate",
			fmt.Sprintf("unknown condition type %q", c.Type), nil)
	}

	match, err := fn(m, c, d, lookup)
	if err != nil {
		return eval, err
	}
	eval.Match = match
	return eval, nil
}

func compareThreshold(value float64, op types.ThresholdOperator, threshold float64) bool {
	switch op {
	case types.OpLT:
		return value < threshold
	case types.OpLTE:
		return value <= threshold
	case types.OpGT:
		return value > threshold
	case types.OpGTE:
		return value >= threshold
	case types.OpEQ:
		return value == threshold
	default:
		return false
	}
}

func matchThreshold(_ *Matcher, c *types.Condition, d *types.Data, _ DataLookup) (bool, error) {
	tc := c.Threshold
	return compareThreshold(d.Value.Numeric, tc.Operator, tc.Threshold), nil
}

// matchThresholdRange evaluates "(low opLow value) AND (value opHigh high)"
// per the condition table: operand order flips between the two clauses,
// low first against the low bound, value first against the high bound.
func matchThresholdRange(_ *Matcher, c *types.Condition, d *types.Data, _ DataLookup) (bool, error) {
	tr := c.ThresholdRange
	within := compareThreshold(tr.Low, tr.OpLow, d.Value.Numeric) && compareThreshold(d.Value.Numeric, tr.OpHigh, tr.High)
	if tr.InRange {
		return within, nil
	}
	return !within, nil
}

// matchCompare evaluates the incoming Data item against its partner
// stream's current value, scaled by Data2Multiplier. The incoming item
// may be either half of the pair: if it carries DataID, the partner is
// looked up under Data2ID (and vice versa), and the comparison is
// oriented so the condition's semantics ("DataID op Data2ID*multiplier")
// hold regardless of which side drove this evaluation.
func matchCompare(_ *Matcher, c *types.Condition, d *types.Data, lookup DataLookup) (bool, error) {
	cc := c.Compare
	switch d.DataID {
	case cc.DataID:
		partner, ok := lookup.CurrentValue(d.TenantID, cc.Data2ID)
		if !ok {
			return false, nil
		}
		return compareThreshold(d.Value.Numeric, cc.Operator, partner.Value.Numeric*cc.Data2Multiplier), nil
	case cc.Data2ID:
		partner, ok := lookup.CurrentValue(d.TenantID, cc.DataID)
		if !ok {
			return false, nil
		}
		return compareThreshold(partner.Value.Numeric, cc.Operator, d.Value.Numeric*cc.Data2Multiplier), nil
	default:
		return false, nil
	}
}

func matchString(m *Matcher, c *types.Condition, d *types.Data, _ DataLookup) (bool, error) {
	sc := c.String
	value, pattern := d.Value.String, sc.Pattern
	if sc.IgnoreCase {
		value = strings.ToLower(value)
		pattern = strings.ToLower(pattern)
	}

	switch sc.Operator {
	case types.StringEqual:
		return value == pattern, nil
	case types.StringNotEqual:
		return value != pattern, nil
	case types.StringStartsWith:
		return strings.HasPrefix(value, pattern), nil
	case types.StringEndsWith:
		return strings.HasSuffix(value, pattern), nil
	case types.StringContains:
		return strings.Contains(value, pattern), nil
	case types.StringMatches:
		re, err := m.regexes.compile(sc.Pattern)
		if err != nil {
			return false, errors.WrapEvaluation("rules", "matchString", "invalid MATCHES pattern", err)
		}
		return re.MatchString(d.Value.String), nil
	default:
		return false, nil
	}
}

func matchAvailability(_ *Matcher, c *types.Condition, d *types.Data, _ DataLookup) (bool, error) {
	ac := c.Availability
	switch ac.Operator {
	case types.AvailabilityUp:
		return d.Value.Availability == types.Up, nil
	case types.AvailabilityDown:
		return d.Value.Availability == types.Down, nil
	case types.AvailabilityNotUp:
		return d.Value.Availability != types.Up, nil
	default:
		return false, nil
	}
}

// matchEvent evaluates an EVENT condition's Expression against the
// incoming Event Data value. The grammar is deliberately small — the
// spec leaves EVENT expression syntax unspecified (§9) — supporting
// "field op 'literal'" where field is category, text, or context.<key>,
// and op is ==, !=, or CONTAINS.
func matchEvent(_ *Matcher, c *types.Condition, d *types.Data, _ DataLookup) (bool, error) {
	expr := strings.TrimSpace(c.Event.Expression)
	if expr == "" {
		return true, nil
	}

	field, op, literal, err := parseEventExpression(expr)
	if err != nil {
		return false, errors.WrapEvaluation("rules", "matchEvent", "invalid EVENT expression", err)
	}

	fieldValue, ok := eventFieldValue(d.Value.Event, field)
	if !ok {
		return false, nil
	}

	switch op {
	case "==":
		return fieldValue == literal, nil
	case "!=":
		return fieldValue != literal, nil
	case "CONTAINS":
		return strings.Contains(fieldValue, literal), nil
	default:
		return false, fmt.Errorf("unsupported EVENT operator %q", op)
	}
}

func eventFieldValue(ev types.EventValue, field string) (string, bool) {
	switch {
	case field == "category":
		return ev.Category, true
	case field == "text":
		return ev.Text, true
	case strings.HasPrefix(field, "context."):
		v, ok := ev.Context[strings.TrimPrefix(field, "context.")]
		return v, ok
	default:
		return "", false
	}
}

func parseEventExpression(expr string) (field, op, literal string, err error) {
	for _, candidate := range []string{"==", "!=", "CONTAINS"} {
		if idx := strings.Index(expr, candidate); idx >= 0 {
			field = strings.TrimSpace(expr[:idx])
			op = candidate
			literal = strings.TrimSpace(expr[idx+len(candidate):])
			literal, err = unquote(literal)
			return field, op, literal, err
		}
	}
	return "", "", "", fmt.Errorf("expression %q has no recognized operator", expr)
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	if v, err := strconv.Unquote(s); err == nil {
		return v, nil
	}
	return s, nil
}

func matchExternal(m *Matcher, c *types.Condition, d *types.Data, _ DataLookup) (bool, error) {
	return m.external.Evaluate(c.External, d)
}
