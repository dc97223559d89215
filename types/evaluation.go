package types

// ConditionEvaluation is produced when a Condition matches (or fails to
// match) an incoming Data item. It is consumed by the dampening stage and
// never persisted (§3).
type ConditionEvaluation struct {
	Condition Condition
	Data      Data
	Timestamp int64
	Match     bool

	ConditionSetSize  int
	ConditionSetIndex int
}

// EvaluationTuple is a complete set of per-index ConditionEvaluations for
// one (trigger, mode) firing — exactly ConditionSetSize entries, one per
// index, in index order.
type EvaluationTuple []ConditionEvaluation

// Matches reduces the tuple's per-evaluation outcomes under policy.
func (t EvaluationTuple) Matches(policy MatchPolicy) bool {
	outcomes := make([]bool, len(t))
	for i, ce := range t {
		outcomes[i] = ce.Match
	}
	return policy.Reduce(outcomes)
}

// Clone returns a deep copy of the tuple.
func (t EvaluationTuple) Clone() EvaluationTuple {
	if t == nil {
		return nil
	}
	clone := make(EvaluationTuple, len(t))
	copy(clone, t)
	return clone
}
