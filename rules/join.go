package rules

import (
	"sort"
	"sync"

	"github.com/c360/alertengine/types"
)

type joinKey struct {
	tenant  types.TenantID
	trigger string
	mode    types.Mode
}

// JoinBuffer accumulates per-(trigger,mode) ConditionEvaluations by
// ConditionSetIndex until every index in the set has been evaluated at
// least once since the last flush, at which point it emits the complete
// EvaluationTuple and clears that key's buffer. A later evaluation for an
// index already present in the open tuple overwrites it — the buffer
// always holds each index's most recent outcome, matching the
// teacher-style "last write wins" accumulation used by
// memory/workingmemory.go's fact indices.
type JoinBuffer struct {
	mu      sync.Mutex
	buffers map[joinKey]map[int]types.ConditionEvaluation
}

// NewJoinBuffer creates an empty JoinBuffer.
func NewJoinBuffer() *JoinBuffer {
	return &JoinBuffer{buffers: make(map[joinKey]map[int]types.ConditionEvaluation)}
}

// Accept records eval under its (tenant,trigger,mode,index) slot. When the
// set for that key is now complete (one entry per index, 1..ConditionSetSize),
// Accept returns the tuple in index order and clears the buffer for that
// key; otherwise it returns (nil, false).
func (j *JoinBuffer) Accept(eval types.ConditionEvaluation) (types.EvaluationTuple, bool) {
	key := joinKey{eval.Condition.TenantID, eval.Condition.TriggerID, eval.Condition.TriggerMode}

	j.mu.Lock()
	defer j.mu.Unlock()

	set, ok := j.buffers[key]
	if !ok {
		set = make(map[int]types.ConditionEvaluation)
		j.buffers[key] = set
	}
	set[eval.ConditionSetIndex] = eval

	if len(set) < eval.ConditionSetSize {
		return nil, false
	}

	tuple := make(types.EvaluationTuple, 0, len(set))
	indices := make([]int, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		tuple = append(tuple, set[idx])
	}

	delete(j.buffers, key)
	return tuple, true
}

// Discard clears any partially-accumulated tuple for (tenant,triggerID,mode),
// so stale partial evaluations cannot combine with later ones. The Rule
// Engine itself never calls it, so a condition-set change does not clear
// a partial tuple already buffered.
func (j *JoinBuffer) Discard(tenant types.TenantID, triggerID string, mode types.Mode) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.buffers, joinKey{tenant, triggerID, mode})
}
