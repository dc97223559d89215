package rules

import (
	"testing"

	"github.com/c360/alertengine/types"
)

func evalAt(triggerID string, mode types.Mode, size, index int, match bool, ts int64) types.ConditionEvaluation {
	return types.ConditionEvaluation{
		Condition:         types.Condition{TenantID: tenant, TriggerID: triggerID, TriggerMode: mode},
		Timestamp:         ts,
		Match:             match,
		ConditionSetSize:  size,
		ConditionSetIndex: index,
	}
}

func TestJoinBufferWaitsForAllIndices(t *testing.T) {
	j := NewJoinBuffer()

	if _, complete := j.Accept(evalAt("t1", types.ModeFiring, 2, 1, true, 1)); complete {
		t.Fatalf("expected incomplete tuple with only index 1 present")
	}

	tuple, complete := j.Accept(evalAt("t1", types.ModeFiring, 2, 2, true, 1))
	if !complete {
		t.Fatalf("expected tuple to complete once both indices are present")
	}
	if len(tuple) != 2 || tuple[0].ConditionSetIndex != 1 || tuple[1].ConditionSetIndex != 2 {
		t.Fatalf("expected tuple in index order, got %+v", tuple)
	}
}

func TestJoinBufferResetsAfterFlush(t *testing.T) {
	j := NewJoinBuffer()
	j.Accept(evalAt("t1", types.ModeFiring, 1, 1, true, 1))
	if _, complete := j.Accept(evalAt("t1", types.ModeFiring, 1, 1, true, 2)); !complete {
		t.Fatalf("expected a fresh tuple to start accumulating after the previous one flushed")
	}
}

func TestJoinBufferLastWriteWinsWithinOpenTuple(t *testing.T) {
	j := NewJoinBuffer()
	j.Accept(evalAt("t1", types.ModeFiring, 2, 1, true, 1))
	j.Accept(evalAt("t1", types.ModeFiring, 2, 1, false, 2)) // overwrite index 1 before index 2 arrives

	tuple, complete := j.Accept(evalAt("t1", types.ModeFiring, 2, 2, true, 3))
	if !complete {
		t.Fatalf("expected completion")
	}
	if tuple[0].Match {
		t.Fatalf("expected the most recent evaluation for index 1 (false) to win, got %+v", tuple[0])
	}
}

func TestJoinBufferKeepsTriggersIndependent(t *testing.T) {
	j := NewJoinBuffer()
	j.Accept(evalAt("t1", types.ModeFiring, 2, 1, true, 1))
	_, complete := j.Accept(evalAt("t2", types.ModeFiring, 1, 1, true, 1))
	if !complete {
		t.Fatalf("expected t2's single-condition tuple to complete independently of t1's open tuple")
	}
}

func TestJoinBufferDiscardClearsPartialState(t *testing.T) {
	j := NewJoinBuffer()
	j.Accept(evalAt("t1", types.ModeFiring, 2, 1, true, 1))
	j.Discard(tenant, "t1", types.ModeFiring)

	if _, complete := j.Accept(evalAt("t1", types.ModeFiring, 2, 2, true, 2)); complete {
		t.Fatalf("expected discard to drop the stale index-1 evaluation, so index 2 alone is still incomplete")
	}
}
