// Package dampening implements the Dampening State Machine (§4.3): the
// per-(trigger,mode) accumulator that turns a stream of ConditionEvaluation
// tuples into at most one "satisfied" edge per firing. There is no
// grounding file in the teacher for a sliding-window accumulator; its
// expire-then-count shape follows the time-window expiry idiom in
// pkg/cache's TTL eviction (expire stale state before acting on new
// input).
package dampening

import "github.com/c360/alertengine/types"

// Advance feeds one evaluation tuple into d's state machine and returns
// whether this call caused d to become newly satisfied. now is the
// tuple's driving timestamp (ms) — RELAXED_TIME's window is measured
// against Data time, not wall-clock time, so ticks replay deterministically.
//
// Satisfaction already observed must be reset by the caller (via Reset)
// before Advance is called again for the next firing; Advance does not
// reset on its own so callers can inspect SatisfyingEvals first.
func Advance(d *types.Dampening, tuple types.EvaluationTuple, matchPolicy types.MatchPolicy, now int64) bool {
	trueEval := tuple.Matches(matchPolicy)

	switch d.Type {
	case types.DampeningRelaxedCount:
		return advanceRelaxedCount(d, tuple, trueEval)
	case types.DampeningRelaxedTime:
		return advanceRelaxedTime(d, tuple, trueEval, now)
	case types.DampeningStrict:
		fallthrough
	default:
		return advanceStrict(d, tuple, trueEval)
	}
}

// advanceStrict: every evaluation increments numEvals; a non-match resets
// all progress; N consecutive trues satisfy.
func advanceStrict(d *types.Dampening, tuple types.EvaluationTuple, trueEval bool) bool {
	d.NumEvals++
	if !trueEval {
		d.Reset()
		return false
	}
	d.NumTrueEvals++
	d.SatisfyingEvals = append(d.SatisfyingEvals, tuple)
	if d.NumTrueEvals == d.EvalTrueSetting {
		d.Satisfied = true
		return true
	}
	return false
}

// advanceRelaxedCount: N true evals within a window of up to M total
// evals. Resets early once the remaining evaluations in the window cannot
// possibly reach N trues.
func advanceRelaxedCount(d *types.Dampening, tuple types.EvaluationTuple, trueEval bool) bool {
	d.NumEvals++
	if trueEval {
		d.NumTrueEvals++
		d.SatisfyingEvals = append(d.SatisfyingEvals, tuple)
		if d.NumTrueEvals == d.EvalTrueSetting {
			d.Satisfied = true
			return true
		}
		return false
	}

	remainingChancesNeeded := d.EvalTrueSetting - d.NumTrueEvals
	remainingSlotsLeft := d.EvalTotalSetting - d.NumEvals
	if remainingChancesNeeded > remainingSlotsLeft {
		d.Reset()
	}
	return false
}

// advanceRelaxedTime: N true evals within T ms of the first true eval in
// the current window.
//
// Boundary chosen per the spec's recommended open-question resolution
// (§4.3, §9): on each evaluation, first expire if now-start > T, then
// count, and require numTrueEvals == N AND now-start <= T for
// satisfaction (strict "greater than" to expire, non-strict "at most" to
// satisfy — a true eval landing exactly on the boundary still counts).
//
// TrueEvalsStarted tracks whether the window has a recorded start
// independently of TrueEvalsStartTime's value, since 0 is a legitimate
// Data timestamp (e.g. the first evaluation of a run) and can't double as
// an "unset" sentinel.
func advanceRelaxedTime(d *types.Dampening, tuple types.EvaluationTuple, trueEval bool, now int64) bool {
	if d.TrueEvalsStarted && now-d.TrueEvalsStartTime > d.EvalTimeSetting {
		d.Reset()
	}

	d.NumEvals++
	if !trueEval {
		return false
	}

	d.NumTrueEvals++
	d.SatisfyingEvals = append(d.SatisfyingEvals, tuple)
	if !d.TrueEvalsStarted {
		d.TrueEvalsStartTime = now
		d.TrueEvalsStarted = true
	}
	if d.NumTrueEvals == d.EvalTrueSetting && now-d.TrueEvalsStartTime <= d.EvalTimeSetting {
		d.Satisfied = true
		return true
	}
	return false
}
