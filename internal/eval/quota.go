package eval

// roundQuota bounds the number of fixpoint rounds one iterate call may
// run. The iterate primitive's termination guarantee is a contract with
// the synthesizer, not a proven property; the quota turns a
// non-converging step function into a typed error instead of a hang.
//
// Each iterate call gets its own quota instance.
type roundQuota struct {
	max     int
	current int
}

func newRoundQuota(max int) *roundQuota {
	return &roundQuota{max: max}
}

// check increments the round counter and validates against the limit.
func (q *roundQuota) check() error {
	q.current++
	if q.current > q.max {
		return evalErrorf(ErrCodeRoundsExceeded,
			"fixpoint did not converge within %d rounds", q.max)
	}
	return nil
}

// callQuota bounds user-function inlining during direct evaluation.
// Unlike the round quota it is shared across one whole Eval call:
// recursive definitions evaluated directly can expand exponentially, and
// the quota catches both deep and wide expansions.
type callQuota struct {
	max     int
	current int
}

func newCallQuota(max int) *callQuota {
	return &callQuota{max: max}
}

func (q *callQuota) check(fn string) error {
	q.current++
	if q.current > q.max {
		return evalErrorf(ErrCodeCallsExceeded,
			"direct evaluation exceeded %d function applications (last: %s)", q.max, fn)
	}
	return nil
}
