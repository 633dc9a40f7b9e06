package sync

import (
	"context"

	"github.com/nhle/todosync/internal/state"
)

// Drive applies intent to st and runs the resulting effects one at a time,
// feeding each outcome back through state.Reduce until nothing is left to
// do. It returns the final state and the first failure reported along the
// way. Rollbacks and resyncs still run after a failure.
func Drive(ctx context.Context, exec *Executor, st state.State, intent state.Intent) (state.State, error) {
	var firstErr error
	queue := []state.Intent{intent}

	for len(queue) > 0 {
		in := queue[0]
		queue = queue[1:]

		if err := failure(in); err != nil && firstErr == nil {
			firstErr = err
		}

		var effects []state.Effect
		st, effects = state.Reduce(st, in)
		for _, eff := range effects {
			if err := ctx.Err(); err != nil {
				return st, err
			}
			if next := exec.Run(ctx, eff); next != nil {
				queue = append(queue, next)
			}
		}
	}
	return st, firstErr
}

func failure(in state.Intent) error {
	switch in := in.(type) {
	case state.AuthFailed:
		return in.Err
	case state.FetchFailed:
		return in.Err
	case state.WriteFailed:
		return in.Err
	}
	return nil
}
