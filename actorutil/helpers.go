// Package actorutil provides convenience combinators over actor handles:
// typed ask helpers, broadcast sends and round-robin pools.
package actorutil

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/troupe/actor"
)

// AskTyped sends an Ask to an actor and asserts the reply to the concrete
// type T. This is useful because handle replies are untyped at the runtime
// boundary.
func AskTyped[T any](ctx context.Context, ref actor.Ref,
	msg actor.Message) (T, error) {

	resp, err := ref.Ask(ctx, msg)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf(
			"unexpected response type: got %T, want %T",
			resp, zero,
		)
	}

	return typed, nil
}

// TellAll sends a message to all handles in the provided slice using
// fire-and-forget semantics. This is useful for broadcasting messages to
// multiple actors simultaneously. The first delivery error is returned;
// remaining sends still happen.
func TellAll(ctx context.Context, refs []actor.Ref, msg actor.Message) error {
	var firstErr error
	for _, ref := range refs {
		if err := ref.Tell(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// ParallelAskSame sends the same message to multiple actors concurrently and
// collects all results. Results are returned in the same order as the input
// refs.
func ParallelAskSame(ctx context.Context, refs []actor.Ref,
	msg actor.Message) []fn.Result[any] {

	// Send all Ask requests concurrently.
	futures := make([]actor.Future[any], len(refs))
	for i, ref := range refs {
		futures[i] = ref.AskFuture(ctx, msg)
	}

	// Await all results.
	results := make([]fn.Result[any], len(futures))
	for i, f := range futures {
		results[i] = f.Await(ctx)
	}

	return results
}

// FirstSuccess sends the same message to multiple actors concurrently and
// returns the first successful response. If all actors return errors, the
// last error is returned.
func FirstSuccess(ctx context.Context, refs []actor.Ref,
	msg actor.Message) (any, error) {

	if len(refs) == 0 {
		return nil, fmt.Errorf("no actors provided")
	}

	resultCh := make(chan fn.Result[any], len(refs))

	// Create a cancellable context for early termination.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Send all Ask requests concurrently.
	for _, ref := range refs {
		go func(r actor.Ref) {
			result := r.AskFuture(ctx, msg).Await(ctx)
			select {
			case resultCh <- result:
			case <-ctx.Done():
			}
		}(ref)
	}

	// Wait for first success or all failures.
	var lastErr error
	for received := 0; received < len(refs); received++ {
		select {
		case res := <-resultCh:
			val, err := res.Unpack()
			if err == nil {
				// Cancel remaining requests.
				cancel()
				return val, nil
			}
			lastErr = err

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// CollectSuccesses filters a slice of results and returns only the
// successful values, discarding any errors.
func CollectSuccesses(results []fn.Result[any]) []any {
	var successes []any
	for _, r := range results {
		val, err := r.Unpack()
		if err == nil {
			successes = append(successes, val)
		}
	}

	return successes
}

// FirstError returns the first error from a slice of results, or nil if all
// succeeded.
func FirstError(results []fn.Result[any]) error {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return err
		}
	}

	return nil
}
