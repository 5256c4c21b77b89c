package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestPromiseCompleteOnce tests that only the first completion wins.
func TestPromiseCompleteOnce(t *testing.T) {
	t.Parallel()

	p := NewPromise[int]()

	require.True(t, p.Complete(fn.Ok(1)))
	require.False(t, p.Complete(fn.Ok(2)))

	val, err := p.Future().Await(context.Background()).Unpack()
	require.NoError(t, err)
	require.Equal(t, 1, val)
}

// TestPromiseAwaitContextCancelled tests that Await returns the context's
// error when it is cancelled before the promise completes.
func TestPromiseAwaitContextCancelled(t *testing.T) {
	t.Parallel()

	p := NewPromise[int]()

	ctx, cancel := context.WithTimeout(
		context.Background(), 20*time.Millisecond,
	)
	defer cancel()

	_, err := p.Future().Await(ctx).Unpack()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Complete afterwards so no goroutine hangs.
	p.Complete(fn.Ok(0))
}

// TestPromiseExceptionalCompletion tests that error results round-trip.
func TestPromiseExceptionalCompletion(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	p := NewPromise[string]()
	p.Complete(fn.Err[string](boom))

	_, err := p.Future().Await(context.Background()).Unpack()
	require.ErrorIs(t, err, boom)
}

// TestFutureThenApply tests that ThenApply transforms a successful result
// into a new future, leaving the original untouched.
func TestFutureThenApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p := NewPromise[int]()
	doubled := p.Future().ThenApply(ctx, func(v int) int {
		return v * 2
	})

	p.Complete(fn.Ok(21))

	val, err := doubled.Await(ctx).Unpack()
	require.NoError(t, err)
	require.Equal(t, 42, val)

	orig, err := p.Future().Await(ctx).Unpack()
	require.NoError(t, err)
	require.Equal(t, 21, orig)
}

// TestFutureOnComplete tests that the registered callback observes the
// result.
func TestFutureOnComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p := NewPromise[string]()

	got := make(chan fn.Result[string], 1)
	p.Future().OnComplete(ctx, func(r fn.Result[string]) {
		got <- r
	})

	p.Complete(fn.Ok("done"))

	select {
	case r := <-got:
		val, err := r.Unpack()
		require.NoError(t, err)
		require.Equal(t, "done", val)

	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}
}
