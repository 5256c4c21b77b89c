package actorutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roasbeef/troupe/actor"
	"github.com/stretchr/testify/require"
)

// pingMsg is a simple message type for testing.
type pingMsg struct {
	actor.BaseMessage

	Value int
}

func (m *pingMsg) MessageType() string {
	return "pingMsg"
}

// newTestSystem creates a system and registers its teardown with the test.
func newTestSystem(t *testing.T) *actor.System {
	t.Helper()

	sys := actor.NewSystem()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), 10*time.Second,
		)
		defer cancel()

		require.NoError(t, sys.Shutdown(ctx))
	})

	return sys
}

// TestAskTyped tests the typed ask helper, including the mismatch error.
func TestAskTyped(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	doubler, err := sys.Spawn(func() actor.Receiver {
		return actor.ReceiverFunc(func(ctx *actor.Context) error {
			msg := ctx.Message().(*pingMsg)

			return ctx.Reply(msg.Value * 2)
		})
	})
	require.NoError(t, err)

	val, err := AskTyped[int](context.Background(), doubler,
		&pingMsg{Value: 21})
	require.NoError(t, err)
	require.Equal(t, 42, val)

	_, err = AskTyped[string](context.Background(), doubler,
		&pingMsg{Value: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected response type")
}

// TestParallelAskSame tests the fan-out helper and its result combinators.
func TestParallelAskSame(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	boom := errors.New("boom")

	ok1, err := sys.Spawn(func() actor.Receiver {
		return actor.ReceiverFunc(func(ctx *actor.Context) error {
			return ctx.Reply("one")
		})
	})
	require.NoError(t, err)

	failing, err := sys.Spawn(func() actor.Receiver {
		return actor.ReceiverFunc(func(ctx *actor.Context) error {
			return boom
		})
	})
	require.NoError(t, err)

	ok2, err := sys.Spawn(func() actor.Receiver {
		return actor.ReceiverFunc(func(ctx *actor.Context) error {
			return ctx.Reply("two")
		})
	})
	require.NoError(t, err)

	refs := []actor.Ref{ok1, failing, ok2}
	results := ParallelAskSame(context.Background(), refs, &pingMsg{})
	require.Len(t, results, 3)

	successes := CollectSuccesses(results)
	require.ElementsMatch(t, []any{"one", "two"}, successes)

	require.ErrorIs(t, FirstError(results), boom)
}

// TestFirstSuccess tests that the first healthy responder wins even when
// some actors fail.
func TestFirstSuccess(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	failing, err := sys.Spawn(func() actor.Receiver {
		return actor.ReceiverFunc(func(ctx *actor.Context) error {
			return errors.New("nope")
		})
	})
	require.NoError(t, err)

	healthy, err := sys.Spawn(func() actor.Receiver {
		return actor.ReceiverFunc(func(ctx *actor.Context) error {
			return ctx.Reply("win")
		})
	})
	require.NoError(t, err)

	val, err := FirstSuccess(context.Background(),
		[]actor.Ref{failing, healthy}, &pingMsg{})
	require.NoError(t, err)
	require.Equal(t, "win", val)
}

// TestTellAll tests the broadcast helper.
func TestTellAll(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	got := make(chan int, 2)

	mk := func() (actor.Ref, error) {
		return sys.Spawn(func() actor.Receiver {
			return actor.ReceiverFunc(
				func(ctx *actor.Context) error {
					got <- ctx.Message().(*pingMsg).Value

					return nil
				},
			)
		})
	}

	a, err := mk()
	require.NoError(t, err)
	b, err := mk()
	require.NoError(t, err)

	require.NoError(t, TellAll(context.Background(),
		[]actor.Ref{a, b}, &pingMsg{Value: 7}))

	for i := 0; i < 2; i++ {
		select {
		case v := <-got:
			require.Equal(t, 7, v)

		case <-time.After(5 * time.Second):
			t.Fatal("broadcast not delivered")
		}
	}
}
