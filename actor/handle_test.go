package actor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAskReply tests the tell/reply round trip: an echo actor uppercases the
// payload and Ask returns exactly the replied value.
func TestAskReply(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	echo := spawnFunc(t, sys, func(ctx *Context) error {
		msg := ctx.Message().(*testMsg)

		return ctx.Reply(strings.ToUpper(msg.value))
	})

	reply, err := echo.Ask(context.Background(), &testMsg{value: "hi"})
	require.NoError(t, err)
	require.Equal(t, "HI", reply)
}

// TestAskTimeout tests that asking an actor that never replies returns
// ErrAskTimeout after the reply timeout.
func TestAskTimeout(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	silent := spawnFunc(t, sys, func(ctx *Context) error {
		return nil
	}, WithReplyTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := silent.Ask(context.Background(), &testMsg{value: "q"})
	require.ErrorIs(t, err, ErrAskTimeout)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// TestAskRethrowsHandlerFailure tests that a handler failure completes the
// reply future exceptionally and surfaces at the asking caller.
func TestAskRethrowsHandlerFailure(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	boom := errors.New("boom")
	failing := spawnFunc(t, sys, func(ctx *Context) error {
		return boom
	})

	_, err := failing.Ask(context.Background(), &testMsg{})
	require.ErrorIs(t, err, boom)
}

// TestTellBeforeStartAndAfterStop tests the contract-violation kinds at the
// send call sites.
func TestTellBeforeStartAndAfterStop(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	h := sys.NewActor(func() Receiver {
		return ReceiverFunc(func(ctx *Context) error { return nil })
	})

	require.ErrorIs(t, h.Tell(context.Background(), &testMsg{}),
		ErrNotStarted)

	require.NoError(t, h.Start())
	require.NoError(t, h.Tell(context.Background(), &testMsg{}))

	require.NoError(t, h.Stop())
	require.ErrorIs(t, h.Tell(context.Background(), &testMsg{}),
		ErrStopped)

	// Stopped is terminal: a handle never runs again.
	require.ErrorIs(t, h.Start(), ErrStopped)
	require.Equal(t, StateStopped, h.State())
}

// TestStopDiscardsQueuedEnvelopes tests that envelopes still queued at stop
// are discarded and their reply futures complete exceptionally with
// ErrStopped.
func TestStopDiscardsQueuedEnvelopes(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	entered := make(chan struct{})
	block := make(chan struct{})
	first := true

	h := spawnFunc(t, sys, func(ctx *Context) error {
		if first {
			first = false
			close(entered)
			<-block
		}

		return nil
	})

	// Park the drain, then queue an ask behind it.
	require.NoError(t, h.Tell(context.Background(), &testMsg{}))
	<-entered

	fut := h.AskFuture(context.Background(), &testMsg{value: "queued"})

	// Stop does not wait for the parked handler: it closes the mailbox
	// and discards the queued ask.
	require.NoError(t, h.Stop())

	_, err := fut.Await(context.Background()).Unpack()
	require.ErrorIs(t, err, ErrStopped)

	close(block)
}

// TestForwardPreservesReplyFuture tests scenario: A asks B, B forwards to C,
// C replies, and A's future completes with C's reply.
func TestForwardPreservesReplyFuture(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	c := spawnFunc(t, sys, func(ctx *Context) error {
		return ctx.Reply("pong")
	})

	b := spawnFunc(t, sys, func(ctx *Context) error {
		return ctx.Forward(c)
	})

	reply, err := b.Ask(context.Background(), &testMsg{value: "ping"})
	require.NoError(t, err)
	require.Equal(t, "pong", reply)
}

// TestReplyViaSender tests the tell-based reply path: with no reply future
// attached, Reply tells the message back to the sender handle.
func TestReplyViaSender(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	got := make(chan string, 1)
	receiver := spawnFunc(t, sys, func(ctx *Context) error {
		got <- ctx.Message().(*testMsg).value

		return nil
	})

	responder := spawnFunc(t, sys, func(ctx *Context) error {
		return ctx.Reply(&testMsg{value: "pong"})
	})

	require.NoError(t, responder.TellFrom(
		context.Background(), &testMsg{value: "ping"}, receiver,
	))

	select {
	case v := <-got:
		require.Equal(t, "pong", v)

	case <-time.After(5 * time.Second):
		t.Fatal("reply never arrived")
	}
}

// TestReplyWithoutSender tests that Reply outside any sender context fails
// with ErrNoSenderInScope.
func TestReplyWithoutSender(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	errCh := make(chan error, 1)
	h := spawnFunc(t, sys, func(ctx *Context) error {
		errCh <- ctx.Reply("nobody asked")

		return nil
	})

	require.NoError(t, h.Tell(context.Background(), &testMsg{}))
	require.ErrorIs(t, <-errCh, ErrNoSenderInScope)
}

// TestIdentityStableAcrossRestart tests that a restart sequence preserves
// the handle identity while replacing the instance.
func TestIdentityStableAcrossRestart(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	boom := errors.New("boom")

	var instances atomic.Int32
	child := sys.NewActor(func() Receiver {
		instances.Add(1)

		return ReceiverFunc(func(ctx *Context) error {
			if ctx.Message().(*testMsg).value == "boom" {
				return boom
			}

			return ctx.Reply("ok")
		})
	})

	sup := spawnFunc(t, sys, func(ctx *Context) error {
		return nil
	},
		WithTrapExit(boom),
		WithFaultStrategy(OneForOne(3, time.Second)),
	)

	require.NoError(t, sup.StartLink(child))

	idBefore := child.ID()

	require.NoError(t, child.Tell(context.Background(),
		&testMsg{value: "boom"}))

	// The restarted instance keeps draining the same mailbox.
	reply, err := child.Ask(context.Background(), &testMsg{value: "x"})
	require.NoError(t, err)
	require.Equal(t, "ok", reply)

	require.Equal(t, idBefore, child.ID())
	require.Equal(t, StateRunning, child.State())
	require.Equal(t, int32(2), instances.Load(),
		"factory should have built the initial and one fresh instance")
}

// TestReceiveTimeout tests that an idle actor with a receive timeout gets a
// ReceiveTimeout message, and that traffic re-arms the timer.
func TestReceiveTimeout(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	timeouts := make(chan struct{}, 4)
	h := spawnFunc(t, sys, func(ctx *Context) error {
		if _, ok := ctx.Message().(ReceiveTimeout); ok {
			select {
			case timeouts <- struct{}{}:
			default:
			}
		}

		return nil
	}, WithReceiveTimeout(50*time.Millisecond))

	// Keep the actor busy; no timeout may fire meanwhile.
	for i := 0; i < 4; i++ {
		require.NoError(t, h.Tell(context.Background(), &testMsg{}))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-timeouts:
		t.Fatal("receive timeout fired while busy")
	default:
	}

	// Now idle: the one-shot must fire.
	select {
	case <-timeouts:
	case <-time.After(5 * time.Second):
		t.Fatal("receive timeout never fired")
	}
}

// TestSerializeMessagesDeepCopy tests that the serialize-messages testing
// mode hands the receiver a copy rather than the sender's instance.
func TestSerializeMessagesDeepCopy(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()
	RegisterMessageType[*wireMsg](codec)

	cfg := DefaultConfig()
	cfg.SerializeMessages = true

	sys := newTestSystem(t, WithConfig(cfg), WithCodec(codec))

	original := &wireMsg{Value: "shared"}

	seen := make(chan Message, 1)
	h := spawnFunc(t, sys, func(ctx *Context) error {
		seen <- ctx.Message()

		return nil
	})

	require.NoError(t, h.Tell(context.Background(), original))

	received := <-seen
	require.NotSame(t, original, received)
	require.Equal(t, "shared", received.(*wireMsg).Value)
}

// TestMakeRemoteAfterStart tests that MakeRemote is rejected once the handle
// is running.
func TestMakeRemoteAfterStart(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	h := spawnFunc(t, sys, func(ctx *Context) error { return nil })

	require.ErrorIs(t, h.MakeRemote("127.0.0.1:9"),
		ErrRemoteOperationUnsupported)
}

// TestSetTagReindexes tests tag mutation together with registry lookup.
func TestSetTagReindexes(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	h := spawnFunc(t, sys, func(ctx *Context) error { return nil },
		WithTag("before"))

	require.Len(t, sys.Registry().FindByTag("before"), 1)

	require.NoError(t, h.SetTag("after"))
	require.Empty(t, sys.Registry().FindByTag("before"))
	require.Len(t, sys.Registry().FindByTag("after"), 1)
	require.Equal(t, "after", h.Tag())
}
