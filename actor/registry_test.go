package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// taggedReceiver is a named receiver type for the implementation-type index.
type taggedReceiver struct{}

func (taggedReceiver) Receive(ctx *Context) error {
	return nil
}

// TestRegistryFindByID tests that the identity index tracks the running
// window of the lifecycle: absent before start, present while running,
// absent after stop.
func TestRegistryFindByID(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	h := sys.NewActor(func() Receiver {
		return taggedReceiver{}
	})

	_, found := sys.Registry().FindByID(h.ID())
	require.False(t, found, "not-started actor should not be registered")

	require.NoError(t, h.Start())

	got, found := sys.Registry().FindByID(h.ID())
	require.True(t, found)
	require.Equal(t, h.ID(), got.ID())

	require.NoError(t, h.Stop())

	_, found = sys.Registry().FindByID(h.ID())
	require.False(t, found, "stopped actor should be unregistered")
}

// TestRegistryFindByTag tests the many-valued tag index.
func TestRegistryFindByTag(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	spawnFunc(t, sys, func(ctx *Context) error { return nil },
		WithTag("worker"))
	spawnFunc(t, sys, func(ctx *Context) error { return nil },
		WithTag("worker"))
	spawnFunc(t, sys, func(ctx *Context) error { return nil },
		WithTag("other"))

	require.Len(t, sys.Registry().FindByTag("worker"), 2)
	require.Len(t, sys.Registry().FindByTag("other"), 1)
	require.Empty(t, sys.Registry().FindByTag("missing"))
}

// TestRegistryFindByImplementation tests the implementation-type index.
func TestRegistryFindByImplementation(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	tagged, err := sys.Spawn(func() Receiver {
		return taggedReceiver{}
	})
	require.NoError(t, err)

	spawnFunc(t, sys, func(ctx *Context) error { return nil })

	found := FindByImplementation[taggedReceiver](sys.Registry())
	require.Len(t, found, 1)
	require.Equal(t, tagged.ID(), found[0].ID())

	require.NoError(t, tagged.Stop())
	require.Empty(t, FindByImplementation[taggedReceiver](sys.Registry()))
}

// TestRegistryTracksRestartingActors tests that an actor is still resolvable
// while being restarted.
func TestRegistryTracksRestartingActors(t *testing.T) {
	t.Parallel()

	sys := newTestSystem(t)

	entered := make(chan struct{}, 1)
	gate := make(chan struct{})

	sup := spawnFunc(t, sys, func(ctx *Context) error { return nil },
		WithTrapExit(errRuntime),
		WithFaultStrategy(OneForOne(10, time.Second)),
	)

	child := sys.NewActor(func() Receiver {
		return &blockingRestartReceiver{entered: entered, gate: gate}
	})
	require.NoError(t, sup.StartLink(child))

	require.NoError(t, child.Tell(context.Background(),
		&testMsg{value: "boom"}))

	// While PreRestart is parked the actor sits in BeingRestarted and
	// must remain resolvable.
	<-entered

	_, found := sys.Registry().FindByID(child.ID())
	require.True(t, found)
	require.Equal(t, StateBeingRestarted, child.State())

	close(gate)
}

// blockingRestartReceiver raises on "boom" and parks inside PreRestart until
// its gate closes, exposing the BeingRestarted window to tests.
type blockingRestartReceiver struct {
	entered chan<- struct{}
	gate    <-chan struct{}
}

func (b *blockingRestartReceiver) Receive(ctx *Context) error {
	if msg, ok := ctx.Message().(*testMsg); ok && msg.value == "boom" {
		return errRuntime
	}

	return nil
}

func (b *blockingRestartReceiver) PreRestart(ctx *Context, cause error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}

	<-b.gate
}

func (b *blockingRestartReceiver) PostRestart(ctx *Context, cause error) {}
