package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testMsg is a simple message type for testing.
type testMsg struct {
	BaseMessage

	value string
}

func (m *testMsg) MessageType() string {
	return "testMsg"
}

// wireMsg is a codec-friendly message type for tests that cross the codec
// boundary (remoting, serialize-messages copying).
type wireMsg struct {
	BaseMessage

	Value string `json:"value"`
}

func (m *wireMsg) MessageType() string {
	return "wireMsg"
}

// newTestSystem creates a system with the given options and registers its
// teardown with the test.
func newTestSystem(t *testing.T, opts ...SystemOption) *System {
	t.Helper()

	sys := NewSystem(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), 10*time.Second,
		)
		defer cancel()

		require.NoError(t, sys.Shutdown(ctx))
	})

	return sys
}

// spawnFunc spawns an actor whose handler is the given function.
func spawnFunc(t *testing.T, sys *System, handler func(ctx *Context) error,
	opts ...SpawnOption) *LocalRef {

	t.Helper()

	h, err := sys.Spawn(func() Receiver {
		return ReceiverFunc(handler)
	}, opts...)
	require.NoError(t, err)

	return h
}

// awaitIdle waits until the system's mailboxes drain, failing the test on
// timeout.
func awaitIdle(t *testing.T, sys *System) {
	t.Helper()

	require.True(t, sys.AwaitIdle(5*time.Second),
		"system did not go idle")
}
