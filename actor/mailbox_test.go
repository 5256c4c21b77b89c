package actor

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMailboxFIFO tests that an unbounded mailbox preserves enqueue order.
func TestMailboxFIFO(t *testing.T) {
	t.Parallel()

	mb := newMailbox(MailboxSpec{Kind: MailboxUnbounded})

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, mb.tryEnqueue(&envelope{
			payload: &testMsg{value: v},
		}))
	}

	for _, want := range []string{"a", "b", "c"} {
		env, ok := mb.dequeue()
		require.True(t, ok)
		require.Equal(t, want, env.payload.(*testMsg).value)
	}

	_, ok := mb.dequeue()
	require.False(t, ok)
}

// TestMailboxBoundedFull tests that a saturated bounded mailbox reports
// ErrMailboxFull.
func TestMailboxBoundedFull(t *testing.T) {
	t.Parallel()

	mb := newMailbox(MailboxSpec{Kind: MailboxBoundedArray, Capacity: 2})

	require.NoError(t, mb.tryEnqueue(&envelope{payload: &testMsg{}}))
	require.NoError(t, mb.tryEnqueue(&envelope{payload: &testMsg{}}))

	err := mb.tryEnqueue(&envelope{payload: &testMsg{}})
	require.ErrorIs(t, err, ErrMailboxFull)
	require.Equal(t, 2, mb.size())
}

// TestMailboxClosedRejectsSends tests that a closed mailbox rejects new
// envelopes and returns the leftovers exactly once.
func TestMailboxClosedRejectsSends(t *testing.T) {
	t.Parallel()

	mb := newMailbox(MailboxSpec{Kind: MailboxUnbounded})
	require.NoError(t, mb.tryEnqueue(&envelope{payload: &testMsg{}}))

	leftovers := mb.close()
	require.Len(t, leftovers, 1)

	require.ErrorIs(t, mb.tryEnqueue(&envelope{payload: &testMsg{}}),
		ErrStopped)

	// A second close yields nothing.
	require.Nil(t, mb.close())
}

// TestMailboxTokenExclusive tests that the processing token can be held by
// at most one acquirer at a time.
func TestMailboxTokenExclusive(t *testing.T) {
	t.Parallel()

	mb := newMailbox(MailboxSpec{Kind: MailboxUnbounded})

	var held atomic.Int32
	var maxHeld atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 200; j++ {
				if !mb.tryAcquire() {
					continue
				}

				cur := held.Add(1)
				for {
					prev := maxHeld.Load()
					if cur <= prev ||
						maxHeld.CompareAndSwap(prev, cur) {

						break
					}
				}

				held.Add(-1)
				mb.release()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxHeld.Load(),
		"token held by more than one goroutine")
}

// TestMailboxSynchronousHandoff tests the rendezvous between a blocking
// producer and a draining consumer.
func TestMailboxSynchronousHandoff(t *testing.T) {
	t.Parallel()

	mb := newMailbox(MailboxSpec{Kind: MailboxSynchronous})

	done := make(chan error, 1)
	go func() {
		done <- mb.enqueueWait(&envelope{
			payload: &testMsg{value: "sync"},
		})
	}()

	env, ok := mb.dequeueWait()
	require.True(t, ok)
	require.Equal(t, "sync", env.payload.(*testMsg).value)
	require.NoError(t, <-done)

	// A producer blocked on a closed mailbox unblocks with ErrStopped.
	go func() {
		done <- mb.enqueueWait(&envelope{payload: &testMsg{}})
	}()

	mb.close()
	require.ErrorIs(t, <-done, ErrStopped)
}
