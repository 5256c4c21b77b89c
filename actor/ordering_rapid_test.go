package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestPerSenderFIFOProperty is the ordering property: for every (sender,
// receiver) pair, envelopes are delivered in send order on the executor
// dispatcher regardless of its worker count and throughput, the sender count
// and the message distribution.
func TestPerSenderFIFOProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		numSenders := rapid.IntRange(1, 4).Draw(rt, "senders")
		perSender := rapid.IntRange(1, 40).Draw(rt, "per_sender")
		workers := rapid.IntRange(1, 4).Draw(rt, "workers")
		throughput := rapid.IntRange(1, 8).Draw(rt, "throughput")

		sys := NewSystem()
		defer func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), 10*time.Second,
			)
			defer cancel()

			if err := sys.Shutdown(ctx); err != nil {
				rt.Fatalf("shutdown: %v", err)
			}
		}()

		d := sys.AdoptDispatcher(
			NewExecutorDispatcher(workers, throughput),
		)

		var mu sync.Mutex
		received := make(map[int][]int)
		total := numSenders * perSender
		done := make(chan struct{})

		h, err := sys.Spawn(func() Receiver {
			count := 0

			return ReceiverFunc(func(ctx *Context) error {
				msg := ctx.Message().(*seqMsg)

				mu.Lock()
				received[msg.sender] = append(
					received[msg.sender], msg.seq,
				)
				mu.Unlock()

				count++
				if count == total {
					close(done)
				}

				return nil
			})
		}, WithDispatcher(d))
		if err != nil {
			rt.Fatalf("spawn: %v", err)
		}

		var wg sync.WaitGroup
		for s := 0; s < numSenders; s++ {
			wg.Add(1)
			go func(sender int) {
				defer wg.Done()

				for i := 0; i < perSender; i++ {
					err := h.Tell(context.Background(),
						&seqMsg{sender: sender, seq: i})
					if err != nil {
						rt.Errorf("tell: %v", err)
						return
					}
				}
			}(s)
		}
		wg.Wait()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			rt.Fatalf("only partial delivery")
		}

		mu.Lock()
		defer mu.Unlock()

		for sender, seqs := range received {
			for i, seq := range seqs {
				if seq != i {
					rt.Fatalf("sender %d: position %d "+
						"holds seq %d", sender, i, seq)
				}
			}

			if len(seqs) != perSender {
				rt.Fatalf("sender %d: %d of %d delivered",
					sender, len(seqs), perSender)
			}
		}
	})
}

// seqMsg stamps a message with its sender and per-sender sequence number.
type seqMsg struct {
	BaseMessage

	sender int
	seq    int
}

func (m *seqMsg) MessageType() string {
	return "seqMsg"
}

// TestRestartCounterProperty compares the windowed restart counter against a
// straightforward model over random synthetic failure schedules.
func TestRestartCounterProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		window := time.Duration(
			rapid.IntRange(1, 1000).Draw(rt, "window_ms"),
		) * time.Millisecond

		gaps := rapid.SliceOfN(
			rapid.IntRange(0, 2000), 1, 40,
		).Draw(rt, "gap_ms")

		sys := NewSystem()
		defer func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), 10*time.Second,
			)
			defer cancel()

			require.NoError(t, sys.Shutdown(ctx))
		}()

		h := sys.NewActor(func() Receiver {
			return ReceiverFunc(func(ctx *Context) error {
				return nil
			})
		})

		// Model: count resets to one when the gap since the window
		// start exceeds the window.
		modelCount := 0
		var modelStart time.Time

		now := time.Unix(1700000000, 0)
		for _, gapMs := range gaps {
			now = now.Add(time.Duration(gapMs) * time.Millisecond)

			if modelCount == 0 || now.Sub(modelStart) > window {
				modelStart = now
				modelCount = 1
			} else {
				modelCount++
			}

			got := h.bumpRestartCounterAt(now, window)
			if got != modelCount {
				rt.Fatalf("counter %d, model %d at gap %dms",
					got, modelCount, gapMs)
			}
		}

		require.Positive(t, modelCount)
	})
}
