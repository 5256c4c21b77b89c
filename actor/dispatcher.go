package actor

import (
	"errors"
	"sync"
	"time"
)

// Dispatcher is a scheduler that owns execution resources and drives mailbox
// drains. Each dispatcher owns the mailboxes of the actors attached to it,
// keyed by identity; handles hold only a dispatcher reference and their own
// id, which breaks the handle/dispatcher/mailbox reference cycle.
//
// Implementations are provided by this package; the interface carries
// unexported methods because the drain handshake is internal to the runtime.
type Dispatcher interface {
	// Attach admits an actor and allocates its mailbox. It fails when the
	// dispatcher cannot drive the handle's mailbox kind.
	Attach(h *LocalRef) error

	// Detach removes an actor, closes its mailbox and discards undrained
	// envelopes through the handle.
	Detach(h *LocalRef)

	// Dispatch enqueues an envelope and, if the target is not currently
	// processing, schedules a drain.
	Dispatch(h *LocalRef, env *envelope) error

	// MailboxSize reports the queued envelope count. Observational.
	MailboxSize(h *LocalRef) int

	// Shutdown stops the dispatcher's workers. Attached actors must be
	// detached first.
	Shutdown()

	// mailboxOf resolves the mailbox owned for the given handle.
	mailboxOf(h *LocalRef) (*mailbox, bool)

	// scheduleDrain puts the handle on the dispatcher's ready queue (or
	// wakes its dedicated drainer).
	scheduleDrain(h *LocalRef)
}

// drainTask pairs a ready handle with its mailbox on a pool's ready queue.
type drainTask struct {
	h  *LocalRef
	mb *mailbox
}

// readyQueue is the MPMC work queue of ready mailboxes feeding a worker
// pool. A mailbox may appear more than once; workers that lose the token
// race simply skip the entry, and the token holder's release re-check keeps
// the wake-up chain alive.
type readyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []drainTask
	closed bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{}
	q.cond = sync.NewCond(&q.mu)

	return q
}

// push appends a task and wakes one waiting worker.
func (q *readyQueue) push(t drainTask) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.items = append(q.items, t)
	q.cond.Signal()
}

// pop blocks until a task is available or the queue closes.
func (q *readyQueue) pop() (drainTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return drainTask{}, false
	}

	t := q.items[0]
	q.items[0] = drainTask{}
	q.items = q.items[1:]

	return t, true
}

// close unblocks all waiting workers.
func (q *readyQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

// enqueueEnvelope installs an envelope into the mailbox, applying the
// handle's rejection policy when a bounded queue is saturated. On the
// caller-runs policy the calling goroutine acquires the processing token,
// drains one envelope itself to make room, and retries; serial execution is
// preserved because the token is held across the inline invoke.
func enqueueEnvelope(d Dispatcher, h *LocalRef, mb *mailbox,
	env *envelope) error {

	for {
		err := mb.tryEnqueue(env)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrMailboxFull) {
			return err
		}

		switch h.rejection {
		case RejectAbort:
			return ErrMailboxFull

		case RejectDiscard:
			h.deadLetter(env, ErrMailboxFull)
			env.completeErr(ErrMailboxFull)

			return nil

		case RejectDiscardOldest:
			if oldest, ok := mb.dequeue(); ok {
				h.deadLetter(oldest, ErrMailboxFull)
				oldest.completeErr(ErrMailboxFull)
			}

		case RejectCallerRuns:
			// Bounded acquire: a producer inside the target's own
			// handler already holds the token and would wait on
			// itself forever.
			if !mb.acquireTimeout(time.Second) {
				h.deadLetter(env, ErrMailboxFull)
				env.completeErr(ErrMailboxFull)

				return nil
			}

			if queued, ok := mb.dequeue(); ok {
				h.invoke(queued)
			}
			releaseAndReschedule(d, h, mb)
		}
	}
}

// dispatchEnvelope is the shared dispatch path: enqueue, then schedule a
// drain iff the processing token is observed free. The enqueue is ordered
// before the token check, and the releaser re-checks mailbox emptiness after
// releasing, so no wake-up is lost.
func dispatchEnvelope(d Dispatcher, h *LocalRef, mb *mailbox,
	env *envelope) error {

	if err := enqueueEnvelope(d, h, mb, env); err != nil {
		return err
	}

	if !mb.processing.Load() {
		d.scheduleDrain(h)
	}

	return nil
}

// drainBatch processes up to throughput envelopes from the mailbox. The
// caller must hold the processing token.
func drainBatch(h *LocalRef, mb *mailbox, throughput int) {
	if throughput <= 0 {
		throughput = 1
	}

	for i := 0; i < throughput; i++ {
		env, ok := mb.dequeue()
		if !ok {
			return
		}

		h.invoke(env)
	}
}

// releaseAndReschedule returns the processing token and re-checks mailbox
// emptiness. If envelopes arrived during processing, another drain is
// scheduled; this is the second half of the no-lost-wake-up handshake.
func releaseAndReschedule(d Dispatcher, h *LocalRef, mb *mailbox) {
	mb.release()

	if mb.size() > 0 {
		d.scheduleDrain(h)
	}
}
