package actor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// mailbox is an ordered queue of envelopes plus the processing token that
// enforces serial execution of the owning actor's handler. The backing
// structure is decided by the dispatcher configuration: unbounded mailboxes
// use a growable ring, bounded and synchronous mailboxes use a channel.
//
// Thread safety: enqueue, tryEnqueue and dequeue may be called concurrently
// from any goroutine. The processing token guarantees at most one goroutine
// is draining at a time, but does not itself guard the queue; the queue has
// its own synchronization.
type mailbox struct {
	spec MailboxSpec

	// processing is the token. Held for the duration of a drain; never
	// held while enqueuing.
	processing atomic.Bool

	// dead is set once the mailbox is closed. No envelope is accepted
	// afterwards.
	dead atomic.Bool

	// stop is closed together with dead so blocked synchronous producers
	// unblock.
	stop chan struct{}

	// notify wakes a dedicated drain goroutine, if the dispatcher parks
	// one on this mailbox. Capacity one: coalesced wake-ups are fine
	// because the drainer re-checks emptiness before parking.
	notify chan struct{}

	// mu guards the ring buffer fields below. Unused for channel-backed
	// kinds.
	mu   sync.Mutex
	ring []*envelope

	// ch backs the bounded and synchronous kinds.
	ch chan *envelope
}

// newMailbox builds a mailbox per the given spec.
func newMailbox(spec MailboxSpec) *mailbox {
	m := &mailbox{
		spec:   spec,
		stop:   make(chan struct{}),
		notify: make(chan struct{}, 1),
	}

	switch spec.Kind {
	case MailboxBoundedLinked, MailboxBoundedArray:
		capacity := spec.Capacity
		if capacity <= 0 {
			capacity = 1
		}
		m.ch = make(chan *envelope, capacity)

	case MailboxSynchronous:
		m.ch = make(chan *envelope)
	}

	return m
}

// tryEnqueue installs an envelope without blocking. It returns ErrStopped if
// the mailbox is closed and ErrMailboxFull if a bounded queue is saturated.
// The synchronous kind reports full here unless a drainer is already waiting
// to receive; producers must use the blocking enqueue path.
func (m *mailbox) tryEnqueue(env *envelope) error {
	if m.dead.Load() {
		return ErrStopped
	}

	switch m.spec.Kind {
	case MailboxUnbounded:
		m.mu.Lock()
		// Re-check under the lock so close cannot race an append.
		if m.dead.Load() {
			m.mu.Unlock()
			return ErrStopped
		}
		m.ring = append(m.ring, env)
		m.mu.Unlock()

		m.wake()

		return nil

	case MailboxSynchronous:
		select {
		case m.ch <- env:
			return nil
		default:
			return ErrMailboxFull
		}

	default:
		select {
		case m.ch <- env:
			m.wake()
			return nil
		default:
			if m.dead.Load() {
				return ErrStopped
			}
			return ErrMailboxFull
		}
	}
}

// enqueueWait installs an envelope, blocking until the queue accepts it or
// the mailbox closes. This is the producer path for the synchronous handoff
// kind; for the other kinds it degrades to tryEnqueue.
func (m *mailbox) enqueueWait(env *envelope) error {
	if m.spec.Kind != MailboxSynchronous {
		return m.tryEnqueue(env)
	}

	if m.dead.Load() {
		return ErrStopped
	}

	m.wake()

	select {
	case m.ch <- env:
		return nil

	case <-m.stop:
		return ErrStopped
	}
}

// dequeue removes and returns the next envelope without blocking.
func (m *mailbox) dequeue() (*envelope, bool) {
	switch m.spec.Kind {
	case MailboxUnbounded:
		m.mu.Lock()
		defer m.mu.Unlock()

		if len(m.ring) == 0 {
			return nil, false
		}

		env := m.ring[0]
		m.ring[0] = nil
		m.ring = m.ring[1:]

		return env, true

	default:
		select {
		case env := <-m.ch:
			return env, true
		default:
			return nil, false
		}
	}
}

// dequeueWait blocks until an envelope is available or the mailbox closes.
// Only used by dedicated drain goroutines (thread-based dispatcher).
func (m *mailbox) dequeueWait() (*envelope, bool) {
	for {
		if env, ok := m.dequeue(); ok {
			return env, true
		}

		if m.dead.Load() {
			return nil, false
		}

		if m.spec.Kind == MailboxUnbounded {
			select {
			case <-m.notify:
			case <-m.stop:
			}

			continue
		}

		select {
		case env := <-m.ch:
			return env, true

		case <-m.stop:
			// Drain any envelope that won the race against close.
			return m.dequeue()
		}
	}
}

// size reports the number of queued envelopes. Observational only.
func (m *mailbox) size() int {
	switch m.spec.Kind {
	case MailboxUnbounded:
		m.mu.Lock()
		defer m.mu.Unlock()

		return len(m.ring)

	default:
		return len(m.ch)
	}
}

// tryAcquire attempts to take the processing token.
func (m *mailbox) tryAcquire() bool {
	return m.processing.CompareAndSwap(false, true)
}

// acquireWait takes the processing token, spinning until the current holder
// releases it. Used by dedicated drain loops, where the only competing
// holders are short-lived (a restart installing a rebuilt instance, a
// caller-runs producer draining one envelope).
func (m *mailbox) acquireWait() {
	for spins := 0; !m.tryAcquire(); spins++ {
		if spins < 64 {
			runtime.Gosched()
			continue
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// acquireTimeout is acquireWait with a deadline. It exists for paths where
// unbounded waiting could form a deadly embrace: two workers each holding one
// token while waiting for the other's (concurrent sibling failures under
// all-for-one recovery, or a caller-runs producer inside the target's own
// handler).
func (m *mailbox) acquireTimeout(d time.Duration) bool {
	deadline := time.Now().Add(d)

	for spins := 0; ; spins++ {
		if m.tryAcquire() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		if spins < 64 {
			runtime.Gosched()
			continue
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// release returns the processing token. The caller must re-check emptiness
// afterwards and reschedule a drain if envelopes arrived during processing;
// that handshake is what prevents lost wake-ups.
func (m *mailbox) release() {
	m.processing.Store(false)
}

// wake nudges a parked dedicated drainer, if any.
func (m *mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// close marks the mailbox dead and returns all undrained envelopes so the
// caller can discard them (completing any reply promise exceptionally).
func (m *mailbox) close() []*envelope {
	if !m.dead.CompareAndSwap(false, true) {
		return nil
	}

	close(m.stop)

	var leftovers []*envelope

	switch m.spec.Kind {
	case MailboxUnbounded:
		m.mu.Lock()
		leftovers = m.ring
		m.ring = nil
		m.mu.Unlock()

	default:
		for {
			select {
			case env := <-m.ch:
				leftovers = append(leftovers, env)
			default:
				return leftovers
			}
		}
	}

	return leftovers
}
