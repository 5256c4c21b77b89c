package actor

import (
	"sync"
)

// threadDispatcher gives every attached actor a dedicated drain goroutine of
// its own: the strongest isolation, and the only dispatcher that supports the
// synchronous handoff mailbox (its drainer can block on the rendezvous).
type threadDispatcher struct {
	mu        sync.Mutex
	mailboxes map[ID]*mailbox
	wg        sync.WaitGroup
}

// NewThreadDispatcher creates a dispatcher with one dedicated worker per
// actor.
func NewThreadDispatcher() Dispatcher {
	return &threadDispatcher{
		mailboxes: make(map[ID]*mailbox),
	}
}

// Attach admits an actor, allocates its mailbox and starts its dedicated
// drain goroutine.
func (d *threadDispatcher) Attach(h *LocalRef) error {
	mb := newMailbox(h.mailboxSpec())

	d.mu.Lock()
	d.mailboxes[h.id] = mb
	d.mu.Unlock()

	d.wg.Add(1)
	go d.runActor(h, mb)

	return nil
}

// runActor is the dedicated drain loop for one actor. The processing token
// is still taken per envelope so the restart path can serialize against the
// drain exactly as it does on shared pools.
func (d *threadDispatcher) runActor(h *LocalRef, mb *mailbox) {
	defer d.wg.Done()

	for {
		env, ok := mb.dequeueWait()
		if !ok {
			return
		}

		mb.acquireWait()
		h.invoke(env)
		mb.release()
	}
}

// Detach removes the actor and closes its mailbox, which terminates the
// dedicated drainer.
func (d *threadDispatcher) Detach(h *LocalRef) {
	d.mu.Lock()
	mb, ok := d.mailboxes[h.id]
	delete(d.mailboxes, h.id)
	d.mu.Unlock()

	if !ok {
		return
	}

	h.discardEnvelopes(mb.close())
}

// Dispatch enqueues an envelope. The synchronous handoff kind blocks until
// the drainer takes the envelope; the queued kinds apply the handle's
// rejection policy and wake the drainer.
func (d *threadDispatcher) Dispatch(h *LocalRef, env *envelope) error {
	mb, ok := d.mailboxOf(h)
	if !ok {
		return ErrStopped
	}

	if mb.spec.Kind == MailboxSynchronous {
		return mb.enqueueWait(env)
	}

	return dispatchEnvelope(d, h, mb, env)
}

// MailboxSize reports the queued envelope count for the handle.
func (d *threadDispatcher) MailboxSize(h *LocalRef) int {
	mb, ok := d.mailboxOf(h)
	if !ok {
		return 0
	}

	return mb.size()
}

// Shutdown waits for all dedicated drainers to exit. Actors must already be
// detached.
func (d *threadDispatcher) Shutdown() {
	d.mu.Lock()
	for id, mb := range d.mailboxes {
		delete(d.mailboxes, id)
		mb.close()
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// mailboxOf resolves the mailbox owned for the given handle.
func (d *threadDispatcher) mailboxOf(h *LocalRef) (*mailbox, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mb, ok := d.mailboxes[h.id]

	return mb, ok
}

// scheduleDrain wakes the dedicated drainer.
func (d *threadDispatcher) scheduleDrain(h *LocalRef) {
	if mb, ok := d.mailboxOf(h); ok {
		mb.wake()
	}
}
