package actor

import (
	"runtime"
	"sync"
)

// poolDispatcher is the event-driven shared-pool engine behind the executor,
// cooperative and pinned dispatcher variants. Workers pull ready mailboxes
// from a work queue, take the processing token with a CAS, drain up to
// throughput envelopes, release the token and re-check emptiness.
//
// In pinned mode every worker owns a private ready queue and each actor is
// bound to one worker at attach time, so a given actor only ever runs on
// that worker.
type poolDispatcher struct {
	throughput int
	workers    int
	pinned     bool

	// ready is the shared work queue. Nil in pinned mode.
	ready *readyQueue

	// perWorker holds one private ready queue per worker in pinned mode.
	perWorker []*readyQueue

	// mu guards the maps below.
	mu        sync.Mutex
	mailboxes map[ID]*mailbox
	binding   map[ID]int
	nextBind  int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewExecutorDispatcher creates the event-driven shared-pool dispatcher: N
// actors share a pool of workers, and each drain processes up to throughput
// envelopes before yielding.
func NewExecutorDispatcher(workers, throughput int) Dispatcher {
	return newPoolDispatcher(workers, throughput, false)
}

// NewCooperativePoolDispatcher creates the default dispatcher: a shared pool
// with a work queue of ready mailboxes, one worker per CPU.
func NewCooperativePoolDispatcher(throughput int) Dispatcher {
	return newPoolDispatcher(0, throughput, false)
}

// NewSingleThreadDispatcher multiplexes all attached actors over one worker,
// draining one envelope at a time. The most debuggable option.
func NewSingleThreadDispatcher() Dispatcher {
	return newPoolDispatcher(1, 1, false)
}

// NewPinnedDispatcher creates a shared pool in which a given actor always
// runs on the same worker. This is the mode used when integrating with
// selector-based IO, where actor state is read from IO callback context.
func NewPinnedDispatcher(workers, throughput int) Dispatcher {
	return newPoolDispatcher(workers, throughput, true)
}

func newPoolDispatcher(workers, throughput int, pinned bool) *poolDispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if throughput <= 0 {
		throughput = DefaultThroughput
	}

	d := &poolDispatcher{
		throughput: throughput,
		workers:    workers,
		pinned:     pinned,
		mailboxes:  make(map[ID]*mailbox),
	}

	if pinned {
		d.binding = make(map[ID]int)
		d.perWorker = make([]*readyQueue, workers)
		for i := range d.perWorker {
			d.perWorker[i] = newReadyQueue()
		}
	} else {
		d.ready = newReadyQueue()
	}

	return d
}

// start spins up the worker goroutines on first attach.
func (d *poolDispatcher) start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			queue := d.ready
			if d.pinned {
				queue = d.perWorker[i]
			}

			d.wg.Add(1)
			go d.runWorker(queue)
		}
	})
}

// runWorker is the drain loop of one pool worker.
func (d *poolDispatcher) runWorker(queue *readyQueue) {
	defer d.wg.Done()

	for {
		task, ok := queue.pop()
		if !ok {
			return
		}

		// Another worker may already hold the token for an earlier
		// entry of the same mailbox; the holder's release re-check
		// keeps the wake-up chain alive, so losing the race here is
		// safe.
		if !task.mb.tryAcquire() {
			continue
		}

		drainBatch(task.h, task.mb, d.throughput)
		releaseAndReschedule(d, task.h, task.mb)
	}
}

// Attach admits an actor and allocates its mailbox. Synchronous handoff
// mailboxes need a dedicated drainer and are rejected here.
func (d *poolDispatcher) Attach(h *LocalRef) error {
	spec := h.mailboxSpec()
	if spec.Kind == MailboxSynchronous {
		return ErrUnsupportedMailbox
	}

	mb := newMailbox(spec)

	d.mu.Lock()
	d.mailboxes[h.id] = mb
	if d.pinned {
		d.binding[h.id] = d.nextBind % d.workers
		d.nextBind++
	}
	d.mu.Unlock()

	d.start()

	return nil
}

// Detach removes an actor, closes its mailbox and discards what was still
// queued.
func (d *poolDispatcher) Detach(h *LocalRef) {
	d.mu.Lock()
	mb, ok := d.mailboxes[h.id]
	delete(d.mailboxes, h.id)
	delete(d.binding, h.id)
	d.mu.Unlock()

	if !ok {
		return
	}

	h.discardEnvelopes(mb.close())
}

// Dispatch enqueues and, if the target is not currently processing,
// schedules a drain.
func (d *poolDispatcher) Dispatch(h *LocalRef, env *envelope) error {
	mb, ok := d.mailboxOf(h)
	if !ok {
		return ErrStopped
	}

	return dispatchEnvelope(d, h, mb, env)
}

// MailboxSize reports the queued envelope count for the handle.
func (d *poolDispatcher) MailboxSize(h *LocalRef) int {
	mb, ok := d.mailboxOf(h)
	if !ok {
		return 0
	}

	return mb.size()
}

// Shutdown closes the ready queues and waits for the workers to exit.
func (d *poolDispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		if d.pinned {
			for _, q := range d.perWorker {
				q.close()
			}
		} else {
			d.ready.close()
		}
	})

	d.wg.Wait()
}

// mailboxOf resolves the mailbox owned for the given handle.
func (d *poolDispatcher) mailboxOf(h *LocalRef) (*mailbox, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mb, ok := d.mailboxes[h.id]

	return mb, ok
}

// scheduleDrain puts the handle on the ready queue it is served by.
func (d *poolDispatcher) scheduleDrain(h *LocalRef) {
	mb, ok := d.mailboxOf(h)
	if !ok {
		return
	}

	if d.pinned {
		d.mu.Lock()
		worker := d.binding[h.id]
		d.mu.Unlock()

		d.perWorker[worker].push(drainTask{h: h, mb: mb})

		return
	}

	d.ready.push(drainTask{h: h, mb: mb})
}
