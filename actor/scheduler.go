package actor

import (
	"context"
	"sync"
	"time"
)

// Scheduler provides the one-shot and periodic timers behind receive
// timeouts and user-scheduled messages. Every timer is tracked so a system
// shutdown can cancel outstanding work deterministically.
type Scheduler struct {
	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]*time.Timer
	tickers map[uint64]chan struct{}
	closed  bool
}

// newScheduler creates an idle scheduler.
func newScheduler() *Scheduler {
	return &Scheduler{
		timers:  make(map[uint64]*time.Timer),
		tickers: make(map[uint64]chan struct{}),
	}
}

// ScheduleOnce runs fn once after delay. The returned cancel function stops
// the timer if it has not fired yet; calling it more than once is safe.
func (s *Scheduler) ScheduleOnce(delay time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		fn()
	})
	s.timers[id] = timer

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
	}
}

// Schedule runs fn every interval after an initial delay until cancelled.
func (s *Scheduler) Schedule(initial, interval time.Duration,
	fn func()) func() {

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}

	id := s.nextID
	s.nextID++

	stop := make(chan struct{})
	s.tickers[id] = stop
	s.mu.Unlock()

	go func() {
		initialTimer := time.NewTimer(initial)
		defer initialTimer.Stop()

		select {
		case <-initialTimer.C:
			fn()

		case <-stop:
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()

			case <-stop:
				return
			}
		}
	}()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if ch, ok := s.tickers[id]; ok {
			close(ch)
			delete(s.tickers, id)
		}
	}
}

// ScheduleTellOnce delivers msg to the target once after delay. Delivery
// failures (for example a stopped target) are logged and dropped.
func (s *Scheduler) ScheduleTellOnce(delay time.Duration, target Ref,
	msg Message) func() {

	return s.ScheduleOnce(delay, func() {
		if err := target.Tell(context.Background(), msg); err != nil {
			log.DebugS(context.Background(),
				"Scheduled message dropped",
				"actor_id", target.ID(), "err", err)
		}
	})
}

// ScheduleTell delivers msg to the target every interval after an initial
// delay until cancelled.
func (s *Scheduler) ScheduleTell(initial, interval time.Duration, target Ref,
	msg Message) func() {

	return s.Schedule(initial, interval, func() {
		if err := target.Tell(context.Background(), msg); err != nil {
			log.DebugS(context.Background(),
				"Scheduled message dropped",
				"actor_id", target.ID(), "err", err)
		}
	})
}

// shutdown cancels every outstanding timer and periodic schedule.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}

	for id, stop := range s.tickers {
		close(stop)
		delete(s.tickers, id)
	}
}
