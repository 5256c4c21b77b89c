package actor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// traps reports whether the given failure is in this supervisor's trap-exit
// set. Matching uses errors.Is, so user handlers signal failure kinds through
// wrapped sentinel errors.
func (h *LocalRef) traps(cause error) bool {
	h.mu.Lock()
	trapAll := h.trapAll
	kinds := h.trapExit
	h.mu.Unlock()

	if trapAll {
		return true
	}

	for _, kind := range kinds {
		if errors.Is(cause, kind) {
			return true
		}
	}

	return false
}

// handleFailure is the supervision entry point, called by invoke while the
// failing actor's processing token is still held so the recovery decision is
// visible to the next drain.
func (h *LocalRef) handleFailure(cause error) {
	sup := h.supervisorRef()

	// An unsupervised actor stops on failure.
	if sup == nil {
		log.InfoS(h.system.ctx, "Unsupervised actor failed, stopping",
			"actor_id", h.id, "err", cause)

		h.stopFromFailure()

		return
	}

	// A supervisor that is already stopped cannot take the notification;
	// the fate of the subordinate is a configuration choice.
	if sup.State() == StateStopped {
		switch h.system.cfg.Orphans {
		case OrphanIgnore:
			log.WarnS(h.system.ctx,
				"Failure under stopped supervisor ignored",
				cause, "actor_id", h.id,
				"supervisor_id", sup.id)

		default:
			log.InfoS(h.system.ctx,
				"Supervisor stopped, stopping failed actor",
				"actor_id", h.id, "supervisor_id", sup.id)

			h.stopFromFailure()
		}

		return
	}

	// Failure kinds outside the trap-exit set escalate: the supervisor's
	// own handler (or its supervisor in turn) decides.
	if !sup.traps(cause) {
		failed := Failed{Subordinate: h, Cause: cause}
		if err := sup.TellFrom(context.Background(), failed, h); err != nil {
			log.WarnS(h.system.ctx, "Failure escalation dropped",
				err, "actor_id", h.id,
				"supervisor_id", sup.id)
		}

		return
	}

	switch sup.strategy.Kind {
	case StrategyOneForOne:
		sup.superviseFailure(h, cause, false)

	case StrategyAllForOne:
		sup.superviseFailure(h, cause, true)

	default:
		// Trapped but no recovery strategy configured: escalate.
		failed := Failed{Subordinate: h, Cause: cause}
		if err := sup.TellFrom(context.Background(), failed, h); err != nil {
			log.WarnS(h.system.ctx, "Failure escalation dropped",
				err, "actor_id", h.id,
				"supervisor_id", sup.id)
		}
	}
}

// stopFromFailure stops a failing actor, swallowing the (always nil) Stop
// result on supervision paths.
func (h *LocalRef) stopFromFailure() {
	_ = h.Stop()
}

// superviseFailure applies the supervisor's fault strategy to a trapped
// subordinate failure. For one-for-one recovery the restart counter lives on
// the failing subordinate; for all-for-one it lives on the supervisor, so
// any mix of subordinate failures consumes the same budget.
func (sup *LocalRef) superviseFailure(failing *LocalRef, cause error,
	allForOne bool) {

	counterHost := failing
	if allForOne {
		counterHost = sup
	}

	if counterHost.bumpRestartCounter(sup.strategy.Window) >
		sup.strategy.MaxRetries {

		// The restart budget is exhausted: stop the subordinate and
		// notify the supervisor exactly once.
		failing.stopFromFailure()

		notice := MaxRestartsExceeded{
			SubordinateID: failing.id,
			MaxRetries:    sup.strategy.MaxRetries,
			Window:        sup.strategy.Window,
			Cause:         cause,
		}
		if err := sup.Tell(context.Background(), notice); err != nil {
			log.WarnS(sup.system.ctx,
				"Max-restarts notification dropped", err,
				"supervisor_id", sup.id,
				"actor_id", failing.id)
		}

		return
	}

	// Temporary subordinates are not restarted: remove on failure.
	if failing.effectiveLifecycle() == LifecycleTemporary {
		failing.stopFromFailure()
		sup.removeSubordinate(failing)

		if sup.subordinateCount() == 0 {
			unlink := UnlinkAndStop{Subordinate: failing}
			if err := sup.Tell(context.Background(), unlink); err != nil {
				log.WarnS(sup.system.ctx,
					"Unlink notification dropped", err,
					"supervisor_id", sup.id)
			}
		}

		return
	}

	if allForOne {
		for _, sub := range sup.subordinates() {
			sub.restart(cause, sub == failing)
		}

		return
	}

	failing.restart(cause, true)
}

// bumpRestartCounter advances the windowed failure counter and returns the
// new count. A failure landing outside the window restarts the count at one.
func (h *LocalRef) bumpRestartCounter(window time.Duration) int {
	return h.bumpRestartCounterAt(time.Now(), window)
}

// bumpRestartCounterAt is the clock-explicit form backing
// bumpRestartCounter.
func (h *LocalRef) bumpRestartCounterAt(now time.Time,
	window time.Duration) int {

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.restartCount == 0 || now.Sub(h.restartWindowStart) > window {
		h.restartWindowStart = now
		h.restartCount = 1
	} else {
		h.restartCount++
	}

	return h.restartCount
}

// restart replaces the actor instance after a failure: PreRestart on the
// failing instance, a fresh instance from the saved factory, Init and
// InitTransactionalState on it, then PostRestart. Linked subordinates are
// restarted recursively, each bounded by its own counter. The identity, the
// mailbox and all queued envelopes are preserved; the restarted instance
// processes them.
//
// tokenHeld marks whether the caller (the failing actor's drain worker)
// already holds the processing token. For other actors the token is acquired
// here so the instance swap is never visible to a concurrent drain.
func (h *LocalRef) restart(cause error, tokenHeld bool) {
	if h.State() != StateRunning {
		return
	}

	mb, haveMailbox := h.dispatcher.mailboxOf(h)
	if !tokenHeld && haveMailbox {
		// Bounded: two sibling failures handled concurrently under
		// all-for-one would otherwise each hold their own token while
		// waiting for the other's. The skipped sibling restarts
		// itself through its own failure handling.
		if !mb.acquireTimeout(5 * time.Second) {
			log.WarnS(h.system.ctx,
				"Skipping restart, drain busy",
				nil, "actor_id", h.id)

			return
		}
	}

	// A concurrent Stop wins: once stopped, a handle never runs again.
	if !h.state.CompareAndSwap(
		int32(StateRunning), int32(StateBeingRestarted),
	) {
		if !tokenHeld && haveMailbox {
			mb.release()
		}

		return
	}

	// Subordinates of the restarting actor restart too, bounded by their
	// own windowed counters.
	for _, sub := range h.subordinates() {
		if h.strategy.Kind != StrategyNone &&
			sub.bumpRestartCounter(h.strategy.Window) >
				h.strategy.MaxRetries {

			sub.stopFromFailure()
			continue
		}

		sub.restart(cause, false)
	}

	cctx := &Context{ctx: h.system.ctx, self: h}

	if restartable, ok := h.instance.(Restartable); ok {
		safeRestartHook(func() {
			restartable.PreRestart(cctx, cause)
		}, h, "pre-restart")
	}

	fresh := h.factory()

	if err := h.runInit(fresh); err != nil {
		// A rebuild that cannot initialize leaves nothing to run:
		// stop and surface the failure to the supervisor.
		log.ErrorS(h.system.ctx, "Actor re-initialization failed",
			err, "actor_id", h.id)

		if !tokenHeld && haveMailbox {
			mb.release()
		}

		// Stopping clears the supervisor link, so read it first.
		sup := h.supervisorRef()

		h.stopFromFailure()

		if sup != nil {
			failed := Failed{Subordinate: h, Cause: err}
			_ = sup.Tell(context.Background(), failed)
		}

		return
	}

	h.instance = fresh

	if restartable, ok := fresh.(Restartable); ok {
		safeRestartHook(func() {
			restartable.PostRestart(cctx, cause)
		}, h, "post-restart")
	}

	if !h.state.CompareAndSwap(
		int32(StateBeingRestarted), int32(StateRunning),
	) {
		// Stopped while restarting; the fresh instance never runs.
		if !tokenHeld && haveMailbox {
			mb.release()
		}

		return
	}

	log.InfoS(h.system.ctx, "Actor restarted",
		"actor_id", h.id, "tag", h.Tag(), "cause", cause)

	if !tokenHeld && haveMailbox {
		releaseAndReschedule(h.dispatcher, h, mb)
	}
}

// safeRestartHook shields the restart sequence from panicking lifecycle
// callbacks.
func safeRestartHook(hook func(), h *LocalRef, name string) {
	defer func() {
		if r := recover(); r != nil {
			log.WarnS(h.system.ctx, "Restart hook panicked",
				fmt.Errorf("%v", r),
				"actor_id", h.id, "hook", name)
		}
	}()

	hook()
}
