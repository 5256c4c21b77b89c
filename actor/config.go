package actor

import (
	"time"
)

const (
	// DefaultReplyTimeout is the reply timeout applied to Ask when the
	// caller's context carries no deadline and the handle has no explicit
	// override.
	DefaultReplyTimeout = 5 * time.Second

	// DefaultThroughput is the number of envelopes a shared-pool worker
	// drains from one mailbox before yielding to other ready actors.
	DefaultThroughput = 5
)

// DispatcherKind selects the scheduling strategy used for actors that do not
// override their dispatcher at spawn time.
type DispatcherKind int

const (
	// DispatchCooperativePool schedules actors on a shared worker pool fed
	// by a queue of ready mailboxes. This is the default.
	DispatchCooperativePool DispatcherKind = iota

	// DispatchExecutor is the event-driven shared pool: N actors share a
	// pool of workers, each drain processes up to the configured
	// throughput before yielding.
	DispatchExecutor

	// DispatchSingleThread multiplexes all actors over one worker, one
	// envelope at a time. The most debuggable option.
	DispatchSingleThread

	// DispatchPinned is like DispatchExecutor, but a given actor always
	// runs on the same worker.
	DispatchPinned

	// DispatchThreadBased gives every actor a dedicated worker goroutine
	// of its own. The strongest isolation.
	DispatchThreadBased
)

// MailboxKind selects the backing structure of an actor's mailbox.
type MailboxKind int

const (
	// MailboxUnbounded is an unbounded FIFO. The default.
	MailboxUnbounded MailboxKind = iota

	// MailboxBoundedLinked is a bounded FIFO backed by a buffered channel.
	MailboxBoundedLinked

	// MailboxBoundedArray is a bounded FIFO backed by a buffered channel;
	// it behaves the same as MailboxBoundedLinked. Envelopes are drained
	// in the order their enqueues were accepted.
	MailboxBoundedArray

	// MailboxSynchronous is a zero-capacity handoff: every enqueue
	// rendezvouses with the draining worker. Only supported by the
	// thread-based dispatcher.
	MailboxSynchronous
)

// MailboxSpec describes the mailbox configuration for an actor.
type MailboxSpec struct {
	// Kind is the backing structure.
	Kind MailboxKind

	// Capacity bounds the queue for the bounded kinds. Ignored otherwise.
	Capacity int

	// Fair is accepted for the bounded-array kind but has no effect:
	// producers never block on a bounded mailbox, and a saturated one
	// applies the rejection policy instead.
	Fair bool
}

// RejectionPolicy decides what happens when a bounded mailbox is saturated.
type RejectionPolicy int

const (
	// RejectAbort surfaces ErrMailboxFull at the caller.
	RejectAbort RejectionPolicy = iota

	// RejectCallerRuns makes the caller drain one envelope itself to make
	// room, then enqueue.
	RejectCallerRuns

	// RejectDiscard silently drops the new envelope.
	RejectDiscard

	// RejectDiscardOldest silently drops the oldest queued envelope to
	// make room for the new one.
	RejectDiscardOldest
)

// Lifecycle selects the supervision fate of an actor after a trapped failure.
type Lifecycle int

const (
	// LifecycleUnspecified defers to the system default.
	LifecycleUnspecified Lifecycle = iota

	// LifecyclePermanent restarts the actor on failure.
	LifecyclePermanent

	// LifecycleTemporary does not restart: the actor is stopped and
	// removed from its supervisor on failure.
	LifecycleTemporary
)

// OrphanPolicy decides what happens to a failing subordinate whose supervisor
// is already stopped at the moment the failure notification would be sent.
type OrphanPolicy int

const (
	// OrphanStop stops the failing subordinate (and, through the normal
	// stop cascade, its own linked tree). The default.
	OrphanStop OrphanPolicy = iota

	// OrphanIgnore logs the failure and leaves the subordinate running.
	OrphanIgnore
)

// Config holds the system-wide configuration. Every recognized option is
// enumerated here; per-actor overrides are applied through spawn options.
type Config struct {
	// DefaultReplyTimeout is the default for Ask when none is given.
	DefaultReplyTimeout time.Duration

	// DefaultDispatcher selects the dispatcher used by actors that do not
	// override it.
	DefaultDispatcher DispatcherKind

	// Throughput is the number of envelopes per drain in shared-pool
	// dispatcher variants.
	Throughput int

	// PoolWorkers is the worker count for shared-pool dispatcher
	// variants. Zero means one worker per CPU.
	PoolWorkers int

	// Mailbox is the default mailbox specification.
	Mailbox MailboxSpec

	// Rejection is the policy applied when a bounded mailbox is
	// saturated.
	Rejection RejectionPolicy

	// SerializeMessages deep-copies every payload through the message
	// codec before enqueue. Used in testing to catch accidental sharing
	// of mutable message state.
	SerializeMessages bool

	// DefaultLifecycle applies to actors spawned with
	// LifecycleUnspecified.
	DefaultLifecycle Lifecycle

	// Orphans decides the fate of subordinates failing under an already
	// stopped supervisor.
	Orphans OrphanPolicy
}

// DefaultConfig returns the default system configuration.
func DefaultConfig() Config {
	return Config{
		DefaultReplyTimeout: DefaultReplyTimeout,
		DefaultDispatcher:   DispatchCooperativePool,
		Throughput:          DefaultThroughput,
		Mailbox:             MailboxSpec{Kind: MailboxUnbounded},
		Rejection:           RejectAbort,
		DefaultLifecycle:    LifecyclePermanent,
		Orphans:             OrphanStop,
	}
}

// FaultStrategyKind enumerates the supervision recovery strategies.
type FaultStrategyKind int

const (
	// StrategyNone performs no local recovery: trapped failures escalate.
	StrategyNone FaultStrategyKind = iota

	// StrategyOneForOne restarts only the failing subordinate.
	StrategyOneForOne

	// StrategyAllForOne restarts all subordinates of the supervisor when
	// any one of them fails.
	StrategyAllForOne
)

// FaultStrategy is the restart policy a supervisor applies to failures in its
// trap-exit set. MaxRetries bounds restarts within Window; exceeding the
// bound stops the subordinate and notifies the supervisor with
// MaxRestartsExceeded.
type FaultStrategy struct {
	// Kind selects one-for-one or all-for-one recovery.
	Kind FaultStrategyKind

	// MaxRetries is the restart bound within Window.
	MaxRetries int

	// Window is the failure counting window.
	Window time.Duration
}

// OneForOne builds a one-for-one fault strategy.
func OneForOne(maxRetries int, window time.Duration) FaultStrategy {
	return FaultStrategy{
		Kind:       StrategyOneForOne,
		MaxRetries: maxRetries,
		Window:     window,
	}
}

// AllForOne builds an all-for-one fault strategy.
func AllForOne(maxRetries int, window time.Duration) FaultStrategy {
	return FaultStrategy{
		Kind:       StrategyAllForOne,
		MaxRetries: maxRetries,
		Window:     window,
	}
}

// spawnConfig collects the per-actor overrides applied by spawn options.
type spawnConfig struct {
	tag            string
	dispatcher     Dispatcher
	mailbox        *MailboxSpec
	rejection      *RejectionPolicy
	lifecycle      Lifecycle
	replyTimeout   time.Duration
	receiveTimeout time.Duration
	trapExit       []error
	trapAll        bool
	strategy       FaultStrategy
}

// SpawnOption is a functional option applied when constructing an actor
// handle.
type SpawnOption func(*spawnConfig)

// WithTag sets the user-visible label of the handle. Tags are used for
// registry lookup and logging and need not be unique.
func WithTag(tag string) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.tag = tag
	}
}

// WithDispatcher overrides the dispatcher driving this actor's mailbox.
func WithDispatcher(d Dispatcher) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.dispatcher = d
	}
}

// WithMailbox overrides the mailbox specification for this actor.
func WithMailbox(spec MailboxSpec) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.mailbox = &spec
	}
}

// WithRejectionPolicy overrides the saturation policy of this actor's bounded
// mailbox.
func WithRejectionPolicy(p RejectionPolicy) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.rejection = &p
	}
}

// WithLifecycle sets the restart fate of the actor after trapped failures.
func WithLifecycle(lc Lifecycle) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.lifecycle = lc
	}
}

// WithReplyTimeout overrides the default Ask reply timeout for this handle.
func WithReplyTimeout(d time.Duration) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.replyTimeout = d
	}
}

// WithReceiveTimeout arms a receive-timeout timer: if the actor's mailbox
// stays empty for d after a processed message, a ReceiveTimeout message is
// delivered.
func WithReceiveTimeout(d time.Duration) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.receiveTimeout = d
	}
}

// WithTrapExit declares the failure kinds this actor, acting as a supervisor,
// handles via its fault strategy rather than escalating. Matching uses
// errors.Is against each listed kind.
func WithTrapExit(kinds ...error) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.trapExit = append(cfg.trapExit, kinds...)
	}
}

// WithTrapAll traps every failure kind.
func WithTrapAll() SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.trapAll = true
	}
}

// WithFaultStrategy sets the recovery strategy this actor applies to trapped
// subordinate failures.
func WithFaultStrategy(s FaultStrategy) SpawnOption {
	return func(cfg *spawnConfig) {
		cfg.strategy = s
	}
}
