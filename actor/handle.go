package actor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// State enumerates the lifecycle states of a handle. Once stopped, a handle
// never runs again; its identity is not reused.
type State int32

const (
	// StateNotStarted is the state between handle construction and Start.
	StateNotStarted State = iota

	// StateRunning is the normal processing state.
	StateRunning

	// StateBeingRestarted is the transient state while the supervision
	// engine replaces the actor instance after a failure.
	StateBeingRestarted

	// StateStopped is terminal.
	StateStopped
)

// String returns a human readable state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateBeingRestarted:
		return "being-restarted"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Receiver is the user-supplied message-handling object. Receive processes
// one message at a time; the runtime guarantees at most one invocation is in
// flight per actor. Returning a non-nil error (or panicking) routes the
// failure through the supervision engine.
type Receiver interface {
	// Receive handles the current message, available on the context
	// together with its sender and reply channel.
	Receive(ctx *Context) error
}

// ReceiverFunc adapts a plain function to the Receiver interface.
type ReceiverFunc func(ctx *Context) error

// Receive implements Receiver by calling the function itself.
func (f ReceiverFunc) Receive(ctx *Context) error {
	return f(ctx)
}

// Initializer is an optional interface Receivers can implement to run setup
// when the actor first starts and after each restart.
type Initializer interface {
	// Init is called before the first message is processed. An error
	// fails the start with ErrInitializationFailed.
	Init(ctx *Context) error
}

// TransactionalInitializer is an optional interface for Receivers that keep
// transactional state; it runs after Init on start and restart.
type TransactionalInitializer interface {
	// InitTransactionalState sets up STM-managed state.
	InitTransactionalState(ctx *Context) error
}

// Restartable is an optional interface Receivers can implement to observe
// restarts: PreRestart runs on the failing instance before it is replaced,
// PostRestart on the fresh instance afterwards.
type Restartable interface {
	PreRestart(ctx *Context, cause error)
	PostRestart(ctx *Context, cause error)
}

// Stoppable is an optional interface that Receiver implementations can
// implement to perform cleanup when the actor is stopping. This is useful
// for releasing external resources such as network listeners or file handles
// that the receiver manages.
type Stoppable interface {
	// OnStop is called during actor shutdown, after the mailbox has been
	// closed and drained.
	OnStop(ctx *Context) error
}

// Ref is the public reference to an actor: the only externally visible way
// to reach it. A Ref can be held safely by many sites, can be local or
// remote, and survives restarts of the actor behind it. Local-only
// operations invoked on a remote handle fail with
// ErrRemoteOperationUnsupported at the call site.
type Ref interface {
	// ID returns the stable identity of the actor.
	ID() ID

	// Tag returns the user-visible label. Not unique.
	Tag() string

	// SetTag replaces the user-visible label.
	SetTag(tag string) error

	// State returns the current lifecycle state.
	State() State

	// Tell enqueues a fire-and-forget envelope.
	Tell(ctx context.Context, msg Message) error

	// TellFrom is Tell with an explicit sender handle attached, so the
	// receiver can reply by message.
	TellFrom(ctx context.Context, msg Message, sender Ref) error

	// Ask enqueues an envelope with a fresh reply future and blocks the
	// caller until the reply arrives or the reply timeout expires. A
	// handler failure surfaces as the returned error.
	Ask(ctx context.Context, msg Message) (any, error)

	// AskFuture is Ask without blocking: the caller receives the reply
	// future.
	AskFuture(ctx context.Context, msg Message) Future[any]

	// Start transitions the handle to running.
	Start() error

	// Stop terminates the handle. Subordinates are stopped and unlinked
	// first; envelopes still queued are discarded with their reply
	// futures completed exceptionally.
	Stop() error

	// Link installs this actor as the supervisor of sub.
	Link(sub Ref) error

	// Unlink removes a supervision edge installed by Link.
	Unlink(sub Ref) error

	// StartLink links sub and then starts it.
	StartLink(sub Ref) error

	// MakeRemote turns a not-yet-started handle into a proxy for the
	// actor hosted at addr.
	MakeRemote(addr string) error
}

// LocalRef is the handle of an actor hosted in this process (or, after
// MakeRemote, a pre-configured client proxy). It holds identity,
// configuration, supervision links and the dispatcher reference; the mailbox
// itself is owned by the dispatcher.
type LocalRef struct {
	id     ID
	system *System

	// factory rebuilds the actor instance on restart. Stored at handle
	// creation; the runtime never re-reads the original object graph.
	factory func() Receiver

	// instance is the live Receiver. Written at start and by the restart
	// path while holding the processing token; read by invoke under the
	// same token.
	instance Receiver

	state atomic.Int32

	// currentMsg is non-nil only for the duration of one handler call,
	// written solely by the worker draining the mailbox.
	currentMsg atomic.Pointer[envelope]

	dispatcher Dispatcher

	// mu is the handle guard: short critical sections around lifecycle
	// transitions and link-graph edges at this node. Never held across
	// user code.
	mu         sync.Mutex
	tag        string
	supervisor *LocalRef
	links      map[ID]*LocalRef

	trapExit []error
	trapAll  bool
	strategy FaultStrategy

	lifecycle      Lifecycle
	replyTimeout   time.Duration
	receiveTimeout time.Duration
	mbSpec         MailboxSpec
	rejection      RejectionPolicy

	// remoteAddr is non-empty iff this handle proxies an actor on
	// another node.
	remoteAddr string

	// restartCount and restartWindowStart implement the bounded restart
	// counter. For one-for-one recovery the counter lives on the failing
	// subordinate; for all-for-one it lives on the supervisor.
	restartCount       int
	restartWindowStart time.Time

	// timerCancel stops the pending receive-timeout one-shot, if any.
	timerCancel func()

	startOnce sync.Once
	stopOnce  sync.Once
	startErr  error
}

// Compile-time check that LocalRef satisfies the public handle contract.
var _ Ref = (*LocalRef)(nil)

// newLocalRef constructs a handle in the NotStarted state.
func newLocalRef(sys *System, factory func() Receiver,
	opts ...SpawnOption) *LocalRef {

	var cfg spawnConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	id := NewID()

	tag := cfg.tag
	if tag == "" {
		tag = id.String()
	}

	dispatcher := cfg.dispatcher
	if dispatcher == nil {
		dispatcher = sys.defaultDispatcher
	}

	mbSpec := sys.cfg.Mailbox
	if cfg.mailbox != nil {
		mbSpec = *cfg.mailbox
	}

	rejection := sys.cfg.Rejection
	if cfg.rejection != nil {
		rejection = *cfg.rejection
	}

	lifecycle := cfg.lifecycle
	if lifecycle == LifecycleUnspecified {
		lifecycle = sys.cfg.DefaultLifecycle
	}

	replyTimeout := cfg.replyTimeout
	if replyTimeout <= 0 {
		replyTimeout = sys.cfg.DefaultReplyTimeout
	}

	return &LocalRef{
		id:             id,
		system:         sys,
		factory:        factory,
		dispatcher:     dispatcher,
		tag:            tag,
		links:          make(map[ID]*LocalRef),
		trapExit:       cfg.trapExit,
		trapAll:        cfg.trapAll,
		strategy:       cfg.strategy,
		lifecycle:      lifecycle,
		replyTimeout:   replyTimeout,
		receiveTimeout: cfg.receiveTimeout,
		mbSpec:         mbSpec,
		rejection:      rejection,
	}
}

// ID returns the stable identity of the actor.
func (h *LocalRef) ID() ID {
	return h.id
}

// Tag returns the user-visible label.
func (h *LocalRef) Tag() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.tag
}

// SetTag replaces the user-visible label and refreshes the registry index.
func (h *LocalRef) SetTag(tag string) error {
	h.mu.Lock()
	old := h.tag
	h.tag = tag
	h.mu.Unlock()

	h.system.registry.retag(h, old, tag)

	return nil
}

// State returns the current lifecycle state.
func (h *LocalRef) State() State {
	return State(h.state.Load())
}

// IsRemote reports whether this handle proxies an actor on another node.
func (h *LocalRef) IsRemote() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.remoteAddr != ""
}

// System returns the owning runtime.
func (h *LocalRef) System() *System {
	return h.system
}

// MailboxSize reports the number of queued envelopes. Observational.
func (h *LocalRef) MailboxSize() int {
	return h.dispatcher.MailboxSize(h)
}

// mailboxSpec exposes the mailbox configuration to the dispatcher that
// allocates the queue.
func (h *LocalRef) mailboxSpec() MailboxSpec {
	return h.mbSpec
}

// Tell enqueues a fire-and-forget envelope. It fails with ErrNotStarted
// before Start and ErrStopped after Stop.
func (h *LocalRef) Tell(ctx context.Context, msg Message) error {
	return h.send(ctx, msg, nil, nil)
}

// TellFrom is Tell with an explicit sender handle, so the receiver can reply
// by message.
func (h *LocalRef) TellFrom(ctx context.Context, msg Message,
	sender Ref) error {

	return h.send(ctx, msg, sender, nil)
}

// Ask enqueues an envelope with a fresh reply future and blocks the caller
// until the reply arrives. The timeout is the context deadline when one is
// set, the handle's reply timeout otherwise. A handler failure is re-raised
// as the returned error; a timeout surfaces as ErrAskTimeout.
func (h *LocalRef) Ask(ctx context.Context, msg Message) (any, error) {
	fut := h.AskFuture(ctx, msg)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.replyTimeout)
		defer cancel()
	}

	val, err := fut.Await(ctx).Unpack()
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrAskTimeout,
			h.replyTimeout)
	}

	return val, err
}

// AskFuture is Ask without blocking: the returned future completes with the
// reply, or exceptionally if the handler raised or the send failed.
func (h *LocalRef) AskFuture(ctx context.Context, msg Message) Future[any] {
	promise := NewPromise[any]()

	if err := h.send(ctx, msg, nil, promise); err != nil {
		promise.Complete(errResult(err))
	}

	return promise.Future()
}

// send is the common local/remote send path.
func (h *LocalRef) send(ctx context.Context, msg Message, sender Ref,
	promise Promise[any]) error {

	switch h.State() {
	case StateNotStarted:
		return ErrNotStarted

	case StateStopped:
		return ErrStopped
	}

	h.mu.Lock()
	remoteAddr := h.remoteAddr
	h.mu.Unlock()

	if remoteAddr != "" {
		return remoteSend(
			ctx, h.system, h.id, remoteAddr, msg, sender, promise,
		)
	}

	payload := msg
	if h.system.cfg.SerializeMessages && !isSystemMessage(msg) {
		copied, err := h.system.deepCopy(msg)
		if err != nil {
			return err
		}
		payload = copied
	}

	env := &envelope{
		payload: payload,
		sender:  sender,
		promise: promise,
		txn:     h.system.txm.Current(),
	}

	return h.dispatcher.Dispatch(h, env)
}

// forwardEnvelope re-dispatches an in-flight envelope to this handle,
// preserving the original sender and reply future.
func (h *LocalRef) forwardEnvelope(env *envelope) error {
	switch h.State() {
	case StateNotStarted:
		return ErrNotStarted

	case StateStopped:
		return ErrStopped
	}

	return h.dispatcher.Dispatch(h, env)
}

// Start transitions the handle from NotStarted to Running: the instance is
// built from the factory, initialized, attached to the dispatcher and
// registered. Start is idempotent; starting a stopped handle fails with
// ErrStopped.
func (h *LocalRef) Start() error {
	if h.State() == StateStopped {
		return ErrStopped
	}

	h.startOnce.Do(func() {
		h.startErr = h.doStart()
	})

	return h.startErr
}

func (h *LocalRef) doStart() error {
	h.mu.Lock()
	remoteAddr := h.remoteAddr
	h.mu.Unlock()

	// A handle made remote before start is a pure client proxy: no
	// instance, mailbox or dispatcher on this node.
	if remoteAddr != "" {
		if t := h.system.transport; t != nil {
			if err := t.RegisterHandle(remoteAddr, h.id); err != nil {
				return err
			}
		}

		h.state.Store(int32(StateRunning))

		log.DebugS(h.system.ctx, "Remote handle started",
			"actor_id", h.id, "remote_addr", remoteAddr)

		return nil
	}

	h.instance = h.factory()

	if err := h.runInit(h.instance); err != nil {
		return err
	}

	if err := h.dispatcher.Attach(h); err != nil {
		return err
	}

	h.system.registry.register(h)
	h.state.Store(int32(StateRunning))
	h.rearmReceiveTimeout()

	log.DebugS(h.system.ctx, "Actor started",
		"actor_id", h.id, "tag", h.Tag())

	return nil
}

// runInit drives the optional Init and InitTransactionalState hooks.
func (h *LocalRef) runInit(instance Receiver) error {
	cctx := &Context{ctx: h.system.ctx, self: h}

	if init, ok := instance.(Initializer); ok {
		if err := init.Init(cctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInitializationFailed,
				err)
		}
	}

	if txInit, ok := instance.(TransactionalInitializer); ok {
		if err := txInit.InitTransactionalState(cctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInitializationFailed,
				err)
		}
	}

	return nil
}

// Stop terminates the handle. All subordinates are stopped and unlinked
// first; the mailbox is closed and undrained envelopes are discarded with
// their reply futures completed exceptionally with ErrStopped. Stop is
// idempotent and never fails once the handle has started.
func (h *LocalRef) Stop() error {
	h.stopOnce.Do(h.doStop)

	return nil
}

func (h *LocalRef) doStop() {
	prev := h.State()

	// Stop subordinates before the actor itself.
	for _, sub := range h.subordinates() {
		sub.Stop()
		h.removeSubordinate(sub)
	}

	h.cancelReceiveTimeout()

	h.mu.Lock()
	remoteAddr := h.remoteAddr
	sup := h.supervisor
	h.supervisor = nil
	h.mu.Unlock()

	h.state.Store(int32(StateStopped))

	if sup != nil {
		sup.removeSubordinate(h)
	}

	if prev == StateNotStarted {
		return
	}

	if remoteAddr != "" {
		if t := h.system.transport; t != nil {
			if err := t.UnregisterHandle(remoteAddr, h.id); err != nil {
				log.WarnS(h.system.ctx,
					"Remote handle unregister failed", err,
					"actor_id", h.id)
			}
		}

		h.system.registry.unregister(h)

		return
	}

	// Best-effort serialization against an in-flight drain: if the token
	// is free we take it so the OnStop hook cannot overlap a handler. A
	// held token means either a self-stop from inside the handler or a
	// concurrent drain finishing its last envelope; both proceed.
	var token *mailbox
	if mb, ok := h.dispatcher.mailboxOf(h); ok && mb.tryAcquire() {
		token = mb
	}

	h.dispatcher.Detach(h)

	if stoppable, ok := h.instance.(Stoppable); ok {
		cctx := &Context{ctx: h.system.ctx, self: h}
		if err := safeOnStop(stoppable, cctx); err != nil {
			log.WarnS(h.system.ctx,
				"Actor cleanup error during shutdown", err,
				"actor_id", h.id)
		}
	}

	if token != nil {
		token.release()
	}

	h.system.registry.unregister(h)

	log.DebugS(h.system.ctx, "Actor stopped",
		"actor_id", h.id, "tag", h.Tag())
}

// safeOnStop shields the stop path from panicking cleanup hooks.
func safeOnStop(s Stoppable, ctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()

	return s.OnStop(ctx)
}

// MakeRemote turns this handle into a client proxy for the actor hosted at
// addr. Only legal before Start (or while the actor is being restarted).
func (h *LocalRef) MakeRemote(addr string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.State() {
	case StateNotStarted, StateBeingRestarted:
		h.remoteAddr = addr
		return nil

	case StateStopped:
		return ErrStopped

	default:
		return fmt.Errorf("%w: make remote requires a not-started "+
			"handle", ErrRemoteOperationUnsupported)
	}
}

// Spawn constructs and starts a child actor in the same system.
func (h *LocalRef) Spawn(factory func() Receiver,
	opts ...SpawnOption) (*LocalRef, error) {

	return h.system.Spawn(factory, opts...)
}

// SpawnLink atomically constructs a subordinate supervised by this actor and
// starts it. The link is installed before the first message can be
// processed; a failed start tears the link down again.
func (h *LocalRef) SpawnLink(factory func() Receiver,
	opts ...SpawnOption) (*LocalRef, error) {

	sub := newLocalRef(h.system, factory, opts...)

	if err := h.Link(sub); err != nil {
		return nil, err
	}

	if err := sub.Start(); err != nil {
		_ = h.Unlink(sub)
		return nil, err
	}

	return sub, nil
}

// SpawnRemote constructs a handle proxying an actor hosted at addr and
// starts it.
func (h *LocalRef) SpawnRemote(factory func() Receiver, addr string,
	opts ...SpawnOption) (*LocalRef, error) {

	return h.system.SpawnRemote(factory, addr, opts...)
}

// SpawnLinkRemote atomically constructs a linked remote-proxy subordinate
// and starts it.
func (h *LocalRef) SpawnLinkRemote(factory func() Receiver, addr string,
	opts ...SpawnOption) (*LocalRef, error) {

	sub := newLocalRef(h.system, factory, opts...)

	if err := sub.MakeRemote(addr); err != nil {
		return nil, err
	}

	if err := h.Link(sub); err != nil {
		return nil, err
	}

	if err := sub.Start(); err != nil {
		_ = h.Unlink(sub)
		return nil, err
	}

	return sub, nil
}

// lockPair acquires two handle guards in identity order so concurrent link
// mutations cannot deadlock.
func lockPair(a, b *LocalRef) {
	if bytes.Compare(a.id[:], b.id[:]) > 0 {
		a, b = b, a
	}

	a.mu.Lock()
	if a != b {
		b.mu.Lock()
	}
}

func unlockPair(a, b *LocalRef) {
	if a != b {
		b.mu.Unlock()
	}
	a.mu.Unlock()
}

// Link installs this actor as the supervisor of sub. A subordinate has at
// most one supervisor; linking one that is already supervised is a linkage
// error.
func (h *LocalRef) Link(sub Ref) error {
	target, ok := sub.(*LocalRef)
	if !ok {
		return ErrRemoteOperationUnsupported
	}

	if target == h {
		return fmt.Errorf("%w: cannot link an actor to itself",
			ErrLinkage)
	}

	lockPair(h, target)
	defer unlockPair(h, target)

	if target.supervisor != nil {
		return fmt.Errorf("%w: actor %v already has a supervisor",
			ErrLinkage, target.id)
	}

	target.supervisor = h
	h.links[target.id] = target

	return nil
}

// Unlink removes a supervision edge. Unlinking an actor that is not a
// subordinate of this handle is a linkage error.
func (h *LocalRef) Unlink(sub Ref) error {
	target, ok := sub.(*LocalRef)
	if !ok {
		return ErrRemoteOperationUnsupported
	}

	lockPair(h, target)
	defer unlockPair(h, target)

	if _, linked := h.links[target.id]; !linked {
		return fmt.Errorf("%w: actor %v is not linked", ErrLinkage,
			target.id)
	}

	delete(h.links, target.id)
	target.supervisor = nil

	return nil
}

// StartLink links sub and then starts it; a failed start removes the link
// again.
func (h *LocalRef) StartLink(sub Ref) error {
	if err := h.Link(sub); err != nil {
		return err
	}

	if err := sub.Start(); err != nil {
		_ = h.Unlink(sub)
		return err
	}

	return nil
}

// subordinates snapshots the linked subordinate handles.
func (h *LocalRef) subordinates() []*LocalRef {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*LocalRef, 0, len(h.links))
	for _, sub := range h.links {
		subs = append(subs, sub)
	}

	return subs
}

// subordinateCount reports the current size of the subordinate map.
func (h *LocalRef) subordinateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.links)
}

// removeSubordinate drops the edge to sub, if present.
func (h *LocalRef) removeSubordinate(sub *LocalRef) {
	lockPair(h, sub)
	defer unlockPair(h, sub)

	if _, linked := h.links[sub.id]; linked {
		delete(h.links, sub.id)
		if sub.supervisor == h {
			sub.supervisor = nil
		}
	}
}

// supervisorRef reads the current supervisor edge.
func (h *LocalRef) supervisorRef() *LocalRef {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.supervisor
}

// effectiveLifecycle resolves the restart fate of this actor.
func (h *LocalRef) effectiveLifecycle() Lifecycle {
	if h.lifecycle == LifecycleUnspecified {
		return h.system.cfg.DefaultLifecycle
	}

	return h.lifecycle
}

// invoke is the entry point called by a dispatcher worker with the
// processing token held. It installs the envelope as the current message,
// resolves the transaction context, runs the handler, and on a raise aborts
// the transaction, completes the reply future exceptionally and delegates to
// the supervision engine before the token is released.
func (h *LocalRef) invoke(env *envelope) {
	if h.State() == StateStopped {
		log.DebugS(h.system.ctx, "Discarding message for stopped actor",
			"actor_id", h.id,
			"msg_type", env.payload.MessageType())

		env.completeErr(ErrStopped)
		h.deadLetter(env, ErrStopped)

		return
	}

	h.currentMsg.Store(env)
	defer h.currentMsg.Store(nil)

	txm := h.system.txm

	var failure error
	if env.txn != nil {
		if err := txm.Join(env.txn, TxnRequires); err != nil {
			failure = fmt.Errorf("%w: %v",
				ErrTransactionSetAborted, err)
		}
	}

	if failure == nil {
		cctx := &Context{ctx: h.system.ctx, self: h, env: env}

		log.TraceS(h.system.ctx, "Actor processing message",
			"actor_id", h.id,
			"msg_type", env.payload.MessageType(),
			"is_ask", env.promise != nil)

		failure = h.runHandler(cctx)
	}

	txm.Clear()

	if failure == nil {
		h.rearmReceiveTimeout()
		return
	}

	if env.txn != nil {
		txm.Abort(env.txn)
	}

	if errors.Is(failure, ErrDeadTransaction) {
		failure = fmt.Errorf("%w: %v", ErrTransactionSetAborted,
			failure)
	}

	env.completeErr(failure)

	log.DebugS(h.system.ctx, "Actor handler failed",
		"actor_id", h.id,
		"msg_type", env.payload.MessageType(),
		"err", failure)

	h.handleFailure(failure)
	h.rearmReceiveTimeout()
}

// runHandler executes the user handler, converting panics and returned
// errors into UserFailure values for the supervision engine.
func (h *LocalRef) runHandler(cctx *Context) (failure error) {
	defer func() {
		if r := recover(); r != nil {
			failure = &UserFailure{
				Cause:    fmt.Errorf("%v", r),
				Panicked: true,
			}
		}
	}()

	if err := h.instance.Receive(cctx); err != nil {
		var uf *UserFailure
		if errors.As(err, &uf) {
			return err
		}

		return &UserFailure{Cause: err}
	}

	return nil
}

// deadLetter reports a non-delivered message to the system hook.
func (h *LocalRef) deadLetter(env *envelope, reason error) {
	h.system.noteDeadLetter(DeadLetter{
		TargetID: h.id,
		Payload:  env.payload,
		Reason:   reason,
	})
}

// discardEnvelopes completes the reply futures of undrained envelopes
// exceptionally and routes their payloads to the dead-letter hook. Called by
// dispatchers when a mailbox closes.
func (h *LocalRef) discardEnvelopes(envs []*envelope) {
	for _, env := range envs {
		env.completeErr(ErrStopped)
		h.deadLetter(env, ErrStopped)
	}
}

// rearmReceiveTimeout cancels the pending receive-timeout one-shot, if any,
// and schedules a fresh one. Called after every processed message.
func (h *LocalRef) rearmReceiveTimeout() {
	if h.receiveTimeout <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.State() == StateStopped {
		return
	}

	if h.timerCancel != nil {
		h.timerCancel()
	}

	h.timerCancel = h.system.sched.ScheduleOnce(h.receiveTimeout, func() {
		if err := h.Tell(context.Background(), ReceiveTimeout{}); err != nil {
			log.TraceS(h.system.ctx,
				"Receive timeout delivery failed",
				"actor_id", h.id, "err", err)
		}
	})
}

// cancelReceiveTimeout stops the pending timer on stop.
func (h *LocalRef) cancelReceiveTimeout() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timerCancel != nil {
		h.timerCancel()
		h.timerCancel = nil
	}
}

// Context carries the ambient state of one handler invocation: the handle of
// the actor itself and the message being processed, including its sender and
// reply channel. It is passed explicitly to the handler's frame and is only
// valid for the duration of that call.
type Context struct {
	ctx  context.Context
	self *LocalRef
	env  *envelope
}

// Context returns the runtime context governing the actor's lifetime.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Self returns the handle of the actor processing the message.
func (c *Context) Self() *LocalRef {
	return c.self
}

// System returns the owning runtime.
func (c *Context) System() *System {
	return c.self.system
}

// Message returns the payload of the current message. Nil outside a handler
// call (lifecycle callbacks).
func (c *Context) Message() Message {
	if c.env == nil {
		return nil
	}

	return c.env.payload
}

// Sender returns the sender handle attached to the current message, if any.
func (c *Context) Sender() (Ref, bool) {
	if c.env == nil || c.env.sender == nil {
		return nil, false
	}

	return c.env.sender, true
}

// Reply completes the current message's reply future, or tells the reply to
// the sender handle when the message carried no future. Fails with
// ErrNoSenderInScope when neither exists.
func (c *Context) Reply(value any) error {
	if c.env == nil {
		return ErrNoSenderInScope
	}

	if c.env.promise != nil {
		c.env.promise.Complete(fn.Ok(value))
		return nil
	}

	if c.env.sender != nil {
		msg, ok := value.(Message)
		if !ok {
			return fmt.Errorf("reply value of type %T is not a "+
				"Message", value)
		}

		return c.env.sender.Tell(c.ctx, msg)
	}

	return ErrNoSenderInScope
}

// ReplyExpected reports whether the current message carries a reply future
// or a sender handle, i.e. whether Reply can succeed.
func (c *Context) ReplyExpected() bool {
	return c.env != nil && (c.env.promise != nil || c.env.sender != nil)
}

// Forward re-dispatches the current message to target, preserving the
// original sender and reply future so the ultimate Reply completes the
// original caller's future. Requires an ambient current message.
func (c *Context) Forward(target Ref) error {
	if c.env == nil {
		return ErrNoSenderInScope
	}

	local, ok := target.(*LocalRef)
	if !ok {
		return ErrRemoteOperationUnsupported
	}

	return local.forwardEnvelope(c.env)
}

// JoinTransaction joins the transaction set attached to the current message
// per the given mode, deferring to the STM collaborator.
func (c *Context) JoinTransaction(mode TxnJoinMode) error {
	if c.env == nil || c.env.txn == nil {
		if mode == TxnRequiresExisting {
			return ErrDeadTransaction
		}

		return c.self.system.txm.Join(c.self.system.txm.New(), mode)
	}

	return c.self.system.txm.Join(c.env.txn, mode)
}
