package actor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// System is the process-wide runtime: it owns the registry, the scheduler,
// the dispatchers and the collaborator wiring (transaction manager, message
// codec, transport). Handles are created through it and deterministically
// torn down by Shutdown.
type System struct {
	cfg Config

	registry *Registry
	sched    *Scheduler

	defaultDispatcher Dispatcher

	// dispatchers tracks every dispatcher owned by the system, including
	// per-spawn overrides registered via AdoptDispatcher, for shutdown.
	dispMu      sync.Mutex
	dispatchers []Dispatcher

	txm        TransactionManager
	codec      MessageCodec
	stateCodec StateCodec
	transport  Transport

	deadLetterMu sync.RWMutex
	onDeadLetter func(DeadLetter)

	ctx    context.Context
	cancel context.CancelFunc
}

// SystemOption is a functional option for constructing a System.
type SystemOption func(*System)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) SystemOption {
	return func(s *System) {
		s.cfg = cfg
	}
}

// WithTransactionManager wires the external STM collaborator.
func WithTransactionManager(txm TransactionManager) SystemOption {
	return func(s *System) {
		s.txm = txm
	}
}

// WithCodec wires the message payload codec used by the transport and by
// serialize-messages deep copying.
func WithCodec(codec MessageCodec) SystemOption {
	return func(s *System) {
		s.codec = codec
	}
}

// WithStateCodec wires the serialization collaborator for actor instance
// state, consumed when handles migrate between nodes.
func WithStateCodec(codec StateCodec) SystemOption {
	return func(s *System) {
		s.stateCodec = codec
	}
}

// WithTransport wires the external wire-transport collaborator, enabling
// remote handles.
func WithTransport(t Transport) SystemOption {
	return func(s *System) {
		s.transport = t
	}
}

// WithDeadLetterHook registers an observer for undeliverable messages.
func WithDeadLetterHook(hook func(DeadLetter)) SystemOption {
	return func(s *System) {
		s.onDeadLetter = hook
	}
}

// NewSystem creates a runtime with the given options applied over the
// default configuration.
func NewSystem(opts ...SystemOption) *System {
	ctx, cancel := context.WithCancel(context.Background())

	s := &System{
		cfg:      DefaultConfig(),
		registry: newRegistry(),
		sched:    newScheduler(),
		txm:      nopTxnManager{},
		codec:    NewJSONCodec(),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.defaultDispatcher = s.buildDefaultDispatcher()
	s.dispatchers = append(s.dispatchers, s.defaultDispatcher)

	return s
}

// buildDefaultDispatcher realizes the configured default dispatcher kind.
func (s *System) buildDefaultDispatcher() Dispatcher {
	switch s.cfg.DefaultDispatcher {
	case DispatchExecutor:
		return NewExecutorDispatcher(s.cfg.PoolWorkers, s.cfg.Throughput)

	case DispatchSingleThread:
		return NewSingleThreadDispatcher()

	case DispatchPinned:
		return NewPinnedDispatcher(s.cfg.PoolWorkers, s.cfg.Throughput)

	case DispatchThreadBased:
		return NewThreadDispatcher()

	default:
		return NewCooperativePoolDispatcher(s.cfg.Throughput)
	}
}

// AdoptDispatcher hands ownership of a dispatcher created for per-spawn
// overrides to the system, so Shutdown stops its workers too.
func (s *System) AdoptDispatcher(d Dispatcher) Dispatcher {
	s.dispMu.Lock()
	defer s.dispMu.Unlock()

	s.dispatchers = append(s.dispatchers, d)

	return d
}

// Config returns the system configuration.
func (s *System) Config() Config {
	return s.cfg
}

// Registry returns the identity/tag/type lookup surface.
func (s *System) Registry() *Registry {
	return s.registry
}

// Scheduler returns the timer service.
func (s *System) Scheduler() *Scheduler {
	return s.sched
}

// Codec returns the configured message codec.
func (s *System) Codec() MessageCodec {
	return s.codec
}

// StateCodec returns the configured actor-state codec, nil when migration is
// not wired.
func (s *System) StateCodec() StateCodec {
	return s.stateCodec
}

// NewActor constructs a handle in the NotStarted state. The factory is saved
// on the handle and replayed on every restart.
func (s *System) NewActor(factory func() Receiver,
	opts ...SpawnOption) *LocalRef {

	return newLocalRef(s, factory, opts...)
}

// Spawn atomically constructs and starts an actor.
func (s *System) Spawn(factory func() Receiver,
	opts ...SpawnOption) (*LocalRef, error) {

	h := newLocalRef(s, factory, opts...)
	if err := h.Start(); err != nil {
		return nil, err
	}

	return h, nil
}

// SpawnRemote constructs a client proxy handle for an actor hosted at addr
// and starts it.
func (s *System) SpawnRemote(factory func() Receiver, addr string,
	opts ...SpawnOption) (*LocalRef, error) {

	h := newLocalRef(s, factory, opts...)
	if err := h.MakeRemote(addr); err != nil {
		return nil, err
	}

	if err := h.Start(); err != nil {
		return nil, err
	}

	return h, nil
}

// Shutdown stops every registered actor, cancels outstanding timers and
// stops all dispatcher workers. It blocks until the teardown completes or
// the context expires.
func (s *System) Shutdown(ctx context.Context) error {
	s.cancel()

	actors := s.registry.all()

	log.InfoS(ctx, "Actor system shutting down",
		"num_actors", len(actors))

	for _, h := range actors {
		_ = h.Stop()
	}

	s.sched.shutdown()

	// Dispatcher workers drain synchronously; run the waits in a
	// goroutine so the context deadline is honored.
	done := make(chan struct{})
	go func() {
		s.dispMu.Lock()
		dispatchers := make([]Dispatcher, len(s.dispatchers))
		copy(dispatchers, s.dispatchers)
		s.dispMu.Unlock()

		for _, d := range dispatchers {
			d.Shutdown()
		}

		close(done)
	}()

	select {
	case <-done:
		log.InfoS(ctx, "Actor system shutdown completed")

		return nil

	case <-ctx.Done():
		log.ErrorS(ctx, "Actor system shutdown incomplete, "+
			"some workers may have leaked", ctx.Err())

		return ctx.Err()
	}
}

// noteDeadLetter reports an undeliverable message to the configured hook.
func (s *System) noteDeadLetter(dl DeadLetter) {
	log.DebugS(s.ctx, "Dead letter",
		"actor_id", dl.TargetID,
		"msg_type", dl.Payload.MessageType(),
		"reason", dl.Reason)

	s.deadLetterMu.RLock()
	hook := s.onDeadLetter
	s.deadLetterMu.RUnlock()

	if hook != nil {
		hook(dl)
	}
}

// deepCopy round-trips a message through the codec, used by the
// serialize-messages testing mode to catch accidental sharing of mutable
// payload state between sender and receiver.
func (s *System) deepCopy(msg Message) (Message, error) {
	typeURL, data, err := s.codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("serialize-messages copy: %w", err)
	}

	copied, err := s.codec.Decode(typeURL, data)
	if err != nil {
		return nil, fmt.Errorf("serialize-messages copy: %w", err)
	}

	return copied, nil
}

// DeliverTell routes an inbound one-way wire envelope to its local target.
// Part of the Inbound surface consumed by transport servers.
func (s *System) DeliverTell(ctx context.Context, env WireEnvelope) error {
	target, ok := s.registry.FindByID(env.TargetID)
	if !ok {
		return fmt.Errorf("%w: no actor %v", ErrStopped, env.TargetID)
	}

	msg, err := s.codec.Decode(env.TypeURL, env.Payload)
	if err != nil {
		return err
	}

	var sender Ref
	if env.SenderID != nil && env.SenderAddr != "" {
		sender = s.RemoteRef(*env.SenderID, env.SenderAddr)
	}

	return target.TellFrom(ctx, msg, sender)
}

// DeliverAsk routes an inbound ask wire envelope to its local target, waits
// for the reply and serializes it. Handler failures come back as error
// replies, not transport errors.
func (s *System) DeliverAsk(ctx context.Context,
	env WireEnvelope) (WireReply, error) {

	target, ok := s.registry.FindByID(env.TargetID)
	if !ok {
		return WireReply{}, fmt.Errorf("%w: no actor %v", ErrStopped,
			env.TargetID)
	}

	msg, err := s.codec.Decode(env.TypeURL, env.Payload)
	if err != nil {
		return WireReply{}, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(
			ctx, s.cfg.DefaultReplyTimeout,
		)
		defer cancel()
	}

	value, err := target.Ask(ctx, msg)
	if err != nil {
		return WireReply{Error: err.Error()}, nil
	}

	if value == nil {
		return WireReply{}, nil
	}

	replyMsg, ok := value.(Message)
	if !ok {
		return WireReply{Error: fmt.Sprintf("reply value of type %T "+
			"is not serializable", value)}, nil
	}

	typeURL, payload, err := s.codec.Encode(replyMsg)
	if err != nil {
		return WireReply{Error: err.Error()}, nil
	}

	return WireReply{TypeURL: typeURL, Payload: payload}, nil
}

// HomeAddr returns the transport self address when one is wired, so callers
// can mint remotable references to local actors.
func (s *System) HomeAddr() (string, bool) {
	if s.transport == nil {
		return "", false
	}

	return s.transport.SelfAddr(), true
}

// AwaitIdle is a test and shutdown helper: it polls until every registered
// actor's mailbox is empty and no handler is in flight, or the timeout
// expires.
func (s *System) AwaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		idle := true
		for _, h := range s.registry.all() {
			if h.MailboxSize() > 0 || h.currentMsg.Load() != nil {
				idle = false
				break
			}
		}

		if idle {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(time.Millisecond)
	}
}
