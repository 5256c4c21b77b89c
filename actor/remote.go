package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// RemoteRef is the handle variant proxying an actor hosted on another node.
// It forwards tell and ask envelopes through the transport collaborator
// using the actor's identity and home address; it owns no mailbox,
// dispatcher or instance. Lifecycle and link operations are unsupported and
// fail with ErrRemoteOperationUnsupported at the call site. Transport
// failures surface as exceptional completions of the reply future.
type RemoteRef struct {
	id     ID
	tag    string
	addr   string
	system *System
}

// Compile-time check that RemoteRef satisfies the public handle contract.
var _ Ref = (*RemoteRef)(nil)

// RemoteRef builds a proxy handle for the actor with the given identity
// hosted at addr.
func (s *System) RemoteRef(id ID, addr string) *RemoteRef {
	return &RemoteRef{
		id:     id,
		tag:    id.String(),
		addr:   addr,
		system: s,
	}
}

// ID returns the stable identity of the proxied actor.
func (r *RemoteRef) ID() ID {
	return r.id
}

// Tag returns the label of the proxy. The remote node's tag is not
// replicated; this defaults to the stringified identity.
func (r *RemoteRef) Tag() string {
	return r.tag
}

// SetTag is unsupported on a remote handle.
func (r *RemoteRef) SetTag(string) error {
	return ErrRemoteOperationUnsupported
}

// State reports Running: a proxy has no local lifecycle, and reachability is
// only discovered by sending.
func (r *RemoteRef) State() State {
	return StateRunning
}

// Tell forwards a fire-and-forget envelope over the transport.
func (r *RemoteRef) Tell(ctx context.Context, msg Message) error {
	return remoteSend(ctx, r.system, r.id, r.addr, msg, nil, nil)
}

// TellFrom forwards a fire-and-forget envelope with the sender attached, so
// the remote handler can reply by message through its own proxy.
func (r *RemoteRef) TellFrom(ctx context.Context, msg Message,
	sender Ref) error {

	return remoteSend(ctx, r.system, r.id, r.addr, msg, sender, nil)
}

// Ask forwards a reply-expecting envelope and blocks for the reply, up to
// the context deadline or the system default reply timeout.
func (r *RemoteRef) Ask(ctx context.Context, msg Message) (any, error) {
	fut := r.AskFuture(ctx, msg)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(
			ctx, r.system.cfg.DefaultReplyTimeout,
		)
		defer cancel()
	}

	val, err := fut.Await(ctx).Unpack()
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrAskTimeout,
			r.system.cfg.DefaultReplyTimeout)
	}

	return val, err
}

// AskFuture forwards a reply-expecting envelope without blocking.
func (r *RemoteRef) AskFuture(ctx context.Context, msg Message) Future[any] {
	promise := NewPromise[any]()

	err := remoteSend(ctx, r.system, r.id, r.addr, msg, nil, promise)
	if err != nil {
		promise.Complete(errResult(err))
	}

	return promise.Future()
}

// Start is unsupported on a remote handle.
func (r *RemoteRef) Start() error {
	return ErrRemoteOperationUnsupported
}

// Stop is unsupported on a remote handle.
func (r *RemoteRef) Stop() error {
	return ErrRemoteOperationUnsupported
}

// Link is unsupported on a remote handle.
func (r *RemoteRef) Link(Ref) error {
	return ErrRemoteOperationUnsupported
}

// Unlink is unsupported on a remote handle.
func (r *RemoteRef) Unlink(Ref) error {
	return ErrRemoteOperationUnsupported
}

// StartLink is unsupported on a remote handle.
func (r *RemoteRef) StartLink(Ref) error {
	return ErrRemoteOperationUnsupported
}

// MakeRemote is unsupported on a handle that is already remote.
func (r *RemoteRef) MakeRemote(string) error {
	return ErrRemoteOperationUnsupported
}

// remoteSend encodes a message and forwards it through the transport. With a
// promise attached the remote reply (or transport failure) completes it;
// otherwise the send is one-way.
func remoteSend(ctx context.Context, sys *System, target ID, addr string,
	msg Message, sender Ref, promise Promise[any]) error {

	transport := sys.transport
	if transport == nil {
		return fmt.Errorf("%w: no transport configured",
			ErrRemoteOperationUnsupported)
	}

	typeURL, payload, err := sys.codec.Encode(msg)
	if err != nil {
		return err
	}

	wire := WireEnvelope{
		TargetID: target,
		TypeURL:  typeURL,
		Payload:  payload,
	}

	if sender != nil {
		senderID := sender.ID()
		wire.SenderID = &senderID
		wire.SenderAddr = transport.SelfAddr()
	}

	log.TraceS(ctx, "Forwarding message to remote node",
		"actor_id", target, "addr", addr, "msg_type", typeURL,
		"is_ask", promise != nil)

	if promise == nil {
		return transport.SendOneWay(ctx, addr, wire)
	}

	fut := transport.SendExpectingReply(ctx, addr, wire)
	fut.OnComplete(ctx, func(result fn.Result[WireReply]) {
		reply, err := result.Unpack()
		if err != nil {
			promise.Complete(errResult(err))
			return
		}

		if reply.Error != "" {
			promise.Complete(errResult(errors.New(reply.Error)))
			return
		}

		if reply.TypeURL == "" {
			promise.Complete(fn.Ok[any](nil))
			return
		}

		decoded, err := sys.codec.Decode(reply.TypeURL, reply.Payload)
		if err != nil {
			promise.Complete(errResult(err))
			return
		}

		promise.Complete(fn.Ok[any](decoded))
	})

	return nil
}
